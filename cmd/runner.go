package main

import (
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/albumdrop/internal/repositories"
	"github.com/desertthunder/albumdrop/internal/services"
	"github.com/desertthunder/albumdrop/internal/shared"
	"github.com/desertthunder/albumdrop/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config         *shared.Config
	configPath     string
	api            *services.APIService
	uploader       services.Transferer
	httpClient     *http.Client
	logger         *log.Logger
	output         io.Writer
	progressOutput io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config         *shared.Config
	ConfigPath     string
	API            *services.APIService
	Uploader       services.Transferer // Defaults to an UploadService over HTTPClient
	HTTPClient     *http.Client
	Logger         *log.Logger
	Output         io.Writer // Command results
	ProgressOutput io.Writer // Progress bars; defaults to stderr
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.ProgressOutput == nil {
		opts.ProgressOutput = os.Stderr
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.API == nil {
		opts.API = services.NewAPIService(opts.Config.Server.BaseURL, opts.HTTPClient).WithToken(opts.Config.Credentials.Token)
	}

	return &Runner{
		config:         opts.Config,
		configPath:     opts.ConfigPath,
		api:            opts.API,
		uploader:       opts.Uploader,
		httpClient:     opts.HTTPClient,
		logger:         opts.Logger,
		output:         opts.Output,
		progressOutput: opts.ProgressOutput,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		uploadCommand, tuiCommand, serveCommand, historyCommand, setupCommand, statusCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger replaces the logger used by subsequent commands.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// engineOpts describes a single batch run.
type engineOpts struct {
	token  string
	record bool
	logger *log.Logger
}

// newEngine builds an AlbumEngine from the config. The returned close func releases the history database, if one was opened.
func (r *Runner) newEngine(opts engineOpts) (*tasks.AlbumEngine, func(), error) {
	if err := r.config.Validate(); err != nil {
		return nil, nil, err
	}
	coverURL, err := r.config.CoverURL()
	if err != nil {
		return nil, nil, err
	}
	audioURL, err := r.config.AudioURL()
	if err != nil {
		return nil, nil, err
	}
	timeout, _ := r.config.UploadTimeout()
	interval, _ := r.config.ProgressLogInterval()

	logger := opts.logger
	if logger == nil {
		logger = r.logger
	}

	uploader := r.uploader
	if uploader == nil {
		uploader = services.NewUploadService(services.UploadOpts{
			HTTPClient: r.httpClient,
			Timeout:    timeout,
			Logger:     logger,
		})
	}

	token := opts.token
	if token == "" {
		token = r.config.Credentials.Token
	}

	cfg := tasks.EngineOpts{
		Uploader:            uploader,
		Endpoints:           tasks.Endpoints{Cover: coverURL, Audio: audioURL},
		Token:               token,
		Logger:              logger,
		ProgressLogInterval: interval,
	}

	closeFn := func() {}
	if opts.record && r.config.Upload.RecordHistory {
		if db, err := r.openDatabase(); err != nil {
			logger.Warn("batch history disabled", "error", err)
		} else {
			cfg.Recorder = repositories.NewBatchRecorder(db)
			closeFn = func() { db.Close() }
		}
	}

	return tasks.NewAlbumEngine(cfg), closeFn, nil
}

func (r *Runner) openDatabase() (*sql.DB, error) {
	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", r.config.Database.Path, err)
	}
	return db, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
