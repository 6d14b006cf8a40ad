package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/desertthunder/albumdrop/internal/formatter"
	"github.com/desertthunder/albumdrop/internal/models"
	"github.com/desertthunder/albumdrop/internal/shared"
	"github.com/desertthunder/albumdrop/internal/tasks"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
)

// Upload runs one album batch, drawing a progress bar per file.
//
// Ctrl-C cancels the batch; the summary still lists what finished.
func (r *Runner) Upload(ctx context.Context, cmd *cli.Command) error {
	format := strings.ToLower(cmd.String("format"))
	if format != "md" && !slices.Contains(formatter.Formats, format) {
		return fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, format)
	}

	cover, tracks, err := r.loadAlbum(cmd)
	if err != nil {
		return err
	}

	engine, closeDB, err := r.newEngine(engineOpts{
		token:  cmd.String("token"),
		record: !cmd.Bool("no-record"),
	})
	if err != nil {
		return err
	}
	defer closeDB()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	bars := newBarRenderer(r.progressOutput, cover, tracks)
	result, err := engine.UploadAlbum(ctx, cover, tracks, bars.hooks())
	bars.settle(result, err)

	switch {
	case result == nil:
		return err
	case errors.Is(err, shared.ErrCoverUpload):
		return fmt.Errorf("cover %s was not accepted: %w", cover.Name, err)
	}

	coverURL, _ := r.config.CoverURL()
	audioURL, _ := r.config.AudioURL()
	data, ferr := formatter.Format(result.Batch(tasks.Endpoints{Cover: coverURL, Audio: audioURL}), format)
	if ferr != nil {
		return ferr
	}
	if !strings.HasSuffix(string(data), "\n") {
		data = append(data, '\n')
	}
	if _, werr := r.output.Write(data); werr != nil {
		return fmt.Errorf("failed to write output: %w", werr)
	}
	return err
}

// loadAlbum opens the cover and tracks named on the command line.
func (r *Runner) loadAlbum(cmd *cli.Command) (models.MediaFile, []models.MediaFile, error) {
	paths := append(cmd.StringSlice("track"), cmd.Args().Slice()...)

	coverPath := cmd.String("cover")
	if coverPath == "" {
		return models.MediaFile{}, nil, fmt.Errorf("%w: --cover", shared.ErrMissingArgument)
	}

	cover, err := models.OpenMediaFile(coverPath)
	if err != nil {
		return models.MediaFile{}, nil, fmt.Errorf("%w: cover: %v", shared.ErrInvalidArgument, err)
	}

	tracks := make([]models.MediaFile, 0, len(paths))
	for _, p := range paths {
		f, err := models.OpenMediaFile(p)
		if err != nil {
			return models.MediaFile{}, nil, fmt.Errorf("%w: track: %v", shared.ErrInvalidArgument, err)
		}
		tracks = append(tracks, f)
	}
	return cover, tracks, nil
}

// barRenderer draws the cover bar and one bar per track as each one starts.
// Hooks run on the engine's goroutine, so no locking is needed.
type barRenderer struct {
	w        io.Writer
	cover    models.MediaFile
	tracks   []models.MediaFile
	coverBar *progressbar.ProgressBar
	bars     []*progressbar.ProgressBar
	coverOK  bool
}

func newBarRenderer(w io.Writer, cover models.MediaFile, tracks []models.MediaFile) *barRenderer {
	return &barRenderer{
		w:      w,
		cover:  cover,
		tracks: tracks,
		bars:   make([]*progressbar.ProgressBar, len(tracks)),
	}
}

func (b *barRenderer) newBar(label string) *progressbar.ProgressBar {
	return progressbar.NewOptions(100,
		progressbar.OptionSetWriter(b.w),
		progressbar.OptionSetDescription(label),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionShowCount(),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(b.w) }),
	)
}

func (b *barRenderer) hooks() tasks.Hooks {
	return tasks.Hooks{
		OnCoverProgress: func(percent int) {
			if b.coverBar == nil {
				b.coverBar = b.newBar(fmt.Sprintf("cover  %s", b.cover.Name))
			}
			b.coverBar.Set(percent)
		},
		OnItemUpdate: b.itemUpdate,
	}
}

func (b *barRenderer) itemUpdate(index int, patch models.ItemPatch) {
	name := b.tracks[index].Name

	if patch.Status != nil && *patch.Status == models.StatusUploading {
		b.finishCover()
		b.bars[index] = b.newBar(fmt.Sprintf("%2d/%-2d  %s", index+1, len(b.tracks), name))
	}
	bar := b.bars[index]
	if bar == nil {
		if patch.Status != nil && *patch.Status == models.StatusCancelled {
			fmt.Fprintf(b.w, "%2d/%-2d  %s cancelled\n", index+1, len(b.tracks), name)
		}
		return
	}

	if patch.Progress != nil {
		bar.Set(*patch.Progress)
	}
	if patch.Status == nil {
		return
	}
	switch *patch.Status {
	case models.StatusSuccess:
		bar.Finish()
	case models.StatusError:
		msg := ""
		if patch.Error != nil {
			msg = *patch.Error
		}
		bar.Describe(fmt.Sprintf("%2d/%-2d  %s failed: %s", index+1, len(b.tracks), name, msg))
		bar.Exit()
		fmt.Fprintln(b.w)
	case models.StatusCancelled:
		bar.Describe(fmt.Sprintf("%2d/%-2d  %s cancelled", index+1, len(b.tracks), name))
		bar.Exit()
		fmt.Fprintln(b.w)
	}
}

// finishCover completes the cover bar; a track starting means the cover was accepted.
func (b *barRenderer) finishCover() {
	if b.coverOK {
		return
	}
	b.coverOK = true
	if b.coverBar == nil {
		b.coverBar = b.newBar(fmt.Sprintf("cover  %s", b.cover.Name))
	}
	b.coverBar.Finish()
}

// settle closes the cover bar after the batch returns.
func (b *barRenderer) settle(result *tasks.AlbumResult, err error) {
	if b.coverOK {
		return
	}
	switch {
	case err == nil, result != nil && result.CoverResponse != nil:
		b.finishCover()
	case b.coverBar != nil:
		b.coverOK = true
		outcome := "failed"
		if errors.Is(err, shared.ErrBatchCancelled) {
			outcome = "cancelled"
		}
		b.coverBar.Describe(fmt.Sprintf("cover  %s %s", b.cover.Name, outcome))
		b.coverBar.Exit()
		fmt.Fprintln(b.w)
	}
}
