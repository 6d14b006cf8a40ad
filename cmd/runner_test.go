package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/albumdrop/internal/services"
	"github.com/desertthunder/albumdrop/internal/shared"
	tu "github.com/desertthunder/albumdrop/internal/testing"
	"github.com/urfave/cli/v3"
)

// testRunner builds a Runner pointed at baseURL with its history database in a temp dir.
func testRunner(t *testing.T, baseURL string) (*Runner, *bytes.Buffer) {
	t.Helper()
	config := shared.DefaultConfig()
	config.Server.BaseURL = baseURL
	config.Database.Path = filepath.Join(t.TempDir(), "history.db")

	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{
		Config:         config,
		Logger:         shared.NewLogger(&bytes.Buffer{}),
		Output:         output,
		ProgressOutput: &bytes.Buffer{},
	})
	return runner, output
}

func run(r *Runner, args ...string) error {
	app := &cli.Command{Name: "albumdrop", Commands: r.register()}
	return app.Run(context.Background(), append([]string{"albumdrop"}, args...))
}

// albumFiles writes a cover and two tracks and returns their paths.
func albumFiles(t *testing.T) (cover, first, second string) {
	t.Helper()
	dir := t.TempDir()
	cover = tu.MustWriteFile(t, dir, "cover.png", []byte("\x89PNG\r\n\x1a\n"+strings.Repeat("x", 2048)))
	first = tu.MustWriteFile(t, dir, "01.mp3", bytes.Repeat([]byte{0}, 64*1024))
	second = tu.MustWriteFile(t, dir, "02.mp3", bytes.Repeat([]byte{0}, 32*1024))
	return cover, first, second
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			progress := &bytes.Buffer{}
			httpClient := &http.Client{}
			api := services.NewAPIService("http://example.test", httpClient)
			uploader := services.NewUploadService(services.UploadOpts{})

			runner := NewRunner(RunnerOpts{
				Config:         config,
				ConfigPath:     "/test/path/config.toml",
				Logger:         logger,
				Output:         output,
				ProgressOutput: progress,
				HTTPClient:     httpClient,
				API:            api,
				Uploader:       uploader,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.progressOutput != progress {
				t.Error("expected progress output to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
			if runner.api != api {
				t.Error("expected api to be set")
			}
			if runner.uploader != uploader {
				t.Error("expected uploader to be set")
			}
		})

		t.Run("with nil options uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
			if runner.progressOutput != os.Stderr {
				t.Error("expected progress output to default to os.Stderr")
			}
			if runner.httpClient != http.DefaultClient {
				t.Error("expected httpClient to default to http.DefaultClient")
			}
			if runner.api == nil {
				t.Error("expected api to be built from config")
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "{\"key\":\"value\"}\n" {
				t.Errorf("unexpected compact JSON %q", output.String())
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			err := runner.writeJSON(map[string]any{"fn": func() {}}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("Hello %s\n", "World"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "Hello World\n" {
				t.Errorf("expected 'Hello World\\n', got %q", output.String())
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			if err := runner.writePlain("test"); err == nil {
				t.Error("expected error for write failure")
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		want := []string{"upload", "tui", "serve", "history", "setup", "status"}
		if len(commands) != len(want) {
			t.Fatalf("expected %d commands, got %d", len(want), len(commands))
		}
		for i, name := range want {
			if commands[i].Name != name {
				t.Errorf("command %d: expected %s, got %s", i, name, commands[i].Name)
			}
		}
	})
}

func TestUploadCommand(t *testing.T) {
	t.Run("uploads the album and records it", func(t *testing.T) {
		server := tu.NewUploadServer(t, nil)
		runner, output := testRunner(t, server.URL)
		cover, first, second := albumFiles(t)

		err := run(runner, "upload", "--cover", cover, "--track", first, "--token", "secret", "--format", "json", second)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		uploads := server.Uploads()
		if len(uploads) != 3 {
			t.Fatalf("expected 3 uploads, got %d", len(uploads))
		}
		if uploads[0].Path != "/upload/cover" || uploads[0].Field != "cover" || uploads[0].ContentType != "image/png" {
			t.Errorf("unexpected cover upload %+v", uploads[0])
		}
		for i, u := range uploads[1:] {
			if u.Path != "/upload/audio" || u.Field != "audio" {
				t.Errorf("track %d: unexpected upload %+v", i, u)
			}
			if u.Authorization != "Bearer secret" {
				t.Errorf("track %d: expected bearer token, got %q", i, u.Authorization)
			}
		}
		if uploads[1].Filename != "01.mp3" || uploads[2].Filename != "02.mp3" {
			t.Errorf("expected tracks in order, got %s then %s", uploads[1].Filename, uploads[2].Filename)
		}

		var summary struct {
			Status       string `json:"status"`
			SuccessCount int    `json:"success_count"`
			Items        []struct {
				Status   string `json:"status"`
				Progress int    `json:"progress"`
			} `json:"items"`
		}
		if err := json.Unmarshal(output.Bytes(), &summary); err != nil {
			t.Fatalf("expected JSON summary, got %q: %v", output.String(), err)
		}
		if summary.Status != "completed" || summary.SuccessCount != 2 {
			t.Errorf("unexpected summary %+v", summary)
		}
		for i, item := range summary.Items {
			if item.Status != "success" || item.Progress != 100 {
				t.Errorf("item %d: expected success at 100, got %+v", i, item)
			}
		}

		output.Reset()
		if err := run(runner, "history", "list"); err != nil {
			t.Fatalf("history list failed: %v", err)
		}
		if !strings.Contains(output.String(), "cover.png") || !strings.Contains(output.String(), "completed") {
			t.Errorf("expected recorded batch in history, got:\n%s", output.String())
		}
	})

	t.Run("track rejection is reported per item", func(t *testing.T) {
		server := tu.NewUploadServer(t, tu.StatusFor("01.mp3", http.StatusRequestEntityTooLarge, "too large"))
		runner, output := testRunner(t, server.URL)
		cover, first, second := albumFiles(t)

		if err := run(runner, "upload", "--no-record", "--cover", cover, "-t", first, "-t", second); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		text := output.String()
		for _, want := range []string{"1 uploaded, 1 failed", "01.mp3 [64.0 KiB] failed: too large", "02.mp3 [32.0 KiB] uploaded"} {
			if !strings.Contains(text, want) {
				t.Errorf("expected %q in summary:\n%s", want, text)
			}
		}
		if len(server.Uploads()) != 3 {
			t.Errorf("expected the second track to upload after the failure, got %d uploads", len(server.Uploads()))
		}
	})

	t.Run("cover failure stops the batch", func(t *testing.T) {
		server := tu.NewUploadServer(t, tu.StatusFor("cover.png", http.StatusInternalServerError, "boom"))
		runner, output := testRunner(t, server.URL)
		cover, first, second := albumFiles(t)

		err := run(runner, "upload", "--no-record", "--cover", cover, "-t", first, "-t", second)
		if !errors.Is(err, shared.ErrCoverUpload) {
			t.Fatalf("expected ErrCoverUpload, got %v", err)
		}
		if !strings.Contains(err.Error(), "status 500: boom") {
			t.Errorf("expected status in error, got %v", err)
		}
		if output.Len() != 0 {
			t.Errorf("expected no summary, got %q", output.String())
		}
		if len(server.Uploads()) != 1 {
			t.Errorf("expected only the cover upload, got %d", len(server.Uploads()))
		}
	})

	t.Run("csv summary", func(t *testing.T) {
		server := tu.NewUploadServer(t, nil)
		runner, output := testRunner(t, server.URL)
		cover, first, _ := albumFiles(t)

		if err := run(runner, "upload", "--no-record", "--cover", cover, "--format", "csv", first); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		lines := strings.Split(strings.TrimSpace(output.String()), "\n")
		if len(lines) != 2 || lines[0] != "Index,File,Size,Status,Progress,Error" {
			t.Fatalf("unexpected CSV:\n%s", output.String())
		}
		if lines[1] != "0,01.mp3,65536,success,100," {
			t.Errorf("unexpected CSV row %q", lines[1])
		}
	})

	t.Run("rejects bad arguments", func(t *testing.T) {
		runner, _ := testRunner(t, "http://127.0.0.1:1")
		cover, first, _ := albumFiles(t)

		tests := []struct {
			name string
			args []string
		}{
			{"unknown format", []string{"upload", "--cover", cover, "--format", "xml", first}},
			{"missing cover file", []string{"upload", "--cover", filepath.Join(t.TempDir(), "nope.png"), first}},
			{"missing track file", []string{"upload", "--cover", cover, filepath.Join(t.TempDir(), "nope.mp3")}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if err := run(runner, tt.args...); !errors.Is(err, shared.ErrInvalidArgument) {
					t.Errorf("expected ErrInvalidArgument, got %v", err)
				}
			})
		}
	})

	t.Run("requires a cover", func(t *testing.T) {
		runner, _ := testRunner(t, "http://127.0.0.1:1")
		_, first, _ := albumFiles(t)

		for _, cmd := range []string{"upload", "tui"} {
			t.Run(cmd, func(t *testing.T) {
				if err := run(runner, cmd, first); !errors.Is(err, shared.ErrMissingArgument) {
					t.Errorf("expected ErrMissingArgument, got %v", err)
				}
			})
		}
	})

	t.Run("rejects invalid config", func(t *testing.T) {
		runner, _ := testRunner(t, "not a url")
		cover, first, _ := albumFiles(t)

		if err := run(runner, "upload", "--cover", cover, first); !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}

func TestHistoryCommands(t *testing.T) {
	server := tu.NewUploadServer(t, nil)
	runner, output := testRunner(t, server.URL)
	cover, first, _ := albumFiles(t)

	if err := run(runner, "upload", "--cover", cover, first); err != nil {
		t.Fatalf("upload failed: %v", err)
	}

	t.Run("list as JSON lines", func(t *testing.T) {
		output.Reset()
		if err := run(runner, "history", "list", "--json"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		var batch struct {
			ID       string `json:"id"`
			Sequence int    `json:"sequence"`
			Status   string `json:"status"`
		}
		if err := json.Unmarshal([]byte(strings.TrimSpace(output.String())), &batch); err != nil {
			t.Fatalf("expected one JSON object, got %q: %v", output.String(), err)
		}
		if batch.ID == "" || batch.Sequence != 1 || batch.Status != "completed" {
			t.Errorf("unexpected batch %+v", batch)
		}

		output.Reset()
		if err := run(runner, "history", "show", "--id", batch.ID, "--format", "markdown"); err != nil {
			t.Fatalf("history show failed: %v", err)
		}
		if !strings.Contains(output.String(), "| 1 | 01.mp3 |") {
			t.Errorf("expected markdown row, got:\n%s", output.String())
		}

		path := filepath.Join(t.TempDir(), "batch.csv")
		output.Reset()
		if err := run(runner, "history", "show", "--id", batch.ID, "--format", "csv", "--output", path); err != nil {
			t.Fatalf("history export failed: %v", err)
		}
		tu.AssertFileExists(t, path)
		if !strings.Contains(tu.MustReadFile(t, path), "01.mp3") {
			t.Error("expected exported CSV to list the track")
		}

		output.Reset()
		if err := run(runner, "history", "delete", "--id", batch.ID); err != nil {
			t.Fatalf("history delete failed: %v", err)
		}
		output.Reset()
		if err := run(runner, "history", "list"); err != nil {
			t.Fatalf("history list failed: %v", err)
		}
		if !strings.Contains(output.String(), "No batches recorded") {
			t.Errorf("expected empty history, got:\n%s", output.String())
		}
	})

	t.Run("show unknown batch", func(t *testing.T) {
		err := run(runner, "history", "show", "--id", "missing")
		if !errors.Is(err, shared.ErrBatchNotFound) {
			t.Errorf("expected ErrBatchNotFound, got %v", err)
		}
	})
}

func TestStatusCommand(t *testing.T) {
	t.Run("healthy server", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/health" {
				http.NotFound(w, r)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"ok","received":3}`))
		}))
		defer server.Close()

		runner, output := testRunner(t, server.URL)
		if err := run(runner, "status"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		for _, want := range []string{"Status: 200", "status: ok", "received: 3"} {
			if !strings.Contains(output.String(), want) {
				t.Errorf("expected %q in output:\n%s", want, output.String())
			}
		}
	})

	t.Run("unhealthy server", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		runner, _ := testRunner(t, server.URL)
		if err := run(runner, "status"); !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
	})
}

func TestServeCommand(t *testing.T) {
	runner, _ := testRunner(t, "http://127.0.0.1:3000")
	runner.config.Receiver.Host = "127.0.0.1"
	runner.config.Receiver.Port = 0
	dir := filepath.Join(t.TempDir(), "uploads")

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	app := &cli.Command{Name: "albumdrop", Commands: runner.register()}
	if err := app.Run(ctx, []string{"albumdrop", "serve", "--dir", dir}); err != nil {
		t.Fatalf("expected clean shutdown, got %v", err)
	}
	tu.AssertFileExists(t, dir)
}

func TestSetupCommands(t *testing.T) {
	t.Run("config writes defaults once", func(t *testing.T) {
		runner, output := testRunner(t, "http://127.0.0.1:3000")
		path := filepath.Join(t.TempDir(), "config.toml")

		if err := run(runner, "setup", "config", "--config", path); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		tu.AssertFileExists(t, path)
		if !strings.Contains(output.String(), shared.TokenEnvVar) {
			t.Errorf("expected token hint, got %q", output.String())
		}

		if err := run(runner, "setup", "config", "--config", path); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument for existing file, got %v", err)
		}
	})

	t.Run("database applies migrations", func(t *testing.T) {
		runner, _ := testRunner(t, "http://127.0.0.1:3000")
		dir := t.TempDir()
		dbPath := filepath.Join(dir, "albumdrop.db")
		path := tu.MustWriteFile(t, dir, "config.toml", []byte("[database]\npath = \""+filepath.ToSlash(dbPath)+"\"\n"))

		if err := run(runner, "setup", "database", "--config", path); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		tu.AssertFileExists(t, dbPath)
	})

	t.Run("database rollback reverts newest migration", func(t *testing.T) {
		runner, _ := testRunner(t, "http://127.0.0.1:3000")
		dir := t.TempDir()
		dbPath := filepath.Join(dir, "albumdrop.db")
		path := tu.MustWriteFile(t, dir, "config.toml", []byte("[database]\npath = \""+filepath.ToSlash(dbPath)+"\"\n"))

		if err := run(runner, "setup", "database", "--config", path); err != nil {
			t.Fatalf("setup failed: %v", err)
		}
		if err := run(runner, "setup", "database", "--config", path, "--rollback"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		db, err := shared.NewDatabase(dbPath)
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		version, err := shared.CurrentVersion(db)
		if err != nil {
			t.Fatalf("failed to read version: %v", err)
		}
		if version != 0 {
			t.Errorf("expected schema version 0 after rollback, got %d", version)
		}
		if _, err := db.Exec("SELECT cover_url FROM batches LIMIT 1"); err == nil {
			t.Error("expected cover_url column to be dropped")
		}

		if err := run(runner, "setup", "database", "--config", path); err != nil {
			t.Fatalf("re-applying migrations failed: %v", err)
		}
		if version, _ := shared.CurrentVersion(db); version != 1 {
			t.Errorf("expected schema version 1 after re-applying, got %d", version)
		}
	})

	t.Run("database rollback requires existing config", func(t *testing.T) {
		runner, _ := testRunner(t, "http://127.0.0.1:3000")
		path := filepath.Join(t.TempDir(), "missing.toml")

		if err := run(runner, "setup", "database", "--config", path, "--rollback"); !errors.Is(err, shared.ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Error("rollback should not create a config file")
		}
	})
}
