package models

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/albumdrop/internal/shared"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func TestMediaFile(t *testing.T) {
	t.Run("OpenMediaFile sniffs content type", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "cover.bin")
		if err := os.WriteFile(path, pngHeader, 0o644); err != nil {
			t.Fatalf("failed to write file: %v", err)
		}

		f, err := OpenMediaFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if f.Name != "cover.bin" {
			t.Errorf("expected name cover.bin, got %s", f.Name)
		}
		if f.Size != int64(len(pngHeader)) {
			t.Errorf("expected size %d, got %d", len(pngHeader), f.Size)
		}
		if f.MIMEType != "image/png" {
			t.Errorf("expected image/png, got %s", f.MIMEType)
		}

		rc, err := f.Open()
		if err != nil {
			t.Fatalf("unexpected open error: %v", err)
		}
		defer rc.Close()
		data, _ := io.ReadAll(rc)
		if len(data) != len(pngHeader) {
			t.Errorf("expected %d bytes, got %d", len(pngHeader), len(data))
		}
	})

	t.Run("OpenMediaFile rejects missing file and directory", func(t *testing.T) {
		dir := t.TempDir()
		if _, err := OpenMediaFile(filepath.Join(dir, "missing.mp3")); err == nil {
			t.Error("expected error for missing file")
		}
		if _, err := OpenMediaFile(dir); err == nil {
			t.Error("expected error for directory")
		}
	})

	t.Run("NewMediaFile detects type when empty", func(t *testing.T) {
		f := NewMediaFile("c.png", "", pngHeader)
		if f.MIMEType != "image/png" {
			t.Errorf("expected image/png, got %s", f.MIMEType)
		}
		if !f.SizeKnown() {
			t.Error("expected size to be known")
		}
	})

	t.Run("NewStreamMediaFile with unknown size", func(t *testing.T) {
		f := NewStreamMediaFile("s.mp3", "", -42, func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader("abc")), nil
		})
		if f.Size != UnknownSize || f.SizeKnown() {
			t.Errorf("expected unknown size, got %d", f.Size)
		}
		if f.MIMEType != "application/octet-stream" {
			t.Errorf("expected octet-stream fallback, got %s", f.MIMEType)
		}
	})

	t.Run("zero value cannot be opened", func(t *testing.T) {
		if _, err := (MediaFile{Name: "x"}).Open(); err == nil {
			t.Error("expected error for missing content source")
		}
	})
}

func TestStatus(t *testing.T) {
	tests := []struct {
		from, to Status
		ok       bool
	}{
		{StatusQueued, StatusUploading, true},
		{StatusQueued, StatusCancelled, true},
		{StatusQueued, StatusSuccess, false},
		{StatusQueued, StatusError, false},
		{StatusUploading, StatusSuccess, true},
		{StatusUploading, StatusError, true},
		{StatusUploading, StatusCancelled, true},
		{StatusUploading, StatusQueued, false},
		{StatusSuccess, StatusError, false},
		{StatusError, StatusUploading, false},
		{StatusCancelled, StatusQueued, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+" to "+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanTransition(tt.to); got != tt.ok {
				t.Errorf("CanTransition = %v, want %v", got, tt.ok)
			}
		})
	}

	t.Run("terminal statuses", func(t *testing.T) {
		for _, s := range []Status{StatusSuccess, StatusError, StatusCancelled} {
			if !s.IsTerminal() {
				t.Errorf("expected %s to be terminal", s)
			}
		}
		for _, s := range []Status{StatusQueued, StatusUploading} {
			if s.IsTerminal() {
				t.Errorf("expected %s to be non-terminal", s)
			}
		}
	})
}

func TestUploadItemApply(t *testing.T) {
	newItem := func() UploadItem {
		return NewUploadItem(NewMediaFile("01.mp3", "audio/mpeg", []byte("data")))
	}

	t.Run("full successful lifecycle", func(t *testing.T) {
		item := newItem()
		if item.Status != StatusQueued || item.Progress != 0 {
			t.Fatalf("unexpected initial state: %+v", item)
		}

		for _, p := range []ItemPatch{StartPatch(), ProgressPatch(10), ProgressPatch(10), ProgressPatch(75)} {
			if err := item.Apply(p); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}
		if err := item.Apply(SuccessPatch(map[string]any{"id": "abc"})); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if item.Status != StatusSuccess || item.Progress != 100 {
			t.Errorf("expected success at 100, got %s at %d", item.Status, item.Progress)
		}
		if item.Response["id"] != "abc" {
			t.Errorf("expected response id abc, got %v", item.Response)
		}
	})

	t.Run("nil response becomes empty object", func(t *testing.T) {
		item := newItem()
		_ = item.Apply(StartPatch())
		if err := item.Apply(SuccessPatch(nil)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if item.Response == nil || len(item.Response) != 0 {
			t.Errorf("expected empty response map, got %v", item.Response)
		}
	})

	t.Run("error keeps last progress", func(t *testing.T) {
		item := newItem()
		_ = item.Apply(StartPatch())
		_ = item.Apply(ProgressPatch(40))
		if err := item.Apply(ErrorPatch("Payload Too Large")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if item.Status != StatusError || item.Error != "Payload Too Large" || item.Progress != 40 {
			t.Errorf("unexpected state: %+v", item)
		}
	})

	t.Run("queued item can be cancelled", func(t *testing.T) {
		item := newItem()
		if err := item.Apply(CancelPatch()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if item.Status != StatusCancelled {
			t.Errorf("expected cancelled, got %s", item.Status)
		}
	})

	t.Run("rejects backward transition", func(t *testing.T) {
		item := newItem()
		_ = item.Apply(StartPatch())
		_ = item.Apply(SuccessPatch(nil))

		err := item.Apply(StartPatch())
		if !errors.Is(err, shared.ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition, got %v", err)
		}
	})

	t.Run("rejects progress after terminal", func(t *testing.T) {
		item := newItem()
		_ = item.Apply(StartPatch())
		_ = item.Apply(ErrorPatch("boom"))

		err := item.Apply(ProgressPatch(100))
		if !errors.Is(err, shared.ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition, got %v", err)
		}
	})

	t.Run("rejects decreasing progress", func(t *testing.T) {
		item := newItem()
		_ = item.Apply(StartPatch())
		_ = item.Apply(ProgressPatch(50))

		err := item.Apply(ProgressPatch(49))
		if !errors.Is(err, shared.ErrInvalidPatch) {
			t.Errorf("expected ErrInvalidPatch, got %v", err)
		}
		if item.Progress != 50 {
			t.Errorf("expected progress to stay 50, got %d", item.Progress)
		}
	})

	t.Run("rejects out of range progress", func(t *testing.T) {
		item := newItem()
		_ = item.Apply(StartPatch())
		for _, p := range []int{-1, 101} {
			if err := item.Apply(ProgressPatch(p)); !errors.Is(err, shared.ErrInvalidPatch) {
				t.Errorf("expected ErrInvalidPatch for %d, got %v", p, err)
			}
		}
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		item := newItem()
		s := Status("paused")
		if err := item.Apply(ItemPatch{Status: &s}); !errors.Is(err, shared.ErrInvalidPatch) {
			t.Errorf("expected ErrInvalidPatch, got %v", err)
		}
	})

	t.Run("NewUploadItems preserves order", func(t *testing.T) {
		files := []MediaFile{
			NewMediaFile("a.mp3", "audio/mpeg", nil),
			NewMediaFile("b.mp3", "audio/mpeg", nil),
		}
		items := NewUploadItems(files)
		if len(items) != 2 || items[0].File.Name != "a.mp3" || items[1].File.Name != "b.mp3" {
			t.Errorf("unexpected items: %+v", items)
		}
	})
}

func TestBatch(t *testing.T) {
	valid := func() *Batch {
		b := NewBatch("cover.png", BatchCompleted)
		b.Items = []BatchItem{
			{Position: 0, FileName: "01.mp3", Status: StatusSuccess, Progress: 100},
			{Position: 1, FileName: "02.mp3", Status: StatusError, Error: "500"},
		}
		return b
	}

	t.Run("valid batch", func(t *testing.T) {
		if err := valid().Validate(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("invalid batches", func(t *testing.T) {
		tests := []struct {
			name   string
			mutate func(*Batch)
		}{
			{"missing cover", func(b *Batch) { b.CoverName = "" }},
			{"unknown status", func(b *Batch) { b.Status = "pending" }},
			{"zero start", func(b *Batch) { b.StartedAt = time.Time{} }},
			{"gap in positions", func(b *Batch) { b.Items[1].Position = 5 }},
			{"uploading item", func(b *Batch) { b.Items[0].Status = StatusUploading }},
			{"missing file name", func(b *Batch) { b.Items[0].FileName = "" }},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				b := valid()
				tt.mutate(b)
				if err := b.Validate(); err == nil {
					t.Error("expected validation error")
				}
			})
		}
	})

	t.Run("duration", func(t *testing.T) {
		b := valid()
		if b.Duration() != 0 {
			t.Errorf("expected zero duration for unfinished batch")
		}
		end := b.StartedAt.Add(3 * time.Second)
		b.FinishedAt = &end
		if b.Duration() != 3*time.Second {
			t.Errorf("expected 3s, got %v", b.Duration())
		}
		if b.TrackCount() != 2 {
			t.Errorf("expected 2 tracks, got %d", b.TrackCount())
		}
	})
}
