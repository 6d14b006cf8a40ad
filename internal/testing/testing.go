// package testing contains shared testing utilities
package testing

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/desertthunder/albumdrop/internal/models"
)

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Body != nil {
		io.Copy(io.Discard, req.Body)
		req.Body.Close()
	}
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

// zeroReader yields an endless stream of zero bytes.
type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	clear(p)
	return len(p), nil
}

// SizedMediaFile returns a media file of size zero bytes generated on the fly.
func SizedMediaFile(name, mimeType string, size int64) models.MediaFile {
	return models.NewStreamMediaFile(name, mimeType, size, func() (io.ReadCloser, error) {
		return io.NopCloser(io.LimitReader(zeroReader{}, size)), nil
	})
}

// UnsizedMediaFile is like [SizedMediaFile] but reports an unknown length.
func UnsizedMediaFile(name, mimeType string, size int64) models.MediaFile {
	return models.NewStreamMediaFile(name, mimeType, models.UnknownSize, func() (io.ReadCloser, error) {
		return io.NopCloser(io.LimitReader(zeroReader{}, size)), nil
	})
}

// Upload is one multipart request seen by an [UploadServer].
type Upload struct {
	Path          string
	Field         string
	Filename      string
	ContentType   string
	Authorization string
	Size          int64
}

// UploadServer is an httptest server that records multipart uploads in arrival order.
type UploadServer struct {
	*httptest.Server

	mu      sync.Mutex
	uploads []Upload
}

// Responder writes the reply for an upload. The request body has already been consumed.
type Responder func(w http.ResponseWriter, r *http.Request, u Upload)

// NewUploadServer starts a recording server. A nil respond answers 201 with a JSON echo of the upload.
func NewUploadServer(t *testing.T, respond Responder) *UploadServer {
	t.Helper()
	if respond == nil {
		respond = EchoUpload
	}

	s := &UploadServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := Upload{
			Path:          r.URL.Path,
			Authorization: r.Header.Get("Authorization"),
		}

		mr, err := r.MultipartReader()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		part, err := mr.NextPart()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		u.Field = part.FormName()
		u.Filename = part.FileName()
		u.ContentType = part.Header.Get("Content-Type")
		u.Size, err = io.Copy(io.Discard, part)
		if err != nil {
			return
		}

		s.mu.Lock()
		s.uploads = append(s.uploads, u)
		s.mu.Unlock()

		respond(w, r, u)
	}))
	t.Cleanup(s.Close)
	return s
}

// Uploads returns a copy of the recorded uploads.
func (s *UploadServer) Uploads() []Upload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Upload(nil), s.uploads...)
}

// URLFor joins path onto the server address.
func (s *UploadServer) URLFor(path string) string {
	return s.Server.URL + path
}

// EchoUpload answers 201 with the upload's filename and size.
func EchoUpload(w http.ResponseWriter, r *http.Request, u Upload) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{"filename": u.Filename, "size": u.Size})
}

// StatusFor answers with code and body when the upload's filename matches name, otherwise echoes.
func StatusFor(name string, code int, body string) Responder {
	return func(w http.ResponseWriter, r *http.Request, u Upload) {
		if u.Filename != name {
			EchoUpload(w, r, u)
			return
		}
		w.WriteHeader(code)
		fmt.Fprint(w, body)
	}
}

// HookRecorder collects orchestrator callbacks for later inspection.
type HookRecorder struct {
	mu      sync.Mutex
	Cover   []int
	Tracks  map[int][]int
	Patches map[int][]models.ItemPatch
}

func NewHookRecorder() *HookRecorder {
	return &HookRecorder{Tracks: map[int][]int{}, Patches: map[int][]models.ItemPatch{}}
}

func (h *HookRecorder) CoverProgress(percent int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Cover = append(h.Cover, percent)
}

func (h *HookRecorder) TrackProgress(index, percent int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Tracks[index] = append(h.Tracks[index], percent)
}

func (h *HookRecorder) ItemUpdate(index int, patch models.ItemPatch) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Patches[index] = append(h.Patches[index], patch)
}

// Statuses returns the sequence of statuses reported for index.
func (h *HookRecorder) Statuses(index int) []models.Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []models.Status
	for _, p := range h.Patches[index] {
		if p.Status != nil {
			out = append(out, *p.Status)
		}
	}
	return out
}

// AssertMonotonic fails t if values ever decrease or leave [0, 100].
func AssertMonotonic(t *testing.T, label string, values []int) {
	t.Helper()
	prev := 0
	for i, v := range values {
		if v < 0 || v > 100 {
			t.Errorf("%s: value %d at %d out of range", label, v, i)
		}
		if v < prev {
			t.Errorf("%s: value %d at %d decreased from %d", label, v, i, prev)
		}
		prev = v
	}
}

func MustWriteFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("Failed to write file %s: %v", path, err)
	}
	return path
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
