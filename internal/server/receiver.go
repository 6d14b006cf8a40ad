package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/albumdrop/internal/shared"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// sniffLen is how much of each upload is buffered for content detection.
const sniffLen = 3072

// StoredFile describes one received upload.
type StoredFile struct {
	ID       string `json:"id"`
	Field    string `json:"field"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	MIMEType string `json:"mime_type"`
	Path     string `json:"-"`
}

// ReceiverHandler accepts single-file multipart uploads and stores them on disk.
// Implements the Handler interface for registration with a Router.
type ReceiverHandler struct {
	storageDir string
	fields     map[string]string
	logger     *log.Logger
	received   atomic.Int64
}

// ReceiverOpts configures a [ReceiverHandler] and the router built around it.
type ReceiverOpts struct {
	StorageDir string
	CoverPath  string // Default /upload/cover
	AudioPath  string // Default /upload/audio
	Token      string // Required bearer token; empty disables auth
	MaxBody    int64  // Per-request limit in bytes; zero disables it
	Logger     *log.Logger
}

// NewReceiverHandler creates a handler storing files under opts.StorageDir/<field>/.
func NewReceiverHandler(opts ReceiverOpts) *ReceiverHandler {
	coverPath := opts.CoverPath
	if coverPath == "" {
		coverPath = "/upload/cover"
	}
	audioPath := opts.AudioPath
	if audioPath == "" {
		audioPath = "/upload/audio"
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	return &ReceiverHandler{
		storageDir: opts.StorageDir,
		fields: map[string]string{
			coverPath: "cover",
			audioPath: "audio",
		},
		logger: logger,
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *ReceiverHandler) Routes() []string {
	routes := make([]string, 0, len(h.fields))
	for path := range h.fields {
		routes = append(routes, path)
	}
	return routes
}

// Received returns the number of files stored since start.
func (h *ReceiverHandler) Received() int64 {
	return h.received.Load()
}

// ServeHTTP stores the part named after the route's field and answers 201 with a [StoredFile].
func (h *ReceiverHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	field, ok := h.fields[r.URL.Path]
	if !ok {
		http.NotFound(w, r)
		return
	}

	mr, err := r.MultipartReader()
	if err != nil {
		http.Error(w, "expected multipart/form-data", http.StatusBadRequest)
		return
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			http.Error(w, fmt.Sprintf("missing form field %q", field), http.StatusBadRequest)
			return
		}
		if err != nil {
			h.fail(w, err)
			return
		}
		if part.FormName() != field {
			part.Close()
			continue
		}

		stored, err := h.store(field, part.FileName(), part.Header.Get("Content-Type"), part)
		part.Close()
		if err != nil {
			h.fail(w, err)
			return
		}

		h.received.Add(1)
		h.logger.Info("stored upload", "field", field, "file", stored.Filename, "size", shared.FormatBytes(stored.Size), "mime", stored.MIMEType)

		data, err := shared.MarshalJSON(stored, false)
		if err != nil {
			http.Error(w, "failed to encode response", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write(data)
		return
	}
}

func (h *ReceiverHandler) store(field, filename, declared string, content io.Reader) (*StoredFile, error) {
	name := filepath.Base(filename)
	if name == "." || name == string(filepath.Separator) {
		name = ""
	}

	dir := filepath.Join(h.storageDir, field)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	id := uuid.NewString()
	path := filepath.Join(dir, id+strings.ToLower(filepath.Ext(name)))

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(content, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, err
	}
	head = head[:n]

	mimeType := declared
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = mimetype.Detect(head).String()
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	size, err := io.Copy(f, io.MultiReader(bytes.NewReader(head), content))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return nil, err
	}

	return &StoredFile{
		ID:       id,
		Field:    field,
		Filename: name,
		Size:     size,
		MIMEType: mimeType,
		Path:     path,
	}, nil
}

func (h *ReceiverHandler) fail(w http.ResponseWriter, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		h.logger.Warn("upload too large", "limit", shared.FormatBytes(maxErr.Limit))
		http.Error(w, "Payload Too Large", http.StatusRequestEntityTooLarge)
		return
	}
	h.logger.Error("upload failed", "error", err)
	http.Error(w, "upload failed", http.StatusBadRequest)
}

// HealthHandler answers GET /health with the receiver's status.
func HealthHandler(receiver *ReceiverHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := shared.MarshalJSON(map[string]any{"status": "ok", "received": receiver.Received()}, false)
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	})
}

// NewReceiverRouter wires the receiver with logging, auth and body limits. /health is left unauthenticated.
func NewReceiverRouter(opts ReceiverOpts) *BasicRouter {
	receiver := NewReceiverHandler(opts)
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	r := NewBasicRouter()
	r.Use(Logging(logger))
	r.Handle(http.MethodGet, "/health", HealthHandler(receiver))

	r.Use(RequireBearer(opts.Token), LimitBody(opts.MaxBody))
	r.Handler(receiver)
	return r
}
