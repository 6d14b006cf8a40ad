package models

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
)

// UnknownSize marks a [MediaFile] whose length cannot be determined up front.
const UnknownSize int64 = -1

// MediaFile is an opaque handle to the binary content of one file in a batch.
//
// Open may be called once per transfer attempt; callers must close the returned reader.
type MediaFile struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	MIMEType string `json:"mime_type"`
	open     func() (io.ReadCloser, error)
}

// OpenMediaFile stats the file at path and sniffs its MIME type from content.
func OpenMediaFile(path string) (MediaFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return MediaFile{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return MediaFile{}, fmt.Errorf("%s is a directory", path)
	}

	mimeType := "application/octet-stream"
	if mt, err := mimetype.DetectFile(path); err == nil {
		mimeType = mt.String()
	}

	return MediaFile{
		Name:     filepath.Base(path),
		Size:     info.Size(),
		MIMEType: mimeType,
		open:     func() (io.ReadCloser, error) { return os.Open(path) },
	}, nil
}

// NewMediaFile wraps in-memory content. An empty mimeType is detected from data.
func NewMediaFile(name, mimeType string, data []byte) MediaFile {
	if mimeType == "" {
		mimeType = mimetype.Detect(data).String()
	}
	return MediaFile{
		Name:     name,
		Size:     int64(len(data)),
		MIMEType: mimeType,
		open:     func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(data)), nil },
	}
}

// NewStreamMediaFile wraps an arbitrary content source. Pass [UnknownSize] when the length is not known.
func NewStreamMediaFile(name, mimeType string, size int64, open func() (io.ReadCloser, error)) MediaFile {
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	if size < 0 {
		size = UnknownSize
	}
	return MediaFile{Name: name, Size: size, MIMEType: mimeType, open: open}
}

// Open returns a fresh reader over the file's content.
func (f MediaFile) Open() (io.ReadCloser, error) {
	if f.open == nil {
		return nil, fmt.Errorf("media file %q has no content source", f.Name)
	}
	return f.open()
}

// SizeKnown reports whether the content length is known before reading.
func (f MediaFile) SizeKnown() bool {
	return f.Size >= 0
}
