package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/albumdrop/internal/shared"
	"golang.org/x/oauth2"
)

// UploadService streams multipart uploads with progress and abort support.
type UploadService struct {
	httpClient *http.Client
	tokens     oauth2.TokenSource
	timeout    time.Duration
	logger     *log.Logger
}

// UploadOpts configures an [UploadService].
type UploadOpts struct {
	HTTPClient *http.Client
	Token      string             // Static bearer token, ignored when Tokens is set
	Tokens     oauth2.TokenSource // Optional credential source
	Timeout    time.Duration      // Per-transfer limit; zero disables it
	Logger     *log.Logger
}

// NewUploadService creates an UploadService from opts.
func NewUploadService(opts UploadOpts) *UploadService {
	client := opts.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	tokens := opts.Tokens
	if tokens == nil && opts.Token != "" {
		tokens = staticTokenSource(opts.Token)
	}

	return &UploadService{
		httpClient: client,
		tokens:     tokens,
		timeout:    opts.Timeout,
		logger:     logger,
	}
}

// Begin creates a handle for one transfer bound to ctx.
func (s *UploadService) Begin(ctx context.Context) *TransferHandle {
	return NewTransferHandle(ctx)
}

// Upload runs a single transfer bound to ctx.
func (s *UploadService) Upload(ctx context.Context, req TransferRequest, onProgress ProgressFunc) (*APIResponse, error) {
	return s.Transfer(s.Begin(ctx), req, onProgress)
}

// Transfer posts req.File as multipart form data and returns the server's response for any status code.
//
// Returns [shared.ErrTransferAborted] when h is aborted (or its context ends) before a response is read,
// and [shared.ErrTransport] when no response could be obtained.
func (s *UploadService) Transfer(h *TransferHandle, req TransferRequest, onProgress ProgressFunc) (*APIResponse, error) {
	defer h.release()

	if req.URL == "" {
		return nil, fmt.Errorf("%w: upload URL is required", shared.ErrInvalidInput)
	}
	if req.Field == "" {
		return nil, fmt.Errorf("%w: form field is required", shared.ErrInvalidInput)
	}

	logger := s.logger.With("transfer", h.ID(), "field", req.Field, "file", req.File.Name)

	content, err := req.File.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open %s: %v", shared.ErrInvalidInput, req.File.Name, err)
	}

	body, contentType, total, err := multipartBody(req.Field, req.File.Name, req.File.MIMEType, req.File.Size, content)
	if err != nil {
		content.Close()
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	ctx := h.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	ticks := make(chan int, 1)
	pr := newProgressReader(body, content, total, ticks)
	defer pr.Close()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, pr)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", shared.ErrInvalidInput, err)
	}
	httpReq.ContentLength = total
	httpReq.Header.Set("Content-Type", contentType)

	if err := s.authorize(httpReq, req.Token); err != nil {
		return nil, err
	}

	logger.Debug("transfer started", "url", req.URL, "size", shared.FormatBytes(req.File.Size))
	start := time.Now()

	type result struct {
		resp *http.Response
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := s.httpClient.Do(httpReq)
		done <- result{resp, err}
	}()

	last := 0
	emit := func(p int) {
		if p > last {
			last = p
			if onProgress != nil {
				onProgress(p)
			}
		}
	}

	var res result
wait:
	for {
		select {
		case p := <-ticks:
			emit(p)
		case res = <-done:
			break wait
		}
	}

	if res.err != nil {
		pr.stop()
		if h.Done() {
			logger.Debug("transfer aborted", "elapsed", time.Since(start))
			return nil, fmt.Errorf("%w: %s", shared.ErrTransferAborted, req.File.Name)
		}
		logger.Debug("transfer failed", "error", res.err)
		return nil, fmt.Errorf("%w: %v", shared.ErrTransport, res.err)
	}
	defer res.resp.Body.Close()

	apiResp, err := readAPIResponse(res.resp)
	pr.stop()
	if err != nil {
		if h.Done() {
			return nil, fmt.Errorf("%w: %s", shared.ErrTransferAborted, req.File.Name)
		}
		return nil, fmt.Errorf("%w: %v", shared.ErrTransport, err)
	}

	select {
	case p := <-ticks:
		emit(p)
	default:
	}
	if pr.complete() {
		emit(100)
	}

	logger.Debug("transfer finished", "status", apiResp.StatusCode, "elapsed", time.Since(start))
	return apiResp, nil
}

func (s *UploadService) authorize(req *http.Request, token string) error {
	if token != "" {
		(&oauth2.Token{AccessToken: token}).SetAuthHeader(req)
		return nil
	}
	if s.tokens == nil {
		return nil
	}
	tok, err := s.tokens.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrMissingCredentials, err)
	}
	tok.SetAuthHeader(req)
	return nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// multipartBody frames content as a single-part form. total is -1 when size is unknown.
func multipartBody(field, filename, mimeType string, size int64, content io.Reader) (io.Reader, string, int64, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="%s"; filename="%s"`, quoteEscaper.Replace(field), quoteEscaper.Replace(filename)))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	header.Set("Content-Type", mimeType)

	if _, err := mw.CreatePart(header); err != nil {
		return nil, "", 0, fmt.Errorf("failed to create form part: %w", err)
	}
	head := bytes.Clone(buf.Bytes())
	buf.Reset()

	if err := mw.Close(); err != nil {
		return nil, "", 0, fmt.Errorf("failed to close form: %w", err)
	}
	tail := bytes.Clone(buf.Bytes())

	total := int64(-1)
	if size >= 0 {
		total = int64(len(head)) + size + int64(len(tail))
	}

	body := io.MultiReader(bytes.NewReader(head), content, bytes.NewReader(tail))
	return body, mw.FormDataContentType(), total, nil
}

// progressReader counts bytes handed to the transport and publishes the latest percentage on ticks.
// The transport reads on its own goroutine; ticks is drained by the caller of Transfer.
type progressReader struct {
	r      io.Reader
	closer io.Closer
	total  int64
	ticks  chan int

	mu      sync.Mutex
	sent    int64
	last    int
	eof     bool
	stopped bool

	closeOnce sync.Once
}

func newProgressReader(r io.Reader, closer io.Closer, total int64, ticks chan int) *progressReader {
	return &progressReader{r: r, closer: closer, total: total, ticks: ticks}
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)

	p.mu.Lock()
	defer p.mu.Unlock()

	p.sent += int64(n)
	if errors.Is(err, io.EOF) {
		p.eof = true
	}
	if p.stopped || p.total <= 0 {
		return n, err
	}

	pct := int(p.sent * 100 / p.total)
	if pct > 100 {
		pct = 100
	}
	if pct > p.last {
		p.last = pct
		p.publish(pct)
	}
	return n, err
}

// publish replaces any unread tick with pct.
func (p *progressReader) publish(pct int) {
	for {
		select {
		case p.ticks <- pct:
			return
		default:
			select {
			case <-p.ticks:
			default:
			}
		}
	}
}

func (p *progressReader) stop() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
}

// complete reports whether the whole body was handed to the transport.
func (p *progressReader) complete() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.total >= 0 {
		return p.sent >= p.total
	}
	return p.eof
}

func (p *progressReader) Close() error {
	var err error
	p.closeOnce.Do(func() {
		err = p.closer.Close()
	})
	return err
}
