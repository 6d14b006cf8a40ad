// package tasks implements the album upload orchestrator.
//
// The core abstraction is AlbumEngine, which uploads one cover image followed by an ordered list of audio tracks.
// Operations report progress through [Hooks] for non-blocking status reporting to CLI/UI layers.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/albumdrop/internal/models"
	"github.com/desertthunder/albumdrop/internal/services"
	"github.com/desertthunder/albumdrop/internal/shared"
	"golang.org/x/time/rate"
)

// Multipart field names expected by the upload endpoints.
const (
	CoverField = "cover"
	AudioField = "audio"
)

// Hooks are the view-layer callbacks for a batch. Any of them may be nil.
//
// Hooks run synchronously on the goroutine that called [AlbumEngine.UploadAlbum].
type Hooks struct {
	OnCoverProgress func(percent int)
	OnTrackProgress func(index, percent int)
	OnItemUpdate    func(index int, patch models.ItemPatch)
}

func (h Hooks) coverProgress(percent int) {
	if h.OnCoverProgress != nil {
		h.OnCoverProgress(percent)
	}
}

func (h Hooks) trackProgress(index, percent int) {
	if h.OnTrackProgress != nil {
		h.OnTrackProgress(index, percent)
	}
}

func (h Hooks) itemUpdate(index int, patch models.ItemPatch) {
	if h.OnItemUpdate != nil {
		h.OnItemUpdate(index, patch)
	}
}

// Endpoints are the absolute URLs for cover and audio uploads.
type Endpoints struct {
	Cover string
	Audio string
}

// BatchRecorder persists finished batches. Implemented by repositories.BatchRecorder.
type BatchRecorder interface {
	RecordBatch(batch *models.Batch) error
}

// AlbumResult is the final state of one batch.
type AlbumResult struct {
	ID             string
	Cover          models.MediaFile
	CoverResponse  map[string]any
	Items          []models.UploadItem
	SuccessCount   int
	FailedCount    int
	CancelledCount int
	Status         models.BatchStatus
	Error          string
	StartedAt      time.Time
	FinishedAt     time.Time
}

// Batch converts the result into its persisted form.
func (r *AlbumResult) Batch(endpoints Endpoints) *models.Batch {
	finished := r.FinishedAt
	batch := models.NewBatch(r.Cover.Name, r.Status)
	batch.CoverURL = endpoints.Cover
	batch.AudioURL = endpoints.Audio
	batch.SuccessCount = r.SuccessCount
	batch.FailedCount = r.FailedCount
	batch.CancelledCount = r.CancelledCount
	batch.Error = r.Error
	batch.StartedAt = r.StartedAt
	batch.FinishedAt = &finished
	batch.Items = make([]models.BatchItem, len(r.Items))

	for i, item := range r.Items {
		bi := models.BatchItem{
			Position: i,
			FileName: item.File.Name,
			FileSize: item.File.Size,
			MIMEType: item.File.MIMEType,
			Status:   item.Status,
			Progress: item.Progress,
			Error:    item.Error,
		}
		if item.Response != nil {
			if data, err := shared.MarshalJSON(item.Response, false); err == nil {
				bi.Response = string(data)
			}
		}
		batch.Items[i] = bi
	}
	return batch
}

// EngineOpts configures an [AlbumEngine].
type EngineOpts struct {
	Uploader            services.Transferer
	Endpoints           Endpoints
	Token               string        // Bearer credential sent with every transfer
	Recorder            BatchRecorder // Optional batch history
	Logger              *log.Logger
	ProgressLogInterval time.Duration // Minimum spacing of debug progress logs
}

// AlbumEngine sequences album uploads over a [services.Transferer].
type AlbumEngine struct {
	uploader    services.Transferer
	endpoints   Endpoints
	token       string
	recorder    BatchRecorder
	logger      *log.Logger
	logInterval time.Duration
}

// NewAlbumEngine creates a new AlbumEngine from opts.
func NewAlbumEngine(opts EngineOpts) *AlbumEngine {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &AlbumEngine{
		uploader:    opts.Uploader,
		endpoints:   opts.Endpoints,
		token:       opts.Token,
		recorder:    opts.Recorder,
		logger:      logger,
		logInterval: opts.ProgressLogInterval,
	}
}

// abortSlot holds the handle of the transfer currently in flight.
//
// The batch context is attached once; each phase binds its handle and unbinds it when done,
// so an abort only ever reaches the active transfer.
type abortSlot struct {
	mu     sync.Mutex
	active *services.TransferHandle
	fired  bool
}

// bind makes h the active transfer. If the signal already fired, h is aborted immediately.
func (s *abortSlot) bind(h *services.TransferHandle) (unbind func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = h
	if s.fired {
		h.Abort()
	}
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.active == h {
			s.active = nil
		}
	}
}

func (s *abortSlot) abort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fired = true
	if s.active != nil {
		s.active.Abort()
	}
}

func (s *abortSlot) cancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fired
}

// UploadAlbum uploads cover and then each track in order.
//
// A cover failure returns an error wrapping [shared.ErrCoverUpload] and no track is attempted.
// Track failures are recorded on their item and never returned. Cancelling ctx aborts the active
// transfer, marks it and every later item cancelled, and returns [shared.ErrBatchCancelled].
// The result is non-nil whenever the inputs were valid.
func (e *AlbumEngine) UploadAlbum(ctx context.Context, cover models.MediaFile, tracks []models.MediaFile, hooks Hooks) (*AlbumResult, error) {
	if e.uploader == nil {
		return nil, fmt.Errorf("%w: uploader not initialized", shared.ErrServiceUnavailable)
	}
	if e.endpoints.Cover == "" || e.endpoints.Audio == "" {
		return nil, fmt.Errorf("%w: cover and audio endpoints are required", shared.ErrInvalidConfig)
	}
	if cover.Name == "" {
		return nil, fmt.Errorf("%w: cover file is required", shared.ErrInvalidInput)
	}

	result := &AlbumResult{
		ID:        shared.GenerateID(),
		Cover:     cover,
		Items:     models.NewUploadItems(tracks),
		StartedAt: time.Now(),
	}
	logger := shared.WithLogger(e.logger, "batch", result.ID)
	defer e.record(result, logger)

	slot := &abortSlot{}
	stop := context.AfterFunc(ctx, slot.abort)
	defer stop()

	logger.Info("uploading cover", "file", cover.Name, "size", shared.FormatBytes(cover.Size), "tracks", len(tracks))

	if ctx.Err() != nil {
		e.cancelFrom(result, 0, hooks, logger)
		e.finish(result, models.BatchCancelled, "cancelled before cover upload")
		return result, fmt.Errorf("%w: before cover upload", shared.ErrBatchCancelled)
	}

	coverLast := -1
	resp, err := e.transfer(ctx, slot, services.TransferRequest{
		URL:   e.endpoints.Cover,
		Field: CoverField,
		File:  cover,
		Token: e.token,
	}, func(p int) {
		coverLast = p
		hooks.coverProgress(p)
	}, logger.With("file", cover.Name))

	switch {
	case errors.Is(err, shared.ErrTransferAborted):
		logger.Warn("batch cancelled during cover upload")
		e.cancelFrom(result, 0, hooks, logger)
		e.finish(result, models.BatchCancelled, "cancelled during cover upload")
		return result, fmt.Errorf("%w: during cover upload", shared.ErrBatchCancelled)
	case err != nil:
		logger.Error("cover upload failed", "error", err)
		e.finish(result, models.BatchFailed, err.Error())
		return result, fmt.Errorf("%w: %v", shared.ErrCoverUpload, err)
	case !resp.OK():
		msg := fmt.Sprintf("status %d", resp.StatusCode)
		if text := responseText(resp); text != strconv.Itoa(resp.StatusCode) {
			msg += ": " + text
		}
		logger.Error("cover upload rejected", "status", resp.StatusCode)
		e.finish(result, models.BatchFailed, msg)
		return result, fmt.Errorf("%w: %s", shared.ErrCoverUpload, msg)
	}

	// The server may answer before reading the whole body.
	if coverLast < 100 {
		hooks.coverProgress(100)
	}
	result.CoverResponse = parseObject(resp)
	logger.Info("cover uploaded", "status", resp.StatusCode)

	for i := range result.Items {
		if slot.cancelled() || ctx.Err() != nil {
			e.cancelFrom(result, i, hooks, logger)
			break
		}

		item := &result.Items[i]
		itemLogger := logger.With("index", i, "file", item.File.Name)
		itemLogger.Info("uploading track", "size", shared.FormatBytes(item.File.Size))

		e.apply(result, i, models.StartPatch(), hooks, itemLogger)

		last := -1
		resp, err := e.transfer(ctx, slot, services.TransferRequest{
			URL:   e.endpoints.Audio,
			Field: AudioField,
			File:  item.File,
			Token: e.token,
		}, func(p int) {
			last = p
			hooks.trackProgress(i, p)
			e.apply(result, i, models.ProgressPatch(p), hooks, itemLogger)
		}, itemLogger)

		switch {
		case errors.Is(err, shared.ErrTransferAborted):
			itemLogger.Warn("track cancelled")
			e.apply(result, i, models.CancelPatch(), hooks, itemLogger)
			e.cancelFrom(result, i+1, hooks, logger)
		case err != nil:
			itemLogger.Warn("track upload failed", "error", err)
			e.apply(result, i, models.ErrorPatch(err.Error()), hooks, itemLogger)
		case resp.OK():
			itemLogger.Info("track uploaded", "status", resp.StatusCode)
			if last < 100 {
				hooks.trackProgress(i, 100)
			}
			e.apply(result, i, models.SuccessPatch(parseObject(resp)), hooks, itemLogger)
		default:
			itemLogger.Warn("track upload rejected", "status", resp.StatusCode)
			e.apply(result, i, models.ErrorPatch(responseText(resp)), hooks, itemLogger)
		}

		if item.Status == models.StatusCancelled {
			break
		}
	}

	if slot.cancelled() && countStatus(result.Items, models.StatusCancelled) > 0 {
		e.finish(result, models.BatchCancelled, "cancelled")
		logger.Warn("batch cancelled", "success", result.SuccessCount, "failed", result.FailedCount, "cancelled", result.CancelledCount)
		return result, shared.ErrBatchCancelled
	}

	e.finish(result, models.BatchCompleted, "")
	logger.Info("batch finished", "success", result.SuccessCount, "failed", result.FailedCount)
	return result, nil
}

// transfer runs one transfer with the slot bound to its handle for exactly its duration.
func (e *AlbumEngine) transfer(ctx context.Context, slot *abortSlot, req services.TransferRequest, onProgress services.ProgressFunc, logger *log.Logger) (*services.APIResponse, error) {
	h := e.uploader.Begin(context.WithoutCancel(ctx))
	unbind := slot.bind(h)
	defer unbind()

	sampler := &rate.Sometimes{First: 1, Interval: e.logInterval}
	return e.uploader.Transfer(h, req, func(p int) {
		sampler.Do(func() { logger.Debug("progress", "percent", p, "transfer", h.ID()) })
		if onProgress != nil {
			onProgress(p)
		}
	})
}

// apply merges patch into item i and forwards it to the hooks.
func (e *AlbumEngine) apply(result *AlbumResult, i int, patch models.ItemPatch, hooks Hooks, logger *log.Logger) {
	if err := result.Items[i].Apply(patch); err != nil {
		logger.Error("dropped item update", "error", err)
		return
	}
	hooks.itemUpdate(i, patch)
}

// cancelFrom marks every queued item at or after start as cancelled.
func (e *AlbumEngine) cancelFrom(result *AlbumResult, start int, hooks Hooks, logger *log.Logger) {
	for i := start; i < len(result.Items); i++ {
		if result.Items[i].Status == models.StatusQueued {
			e.apply(result, i, models.CancelPatch(), hooks, logger)
		}
	}
}

func (e *AlbumEngine) finish(result *AlbumResult, status models.BatchStatus, msg string) {
	result.Status = status
	result.Error = msg
	result.FinishedAt = time.Now()
	result.SuccessCount = countStatus(result.Items, models.StatusSuccess)
	result.FailedCount = countStatus(result.Items, models.StatusError)
	result.CancelledCount = countStatus(result.Items, models.StatusCancelled)
}

// record hands the finished batch to the recorder. Failures are logged, never returned.
func (e *AlbumEngine) record(result *AlbumResult, logger *log.Logger) {
	if e.recorder == nil || result.Status == "" {
		return
	}
	if err := e.recorder.RecordBatch(result.Batch(e.endpoints)); err != nil {
		logger.Warn("failed to record batch", "error", err)
	}
}

func countStatus(items []models.UploadItem, status models.Status) int {
	n := 0
	for _, item := range items {
		if item.Status == status {
			n++
		}
	}
	return n
}

// parseObject decodes a JSON object body, falling back to an empty object.
func parseObject(resp *services.APIResponse) map[string]any {
	if obj := resp.Object(); obj != nil {
		return obj
	}
	return map[string]any{}
}

// responseText is the raw body, or the status code when the body is blank.
func responseText(resp *services.APIResponse) string {
	if text := strings.TrimSpace(string(resp.Body)); text != "" {
		return text
	}
	return strconv.Itoa(resp.StatusCode)
}
