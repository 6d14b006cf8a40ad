package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/albumdrop/internal/models"
	"github.com/desertthunder/albumdrop/internal/shared"
	"github.com/desertthunder/albumdrop/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	ConfirmView ViewState = iota
	TransferView
	ResultView
)

const progressBuffer = 64

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	cancel       context.CancelFunc
	view         ViewState
	engine       *tasks.AlbumEngine
	cover        models.MediaFile
	tracks       []models.MediaFile
	items        []models.UploadItem
	coverPercent int
	status       string
	cancelling   bool
	updates      chan tasks.ProgressUpdate
	done         chan Msg
	result       *tasks.AlbumResult
	err          error
	bar          progress.Model
	help         help.Model
	keys         keyMap
}

// NewModel creates a new TUI model for one album batch.
func NewModel(ctx context.Context, engine *tasks.AlbumEngine, cover models.MediaFile, tracks []models.MediaFile) *Model {
	return &Model{
		ctx:    ctx,
		view:   ConfirmView,
		engine: engine,
		cover:  cover,
		tracks: tracks,
		items:  models.NewUploadItems(tracks),
		bar:    progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		help:   help.New(),
		keys:   newKeyMap(),
	}
}

// Init waits for confirmation; nothing runs until the user accepts.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		m.bar.Width = min(max(msg.Width-48, 10), 60)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case TransferView:
			return m.handleTransferKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case Msg:
		switch msg.kind {
		case MsgProgressUpdate:
			m.applyUpdate(msg.data.(tasks.ProgressUpdate))
			return m, m.waitForProgress()
		case MsgUploadComplete:
			done := msg.data.(uploadComplete)
			m.finish(done.result, done.err)
			return m, nil
		}
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case ConfirmView:
		return m.renderConfirm()
	case TransferView:
		return m.renderTransfer()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.yes):
		m.view = TransferView
		return m, m.startUpload()
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) handleTransferKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.cancel) && m.cancel != nil && !m.cancelling {
		m.cancelling = true
		m.cancel()
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.restart):
		m.reset()
		return m, nil
	}
	return m, nil
}

func (m *Model) reset() {
	m.view = ConfirmView
	m.items = models.NewUploadItems(m.tracks)
	m.coverPercent = 0
	m.status = ""
	m.cancelling = false
	m.result = nil
	m.err = nil
}

// startUpload launches the batch on its own goroutine; the model only observes it through messages.
func (m *Model) startUpload() tea.Cmd {
	m.reset()
	m.view = TransferView

	ctx, cancel := context.WithCancel(m.ctx)
	m.cancel = cancel
	m.updates = make(chan tasks.ProgressUpdate, progressBuffer)
	m.done = make(chan Msg, 1)

	engine, cover, tracks := m.engine, m.cover, m.tracks
	updates, done := m.updates, m.done
	go func() {
		result, err := engine.UploadAlbum(ctx, cover, tracks, tasks.ChannelHooks(updates))
		done <- uploadCompleteMsg(result, err)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	updates, done := m.updates, m.done
	if done == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case update := <-updates:
			return progressUpdateMsg(update)
		case msg := <-done:
			return msg
		}
	}
}

// applyUpdate merges one engine event into the view's copy of the batch. Events may be dropped
// under load, so patches that no longer apply are ignored.
func (m *Model) applyUpdate(u tasks.ProgressUpdate) {
	if u.Message != "" {
		m.status = u.Message
	}
	switch u.Phase {
	case tasks.CoverUpload:
		m.coverPercent = max(m.coverPercent, u.Percent)
	case tasks.ItemUpdate:
		if u.Patch == nil || u.Index < 0 || u.Index >= len(m.items) {
			return
		}
		item := &m.items[u.Index]
		// Updates can be dropped on a full channel, so the start patch may be missing.
		if item.Status == models.StatusQueued && startsTransfer(*u.Patch) {
			_ = item.Apply(models.StartPatch())
		}
		_ = item.Apply(*u.Patch)
	}
}

// startsTransfer reports whether p only makes sense once the item is uploading.
func startsTransfer(p models.ItemPatch) bool {
	if p.Status == nil {
		return p.Progress != nil
	}
	return *p.Status == models.StatusSuccess || *p.Status == models.StatusError
}

func (m *Model) finish(result *tasks.AlbumResult, err error) {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.updates, m.done = nil, nil
	m.result = result
	m.err = err
	if result != nil {
		m.items = result.Items
		if result.CoverResponse != nil {
			m.coverPercent = 100
		}
	}
	m.view = ResultView
}

func (m *Model) renderConfirm() string {
	var b strings.Builder
	b.WriteString(styles.title.Render("Upload album?"))
	fmt.Fprintf(&b, "\n%s %s (%s, %s)\n", styles.label.Render("Cover"), m.cover.Name, shared.FormatBytes(m.cover.Size), m.cover.MIMEType)
	fmt.Fprintf(&b, "%s %d\n\n", styles.label.Render("Tracks"), len(m.tracks))
	for i, t := range m.tracks {
		fmt.Fprintf(&b, "  %2d. %s %s\n", i+1, t.Name, styles.help.Render(shared.FormatBytes(t.Size)))
	}
	b.WriteString("\n")
	b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.yes, m.keys.no}))
	return b.String()
}

func (m *Model) renderTransfer() string {
	var b strings.Builder
	b.WriteString(styles.title.Render("Uploading album"))
	b.WriteString("\n")
	b.WriteString(coverRow(m.cover.Name, m.bar.ViewAs(float64(m.coverPercent)/100)))
	for i, item := range m.items {
		b.WriteString(itemRow(i, item, m.bar.ViewAs(float64(item.Progress)/100)))
	}
	b.WriteString("\n")
	if m.cancelling {
		b.WriteString(styles.warn.Render("Cancelling..."))
	} else {
		b.WriteString(styles.help.Render(m.status))
	}
	b.WriteString("\n\n")
	b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.cancel}))
	return b.String()
}

func (m *Model) renderResult() string {
	var b strings.Builder
	switch {
	case m.result == nil && m.err != nil:
		b.WriteString(styles.err.Render(fmt.Sprintf("Upload failed: %v", m.err)))
	case errors.Is(m.err, shared.ErrCoverUpload):
		b.WriteString(styles.err.Render(fmt.Sprintf("Cover upload failed: %s", m.result.Error)))
	case errors.Is(m.err, shared.ErrBatchCancelled):
		b.WriteString(styles.warn.Render("Upload cancelled"))
	case m.result != nil && m.result.FailedCount > 0:
		b.WriteString(styles.warn.Render("Upload finished with errors"))
	default:
		b.WriteString(styles.ok.Render("✓ Upload complete"))
	}
	b.WriteString("\n\n")

	if r := m.result; r != nil {
		fmt.Fprintf(&b, "Tracks: %d (%d uploaded, %d failed, %d cancelled)\n\n",
			len(r.Items), r.SuccessCount, r.FailedCount, r.CancelledCount)
		for i, item := range m.items {
			b.WriteString(resultRow(i, item))
		}
		b.WriteString("\n")
	}

	b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.restart, m.keys.quit}))
	return b.String()
}
