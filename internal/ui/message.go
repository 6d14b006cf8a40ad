package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/albumdrop/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgProgressUpdate MsgKind = iota
	MsgUploadComplete
)

type uploadComplete struct {
	result *tasks.AlbumResult
	err    error
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// uploadCompleteMsg is the constructor for [MsgUploadComplete]
func uploadCompleteMsg(result *tasks.AlbumResult, err error) Msg {
	return Msg{kind: MsgUploadComplete, data: uploadComplete{result, err}}
}
