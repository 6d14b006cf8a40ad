// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI walks one album batch through three views:
//  1. [ConfirmView] : Review the cover and tracks before starting
//  2. [TransferView] : Watch per-file progress bars while the batch runs
//  3. [ResultView] : Display the final status of every track
//
// The (view) [Model] implements the standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress flows from the AlbumEngine through [tasks.ChannelHooks]; the model applies each item patch to its
// own copy of the items and replaces that copy with the engine's result once the batch returns.
//
// Pressing q during a transfer cancels the batch context, which aborts the active transfer.
package ui
