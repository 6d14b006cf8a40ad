package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/albumdrop/internal/shared"
	"github.com/desertthunder/albumdrop/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive terminal UI for one album upload.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	cover, tracks, err := r.loadAlbum(cmd)
	if err != nil {
		return err
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/albumdrop-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	engine, closeDB, err := r.newEngine(engineOpts{token: cmd.String("token"), record: true})
	if err != nil {
		return err
	}
	defer closeDB()

	model := ui.NewModel(ctx, engine, cover, tracks)
	p := tea.NewProgram(model)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
