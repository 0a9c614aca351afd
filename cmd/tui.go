package main

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/questsync/internal/shared"
	"github.com/desertthunder/questsync/internal/ui"
)

const tuiLogFile = "questsync-tui.log"

// TUI launches the interactive quest board. Logs go to a file while the alt screen is active.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	logger, f, err := shared.NewFileLogger(tuiLogFile)
	if err != nil {
		return err
	}
	defer f.Close()

	logger.SetLevel(r.logger.GetLevel())
	r.SetLogger(logger)

	engine, err := r.Engine(ctx)
	if err != nil {
		return err
	}

	p := tea.NewProgram(ui.NewModel(ctx, engine), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		r.logger.Error("tui exited", "error", err)
		return err
	}
	return nil
}
