// Package tui provides the live terminal monitor for a run.
//
// The monitor is fed by the event bus: a Feed subscribes to tick, transition
// and run events and the bubbletea Model redraws from the feed's snapshot on
// a fixed refresh interval. It never calls into the behavior tree.
package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Iron-Ham/arbiter/internal/errors"
)

// App wraps the bubbletea program.
type App struct {
	model Model
	opts  []tea.ProgramOption
}

// New creates a monitor application reading from feed.
func New(feed *Feed, opts ...Option) *App {
	return &App{
		model: NewModel(feed, opts...),
		opts:  []tea.ProgramOption{tea.WithAltScreen()},
	}
}

// Run shows the monitor until the user quits or ctx is cancelled.
// Cancellation is not an error.
func (a *App) Run(ctx context.Context) error {
	opts := append([]tea.ProgramOption{tea.WithContext(ctx)}, a.opts...)
	_, err := tea.NewProgram(a.model, opts...).Run()
	if err != nil && errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
