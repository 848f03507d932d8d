package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/colonyops/cinq/internal/core/logging"
	"github.com/colonyops/cinq/internal/notifier"
)

// Run starts the notifier and blocks until the user quits or ctx ends.
func Run(ctx context.Context, n *notifier.Notifier, bridge *Bridge) error {
	log := logging.Component("tui")

	if err := n.Init(ctx); err != nil {
		return err
	}
	n.Start(ctx)
	defer n.Stop()

	p := tea.NewProgram(New(n, bridge),
		tea.WithContext(ctx),
		tea.WithAltScreen(),
		tea.WithReportFocus(),
		tea.WithMouseCellMotion(),
	)

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		log.Debug().Msg("tui stopped by context")
		return nil
	}
	return err
}
