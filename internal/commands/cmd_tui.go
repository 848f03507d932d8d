package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/cinq/internal/core/logging"
	"github.com/colonyops/cinq/internal/core/styles"
	"github.com/colonyops/cinq/internal/tui"
)

type TuiCmd struct {
	flags *Flags
	app   *App
}

// NewTuiCmd creates a new tui command
func NewTuiCmd(flags *Flags, app *App) *TuiCmd {
	return &TuiCmd{
		flags: flags,
		app:   app,
	}
}

// Register adds the tui command to the application
func (cmd *TuiCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "tui",
		Usage:     "Open the interactive notification center",
		UsageText: "cinq tui",
		Description: `Shows the inbox with unread markers, in-app toasts and the unread badge
in the window title. Polling runs while the center is open and speeds up
while the terminal has focus.

Running 'cinq' with no arguments opens the same view.`,
		Action: cmd.Run,
	})

	return app
}

// Run executes the TUI. Exported for use as default command.
func (cmd *TuiCmd) Run(ctx context.Context, _ *cli.Command) error {
	ctx = logging.WithSource(ctx, "tui")

	palette, ok := styles.GetPalette(cmd.app.Config.TUI.Theme)
	if !ok {
		return fmt.Errorf("unknown theme %q, available: %v", cmd.app.Config.TUI.Theme, styles.ThemeNames())
	}
	styles.SetTheme(palette)

	stopDiag, err := startDiag(ctx, cmd.app)
	if err != nil {
		return err
	}
	defer stopDiag()

	bridge := tui.NewBridge()
	n := cmd.app.Notifier(Surfaces{
		Toast: bridge,
		Panel: bridge,
		Title: bridge,
	})

	if err := n.Init(ctx); err != nil {
		return fmt.Errorf("init notifier: %w", err)
	}
	startRelay(ctx, cmd.app, n)

	if err := tui.Run(ctx, n, bridge); err != nil {
		return fmt.Errorf("run tui: %w", err)
	}
	return nil
}
