package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/colonyops/cinq/internal/core/logging"
	"github.com/colonyops/cinq/internal/diag"
	"github.com/colonyops/cinq/internal/notifier"
	"github.com/colonyops/cinq/internal/notifier/badge"
	"github.com/colonyops/cinq/internal/platform/desktop"
)

type RunCmd struct {
	flags *Flags
	app   *App

	// flags
	noPush bool
}

// NewRunCmd creates a new run command
func NewRunCmd(flags *Flags, app *App) *RunCmd {
	return &RunCmd{flags: flags, app: app}
}

// Register adds the run command to the application
func (cmd *RunCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "run",
		Usage:     "Run the notifier in the background",
		UsageText: "cinq run [--no-push]",
		Description: `Polls the server for new messages and raises desktop notifications,
sounds and launcher badges until interrupted.

When push is enabled in the settings, the push relay connection is kept
open as well so messages arrive while polling is slowed down.

Set metrics.addr in the config to expose Prometheus metrics.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "no-push",
				Usage:       "do not connect to the push relay",
				Destination: &cmd.noPush,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *RunCmd) run(ctx context.Context, _ *cli.Command) error {
	ctx = logging.WithSource(ctx, "run")
	log := logging.Component("run")

	var title badge.TitleSink
	if term.IsTerminal(int(os.Stdout.Fd())) {
		title = desktop.TerminalTitle(os.Stdout)
	}

	n := cmd.app.Notifier(Surfaces{Title: title})
	if err := n.Init(ctx); err != nil {
		return fmt.Errorf("init notifier: %w", err)
	}

	stopDiag, err := startDiag(ctx, cmd.app)
	if err != nil {
		return err
	}
	defer stopDiag()

	if !cmd.noPush {
		startRelay(ctx, cmd.app, n)
	}

	n.Start(ctx)
	defer n.Stop()

	n.SetVisible(true)
	log.Info().Msg("notifier running")

	<-ctx.Done()
	log.Info().Msg("notifier stopping")
	return nil
}

// startDiag serves metrics when metrics.addr is configured. The returned
// function shuts the server down.
func startDiag(ctx context.Context, app *App) (func(), error) {
	cfg := app.Config.Metrics
	if cfg.Addr == "" {
		return func() {}, nil
	}

	server := diag.New(cfg.Addr, diag.Options{
		Metrics:   app.Metrics.Handler(),
		Profiling: cfg.Pprof,
	})
	if err := server.Start(ctx); err != nil {
		return nil, fmt.Errorf("start diagnostics: %w", err)
	}

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logging.Component("diag").Error().Err(err).Msg("failed to shutdown diagnostics server")
		}
	}, nil
}

// startRelay keeps the push relay connected while push is enabled and a
// subscription exists.
func startRelay(ctx context.Context, app *App, n *notifier.Notifier) {
	if !n.Settings.Get().Push || !n.Push.IsSubscribed(ctx) {
		return
	}
	go func() {
		if err := app.Relay.Run(ctx); err != nil && ctx.Err() == nil {
			logging.Component("run").Warn().Err(err).Msg("push relay stopped")
		}
	}()
}
