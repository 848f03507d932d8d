package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/cinq/internal/commands"
	"github.com/colonyops/cinq/internal/core/config"
	"github.com/colonyops/cinq/internal/core/logging"
	"github.com/colonyops/cinq/pkg/logutils"
)

// Set with -ldflags by release builds.
var (
	version = "dev"
	commit  = "HEAD"
	date    = "now"
)

// versionString reports the linked build info, falling back to the module
// and VCS data recorded by `go install`.
func versionString() string {
	v, rev, when := version, commit, date

	if info, ok := debug.ReadBuildInfo(); ok && v == "dev" {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			v = info.Main.Version
		}
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" {
				rev = s.Value
			} else if s.Key == "vcs.time" {
				when = s.Value
			}
		}
	}

	return fmt.Sprintf("%s (%.7s) %s", v, rev, when)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	var (
		logCloser func()
		cinqApp   = &commands.App{}
	)

	flags := &commands.Flags{}

	app := &cli.Command{
		Name:      "cinq",
		Usage:     "Message notifications for the terminal and desktop",
		UsageText: "cinq [global options] command [command options]",
		Description: `Cinq watches your messaging server for new messages and tells you about
them with desktop notifications, sounds, an unread badge and an inbox.

Run 'cinq' with no arguments to open the interactive notification center.
Run 'cinq run' to keep notifying in the background without a UI.`,
		Version: versionString(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error, fatal, panic)",
				Sources:     cli.EnvVars("CINQ_LOG_LEVEL"),
				Value:       "info",
				Destination: &flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-file",
				Usage:       "path to log file, or - for stderr",
				Sources:     cli.EnvVars("CINQ_LOG_FILE"),
				Value:       commands.DefaultLogFile(),
				Destination: &flags.LogFile,
			},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file",
				Sources:     cli.EnvVars("CINQ_CONFIG"),
				Value:       commands.DefaultConfigPath(),
				Destination: &flags.ConfigPath,
			},
			&cli.StringFlag{
				Name:        "data-dir",
				Usage:       "path to data directory",
				Sources:     cli.EnvVars("CINQ_DATA_DIR"),
				Value:       commands.DefaultDataDir(),
				Destination: &flags.DataDir,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			logFile := flags.LogFile
			if logFile == "-" {
				logFile = ""
			}

			logger, closer, err := logutils.New(flags.LogLevel, logFile)
			if err != nil {
				return ctx, fmt.Errorf("setup logger: %w", err)
			}
			logging.Install(logger)
			logCloser = closer

			cfg, err := config.Load(flags.ConfigPath, flags.DataDir)
			if err != nil {
				return ctx, fmt.Errorf("load config: %w", err)
			}
			flags.Config = cfg

			opened, err := commands.Open(cfg)
			if err != nil {
				return ctx, err
			}

			// commands were built with this pointer before Before ran
			*cinqApp = *opened

			return ctx, nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			if cinqApp.DB != nil {
				if err := cinqApp.Close(); err != nil {
					log.Error().Err(err).Msg("failed to close database")
					return err
				}
			}

			if logCloser != nil {
				logCloser()
			}
			return nil
		},
	}

	tuiCmd := commands.NewTuiCmd(flags, cinqApp)

	app = tuiCmd.Register(app)
	app = commands.NewRunCmd(flags, cinqApp).Register(app)
	app = commands.NewInboxCmd(flags, cinqApp).Register(app)
	app = commands.NewSettingsCmd(flags, cinqApp).Register(app)
	app = commands.NewPushCmd(flags, cinqApp).Register(app)
	app = commands.NewConfigValidateCmd(flags).Register(app)
	app = commands.NewDevServerCmd(flags).Register(app)

	app.Action = func(ctx context.Context, c *cli.Command) error {
		if c.Args().Len() > 0 {
			return fmt.Errorf("unknown command %q. Run 'cinq --help' for usage", c.Args().First())
		}
		return tuiCmd.Run(ctx, c)
	}

	err := app.Run(ctx, os.Args)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "cinq:", err)
		os.Exit(1)
	}
}
