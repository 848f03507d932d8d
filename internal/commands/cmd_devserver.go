package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/cinq/internal/core/logging"
	"github.com/colonyops/cinq/internal/devserver"
)

type DevServerCmd struct {
	flags *Flags

	// flags
	addr       string
	user       string
	tokenTTL   time.Duration
	writeToken bool
	demo       time.Duration
}

// NewDevServerCmd creates a new devserver command
func NewDevServerCmd(flags *Flags) *DevServerCmd {
	return &DevServerCmd{flags: flags}
}

// Register adds the devserver command to the application
func (cmd *DevServerCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "devserver",
		Usage:     "Run a local messaging server for development",
		UsageText: "cinq devserver [--user name] [--write-token] [--demo 30s]",
		Description: `Serves the poll and push-subscribe endpoints in memory and prints a
bearer token for --user. Point server.base_url at the printed address.

Messages can be injected with POST /api/dev/messages, or generated with --demo.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address (defaults to devserver.addr)",
				Destination: &cmd.addr,
			},
			&cli.StringFlag{
				Name:        "user",
				Usage:       "user the printed token belongs to",
				Value:       "dev",
				Destination: &cmd.user,
			},
			&cli.DurationFlag{
				Name:        "token-ttl",
				Usage:       "lifetime of the printed token",
				Value:       24 * time.Hour,
				Destination: &cmd.tokenTTL,
			},
			&cli.BoolFlag{
				Name:        "write-token",
				Usage:       "write the token to server.token_file",
				Destination: &cmd.writeToken,
			},
			&cli.DurationFlag{
				Name:        "demo",
				Usage:       "deliver a demo message to --user at this interval",
				Destination: &cmd.demo,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *DevServerCmd) run(ctx context.Context, c *cli.Command) error {
	cfg := cmd.flags.Config
	log := logging.Component("devserver")

	addr := cmd.addr
	if addr == "" {
		addr = cfg.DevServer.Addr
	}

	gin.SetMode(gin.ReleaseMode)
	srv, err := devserver.New(devserver.Options{
		Secret:   cfg.DevServer.Secret,
		PollPath: cfg.Server.PollPath,
		PushPath: cfg.Server.PushPath,
	})
	if err != nil {
		return err
	}

	token, err := srv.Token(cmd.user, cmd.tokenTTL)
	if err != nil {
		return err
	}
	if cmd.writeToken {
		if err := writeTokenFile(cfg.Server.TokenFile, token); err != nil {
			return err
		}
	}

	w := c.Root().Writer
	header(w, "cinq devserver")
	field(w, "address", "http://"+addr)
	field(w, "user", cmd.user)
	field(w, "token", token)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	if cmd.demo > 0 {
		go deliverDemo(ctx, srv, cmd.user, cmd.demo)
	}

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func writeTokenFile(path, token string) error {
	if path == "" {
		return errors.New("--write-token needs server.token_file in the config")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(token+"\n"), 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	return nil
}

// deliverDemo alternates between a message and a ping until ctx ends.
func deliverDemo(ctx context.Context, srv *devserver.Server, user string, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for i := 1; ; i++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m := devserver.Message{To: user, SenderName: "Démo", Content: fmt.Sprintf("Message de démonstration n°%d", i)}
			if i%3 == 0 {
				m = devserver.Message{To: user, SenderName: "Démo", IsPing: true}
			}
			srv.Deliver(m)
		}
	}
}
