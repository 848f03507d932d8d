package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/cinq/internal/core/logging"
	"github.com/colonyops/cinq/internal/notifier"
	"github.com/colonyops/cinq/internal/notifier/push"
)

type PushCmd struct {
	flags *Flags
	app   *App

	// flags
	jsonOutput bool
}

// NewPushCmd creates a new push command
func NewPushCmd(flags *Flags, app *App) *PushCmd {
	return &PushCmd{flags: flags, app: app}
}

// Register adds the push command to the application
func (cmd *PushCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "push",
		Usage: "Manage background push notifications",
		Description: `Push delivers messages through the push relay while cinq is idle, so
polling can slow down without missing anything.

Subscribing asks for permission the first time. A refusal is remembered
until 'cinq push reset-permission' is run.`,
		Commands: []*cli.Command{
			{
				Name:      "subscribe",
				Usage:     "Enable push notifications",
				UsageText: "cinq push subscribe",
				Action:    cmd.subscribe,
			},
			{
				Name:      "unsubscribe",
				Usage:     "Disable push notifications",
				UsageText: "cinq push unsubscribe",
				Action:    cmd.unsubscribe,
			},
			{
				Name:      "status",
				Usage:     "Show the push subscription state",
				UsageText: "cinq push status [--json]",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:        "json",
						Usage:       "output as JSON",
						Destination: &cmd.jsonOutput,
					},
				},
				Action: cmd.status,
			},
			{
				Name:      "reset-permission",
				Usage:     "Forget an earlier allow or block answer",
				UsageText: "cinq push reset-permission",
				Action:    cmd.resetPermission,
			},
		},
	})

	return app
}

func (cmd *PushCmd) notifier(ctx context.Context) (*notifier.Notifier, error) {
	n := cmd.app.Notifier(Surfaces{})
	if err := n.Init(ctx); err != nil {
		return nil, fmt.Errorf("init notifier: %w", err)
	}
	return n, nil
}

func (cmd *PushCmd) subscribe(ctx context.Context, c *cli.Command) error {
	ctx = logging.WithSource(ctx, "cli")
	n, err := cmd.notifier(ctx)
	if err != nil {
		return err
	}

	if err := n.Push.Subscribe(ctx); err != nil {
		return errors.New(subscribeMessage(err))
	}

	_, _ = fmt.Fprintln(c.Root().Writer, "Push notifications enabled")
	return nil
}

// subscribeMessage turns a subscribe failure into advice for the user.
func subscribeMessage(err error) string {
	switch push.ReasonOf(err) {
	case push.ReasonUnsupported:
		return "push is not available: set push.vapid_public_key in the config"
	case push.ReasonDenied:
		return "notifications are blocked; run `cinq push reset-permission` to be asked again"
	case push.ReasonDismissed:
		return "push was not enabled: the permission prompt was not answered"
	case push.ReasonNotAuthenticated:
		return "push was not enabled: sign in first (server.token or server.token_file)"
	case push.ReasonNetwork:
		return fmt.Sprintf("push was not enabled: the server could not be reached (%v)", err)
	default:
		return fmt.Sprintf("push was not enabled: %v", err)
	}
}

func (cmd *PushCmd) unsubscribe(ctx context.Context, c *cli.Command) error {
	ctx = logging.WithSource(ctx, "cli")
	n, err := cmd.notifier(ctx)
	if err != nil {
		return err
	}

	if err := n.Push.Unsubscribe(ctx); err != nil {
		return fmt.Errorf("remove push subscription: %w", err)
	}

	_, _ = fmt.Fprintln(c.Root().Writer, "Push notifications disabled")
	return nil
}

type pushStatus struct {
	Enabled    bool   `json:"enabled"`
	Supported  bool   `json:"supported"`
	Permission string `json:"permission"`
	Subscribed bool   `json:"subscribed"`
	Endpoint   string `json:"endpoint,omitempty"`
}

func (cmd *PushCmd) status(ctx context.Context, c *cli.Command) error {
	n, err := cmd.notifier(ctx)
	if err != nil {
		return err
	}

	st := n.Push.Status(ctx)
	out := pushStatus{
		Enabled:    n.Settings.Get().Push,
		Supported:  st.Supported,
		Permission: string(st.Permission),
		Subscribed: st.Subscribed,
		Endpoint:   st.Endpoint,
	}

	w := c.Root().Writer
	if cmd.jsonOutput {
		return writeJSON(w, out)
	}

	header(w, "Push")
	field(w, "enabled", onOff(out.Enabled))
	field(w, "supported", onOff(out.Supported))
	field(w, "permission", out.Permission)
	field(w, "subscribed", onOff(out.Subscribed))
	if out.Endpoint != "" {
		field(w, "endpoint", out.Endpoint)
	}
	return nil
}

func (cmd *PushCmd) resetPermission(ctx context.Context, c *cli.Command) error {
	if err := cmd.app.Consent.Reset(ctx); err != nil {
		return fmt.Errorf("reset permission: %w", err)
	}
	_, _ = fmt.Fprintln(c.Root().Writer, "Permission reset; you will be asked again on the next subscribe")
	return nil
}
