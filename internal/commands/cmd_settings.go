package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/cinq/internal/core/logging"
	"github.com/colonyops/cinq/internal/notifier/settings"
)

type SettingsCmd struct {
	flags *Flags
	app   *App

	// flags
	jsonOutput bool
}

// NewSettingsCmd creates a new settings command
func NewSettingsCmd(flags *Flags, app *App) *SettingsCmd {
	return &SettingsCmd{flags: flags, app: app}
}

// Register adds the settings command to the application
func (cmd *SettingsCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "settings",
		Usage: "Show or change notification preferences",
		Commands: []*cli.Command{
			{
				Name:      "show",
				Usage:     "Print the current preferences",
				UsageText: "cinq settings show [--json]",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:        "json",
						Usage:       "output as JSON",
						Destination: &cmd.jsonOutput,
					},
				},
				Action: cmd.show,
			},
			{
				Name:      "set",
				Usage:     "Turn a preference on or off",
				UsageText: "cinq settings set <push|sound|in-app|badge> <on|off>",
				Description: `Changes one preference. Turning push on subscribes to background push
and turning it off removes the subscription, like 'cinq push'.`,
				Action: cmd.set,
			},
		},
	})

	return app
}

func (cmd *SettingsCmd) show(ctx context.Context, c *cli.Command) error {
	n := cmd.app.Notifier(Surfaces{})
	if err := n.Init(ctx); err != nil {
		return fmt.Errorf("init notifier: %w", err)
	}

	s := n.Settings.Get()
	w := c.Root().Writer
	if cmd.jsonOutput {
		return writeJSON(w, s)
	}

	header(w, "Notifications")
	field(w, "push", onOff(s.Push))
	field(w, "sound", onOff(s.Sound))
	field(w, "in-app", onOff(s.InApp))
	field(w, "badge", onOff(s.Badge))
	return nil
}

func (cmd *SettingsCmd) set(ctx context.Context, c *cli.Command) error {
	ctx = logging.WithSource(ctx, "cli")

	if c.Args().Len() != 2 {
		return errors.New("usage: cinq settings set <push|sound|in-app|badge> <on|off>")
	}
	name, raw := c.Args().Get(0), c.Args().Get(1)

	value, err := parseToggle(raw)
	if err != nil {
		return err
	}

	n := cmd.app.Notifier(Surfaces{})
	if err := n.Init(ctx); err != nil {
		return fmt.Errorf("init notifier: %w", err)
	}

	if strings.EqualFold(name, "push") {
		if value {
			if err := n.Push.Subscribe(ctx); err != nil {
				return errors.New(subscribeMessage(err))
			}
		} else if err := n.Push.Unsubscribe(ctx); err != nil {
			return fmt.Errorf("remove push subscription: %w", err)
		}
	} else {
		patch, err := settingPatch(name, value)
		if err != nil {
			return err
		}
		if _, err := n.Settings.Update(ctx, patch); err != nil {
			return fmt.Errorf("save settings: %w", err)
		}
	}

	_, _ = fmt.Fprintf(c.Root().Writer, "%s is now %s\n", strings.ToLower(name), onOff(value))
	return nil
}

// settingPatch builds the patch for every preference except push, which
// goes through the push manager.
func settingPatch(name string, value bool) (settings.Patch, error) {
	switch strings.ToLower(name) {
	case "sound":
		return settings.Patch{Sound: settings.Bool(value)}, nil
	case "in-app", "inapp", "in_app":
		return settings.Patch{InApp: settings.Bool(value)}, nil
	case "badge":
		return settings.Patch{Badge: settings.Bool(value)}, nil
	default:
		return settings.Patch{}, fmt.Errorf("unknown setting %q (valid: push, sound, in-app, badge)", name)
	}
}

func parseToggle(raw string) (bool, error) {
	switch strings.ToLower(raw) {
	case "on", "true", "yes", "1":
		return true, nil
	case "off", "false", "no", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid value %q (use on or off)", raw)
	}
}
