package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/cinq/internal/core/logging"
	"github.com/colonyops/cinq/internal/core/notify"
	"github.com/colonyops/cinq/internal/core/styles"
	"github.com/colonyops/cinq/internal/notifier"
)

type InboxCmd struct {
	flags *Flags
	app   *App

	// flags
	jsonOutput bool
	unreadOnly bool
	limit      int
}

// NewInboxCmd creates a new inbox command
func NewInboxCmd(flags *Flags, app *App) *InboxCmd {
	return &InboxCmd{flags: flags, app: app}
}

// Register adds the inbox command to the application
func (cmd *InboxCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "inbox",
		Usage: "List and acknowledge notifications",
		Commands: []*cli.Command{
			{
				Name:      "list",
				Aliases:   []string{"ls"},
				Usage:     "List notifications, newest first",
				UsageText: "cinq inbox list [--unread] [--limit n] [--json]",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:        "json",
						Usage:       "output as JSON",
						Destination: &cmd.jsonOutput,
					},
					&cli.BoolFlag{
						Name:        "unread",
						Aliases:     []string{"u"},
						Usage:       "only unread notifications",
						Destination: &cmd.unreadOnly,
					},
					&cli.IntFlag{
						Name:        "limit",
						Aliases:     []string{"n"},
						Usage:       "maximum number of notifications (0 for all)",
						Destination: &cmd.limit,
					},
				},
				Action: cmd.list,
			},
			{
				Name:      "read",
				Usage:     "Mark notifications as read",
				UsageText: "cinq inbox read <id>...",
				Action:    cmd.read,
			},
			{
				Name:      "read-all",
				Usage:     "Mark every notification as read and clear the badge",
				UsageText: "cinq inbox read-all",
				Action:    cmd.readAll,
			},
		},
	})

	return app
}

func (cmd *InboxCmd) notifier(ctx context.Context) (*notifier.Notifier, error) {
	n := cmd.app.Notifier(Surfaces{})
	if err := n.Init(ctx); err != nil {
		return nil, fmt.Errorf("init notifier: %w", err)
	}
	return n, nil
}

type inboxList struct {
	Unread int           `json:"unread"`
	Items  []notify.Item `json:"items"`
}

func (cmd *InboxCmd) list(ctx context.Context, c *cli.Command) error {
	n, err := cmd.notifier(ctx)
	if err != nil {
		return err
	}

	items := filterItems(n.Center.Items(), cmd.unreadOnly, cmd.limit)
	w := c.Root().Writer

	if cmd.jsonOutput {
		return writeJSON(w, inboxList{Unread: n.Unread.Get(), Items: items})
	}

	if len(items) == 0 {
		_, _ = fmt.Fprintln(w, styles.MutedStyle.Render("No notifications"))
		return nil
	}

	printItems(w, items, time.Now())
	_, _ = fmt.Fprintf(w, "\n%s\n", styles.MutedStyle.Render(fmt.Sprintf("%d unread", n.Unread.Get())))
	return nil
}

// filterItems keeps unread items when unreadOnly is set and caps the result
// at limit when it is positive.
func filterItems(items []notify.Item, unreadOnly bool, limit int) []notify.Item {
	out := items
	if unreadOnly {
		out = make([]notify.Item, 0, len(items))
		for _, it := range items {
			if !it.Read {
				out = append(out, it)
			}
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func printItems(w io.Writer, items []notify.Item, now time.Time) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, it := range items {
		mark := " "
		if !it.Read {
			mark = "●"
		}
		body := strings.ReplaceAll(it.Body, "\n", " ")
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			mark, it.ID, humanize.RelTime(it.Timestamp, now, "ago", "from now"), it.Title, body)
	}
	_ = tw.Flush()
}

func (cmd *InboxCmd) read(ctx context.Context, c *cli.Command) error {
	ctx = logging.WithSource(ctx, "cli")

	if c.Args().Len() == 0 {
		return errors.New("usage: cinq inbox read <id>...")
	}

	n, err := cmd.notifier(ctx)
	if err != nil {
		return err
	}

	var missing []string
	for _, id := range c.Args().Slice() {
		if _, ok := n.Center.Find(id); !ok {
			missing = append(missing, id)
			continue
		}
		n.Center.MarkAsRead(ctx, id)
	}

	_, _ = fmt.Fprintf(c.Root().Writer, "%d unread\n", n.Unread.Get())
	if len(missing) > 0 {
		return fmt.Errorf("unknown notification(s): %s", strings.Join(missing, ", "))
	}
	return nil
}

func (cmd *InboxCmd) readAll(ctx context.Context, c *cli.Command) error {
	ctx = logging.WithSource(ctx, "cli")

	n, err := cmd.notifier(ctx)
	if err != nil {
		return err
	}

	n.Center.MarkAllAsRead(ctx)
	_, _ = fmt.Fprintln(c.Root().Writer, "All notifications marked as read")
	return nil
}
