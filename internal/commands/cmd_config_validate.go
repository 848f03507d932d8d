package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/hay-kot/criterio"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/cinq/internal/core/config"
	"github.com/colonyops/cinq/internal/core/styles"
)

type ConfigValidateCmd struct {
	flags  *Flags
	format string
}

// NewConfigValidateCmd creates a new config validate command.
func NewConfigValidateCmd(flags *Flags) *ConfigValidateCmd {
	return &ConfigValidateCmd{flags: flags}
}

// Register adds the config validate command to the application.
func (cmd *ConfigValidateCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "config",
		Usage: "Configuration management commands",
		Commands: []*cli.Command{
			{
				Name:        "validate",
				Usage:       "Validate configuration file",
				UsageText:   "cinq config validate [options]",
				Description: "Validates the configuration file, checking server URLs, the VAPID key, colors, listen addresses and referenced files.",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "format",
						Usage:       "output format (text, json)",
						Value:       "text",
						Destination: &cmd.format,
					},
				},
				Action: cmd.run,
			},
		},
	})

	return app
}

type validationIssue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type validationReport struct {
	Valid    bool                       `json:"valid"`
	Errors   []validationIssue          `json:"errors,omitempty"`
	Warnings []config.ValidationWarning `json:"warnings,omitempty"`
}

func (cmd *ConfigValidateCmd) run(_ context.Context, c *cli.Command) error {
	report := validate(cmd.flags.Config, cmd.flags.ConfigPath)

	w := c.Root().Writer
	if cmd.format == "json" {
		if err := writeJSON(w, report); err != nil {
			return err
		}
	} else {
		printReport(w, report)
	}

	if !report.Valid {
		return cli.Exit("", 1)
	}
	return nil
}

func validate(cfg *config.Config, configPath string) validationReport {
	report := validationReport{Valid: true, Warnings: cfg.Warnings()}

	err := cfg.ValidateDeep(configPath)
	if err == nil {
		return report
	}

	report.Valid = false
	var fieldErrs criterio.FieldErrors
	if errors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			report.Errors = append(report.Errors, validationIssue{Field: fe.Field, Message: fe.Err.Error()})
		}
		return report
	}
	report.Errors = append(report.Errors, validationIssue{Message: err.Error()})
	return report
}

func printReport(w io.Writer, report validationReport) {
	for _, warn := range report.Warnings {
		label := warn.Category
		if warn.Item != "" {
			label += "." + warn.Item
		}
		_, _ = fmt.Fprintf(w, "%s %s: %s\n", styles.MutedStyle.Render("!"), label, warn.Message)
	}

	for _, issue := range report.Errors {
		if issue.Field != "" {
			_, _ = fmt.Fprintf(w, "%s %s: %s\n", styles.ErrorStyle.Render("✗"), issue.Field, issue.Message)
		} else {
			_, _ = fmt.Fprintf(w, "%s %s\n", styles.ErrorStyle.Render("✗"), issue.Message)
		}
	}

	_, _ = fmt.Fprintln(w)
	if report.Valid {
		_, _ = fmt.Fprintln(w, styles.OnStyle.Render("✓ Configuration is valid"))
		return
	}
	_, _ = fmt.Fprintln(w, styles.ErrorStyle.Render(fmt.Sprintf("%d error(s) found", len(report.Errors))))
}
