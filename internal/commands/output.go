package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/colonyops/cinq/internal/core/styles"
)

// writeJSON prints v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// field prints one aligned "label  value" line.
func field(w io.Writer, label, value string) {
	pad := max(12-len(label), 1)
	_, _ = fmt.Fprintf(w, "%s%s%s\n", styles.LabelStyle.Render(label), strings.Repeat(" ", pad), styles.ValueStyle.Render(value))
}

// onOff renders a boolean setting.
func onOff(v bool) string {
	if v {
		return styles.OnStyle.Render("on")
	}
	return styles.OffStyle.Render("off")
}

func header(w io.Writer, title string) {
	_, _ = fmt.Fprintln(w, styles.HeaderStyle.Render(title))
}
