package desktop

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// TitleWriter sets the terminal window title with the OSC 0 sequence.
type TitleWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewTitleWriter writes titles to w.
func NewTitleWriter(w io.Writer) *TitleWriter {
	return &TitleWriter{w: w}
}

// TerminalTitle returns a TitleWriter on f when f is a terminal, and nil
// otherwise.
func TerminalTitle(f *os.File) *TitleWriter {
	if f == nil || !term.IsTerminal(int(f.Fd())) {
		return nil
	}
	return NewTitleWriter(f)
}

func (t *TitleWriter) SetTitle(title string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	// Control characters would terminate the sequence early.
	title = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, title)

	if _, err := fmt.Fprintf(t.w, "\x1b]0;%s\x07", title); err != nil {
		return fmt.Errorf("write title: %w", err)
	}
	return nil
}
