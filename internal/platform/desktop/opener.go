package desktop

import (
	"context"
	"fmt"
	"net/url"
	"runtime"
	"time"

	"github.com/colonyops/cinq/pkg/executil"
)

const openTimeout = 10 * time.Second

// Opener opens notification targets in the user's browser. Relative URLs
// are resolved against the server base URL.
type Opener struct {
	exec executil.Executor
	base *url.URL
	cmd  string
}

// NewOpener creates an opener using the platform's URL handler.
func NewOpener(exec executil.Executor, baseURL string) (*Opener, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	return &Opener{exec: exec, base: base, cmd: openCommand(runtime.GOOS)}, nil
}

func openCommand(goos string) string {
	switch goos {
	case "darwin":
		return "open"
	case "windows":
		return "explorer"
	default:
		return "xdg-open"
	}
}

// Resolve turns target into an absolute URL.
func (o *Opener) Resolve(target string) (string, error) {
	ref, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", target, err)
	}
	return o.base.ResolveReference(ref).String(), nil
}

// Navigate opens target.
func (o *Opener) Navigate(target string) error {
	abs, err := o.Resolve(target)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
	defer cancel()

	if _, err := o.exec.Run(ctx, o.cmd, abs); err != nil {
		return fmt.Errorf("open %s: %w", abs, err)
	}
	return nil
}
