package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/colonyops/cinq/internal/api"
	"github.com/colonyops/cinq/internal/core/config"
	"github.com/colonyops/cinq/internal/core/eventbus"
	"github.com/colonyops/cinq/internal/core/logging"
	"github.com/colonyops/cinq/internal/data/db"
	"github.com/colonyops/cinq/internal/data/stores"
	"github.com/colonyops/cinq/internal/notifier"
	"github.com/colonyops/cinq/internal/notifier/badge"
	"github.com/colonyops/cinq/internal/notifier/center"
	"github.com/colonyops/cinq/internal/notifier/metrics"
	"github.com/colonyops/cinq/internal/notifier/poll"
	"github.com/colonyops/cinq/internal/notifier/sound"
	"github.com/colonyops/cinq/internal/notifier/toast"
	"github.com/colonyops/cinq/internal/platform/audio"
	"github.com/colonyops/cinq/internal/platform/auth"
	"github.com/colonyops/cinq/internal/platform/autopush"
	"github.com/colonyops/cinq/internal/platform/consent"
	"github.com/colonyops/cinq/internal/platform/desktop"
	"github.com/colonyops/cinq/internal/platform/favicon"
	"github.com/colonyops/cinq/pkg/executil"
)

const (
	appName       = "cinq"
	busBuffer     = 64
	sweepInterval = 5 * time.Minute
)

// App holds the long-lived services shared by commands. It is opened in the
// root Before hook and closed in After.
type App struct {
	Config  *config.Config
	DB      *db.DB
	KV      *stores.KVStore
	Items   *stores.NotifyStore
	Bus     *eventbus.EventBus
	API     *api.Client
	Tokens  *auth.Source
	Relay   *autopush.Client
	Consent *consent.Store
	Metrics *metrics.Metrics

	cancel context.CancelFunc
	log    zerolog.Logger
}

// Surfaces are the front-end specific sinks a command plugs into the notifier.
type Surfaces struct {
	Toast toast.Surface
	Panel center.Panel
	Title badge.TitleSink
}

// Open connects the database and starts the bus and the KV sweeper.
func Open(cfg *config.Config) (*App, error) {
	database, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config: cfg,
		DB:     database,
		KV:     stores.NewKVStore(database),
		Items:  stores.NewNotifyStore(database),
		Bus:    eventbus.New(busBuffer),
		log:    logging.Component("app"),
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	go a.Bus.Start(ctx)
	go stores.Sweep(ctx, a.KV, sweepInterval)

	a.Metrics = metrics.New()
	a.Metrics.Attach(a.Bus)
	eventbus.RegisterDebugLogger(a.Bus, logging.Component("eventbus"))

	a.Tokens = auth.NewSource(cfg.ResolveToken)
	a.API = api.New(api.Options{
		BaseURL:  cfg.Server.BaseURL,
		PollPath: cfg.Server.PollPath,
		PushPath: cfg.Server.PushPath,
		Timeout:  cfg.Server.RequestTimeout,
	})
	a.Relay = autopush.New(autopush.Options{
		URL:       cfg.Push.RelayURL,
		Store:     a.KV,
		Publisher: a.Bus,
	})

	var prompt consent.Prompter
	if term.IsTerminal(int(os.Stdin.Fd())) {
		prompt = consent.Huh{}
	}
	a.Consent = consent.New(a.KV, prompt)

	return a, nil
}

// openDB opens the database, moving a corrupted file aside once.
func openDB(cfg *config.Config) (*db.DB, error) {
	opts := db.OpenOptions{
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
		BusyTimeout:  cfg.Database.BusyTimeout,
	}

	database, err := db.Open(cfg.DataDir, opts)
	if err == nil {
		return database, nil
	}
	if !stores.IsCorruptionError(err) {
		return nil, fmt.Errorf("open database: %w", err)
	}

	logging.Component("app").Warn().Err(err).Msg("database corrupted, starting fresh")
	if rerr := stores.RecoverFromCorruption(cfg.DataDir); rerr != nil {
		return nil, fmt.Errorf("recover database: %w", errors.Join(err, rerr))
	}
	database, err = db.Open(cfg.DataDir, opts)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return database, nil
}

// Notifier assembles a notifier on top of the shared services.
func (a *App) Notifier(s Surfaces) *notifier.Notifier {
	cfg := a.Config

	var toasts toast.Surface = s.Toast
	if cfg.Toast.Desktop {
		native := desktop.NewToasts(desktop.NewNotifier(appName, cfg.Badge.DesktopEntry), cfg.Badge.Icon, cfg.Toast.Duration)
		toasts = fanout(s.Toast, native)
	}

	deps := notifier.Deps{
		Bus:     a.Bus,
		KV:      a.KV,
		Items:   a.Items,
		Fetcher: a.API,
		Tokens:  a.Tokens,
		Poll: poll.Options{
			Foreground:        cfg.Poll.Foreground,
			Background:        cfg.Poll.Background,
			Idle:              cfg.Poll.Idle,
			MaxBackoff:        cfg.Poll.MaxBackoff,
			BackoffResetAfter: cfg.Poll.BackoffResetAfter,
			AppURL:            cfg.AppURL(),
		},
		IdleThreshold: cfg.Poll.IdleThreshold,

		Player:       audio.New(),
		MessageSound: sound.Cue{Path: cfg.Sounds.Message, Volume: cfg.Sounds.MessageVolume},
		PingSound:    sound.Cue{Path: cfg.Sounds.Ping, Volume: cfg.Sounds.PingVolume},

		ToastSurface:  toasts,
		ToastDuration: cfg.Toast.Duration,
		Panel:         s.Panel,

		AppBadge:  desktop.NewBadge(desktop.NewLauncher(cfg.Badge.DesktopEntry)),
		Title:     s.Title,
		BaseTitle: cfg.Badge.Title,

		Permissions:    a.Consent,
		PushPlatform:   a.Relay,
		Registrar:      a.API,
		VAPIDPublicKey: cfg.Push.VAPIDPublicKey,
	}

	if opener, err := desktop.NewOpener(executil.RealExecutor{}, cfg.Server.BaseURL); err != nil {
		a.log.Warn().Err(err).Msg("links will not open")
	} else {
		deps.Navigator = opener
	}

	if renderer, err := favicon.NewRenderer(cfg.Badge.Icon, cfg.Badge.Color); err != nil {
		a.log.Warn().Err(err).Msg("favicon badge disabled")
	} else {
		deps.Renderer = renderer
		deps.Favicon = favicon.NewFileSink(cfg.Badge.Output, renderer.Base())
	}

	return notifier.New(deps)
}

// Close stops background work and closes the database.
func (a *App) Close() error {
	if a.cancel != nil {
		a.cancel()
	}
	if err := a.Relay.Close(); err != nil {
		a.log.Debug().Err(err).Msg("close push relay")
	}
	return a.DB.Close()
}

// toastFanout shows every toast on several surfaces.
type toastFanout []toast.Surface

func fanout(surfaces ...toast.Surface) toast.Surface {
	var out toastFanout
	for _, s := range surfaces {
		if s != nil {
			out = append(out, s)
		}
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}

func (f toastFanout) Show(t toast.Toast) error {
	var errs []error
	for _, s := range f {
		errs = append(errs, s.Show(t))
	}
	return errors.Join(errs...)
}

func (f toastFanout) Hide(t toast.Toast) error {
	var errs []error
	for _, s := range f {
		errs = append(errs, s.Hide(t))
	}
	return errors.Join(errs...)
}
