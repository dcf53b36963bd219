package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	trackerinadapter "focuslog/internal/modules/tracker/adapter/in"
	trackeroutadapter "focuslog/internal/modules/tracker/adapter/out"
	"focuslog/internal/modules/tracker/domain"
	trackerdto "focuslog/internal/modules/tracker/dto"
	trackerin "focuslog/internal/modules/tracker/port/in"
	trackerout "focuslog/internal/modules/tracker/port/out"
	trackerservice "focuslog/internal/modules/tracker/service"
	trackerusecase "focuslog/internal/modules/tracker/usecase"
	"focuslog/internal/platform/clock"
	"focuslog/internal/platform/config"
	"focuslog/internal/platform/id"
	"focuslog/internal/platform/retry"
	uiapp "focuslog/internal/ui/app"
)

const eventQueueSize = 256

type App struct {
	Config     config.Config
	Logger     *slog.Logger
	Tracker    trackerin.Usecase
	TrackerCLI trackerinadapter.CLIHandler
	HTTP       *trackerinadapter.HTTPHandler
	Events     chan trackerdto.Event
	Heartbeat  *trackerservice.HeartbeatWriter
	Classifier *trackeroutadapter.WatchedClassifier

	closers []func() error
}

// Options overrides collaborators, mostly for tests.
type Options struct {
	Clock       clock.Clock
	PulseTicker trackerservice.TickerFunc
	Listener    trackerout.StateListener
	Retry       *retry.Policy
}

type stores struct {
	programs   trackerout.ActivityStore
	domains    trackerout.ActivityStore
	videos     trackerout.VideoStore
	mysteries  trackerout.MysteryMediaStore
	heartbeats trackerout.HeartbeatStore
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger, opts Options) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.SystemClock{Location: loc}
	}
	policy := retry.DefaultPolicy()
	if opts.Retry != nil {
		policy = *opts.Retry
	}
	listener := opts.Listener
	if listener == nil {
		listener = trackeroutadapter.NopListener{}
	}

	app := &App{Config: cfg, Logger: logger}
	st, err := app.openStores(ctx, cfg)
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	mysteries, err := trackerservice.NewMysteryResolver(st.videos, st.mysteries, cfg.PlaceholderMediaTitle, cfg.MysteryCacheSize, policy, logger)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	if err := mysteries.Seed(ctx); err != nil {
		_ = app.Close()
		return nil, err
	}
	recorder := trackerservice.NewRecorder(st.programs, st.domains, st.videos, mysteries, clk, policy, logger)

	app.Classifier = trackeroutadapter.NewWatchedClassifier(cfg, logger)
	window := time.Duration(cfg.WindowSizeSeconds) * time.Second
	pulse := trackerservice.NewPulseContainer(cfg.TickInterval(), opts.PulseTicker, logger)
	app.closers = append(app.closers, func() error {
		err := pulse.Close(context.Background())
		if errors.Is(err, trackerservice.ErrPulseClosed) {
			return nil
		}
		return err
	})

	app.Tracker = trackerusecase.NewArbiter(trackerusecase.Deps{
		Factory:       trackerservice.NewActivityFactory(id.UUID{}, app.Classifier, loc, window),
		Machine:       domain.NewStateMachine(cfg.SuspiciousHeartbeatGap()),
		Sleep:         trackerservice.NewSleepDetector(clk, st.heartbeats, cfg.SleepThreshold()),
		Pulse:         pulse,
		Recorder:      recorder,
		Mysteries:     mysteries,
		Heartbeats:    st.heartbeats,
		Listener:      listener,
		Clock:         clk,
		WindowSeconds: cfg.WindowSizeSeconds,
		Retry:         policy,
		Logger:        logger,
	})
	app.TrackerCLI = trackerinadapter.NewCLIHandler(app.Tracker)
	app.Events = make(chan trackerdto.Event, eventQueueSize)
	app.HTTP = trackerinadapter.NewHTTPHandler(app.Tracker, app.Events, cfg.CORSAllowedOrigins, logger)
	app.Heartbeat = trackerservice.NewHeartbeatWriter(
		trackerservice.HeartbeatFunc(app.TrackerCLI.Heartbeat),
		clk,
		cfg.HeartbeatInterval(),
		nil,
		policy,
		logger,
	)
	return app, nil
}

func (a *App) openStores(ctx context.Context, cfg config.Config) (stores, error) {
	var st stores
	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		pg, err := trackeroutadapter.NewPostgresStore(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return stores{}, fmt.Errorf("open postgres store: %w", err)
		}
		a.closers = append(a.closers, func() error { pg.Close(); return nil })
		st = stores{
			programs:   pg.ForFamily(domain.FamilyProgram),
			domains:    pg.ForFamily(domain.FamilyDomain),
			videos:     pg.ForFamily(domain.FamilyVideo),
			mysteries:  pg,
			heartbeats: pg,
		}
	default:
		lite, err := trackeroutadapter.NewSQLiteStore(cfg.Store.SQLitePath)
		if err != nil {
			return stores{}, fmt.Errorf("open sqlite store: %w", err)
		}
		a.closers = append(a.closers, lite.Close)
		st = stores{
			programs:   lite.ForFamily(domain.FamilyProgram),
			domains:    lite.ForFamily(domain.FamilyDomain),
			videos:     lite.ForFamily(domain.FamilyVideo),
			mysteries:  lite,
			heartbeats: lite,
		}
	}

	if cfg.Heartbeat.Driver == config.HeartbeatDriverRedis {
		hb, err := trackeroutadapter.NewRedisHeartbeatStore(cfg.Heartbeat.RedisAddr, cfg.Heartbeat.RedisKey)
		if err != nil {
			return stores{}, fmt.Errorf("open redis heartbeat store: %w", err)
		}
		a.closers = append(a.closers, hb.Close)
		st.heartbeats = hb
	}
	return st, nil
}

// Serve runs the tracker until ctx ends, then shuts down within the configured cap.
func (a *App) Serve(ctx context.Context, withHeartbeat bool) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	server := &http.Server{
		Addr:              a.Config.ListenAddr,
		Handler:           a.HTTP.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 4)
	go func() {
		a.Logger.Info("http listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("serve http: %w", err)
		}
	}()
	go func() {
		if err := a.Classifier.Watch(runCtx); err != nil {
			a.Logger.Warn("config watcher stopped", "error", err)
		}
	}()
	if withHeartbeat {
		go func() {
			if err := a.Heartbeat.Run(runCtx); err != nil {
				a.Logger.Warn("heartbeat writer stopped", "error", err)
			}
		}()
	}
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		if err := a.Tracker.Run(runCtx, a.Events); err != nil {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), a.Config.ShutdownTimeout())
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		a.Logger.Warn("http shutdown", "error", err)
	}
	// The event loop finishes the handler in flight before the session is concluded.
	select {
	case <-runDone:
	case <-shutdownCtx.Done():
		a.Logger.Warn("event loop did not stop before the shutdown deadline")
	}
	if err := a.Tracker.Shutdown(shutdownCtx); err != nil {
		a.Logger.Error("tracker shutdown", "error", err)
		runErr = errors.Join(runErr, err)
	}
	return runErr
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// RunWatch opens the dashboard against the tracker serving cfg.ListenAddr.
func RunWatch(cfg config.Config, interval time.Duration) error {
	client := trackeroutadapter.NewTrackerClient(cfg.ListenAddr, 5*time.Second)
	program := tea.NewProgram(uiapp.NewModel(client, interval, nil), tea.WithAltScreen())
	_, err := program.Run()
	return err
}
