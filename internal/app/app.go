package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"odds-arb-watcher/internal/alerting"
	"odds-arb-watcher/internal/arbitrage"
	"odds-arb-watcher/internal/cache"
	"odds-arb-watcher/internal/config"
	"odds-arb-watcher/internal/fetcher"
	"odds-arb-watcher/internal/filter"
	"odds-arb-watcher/internal/fusion"
	"odds-arb-watcher/internal/normalizer"
	"odds-arb-watcher/internal/pipeline"
	"odds-arb-watcher/internal/scheduler"
	"odds-arb-watcher/internal/server"
	"odds-arb-watcher/internal/server/ws"
	"odds-arb-watcher/internal/service"
	"odds-arb-watcher/internal/storage"
)

const summaryTop = 10

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

type sources struct {
	odds     *fetcher.OddsStream
	catalog  *fetcher.Catalog
	schedule *fetcher.Schedule
}

func (a *App) newSources() sources {
	src := a.Config.Sources
	return sources{
		odds: fetcher.NewOddsStream(fetcher.OddsStreamOptions{
			URL:       src.OddsURL,
			Books:     src.StreamBooks,
			Timeout:   src.Timeout,
			UserAgent: src.UserAgent,
		}, a.Logger),
		catalog: fetcher.NewCatalog(fetcher.CatalogOptions{
			URL:       src.CatalogURL,
			Timeout:   src.Timeout,
			UserAgent: src.UserAgent,
		}, a.Logger),
		schedule: fetcher.NewSchedule(fetcher.ScheduleOptions{
			URL:           src.ScheduleURL,
			Sports:        src.Sports,
			Timeout:       src.Timeout,
			UserAgent:     src.UserAgent,
			RatePerSecond: src.ScheduleRate,
			Burst:         src.ScheduleBurst,
		}, a.Logger),
	}
}

func (s sources) service() service.Sources {
	return service.Sources{Odds: s.odds, Catalog: s.catalog, Schedule: s.schedule}
}

func (a *App) newStages() pipeline.Stages {
	return pipeline.Stages{
		Normalizer: normalizer.New(a.Config.Sources.StreamMarker, a.Logger),
		Fusion:     fusion.New(a.Logger),
		Analyzer:   a.newAnalyzer(),
		Filter:     filter.New(a.Config.Filters.Books),
	}
}

func (a *App) newAnalyzer() *arbitrage.Analyzer {
	return arbitrage.New(arbitrage.Options{TotalWager: a.Config.Arbitrage.TotalWager}, a.Logger)
}

// newNotifier returns nil when no channel is enabled.
func (a *App) newNotifier() alerting.Notifier {
	var notifiers alerting.MultiNotifier
	for _, ch := range a.Config.Alerting.Channels {
		switch ch {
		case "telegram":
			cfg := a.Config.Alerting.Telegram
			if cfg.Enabled {
				notifiers = append(notifiers, alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger))
			}
		case "log":
			notifiers = append(notifiers, alerting.NewLogNotifier(a.Logger))
		default:
			a.Logger.Warn().Str("channel", ch).Msg("unknown alert channel ignored")
		}
	}
	switch len(notifiers) {
	case 0:
		return nil
	case 1:
		return notifiers[0]
	}
	return notifiers
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	applied, err := storage.Migrate(ctx, pool, a.Config.Database.MigrationsPath)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	if len(applied) > 0 {
		a.Logger.Info().Strs("migrations", applied).Msg("database migrated")
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func (a *App) openCache(ctx context.Context) (*cache.Publisher, error) {
	cfg := a.Config.Redis
	if cfg.Addr == "" {
		return nil, nil
	}
	return cache.New(ctx, cache.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		SnapshotKey: cfg.SnapshotKey,
		Channel:     cfg.Channel,
		SnapshotTTL: cfg.SnapshotTTL,
		TopN:        summaryTop,
	}, a.Logger)
}

// Run executes the long-running refresh service and, when enabled, the
// HTTP/websocket API.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; persistence disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	publisher, err := a.openCache(ctx)
	if err != nil {
		return err
	}
	if publisher == nil {
		a.Logger.Info().Msg("redis.addr not configured; snapshot fan-out disabled")
	}
	defer func() { _ = publisher.Close() }()

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		StartupDelay: a.Config.Scheduler.StartupDelay,
		SkipFirstRun: a.Config.Scheduler.SkipFirstRun,
	}, a.Logger)

	src := a.newSources()
	stages := a.newStages()
	opts := service.Options{
		Scheduler:  sched,
		Sources:    src.service(),
		Stages:     stages,
		LockKey:    a.Config.Scheduler.AdvisoryLockKey,
		SummaryTop: summaryTop,
	}
	if store != nil {
		opts.Store = store
		opts.Locker = store
	}
	if publisher != nil {
		opts.Cache = publisher
	}

	if a.Config.Alerting.Enabled {
		notifier := a.newNotifier()
		if notifier == nil {
			a.Logger.Warn().Msg("alerting enabled but no channel configured")
		} else {
			var alertStore storage.AlertStore
			if store != nil {
				alertStore = store
			}
			opts.Alerter = alerting.NewDispatcher(alerting.DispatcherOptions{
				ThresholdPct: a.Config.Alerting.ThresholdPct,
				Cooldown:     a.Config.Alerting.Cooldown,
				Channels:     a.Config.Alerting.Channels,
			}, notifier, alertStore, a.Logger)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	var hub *ws.Hub
	if a.Config.Server.Enabled {
		hub = ws.NewHub(a.Logger)
		opts.Broadcaster = hub
		g.Go(func() error {
			hub.Run(gctx)
			return nil
		})
	}

	svc := service.New(opts, a.Logger)

	if a.Config.Server.Enabled {
		srv := server.New(server.Options{
			Addr:            a.Config.Server.Addr,
			AllowedOrigins:  a.Config.Server.AllowedOrigins,
			ShutdownTimeout: a.Config.Server.ShutdownTimeout,
			SummaryTop:      summaryTop,
		}, server.Deps{
			Snapshots: svc,
			Refresher: svc,
			Lookup:    src.catalog,
			Filter:    stages.Filter,
			Analyzer:  stages.Analyzer,
			Hub:       hub,
		}, a.Logger)
		g.Go(func() error { return srv.ListenAndServe(gctx) })
	}

	a.Logger.Info().Dur("interval", a.Config.Scheduler.Interval).Msg("starting refresh service")
	g.Go(func() error {
		err := svc.Run(gctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("refresh service stopped")
	return nil
}

// OnceOptions configure a single foreground cycle.
type OnceOptions struct {
	Limit         int
	OnlyArbitrage bool
	Persist       bool
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit         int
	OnlyArbitrage bool
	Alerts        bool
	Cached        bool
}

// PruneOptions configure the prune job.
type PruneOptions struct {
	Before time.Time
}

var (
	_ service.Broadcaster   = (*ws.Hub)(nil)
	_ service.Alerter       = (*alerting.Dispatcher)(nil)
	_ service.Publisher     = (*cache.Publisher)(nil)
	_ server.SnapshotSource = (*service.Service)(nil)
	_ server.Refresher      = (*service.Service)(nil)
	_ server.OutcomeLookup  = (*fetcher.Catalog)(nil)
)
