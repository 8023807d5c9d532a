package app

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"sports-arb-scanner/internal/alerting"
	"sports-arb-scanner/internal/cache"
	"sports-arb-scanner/internal/config"
	"sports-arb-scanner/internal/fetcher"
	"sports-arb-scanner/internal/instrumentation"
	"sports-arb-scanner/internal/publisher"
	"sports-arb-scanner/internal/scanner"
	"sports-arb-scanner/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	// Out receives tables and messages meant for the user.
	Out io.Writer
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger(), Out: os.Stdout}
}

// backends holds the optional services opened for a command.
type backends struct {
	store     *storage.Store
	redis     *redis.Client
	publisher publisher.Publisher
	metrics   *instrumentation.Metrics
}

func (r *backends) Close() {
	if r.publisher != nil {
		_ = r.publisher.Close()
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}
	if r.store != nil {
		r.store.Close()
	}
}

type backendOptions struct {
	store   bool
	publish bool
	metrics bool
}

func (a *App) openBackends(ctx context.Context, opts backendOptions) (*backends, error) {
	rt := &backends{}

	client, err := cache.NewClient(ctx, a.Config.Cache)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("redis unavailable; response cache and alert dedup disabled")
	} else {
		rt.redis = client
	}

	if opts.store {
		store, err := a.openStore(ctx)
		if err != nil {
			rt.Close()
			return nil, err
		}
		if store == nil {
			a.Logger.Warn().Msg("database.dsn not configured; persistence disabled")
		}
		rt.store = store
	}

	if opts.publish {
		pub, err := publisher.New(a.Config.Publish, rt.redis)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.publisher = pub
	}

	if opts.metrics {
		rt.metrics = instrumentation.NewMetrics()
	}
	return rt, nil
}

func (a *App) newSource(client *redis.Client) *fetcher.OddsAPI {
	cfg := a.Config.OddsAPI
	opts := fetcher.OddsAPIOptions{
		BaseURL:    cfg.BaseURL,
		APIKey:     cfg.APIKey,
		Regions:    cfg.Regions,
		Market:     a.Config.Scan.Market,
		OddsFormat: cfg.OddsFormat,
		Timeout:    cfg.RequestTimeout,
		UserAgent:  cfg.UserAgent,
		OddsTTL:    a.Config.Cache.OddsTTL,
		SportsTTL:  a.Config.Cache.SportsTTL,
	}
	if client != nil {
		opts.Cache = cache.NewResponseCache(client, a.Config.Cache.Prefix)
	}
	return fetcher.NewOddsAPI(opts, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	var notifiers alerting.Multi
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		notifiers = append(notifiers, alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger))
	}
	if a.Config.Alerting.Slack.Enabled {
		notifiers = append(notifiers, alerting.NewSlackNotifier(a.Config.Alerting.Slack.WebhookURL, 10*time.Second, a.Logger))
	}
	switch len(notifiers) {
	case 0:
		return nil
	case 1:
		return notifiers[0]
	}
	return notifiers
}

func (a *App) openStore(ctx context.Context) (*storage.Store, error) {
	if a.Config.Database.DSN == "" {
		return nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, err
	}

	if dir := a.Config.Database.MigrationsPath; dir != "" {
		if _, statErr := os.Stat(dir); statErr == nil {
			applied, err := storage.Migrate(ctx, pool, dir)
			if err != nil {
				pool.Close()
				return nil, err
			}
			a.Logger.Debug().Int("files", applied).Msg("migrations applied")
		}
	}
	return storage.NewStore(pool), nil
}

// scannerOptions assembles the scanner from whatever backends are open.
func (a *App) scannerOptions(rt *backends) scanner.Options {
	opts := scanner.Options{
		Source:      a.newSource(rt.redis),
		Sports:      a.Config.OddsAPI.Sports,
		Concurrency: a.Config.OddsAPI.Concurrency,
		Evaluator:   a.Config.Scan.Evaluator(),
		Publisher:   rt.publisher,
		Metrics:     rt.metrics,
		LockKey:     a.Config.Scheduler.AdvisoryLockKey,
		Alerting: scanner.AlertOptions{
			Enabled:      a.Config.Alerting.Enabled,
			ThresholdPct: a.Config.Alerting.ThresholdPct,
			Channels:     a.Config.Alerting.Channels,
		},
	}
	if rt.store != nil {
		opts.Store = rt.store
		opts.Alerts = rt.store
		opts.Locker = rt.store
	}
	if a.Config.Alerting.Enabled {
		opts.Notifier = a.newNotifier()
		if rt.redis != nil {
			opts.Dedup = cache.NewDeduplicator(rt.redis, a.Config.Alerting.Cooldown, a.Config.Cache.Prefix)
		}
	}
	return opts
}

// ExportOptions hold parameters for exporting detected opportunities.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit  int
	Alerts bool
}

// BackfillOptions configure the backfill job.
type BackfillOptions struct {
	From    time.Time
	To      time.Time
	DryRun  bool
	Workers int
}
