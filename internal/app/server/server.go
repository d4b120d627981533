package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"surfscale-engine/internal/api"
	"surfscale-engine/internal/campaign"
	"surfscale-engine/internal/config"
	"surfscale-engine/internal/engine"
	"surfscale-engine/internal/listener"
	"surfscale-engine/internal/providers"
	"surfscale-engine/internal/providers/meta"
	"surfscale-engine/internal/providers/triplewhale"
	"surfscale-engine/internal/reconcile"
	"surfscale-engine/internal/scheduler"
	"surfscale-engine/internal/storage"
	"surfscale-engine/internal/surf"
)

// App is the wired process. Build it once; Close releases storage.
type App struct {
	Config      config.Config
	Store       storage.Store
	Cache       storage.CampaignCache
	Meta        *meta.Client
	TripleWhale *triplewhale.Client
	Rules       *engine.RuleSet
	Engine      *engine.Engine
	Service     *surf.Service
	Scheduler   *scheduler.Scheduler

	pg      *storage.Postgres
	closers []func()
}

func newDoer(name string, s config.HTTPSettings) *providers.Doer {
	d := providers.NewDoer(name, &http.Client{Timeout: s.Timeout}, providers.NewPacer(s.Spacing))
	d.Attempts = s.Attempts
	d.BaseDelay = s.BaseDelay
	d.RetryAfter = s.RetryAfter
	return d
}

// Build wires storage, adapters, engine and service from cfg.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	app := &App{Config: cfg}

	switch cfg.Storage.Driver {
	case "postgres":
		pg, err := storage.NewPostgres(ctx, cfg)
		if err != nil {
			return nil, err
		}
		log.Info().Str("dsn", pg.DSNRedacted()).Msg("postgres store ready")
		app.pg = pg
		app.Store = pg
	case "memory":
		app.Store = storage.NewMemoryStore()
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
	app.closers = append(app.closers, app.Store.Close)

	switch cfg.Storage.Cache {
	case "redis":
		rdb, err := storage.OpenRedis(ctx, storage.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err != nil {
			app.Close()
			return nil, err
		}
		app.closers = append(app.closers, func() { _ = rdb.Close() })
		app.Cache = storage.NewRedisCache(rdb, cfg.CacheTTL())
	case "memory":
		app.Cache = storage.NewMemoryCache(cfg.CacheTTL())
	default:
		app.Close()
		return nil, fmt.Errorf("unknown campaign cache %q", cfg.Storage.Cache)
	}

	if err := seed(ctx, app.Store, cfg); err != nil {
		app.Close()
		return nil, err
	}
	initial, err := app.Store.LoadRules(ctx)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("initial rule load: %w", err)
	}
	app.Rules = engine.NewRuleSet(initial)

	mh, th := cfg.MetaHTTP(), cfg.TripleWhaleHTTP()
	app.Meta = meta.New(mh.BaseURL, newDoer("meta", mh))
	app.TripleWhale = triplewhale.New(th.BaseURL, newDoer("triple_whale", th))
	agg := reconcile.NewAggregator(app.Meta, app.TripleWhale)

	app.Engine = engine.New(nil)
	opts := []surf.Option{
		surf.WithPeriod(campaign.ParsePeriod(cfg.Surf.Period)),
		surf.WithAccountLister(app.Meta),
	}
	if cfg.Surf.ApplyBudgets {
		opts = append(opts, surf.WithBudgetWriter(app.Meta))
	}
	app.Service = surf.NewService(app.Store, app.Cache, agg, app.Rules, app.Engine, opts...)
	return app, nil
}

// seed stores configured accounts and, when the store has no rules yet,
// the rules file or the default rule set.
func seed(ctx context.Context, st storage.Store, cfg config.Config) error {
	for _, a := range cfg.Surf.Accounts {
		if err := st.SaveAccount(ctx, a); err != nil {
			return fmt.Errorf("seed account %s: %w", a.ID, err)
		}
	}
	existing, err := st.LoadRules(ctx)
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}
	rules := engine.DefaultRules()
	if cfg.Surf.RulesFile != "" {
		if rules, err = engine.LoadRulesFile(cfg.Surf.RulesFile); err != nil {
			return err
		}
	}
	log.Info().Int("rules", len(rules)).Msg("seeding rule set")
	return st.SaveRules(ctx, rules)
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// Start launches the background workers: rule listener and surf scheduler.
func (a *App) Start(ctx context.Context) error {
	cfg := a.Config
	if a.pg != nil && cfg.Listener.Enabled {
		go listener.ListenAndReload(ctx, a.pg.PgxPool(), a.Rules, a.Store, cfg.Listener.Channel, cfg.Backoff())
	}
	if !cfg.Surf.Schedule.Enabled {
		return nil
	}
	loc, err := time.LoadLocation(cfg.Surf.Schedule.Timezone)
	if err != nil {
		return fmt.Errorf("schedule timezone: %w", err)
	}
	sch, err := scheduler.NewSchedule(scheduler.Interval(cfg.Surf.Schedule.Interval), cfg.Surf.Schedule.CustomHours, loc)
	if err != nil {
		return fmt.Errorf("schedule: %w", err)
	}
	a.Scheduler = scheduler.New(sch)
	go func() {
		if err := a.Scheduler.Run(ctx, a.Service.RunAll); err != nil {
			log.Error().Err(err).Msg("scheduler stopped")
		}
	}()
	return nil
}

// Handler serves the API. Call it after Start so the schedule status is wired.
func (a *App) Handler() http.Handler {
	h := api.NewSurfHandler(a.Service)
	if a.Scheduler != nil {
		h.Schedule = a.Scheduler.Status
	}
	return api.Router(h, api.DefaultTimeout)
}

func Run(cfg config.Config) error {
	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := Build(rootCtx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Start(rootCtx); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      app.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: api.DefaultTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("http server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case <-waitForSignal():
	case err := <-errc:
		return fmt.Errorf("server crashed: %w", err)
	}
	log.Info().Msg("shutdown...")

	shCtx, shCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shCancel()
	cancel() // stop background goroutines
	return srv.Shutdown(shCtx)
}

func waitForSignal() <-chan os.Signal {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	return c
}
