package bootstrap

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	chclient "tradegate/internal/adapters/clickhouse"
	"tradegate/internal/adapters/config"
	errnoop "tradegate/internal/adapters/errors/noop"
	"tradegate/internal/adapters/errors/sentry"
	"tradegate/internal/adapters/kafka"
	pgclient "tradegate/internal/adapters/postgres"
	redisclient "tradegate/internal/adapters/redis"
	sqliteclient "tradegate/internal/adapters/sqlite"
	"tradegate/internal/domain/macro"
	"tradegate/internal/domain/market_data"
	"tradegate/internal/domain/risk"
	"tradegate/internal/metrics"
	chrepo "tradegate/internal/repository/clickhouse"
	pgrepo "tradegate/internal/repository/postgres"
	"tradegate/internal/services/breaker"
	marketdatasvc "tradegate/internal/services/market_data"
	"tradegate/internal/services/pricing"
	regimeservice "tradegate/internal/services/regime"
	riskservice "tradegate/internal/services/risk"
	ticketservice "tradegate/internal/services/ticket"
	"tradegate/internal/workers"
	"tradegate/pkg/errors"
	"tradegate/pkg/logger"
)

// ========================================
// Phase 1: Configuration & Logging
// ========================================

// InitConfig loads configuration, initializes the logger and the error tracker
func (c *Container) InitConfig() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	c.Config = cfg

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		return errors.Wrap(err, "failed to init logger")
	}
	c.Log = logger.Get()

	c.ErrorTracker = c.initErrorTracker()
	logger.SetErrorTracker(c.ErrorTracker)

	c.Log.Infow("Configuration loaded",
		"app", cfg.App.Name,
		"env", cfg.App.Env,
		"db_driver", cfg.Database.Driver,
	)
	return nil
}

func (c *Container) initErrorTracker() errors.Tracker {
	cfg := c.Config.ErrorTracking
	if !cfg.Enabled || cfg.SentryDSN == "" {
		c.Log.Info("Error tracking disabled")
		return errnoop.New()
	}

	tracker, err := sentry.New(cfg.SentryDSN, cfg.Environment, c.Config.App.Version)
	if err != nil {
		c.Log.Warnw("Failed to initialize Sentry, falling back to no-op", "error", err)
		return errnoop.New()
	}

	c.Log.Info("✓ Error tracking initialized (Sentry)")
	return tracker
}

// ========================================
// Phase 2: Infrastructure
// ========================================

// InitInfrastructure connects the ticket database and the optional ClickHouse and Redis
func (c *Container) InitInfrastructure() error {
	ctx, cancel := context.WithTimeout(c.Context, 15*time.Second)
	defer cancel()

	if c.Config.Database.IsPostgres() {
		pg, err := pgclient.NewClient(ctx, c.Config.Database)
		if err != nil {
			return err
		}
		c.PG = pg
		c.DB = pg.DB()
	} else {
		lite, err := sqliteclient.NewClient(ctx, c.Config.Database)
		if err != nil {
			return err
		}
		c.SQLite = lite
		c.DB = lite.DB()
	}
	c.Log.Infow("✓ Ticket database connected", "driver", c.Config.Database.Driver)

	if c.Config.ClickHouse.Enabled {
		ch, err := chclient.NewClient(ctx, c.Config.ClickHouse)
		if err != nil {
			return err
		}
		c.CH = ch
		c.Log.Info("✓ ClickHouse connected")
	}

	if c.Config.Redis.Enabled {
		rdb, err := redisclient.NewClient(ctx, c.Config.Redis)
		if err != nil {
			return err
		}
		c.Redis = rdb
		c.Log.Infow("✓ Redis connected", "addr", c.Config.Redis.Addr())
	}

	return nil
}

// ========================================
// Phase 3: Repositories
// ========================================

// InitRepositories creates repositories and migrates their schemas
func (c *Container) InitRepositories() error {
	c.Repos.Tickets = pgrepo.NewTicketRepository(c.DB)
	if err := c.Repos.Tickets.Migrate(c.Context); err != nil {
		return err
	}

	if c.CH != nil {
		regimeRepo := chrepo.NewRegimeRepository(c.CH.Conn())
		if err := regimeRepo.Migrate(c.Context); err != nil {
			return err
		}
		c.Repos.Regime = regimeRepo
	}

	c.Log.Info("✓ Repositories initialized")
	return nil
}

// ========================================
// Phase 4: Adapters
// ========================================

// InitAdapters creates the Kafka producer when enabled
func (c *Container) InitAdapters() error {
	if c.Config.Kafka.Enabled {
		c.Adapters.KafkaProducer = kafka.NewProducer(kafka.ProducerConfig{Brokers: c.Config.Kafka.Brokers}, c.Log)
		c.Log.Infow("✓ Kafka producer ready", "brokers", c.Config.Kafka.Brokers)
	}
	return nil
}

// ========================================
// Phase 5: Services
// ========================================

// InitServices builds the pricing, regime, breaker, risk and ticket services
func (c *Container) InitServices() error {
	upstream, err := c.marketDataSource()
	if err != nil {
		return err
	}

	var remote marketdatasvc.RemoteCache
	if c.Redis != nil {
		remote = c.Redis
	}
	c.Services.MarketData = marketdatasvc.NewCachedProvider(
		upstream,
		marketdatasvc.CacheOptionsFromConfig(c.Config.MarketData),
		remote,
		c.Log,
	)

	calendar, err := c.calendar()
	if err != nil {
		return err
	}
	c.Services.Calendar = calendar

	c.Services.Pricing = pricing.NewEngine()
	c.Services.Regime = regimeservice.NewClassifier(
		c.Services.MarketData,
		regimeservice.ConfigFromEnv(c.Config.Regime),
		c.Log,
		regimeservice.WithCalendar(calendar),
	)
	c.Services.CircuitBreaker = breaker.New(breaker.ThresholdsFromConfig(c.Config.CircuitBreaker), c.Log)
	c.Services.Risk = riskservice.NewEngine(
		risk.DefaultSectors,
		riskservice.NewMarketReturns(c.Services.MarketData, c.Log),
		riskservice.LimitsFromConfig(c.Config.Risk),
		c.Log,
		riskservice.WithCorrelationWindow(c.Config.Risk.CorrelationWindow),
	)

	var events ticketservice.EventPublisher
	if c.Adapters.KafkaProducer != nil {
		events = c.Adapters.KafkaProducer
	}
	c.Services.Tickets = ticketservice.NewService(c.Repos.Tickets, events, c.Log)
	c.Services.Pipeline = ticketservice.NewPipeline(
		c.Services.Regime,
		c.Services.Risk,
		c.Repos.Tickets,
		c.Services.Tickets,
		c.Config.Risk.Equity,
		c.Log,
	)

	c.Log.Info("✓ Services initialized")
	return nil
}

// marketDataSource returns the fixture-backed provider, or an empty one when no
// fixture file is configured. Live vendors plug in here.
func (c *Container) marketDataSource() (market_data.Provider, error) {
	path := c.Config.MarketData.FixturePath
	if path == "" {
		c.Log.Warn("No market data fixtures configured, regime signals will report insufficient data")
		return marketdatasvc.NewStaticProvider(time.Now()), nil
	}

	p, err := marketdatasvc.LoadFixtures(path)
	if err != nil {
		return nil, err
	}
	c.Log.Infow("✓ Market data fixtures loaded", "path", path)
	return p, nil
}

// calendar prefers a configured YAML calendar over the recurring FOMC/CPI/NFP schedule
func (c *Container) calendar() (macro.Calendar, error) {
	path := c.Config.Regime.CalendarPath
	if path == "" {
		return macro.RecurringCalendar{}, nil
	}

	events, err := macro.LoadCalendar(path)
	if err != nil {
		return nil, err
	}
	c.Log.Infow("✓ Macro calendar loaded", "path", path, "events", len(events))
	return macro.StaticCalendar(events), nil
}

// ========================================
// Phase 6: Background
// ========================================

// InitBackground registers workers and the metrics endpoint
func (c *Container) InitBackground() error {
	scheduler := workers.NewScheduler(c.Log)

	var events workers.EventPublisher
	if c.Adapters.KafkaProducer != nil {
		events = c.Adapters.KafkaProducer
	}
	scheduler.RegisterWorker(workers.NewRegimeSnapshotWorker(
		c.Services.Regime,
		c.Repos.Regime,
		events,
		c.Config.Workers.RegimeSnapshotInterval,
		c.Config.Workers.RegimeSnapshotEnabled,
		c.Log,
	))
	c.Background.WorkerScheduler = scheduler

	if err := prometheus.Register(metrics.NewTicketStoreCollector(c.Log, c.DB)); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return errors.Wrap(err, "register ticket store collector")
		}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", c.healthz)
	c.Background.MetricsServer = &http.Server{
		Addr:              c.Config.App.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return nil
}

func (c *Container) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := c.DB.PingContext(ctx); err != nil {
		http.Error(w, "ticket database unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
