package bootstrap

import (
	"context"
	"net/http"
	"sync"

	"github.com/jmoiron/sqlx"

	chclient "tradegate/internal/adapters/clickhouse"
	"tradegate/internal/adapters/config"
	"tradegate/internal/adapters/kafka"
	pgclient "tradegate/internal/adapters/postgres"
	redisclient "tradegate/internal/adapters/redis"
	sqliteclient "tradegate/internal/adapters/sqlite"
	"tradegate/internal/domain/macro"
	"tradegate/internal/domain/regime"
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

// Container holds all application dependencies and their lifecycle.
// Components are organized in initialization order.
type Container struct {
	// Core configuration & logging
	Config       *config.Config
	Log          *logger.Logger
	ErrorTracker errors.Tracker

	// Infrastructure (data stores). Exactly one of PG and SQLite is set.
	PG     *pgclient.Client
	SQLite *sqliteclient.Client
	DB     *sqlx.DB
	CH     *chclient.Client
	Redis  *redisclient.Client

	Repos      *Repositories
	Adapters   *Adapters
	Services   *Services
	Background *Background

	Lifecycle *Lifecycle
	WG        *sync.WaitGroup
	Context   context.Context
	Cancel    context.CancelFunc
}

// Repositories groups all domain repositories
type Repositories struct {
	Tickets *pgrepo.TicketRepository
	Regime  regime.Repository // nil unless ClickHouse is enabled
}

// Adapters groups external adapters
type Adapters struct {
	KafkaProducer *kafka.Producer // nil unless Kafka is enabled
}

// Services groups the engines and workflow services
type Services struct {
	MarketData     *marketdatasvc.CachedProvider
	Calendar       macro.Calendar
	Pricing        *pricing.Engine
	Regime         *regimeservice.Classifier
	CircuitBreaker *breaker.Breaker
	Risk           *riskservice.Engine
	Tickets        *ticketservice.Service
	Pipeline       *ticketservice.Pipeline
}

// Background groups all background processing components
type Background struct {
	WorkerScheduler *workers.Scheduler
	MetricsServer   *http.Server
}

// NewContainer creates a new dependency container
func NewContainer() *Container {
	ctx, cancel := context.WithCancel(context.Background())

	return &Container{
		Repos:      &Repositories{},
		Adapters:   &Adapters{},
		Services:   &Services{},
		Background: &Background{},
		Lifecycle:  NewLifecycle(),
		WG:         &sync.WaitGroup{},
		Context:    ctx,
		Cancel:     cancel,
	}
}

// Init initializes all components in dependency order and stops at the first failure
func (c *Container) Init() error {
	steps := []struct {
		name string
		fn   func() error
	}{
		{"config", c.InitConfig},
		{"infrastructure", c.InitInfrastructure},
		{"repositories", c.InitRepositories},
		{"adapters", c.InitAdapters},
		{"services", c.InitServices},
		{"background", c.InitBackground},
	}

	for _, step := range steps {
		if err := step.fn(); err != nil {
			return errors.Wrapf(err, "init %s", step.name)
		}
	}
	return nil
}

// InitForCommand initializes everything a one-shot CLI command needs.
// Workers and the metrics endpoint are left out.
func (c *Container) InitForCommand() error {
	steps := []struct {
		name string
		fn   func() error
	}{
		{"config", c.InitConfig},
		{"infrastructure", c.InitInfrastructure},
		{"repositories", c.InitRepositories},
		{"adapters", c.InitAdapters},
		{"services", c.InitServices},
	}

	for _, step := range steps {
		if err := step.fn(); err != nil {
			return errors.Wrapf(err, "init %s", step.name)
		}
	}
	return nil
}

// Start runs the metrics endpoint and the worker scheduler
func (c *Container) Start() error {
	c.Log.Info("Starting all systems...")

	if srv := c.Background.MetricsServer; srv != nil {
		c.WG.Add(1)
		go func() {
			defer c.WG.Done()
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				c.Log.Errorw("metrics server failed", "error", err)
				c.Cancel()
			}
		}()
	}

	if err := c.Background.WorkerScheduler.Start(c.Context); err != nil {
		return errors.Wrap(err, "failed to start workers")
	}

	c.Log.Infow("✓ All systems operational", "metrics_addr", c.Config.App.MetricsAddr)
	return nil
}

// Shutdown performs graceful shutdown in the correct order
func (c *Container) Shutdown() {
	c.Log.Info("Initiating graceful shutdown...")
	c.Cancel()

	c.Lifecycle.Shutdown(LifecycleDeps{
		WG:              c.WG,
		MetricsServer:   c.Background.MetricsServer,
		WorkerScheduler: c.Background.WorkerScheduler,
		KafkaProducer:   c.Adapters.KafkaProducer,
		PG:              c.PG,
		SQLite:          c.SQLite,
		CH:              c.CH,
		Redis:           c.Redis,
		ErrorTracker:    c.ErrorTracker,
		Log:             c.Log,
	})
}

// Close releases infrastructure for short-lived CLI commands that never called Start
func (c *Container) Close() {
	c.Cancel()
	if c.Adapters.KafkaProducer != nil {
		_ = c.Adapters.KafkaProducer.Close()
	}
	c.Lifecycle.closeDatabases(c.PG, c.SQLite, c.CH, c.Redis, c.Log)
}
