package bootstrap

import (
	"context"
	"net/http"
	"sync"
	"time"

	chclient "tradegate/internal/adapters/clickhouse"
	"tradegate/internal/adapters/kafka"
	pgclient "tradegate/internal/adapters/postgres"
	redisclient "tradegate/internal/adapters/redis"
	sqliteclient "tradegate/internal/adapters/sqlite"
	"tradegate/internal/workers"
	"tradegate/pkg/errors"
	"tradegate/pkg/logger"
)

// Lifecycle manages graceful shutdown of components
type Lifecycle struct {
	shutdownTimeout time.Duration
}

// NewLifecycle creates a new lifecycle manager
func NewLifecycle() *Lifecycle {
	return &Lifecycle{
		shutdownTimeout: 60 * time.Second,
	}
}

// LifecycleDeps lists everything Shutdown tears down. Nil members are skipped.
type LifecycleDeps struct {
	WG              *sync.WaitGroup
	MetricsServer   *http.Server
	WorkerScheduler *workers.Scheduler
	KafkaProducer   *kafka.Producer
	PG              *pgclient.Client
	SQLite          *sqliteclient.Client
	CH              *chclient.Client
	Redis           *redisclient.Client
	ErrorTracker    errors.Tracker
	Log             *logger.Logger
}

// Shutdown performs coordinated cleanup in order:
// metrics endpoint, workers, goroutines, Kafka producer, error tracker, logs, databases.
// Databases close last because workers may still be writing snapshots.
func (l *Lifecycle) Shutdown(d LifecycleDeps) {
	log := d.Log
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), l.shutdownTimeout)
	defer shutdownCancel()

	log.Info("[1/6] Stopping metrics server...")
	if d.MetricsServer != nil {
		httpCtx, httpCancel := context.WithTimeout(shutdownCtx, 5*time.Second)
		if err := d.MetricsServer.Shutdown(httpCtx); err != nil {
			log.Errorw("Metrics server shutdown failed", "error", err)
		}
		httpCancel()
	}

	log.Info("[2/6] Stopping background workers...")
	if d.WorkerScheduler != nil && d.WorkerScheduler.IsRunning() {
		if err := d.WorkerScheduler.Stop(); err != nil {
			log.Errorw("Workers shutdown failed", "error", err)
		} else {
			log.Info("✓ Workers stopped")
		}
	}

	log.Info("[3/6] Waiting for goroutines...")
	if d.WG != nil {
		l.waitForGoroutines(d.WG, 5*time.Second, log)
	}

	log.Info("[4/6] Closing Kafka producer...")
	if d.KafkaProducer != nil {
		if err := d.KafkaProducer.Close(); err != nil {
			log.Errorw("Kafka producer close failed", "error", err)
		} else {
			log.Info("✓ Kafka producer closed")
		}
	}

	log.Info("[5/6] Flushing error tracker and logs...")
	l.flushErrorTracker(shutdownCtx, d.ErrorTracker, log)
	_ = logger.Sync()

	log.Info("[6/6] Closing database connections...")
	l.closeDatabases(d.PG, d.SQLite, d.CH, d.Redis, log)

	log.Info("✅ Graceful shutdown complete")
}

// waitForGoroutines waits for all goroutines with a timeout
func (l *Lifecycle) waitForGoroutines(wg *sync.WaitGroup, timeout time.Duration, log *logger.Logger) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("✓ All goroutines finished")
	case <-time.After(timeout):
		log.Warnw("⚠ Some goroutines did not finish within timeout", "timeout", timeout)
	}
}

// flushErrorTracker flushes the error tracker (Sentry, etc.)
func (l *Lifecycle) flushErrorTracker(ctx context.Context, tracker errors.Tracker, log *logger.Logger) {
	if tracker == nil {
		return
	}

	flushCtx, flushCancel := context.WithTimeout(ctx, 3*time.Second)
	defer flushCancel()

	if err := tracker.Flush(flushCtx); err != nil {
		log.Errorw("Error tracker flush failed", "error", err)
	}
}

// closeDatabases closes all database connections
func (l *Lifecycle) closeDatabases(
	pg *pgclient.Client,
	lite *sqliteclient.Client,
	ch *chclient.Client,
	rdb *redisclient.Client,
	log *logger.Logger,
) {
	if log == nil {
		log = logger.NewNop()
	}
	var dbErrors []error

	if pg != nil {
		if err := pg.Close(); err != nil {
			dbErrors = append(dbErrors, errors.Wrap(err, "postgres"))
		}
	}

	if lite != nil {
		if err := lite.Close(); err != nil {
			dbErrors = append(dbErrors, errors.Wrap(err, "sqlite"))
		}
	}

	if ch != nil {
		if err := ch.Close(); err != nil {
			dbErrors = append(dbErrors, errors.Wrap(err, "clickhouse"))
		}
	}

	if rdb != nil {
		if err := rdb.Close(); err != nil {
			dbErrors = append(dbErrors, errors.Wrap(err, "redis"))
		}
	}

	if len(dbErrors) > 0 {
		log.Errorw("Database close errors", "errors", dbErrors)
	} else {
		log.Info("✓ Database connections closed")
	}
}
