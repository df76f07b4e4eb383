package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/ftpledger/ledger-api/internal/config"
	"github.com/ftpledger/ledger-api/internal/events"
	"github.com/ftpledger/ledger-api/internal/locking"
	"github.com/ftpledger/ledger-api/internal/platform/memory"
	"github.com/ftpledger/ledger-api/internal/platform/postgres"
	"github.com/ftpledger/ledger-api/internal/service"
	"github.com/ftpledger/ledger-api/internal/service/auth"
	"github.com/ftpledger/ledger-api/internal/store"
	"github.com/redis/go-redis/v9"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	// db is nil for the memory backend.
	db     *sql.DB
	redis  *redis.Client
	stores store.Stores

	locker          locking.Locker
	jwtService      auth.JWTService
	transferService service.TransferService
	accountService  service.AccountService
	eventEmitter    *events.InMemoryEventEmitter
}

// newApplication wires every dependency from cfg. On error, whatever was
// already opened is closed again.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *application, err error) {
	app := &application{config: cfg, logger: logger}
	defer func() {
		if err != nil {
			app.cleanup()
		}
	}()

	app.stores, err = app.openStores(ctx)
	if err != nil {
		return nil, err
	}

	strategy, err := locking.ParseStrategy(cfg.Transfer.LockStrategy)
	if err != nil {
		return nil, err
	}
	app.locker, err = locking.New(strategy, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create locker: %w", err)
	}
	logger.Info("Lock strategy selected", slog.String("strategy", string(strategy)))

	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}

	app.eventEmitter = events.NewInMemoryEventEmitter(logger)
	app.eventEmitter.RegisterHandler(events.NewLogHandler(logger))

	if cfg.Redis.Enabled() {
		app.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := app.redis.Ping(pingCtx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		app.eventEmitter.RegisterHandler(events.NewRedisStreamPublisher(app.redis, cfg.Redis.EventStream, logger))
		logger.Info("Redis connected", slog.String("event_stream", cfg.Redis.EventStream))
	}

	limits, err := cfg.Transfer.AmountLimits()
	if err != nil {
		return nil, err
	}
	app.transferService, err = service.NewTransferService(app.stores, app.locker, limits, app.eventEmitter, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create transfer service: %w", err)
	}
	app.accountService, err = service.NewAccountService(app.stores.Accounts, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create account service: %w", err)
	}

	return app, nil
}

// openStores selects the storage backend named by the config.
func (app *application) openStores(ctx context.Context) (store.Stores, error) {
	lockWait := app.config.Transfer.LockWaitTimeout()

	switch app.config.Database.Driver {
	case "postgres":
		db, err := postgres.Open(ctx, app.config.Database, app.logger)
		if err != nil {
			return store.Stores{}, err
		}
		app.db = db
		return postgres.NewStores(db, lockWait, app.logger), nil
	case "memory":
		app.logger.Warn("Using in-memory store; data is lost on restart")
		return memory.New(app.logger, memory.WithLockWait(lockWait)).Stores(), nil
	default:
		return store.Stores{}, fmt.Errorf("unsupported database driver %q", app.config.Database.Driver)
	}
}

// cleanup releases external connections. Safe on a partially built app.
func (app *application) cleanup() {
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("Error closing redis client", slog.String("error", err.Error()))
		}
		app.redis = nil
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", slog.String("error", err.Error()))
		}
		app.db = nil
	}
	app.logger.Info("Application shutdown completed")
}
