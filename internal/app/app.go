package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	_ "github.com/lib/pq"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"myconnectionsvr/account-service/internal/account"
	"myconnectionsvr/account-service/internal/auth"
	"myconnectionsvr/account-service/internal/config"
	"myconnectionsvr/account-service/internal/httpserver"
	"myconnectionsvr/account-service/internal/migrations"
	"myconnectionsvr/account-service/internal/notify"
	"myconnectionsvr/account-service/internal/observability"
	"myconnectionsvr/account-service/internal/password"
	"myconnectionsvr/account-service/internal/token"
)

const connectTimeout = 10 * time.Second

type App struct {
	cfg     config.Config
	log     *slog.Logger
	server  *httpserver.Server
	closers []closer
}

type closer struct {
	name string
	fn   func(context.Context) error
}

// backend is the selected account store plus its readiness probe.
type backend struct {
	store account.Store
	ready func(context.Context) error
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	a := &App{cfg: cfg, log: observability.NewLogger(cfg.Development())}
	ok := false
	defer func() {
		if !ok {
			a.close(context.Background())
		}
	}()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.Telemetry.OTLPEndpoint, cfg.Telemetry.ServiceName)
	if err != nil {
		return nil, fmt.Errorf("setup tracing: %w", err)
	}
	a.onClose("tracing", shutdownTracing)

	be, err := a.openBackend(ctx)
	if err != nil {
		return nil, err
	}

	hasher, err := password.NewHasher(cfg.Auth.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("create password hasher: %w", err)
	}
	a.log.Info("password hasher ready", "bcrypt_cost", hasher.Cost())
	issuer, err := token.NewIssuer(token.Config{
		Secret:     cfg.Auth.JWTSecret,
		SessionTTL: cfg.Auth.SessionTTL,
		ResetTTL:   cfg.Auth.ResetTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("create token issuer: %w", err)
	}
	notifier, err := a.openNotifier()
	if err != nil {
		return nil, err
	}

	accounts, err := account.NewService(be.store, account.ServiceConfig{
		Hasher:              hasher,
		Tokens:              issuer,
		Notifier:            notifier,
		Logger:              a.log,
		ResetLinkBaseURL:    cfg.Auth.ResetLinkBaseURL,
		ConcealUnknownEmail: cfg.Auth.ConcealUnknownEmail,
	})
	if err != nil {
		return nil, fmt.Errorf("create account service: %w", err)
	}

	if cfg.Auth.BootstrapEmail != "" {
		admin, created, err := accounts.EnsureBootstrapAdmin(ctx, cfg.Auth.BootstrapName, cfg.Auth.BootstrapEmail, cfg.Auth.BootstrapPassword)
		if err != nil {
			return nil, err
		}
		if created {
			a.log.Info("bootstrap admin created", "account_id", admin.ID, "email", admin.Email)
		}
	}

	gate, err := auth.NewGate(issuer, a.log)
	if err != nil {
		return nil, fmt.Errorf("create auth gate: %w", err)
	}

	a.server = httpserver.New(cfg.HTTP, httpserver.Deps{
		Accounts: accounts,
		Auth:     gate,
		Ready:    be.ready,
		Logger:   a.log,
	})
	ok = true
	return a, nil
}

func (a *App) openBackend(ctx context.Context) (backend, error) {
	switch {
	case a.cfg.Storage.MongoURI != "":
		return a.openMongo(ctx)
	case a.cfg.Storage.DatabaseURL != "":
		return a.openPostgres(ctx)
	}

	store, err := account.NewFileStore(a.cfg.Storage.StateFile)
	if err != nil {
		return backend{}, fmt.Errorf("create file account store: %w", err)
	}
	a.log.Info("account store selected", "backend", "file", "path", store.Path())
	return backend{store: store}, nil
}

func (a *App) openMongo(ctx context.Context) (backend, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(a.cfg.Storage.MongoURI))
	if err != nil {
		return backend{}, fmt.Errorf("connect mongo: %w", err)
	}
	a.onClose("mongo", client.Disconnect)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		return backend{}, fmt.Errorf("ping mongo: %w", err)
	}

	store, err := account.NewMongoStore(ctx, client.Database(a.cfg.Storage.MongoDatabase))
	if err != nil {
		return backend{}, fmt.Errorf("create mongo account store: %w", err)
	}
	a.log.Info("account store selected", "backend", "mongo", "database", a.cfg.Storage.MongoDatabase)
	return backend{
		store: store,
		ready: func(ctx context.Context) error { return client.Ping(ctx, nil) },
	}, nil
}

func (a *App) openPostgres(ctx context.Context) (backend, error) {
	db, err := sql.Open("postgres", a.cfg.Storage.DatabaseURL)
	if err != nil {
		return backend{}, fmt.Errorf("open database: %w", err)
	}
	a.onClose("postgres", func(context.Context) error { return db.Close() })

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return backend{}, fmt.Errorf("ping database: %w", err)
	}

	version, err := migrations.Up(ctx, db)
	if err != nil {
		return backend{}, err
	}
	a.log.Info("database migrations applied", "version", version)
	if err := logMigrations(a.log); err != nil {
		return backend{}, err
	}

	store, err := account.NewPostgresStore(db)
	if err != nil {
		return backend{}, fmt.Errorf("create postgres account store: %w", err)
	}
	a.log.Info("account store selected", "backend", "postgres")
	return backend{store: store, ready: db.PingContext}, nil
}

// logMigrations logs the name and SHA-256 of every embedded migration.
func logMigrations(log *slog.Logger) error {
	files, err := migrations.List()
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	for _, f := range files {
		log.Debug("embedded migration", "name", f.Name, "sha256", f.Checksum)
	}
	return nil
}

func (a *App) openNotifier() (notify.Notifier, error) {
	if a.cfg.AMQP.URL == "" {
		return notify.NewLogNotifier(a.log), nil
	}
	n, err := notify.NewAMQPNotifier(a.cfg.AMQP.URL, a.cfg.AMQP.Exchange)
	if err != nil {
		return nil, fmt.Errorf("create amqp notifier: %w", err)
	}
	a.onClose("amqp", func(context.Context) error { return n.Close() })
	a.log.Info("password reset delivery via amqp", "exchange", a.cfg.AMQP.Exchange)
	return n, nil
}

func (a *App) onClose(name string, fn func(context.Context) error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

// close releases resources in reverse order of acquisition.
func (a *App) close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(ctx); err != nil {
			a.log.Warn("close resource", "resource", c.name, "error", err)
		}
	}
	a.closers = nil
}

func (a *App) Run(ctx context.Context) error {
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		a.close(closeCtx)
	}()

	errCh := make(chan error, 1)

	go func() {
		a.log.Info("http server starting", "addr", a.cfg.HTTP.Addr(), "env", a.cfg.Env)
		errCh <- a.server.Start()
	}()

	select {
	case <-ctx.Done():
		a.log.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server exited: %w", err)
	}
}
