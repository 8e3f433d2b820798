// Package server wires the share engine together: it selects the record
// store, blob store, notifier and rate limiter from config, builds the
// services and runs the HTTP API next to the gRPC health endpoint.
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/secureshare/internal/cryptox"
	"github.com/dmitrijs2005/secureshare/internal/logging"
	"github.com/dmitrijs2005/secureshare/internal/server/auth"
	"github.com/dmitrijs2005/secureshare/internal/server/blobstore"
	"github.com/dmitrijs2005/secureshare/internal/server/config"
	"github.com/dmitrijs2005/secureshare/internal/server/httpapi"
	"github.com/dmitrijs2005/secureshare/internal/server/notify"
	"github.com/dmitrijs2005/secureshare/internal/server/ratelimit"
	"github.com/dmitrijs2005/secureshare/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/secureshare/internal/server/services"
	"github.com/dmitrijs2005/secureshare/internal/timex"
	"github.com/redis/go-redis/v9"

	gs "github.com/dmitrijs2005/secureshare/internal/server/grpc"
)

var openPostgres = repomanager.OpenPostgres

type App struct {
	config  *config.Config
	logger  logging.Logger
	repos   repomanager.RepositoryManager
	issuer  *auth.Issuer
	handler http.Handler
	checks  []gs.ReadinessCheck
	closers []func() error
}

func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	app := &App{config: c, logger: logger}
	clock := timex.SystemClock{}

	repos, err := app.initRecordStore(ctx)
	if err != nil {
		return nil, err
	}
	app.repos = repos

	blobs, err := app.initBlobStore(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}

	sender, err := app.initNotifier(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}

	limiter := app.initLimiter(repos, clock)

	hasher, err := cryptox.NewPasscodeHasher([]byte(c.PasscodeSecret))
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("passcode hasher: %w", err)
	}
	app.issuer = auth.NewIssuer([]byte(c.JWTSecret), clock)

	lifecycle := services.NewLifecycleService(repos, blobs, c.Lifecycle(), clock, logger)
	passcodes := services.NewPasscodeService(repos, limiter, sender, hasher, c.Passcode(), clock, logger)
	invitations := services.NewInvitationService(repos, lifecycle, sender, c.Invitation(), clock, logger)
	gateway := services.NewGatewayService(lifecycle, passcodes, invitations, blobs, app.issuer, c.Gateway(), clock, logger)

	app.handler = httpapi.NewHandler(gateway, app.issuer, logger).Routes(c.CORSOrigins)
	app.checks = append(app.checks, repos, blobs)
	if rc, ok := limiter.(gs.ReadinessCheck); ok {
		app.checks = append(app.checks, rc)
	}

	logger.Info(ctx, "app initialized",
		"storage", repos.Name(),
		"blob_backend", blobs.Name(),
		"notifier", c.Notifier,
		"rate_limiter", limiter.Name(),
	)
	return app, nil
}

func (app *App) initRecordStore(ctx context.Context) (repomanager.RepositoryManager, error) {
	if app.config.Storage == "memory" {
		return repomanager.NewMemoryRepositoryManager(), nil
	}

	db, err := openPostgres(ctx, app.config.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	rm, err := repomanager.NewPostgresRepositoryManager(db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db init error: %w", err)
	}
	app.closers = append(app.closers, rm.Close)

	if err := rm.RunMigrations(ctx); err != nil {
		app.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return rm, nil
}

func (app *App) initBlobStore(ctx context.Context) (blobstore.Store, error) {
	switch app.config.BlobBackend {
	case "minio":
		return blobstore.NewMinioStore(app.config.Minio())
	default:
		return blobstore.NewS3Store(ctx, app.config.S3())
	}
}

func (app *App) initNotifier(ctx context.Context) (notify.Sender, error) {
	if app.config.Notifier == "sqs" {
		return notify.NewSQSSender(ctx, app.config.SQS(), app.logger)
	}
	return notify.NewConsoleSender(os.Stdout, app.logger), nil
}

func (app *App) initLimiter(repos repomanager.RepositoryManager, clock timex.Clock) ratelimit.Limiter {
	if app.config.RateLimiter != "redis" {
		return ratelimit.NewStoreLimiter(repos, app.config.RateLimit(), clock)
	}
	client := redis.NewClient(&redis.Options{
		Addr:     app.config.RedisAddr,
		Password: app.config.RedisPassword,
		DB:       app.config.RedisDB,
	})
	app.closers = append(app.closers, client.Close)
	return ratelimit.NewRedisLimiter(client, repos, app.config.RateLimit(), clock, app.logger)
}

// Handler is the HTTP API with all middleware applied.
func (app *App) Handler() http.Handler { return app.handler }

// OwnerToken mints an owner token; user management lives outside this
// server, so this is how development setups obtain one.
func (app *App) OwnerToken(userID string, ttl time.Duration) (string, error) {
	return app.issuer.OwnerToken(userID, ttl)
}

// Close releases store connections. It is safe to call more than once.
func (app *App) Close() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			app.logger.Warn(context.Background(), "close failed", "error", err)
		}
	}
	app.closers = nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()
	defer app.Close()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		s := httpapi.NewServer(app.config.HTTPAddr, app.handler, app.logger)
		if err := s.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s := gs.NewHealthServer(app.config.HealthAddr, app.logger, app.checks...)
		if err := s.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}()

	wg.Wait()
	app.logger.Info(ctx, "App stopped")
}
