// AngelaMos | 2026
// serve.go

package main

import (
	"context"
	"log/slog"
	"net"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/carterperez-dev/templates/account-service/internal/admin"
	"github.com/carterperez-dev/templates/account-service/internal/auth"
	"github.com/carterperez-dev/templates/account-service/internal/config"
	"github.com/carterperez-dev/templates/account-service/internal/core"
	"github.com/carterperez-dev/templates/account-service/internal/health"
	"github.com/carterperez-dev/templates/account-service/internal/mail"
	"github.com/carterperez-dev/templates/account-service/internal/middleware"
	"github.com/carterperez-dev/templates/account-service/internal/server"
	"github.com/carterperez-dev/templates/account-service/internal/storage"
	"github.com/carterperez-dev/templates/account-service/internal/user"
)

const (
	drainDelay = 5 * time.Second
)

func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the public API listener and, when enabled, the internal ops
listener serving /metrics and /stats.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(
				cmd.Context(),
				syscall.SIGINT,
				syscall.SIGTERM,
			)
			defer stop()

			return run(ctx, configFile)
		},
	}
}

type boundServer struct {
	srv *server.Server
	ln  net.Listener
}

// bindAll binds every listener before any of them serves, so readiness is
// only reported once all addresses are held. A nil server is skipped.
func bindAll(servers ...*server.Server) ([]boundServer, error) {
	bound := make([]boundServer, 0, len(servers))
	for _, srv := range servers {
		if srv == nil {
			continue
		}
		ln, err := srv.Listen()
		if err != nil {
			for _, b := range bound {
				//nolint:errcheck // unwinding after a failed bind
				_ = b.ln.Close()
			}
			return nil, err
		}
		bound = append(bound, boundServer{srv: srv, ln: ln})
	}
	return bound, nil
}

//nolint:funlen // bootstrap code is inherently verbose
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return oops.Code("CONFIG_INVALID").Wrap(err)
	}

	logger := setupLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	var telemetry *core.Telemetry
	if cfg.Otel.Enabled {
		tel, telErr := core.NewTelemetry(ctx, cfg.Otel, cfg.App)
		if telErr != nil {
			logger.Warn("failed to initialize telemetry", "error", telErr)
		} else {
			telemetry = tel
			logger.Info("OpenTelemetry tracer initialized",
				"endpoint", cfg.Otel.Endpoint,
			)
		}
	}

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	logger.Info("database connected",
		"max_open_conns", cfg.Database.MaxOpenConns,
		"max_idle_conns", cfg.Database.MaxIdleConns,
	)

	if cfg.Database.AutoMigrate {
		if err := migrateUp(cfg.Database.URL); err != nil {
			return err
		}
		logger.Info("database migrations applied")
	}

	redis, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	logger.Info("redis connected",
		"pool_size", cfg.Redis.PoolSize,
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	registry.MustRegister(db.Collector("accounts"))
	registry.MustRegister(redis.Collector())

	renderer, err := mail.NewRenderer(cfg.Mail.ProductName, cfg.Tokens.OpaqueExpire)
	if err != nil {
		return err
	}
	mailer := mail.New(cfg.Mail, renderer, logger)
	if cfg.Mail.SMTPHost == "" {
		logger.Warn("SMTP_HOST not set, emails are logged instead of sent")
	}

	uploader := storage.Disabled()
	if cfg.Storage.Bucket != "" {
		s3Uploader, err := storage.NewS3Uploader(ctx, cfg.Storage)
		if err != nil {
			return err
		}
		uploader = s3Uploader
		logger.Info("avatar storage configured",
			"bucket", cfg.Storage.Bucket,
			"endpoint", cfg.Storage.Endpoint,
		)
	} else {
		logger.Warn("S3_BUCKET not set, avatar uploads are disabled")
	}

	userRepo := user.NewRepository(db.DB)

	minter := auth.NewTokenMinter(cfg.Session, cfg.Tokens)
	sessions := auth.NewSessionIssuer(
		userRepo,
		minter,
		auth.NewRedisSessionCache(redis.Client),
		cfg.Session,
		cfg.IsProduction(),
		logger,
	)
	authSvc := auth.NewService(
		userRepo,
		auth.NewCredentials(logger),
		minter,
		sessions,
		mailer,
		uploader,
		auth.NewMetrics(registry),
		logger,
		auth.ServiceConfig{
			BaseURL:      cfg.App.BaseURL,
			AvatarFolder: cfg.Storage.AvatarFolder,
		},
	)
	authHandler := auth.NewHandler(authSvc, cfg.Storage.MaxUploadSize)

	healthHandler := health.NewHandler(
		health.Dependency{Name: "database", Checker: db},
		health.Dependency{Name: "redis", Checker: redis},
	)
	healthHandler.SetReady(false)

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Logger:        logger,
	})

	router := srv.Router()

	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Recoverer(logger))
	router.Use(middleware.NewHTTPMetrics(registry).Handler)
	router.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	router.Use(middleware.CORS(cfg.CORS))

	healthHandler.RegisterRoutes(router)

	authenticator := middleware.Authenticator(authSvc, sessions.CookieName())

	router.Route("/api/v1", func(r chi.Router) {
		healthHandler.RegisterAPIRoutes(r)
		authHandler.RegisterRoutes(r, authenticator)
	})

	var opsSrv *server.Server
	if cfg.Ops.Enabled {
		opsSrv = server.New(server.Config{
			ServerConfig: cfg.Server,
			Address:      cfg.Ops.Address,
			Logger:       logger.With("listener", "ops"),
		})
		opsRouter := opsSrv.Router()
		opsRouter.Use(middleware.Recoverer(logger))

		admin.NewHandler(admin.HandlerConfig{
			DBStats:    db.Stats,
			RedisStats: redis.PoolStats,
			DBPing:     db.Ping,
			RedisPing:  redis.Ping,
			Users:      userRepo,
			Gatherer:   registry,
		}).RegisterRoutes(opsRouter)
	}

	listeners, err := bindAll(srv, opsSrv)
	if err != nil {
		return err
	}

	errChan := make(chan error, len(listeners))
	for _, l := range listeners {
		go func() {
			errChan <- l.srv.Serve(l.ln)
		}()
	}
	healthHandler.SetReady(true)

	var serveErr error
	select {
	case serveErr = <-errChan:
		if serveErr != nil {
			logger.Error("listener failed", "error", serveErr)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.Server.ShutdownTimeout+drainDelay+5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx, drainDelay); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if opsSrv != nil {
		if err := opsSrv.Shutdown(shutdownCtx, 0); err != nil {
			logger.Error("ops server shutdown error", "error", err)
		}
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}

	if err := redis.Close(); err != nil {
		logger.Error("redis close error", "error", err)
	}

	if err := db.Close(); err != nil {
		logger.Error("database close error", "error", err)
	}

	logger.Info("application stopped")
	return serveErr
}
