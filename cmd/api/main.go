package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/bryanwahyu/profixion/internal/application"
	appaudits "github.com/bryanwahyu/profixion/internal/application/audits"
	appcontact "github.com/bryanwahyu/profixion/internal/application/contact"
	apppayments "github.com/bryanwahyu/profixion/internal/application/payments"
	appstats "github.com/bryanwahyu/profixion/internal/application/stats"
	"github.com/bryanwahyu/profixion/internal/config"
	"github.com/bryanwahyu/profixion/internal/domain/audits"
	"github.com/bryanwahyu/profixion/internal/domain/contact"
	"github.com/bryanwahyu/profixion/internal/domain/failures"
	"github.com/bryanwahyu/profixion/internal/domain/stats"
	aiopenai "github.com/bryanwahyu/profixion/internal/infra/ai/openai"
	"github.com/bryanwahyu/profixion/internal/infra/cache"
	"github.com/bryanwahyu/profixion/internal/infra/db/memory"
	mysqlp "github.com/bryanwahyu/profixion/internal/infra/db/mysql"
	"github.com/bryanwahyu/profixion/internal/infra/db/postgres"
	"github.com/bryanwahyu/profixion/internal/infra/httpserver"
	"github.com/bryanwahyu/profixion/internal/infra/notify"
	"github.com/bryanwahyu/profixion/internal/infra/notify/telegram"
	"github.com/bryanwahyu/profixion/internal/infra/payment/razorpay"
	"github.com/bryanwahyu/profixion/internal/infra/report"
	"github.com/bryanwahyu/profixion/internal/infra/scraper/brightdata"
	"github.com/bryanwahyu/profixion/internal/infra/storage"
	"github.com/bryanwahyu/profixion/internal/middleware"
)

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	// load config
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Log.Development {
		zc = zap.NewDevelopmentConfig()
	}
	level, err := zapcore.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

type stores struct {
	audits   audits.Repository
	failures failures.Repository
	db       *sql.DB
}

func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (stores, error) {
	switch cfg.Database.Driver {
	case "postgres":
		db, err := postgres.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			return stores{}, fmt.Errorf("postgres connect: %w", err)
		}
		if err := postgres.Migrate(db, logger); err != nil {
			db.Close()
			return stores{}, err
		}
		return stores{postgres.NewAuditRepository(db), postgres.NewFailureRepository(db), db}, nil
	case "mysql":
		db, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			return stores{}, fmt.Errorf("mysql connect: %w", err)
		}
		if err := mysqlp.Migrate(db, logger); err != nil {
			db.Close()
			return stores{}, err
		}
		return stores{mysqlp.NewAuditRepository(db), mysqlp.NewFailureRepository(db), db}, nil
	default:
		logger.Warn("using in-memory store; audits are lost on restart")
		return stores{audits: memory.NewAuditRepository(), failures: memory.NewFailureRepository()}, nil
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx := context.Background()
	checkers := map[string]middleware.HealthChecker{}

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if st.db != nil {
		defer st.db.Close()
		checkers["database"] = &middleware.DatabaseHealthChecker{DB: st.db}
	}

	// report storage
	var documents audits.DocumentStore
	filesDir := ""
	switch cfg.Storage.Driver {
	case "minio":
		store, err := storage.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
			cfg.Storage.Expiry,
		)
		if err != nil {
			return fmt.Errorf("minio init: %w", err)
		}
		documents = store
		checkers["storage"] = store
	default:
		filesDir = cfg.Storage.Dir
		documents = storage.DirStore{Root: filesDir, BaseURL: cfg.Server.BaseURL + "/files"}
	}

	// pdf renderer
	var renderer audits.Renderer = report.Unavailable{Err: errors.New("pdf rendering is disabled")}
	if cfg.Report.PDF {
		pdf, err := report.NewPDFRenderer()
		if err != nil {
			logger.Warn("pdf renderer unavailable", zap.Error(err))
			renderer = report.Unavailable{Err: err}
		} else {
			defer pdf.Close()
			renderer = pdf
		}
	}

	// visit counter
	var counter stats.Counter = cache.NewMemoryCounter()
	if cfg.Redis.URL != "" {
		rdb, err := cache.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("redis connect: %w", err)
		}
		defer rdb.Close()
		counter = cache.NewRedisCounter(rdb)
		checkers["redis"] = cache.HealthChecker{Client: rdb}
	}

	// contact notifier
	var notifier contact.Notifier = notify.LogNotifier{Logger: logger.Named("contact")}
	if cfg.Telegram.Token != "" {
		bot, err := telegram.NewNotifier(cfg.Telegram.Token, cfg.Telegram.ChatID)
		if err != nil {
			return fmt.Errorf("telegram init: %w", err)
		}
		notifier = bot
	}

	scraper := brightdata.NewClient(cfg.Scraper.Token, cfg.Scraper.DatasetID, cfg.Audit.WebhookSecret)
	if cfg.Scraper.BaseURL != "" {
		scraper.BaseURL = cfg.Scraper.BaseURL
	}
	scraper.HTTP.Timeout = cfg.Audit.CollaboratorTimeout

	clock := application.SystemClock{}
	metrics := middleware.NewMetrics()

	auditSvc := &appaudits.Service{
		Repo:      st.audits,
		Scraper:   scraper,
		Analyzer:  aiopenai.NewClient(cfg.AI.APIKey, cfg.AI.BaseURL, cfg.AI.Model),
		Failures:  st.failures,
		Renderer:  renderer,
		Documents: documents,
		Clock:     clock,
		Events:    metrics,
		Logger:    logger.Named("audits"),
		Config: appaudits.Config{
			CallbackURL:         cfg.Audit.CallbackURL,
			AllowedHosts:        cfg.Audit.AllowedHosts,
			CollaboratorTimeout: cfg.Audit.CollaboratorTimeout,
			CompletionLease:     cfg.Audit.CompletionLease,
			RequirePayment:      cfg.Payment.Required,
		},
	}

	services := httpserver.Services{
		Audits:  auditSvc,
		Contact: &appcontact.Service{Notifier: notifier, Clock: clock, Logger: logger.Named("contact")},
		Stats:   &appstats.Service{Counter: counter},
	}
	if cfg.PaymentsEnabled() {
		gateway := razorpay.NewGateway(cfg.Payment.KeyID, cfg.Payment.KeySecret)
		auditSvc.Payments = gateway
		services.Payments = &apppayments.Service{
			Gateway:  gateway,
			Currency: cfg.Payment.Currency,
			Clock:    clock,
			Logger:   logger.Named("payments"),
		}
	} else {
		logger.Info("payment routes disabled; razorpay credentials not set")
	}

	var limiter *middleware.RateLimiter
	if cfg.Server.RateLimit.Capacity > 0 {
		limiter = middleware.NewRateLimiter(cfg.Server.RateLimit.Capacity, cfg.Server.RateLimit.RefillPerSecond)
		defer limiter.Close()
	}

	handler := httpserver.NewRouter(services, httpserver.Options{
		Logger:         logger,
		Metrics:        metrics,
		HealthCheckers: checkers,
		WebhookSecret:  cfg.Audit.WebhookSecret,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RateLimiter:    limiter,
		FilesDir:       filesDir,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// run server
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			zap.String("addr", addr),
			zap.String("database", cfg.Database.Driver),
			zap.String("storage", cfg.Storage.Driver),
			zap.String("callback_url", cfg.Audit.CallbackURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-stop:
	}
	logger.Info("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(ctx2)
}
