package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/Skotchmaster/souq/pkg/config"
	pkgdb "github.com/Skotchmaster/souq/pkg/db"
	"github.com/Skotchmaster/souq/pkg/logging"
	middleware "github.com/Skotchmaster/souq/pkg/middleware/auth"
	loggingmw "github.com/Skotchmaster/souq/pkg/middleware/logging"
	"github.com/Skotchmaster/souq/pkg/middleware/ratelimit"
	"github.com/Skotchmaster/souq/pkg/mykafka"

	"github.com/Skotchmaster/souq/services/storefront/internal/cache"
	storecfg "github.com/Skotchmaster/souq/services/storefront/internal/config"
	"github.com/Skotchmaster/souq/services/storefront/internal/httpserver"
	"github.com/Skotchmaster/souq/services/storefront/internal/notify"
	"github.com/Skotchmaster/souq/services/storefront/internal/repo"
	"github.com/Skotchmaster/souq/services/storefront/internal/search"
	"github.com/Skotchmaster/souq/services/storefront/internal/service"
)

func main() {
	config.LoadDotenv("services/storefront/.env", ".env")
	cfg := storecfg.Load()

	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	slog.SetDefault(logger)

	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("timezone: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := pkgdb.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		cancel()
		log.Fatalf("db open: %v", err)
	}
	store := &repo.GormRepo{DB: db}
	if err := store.Migrate(ctx); err != nil {
		cancel()
		log.Fatalf("db migrate: %v", err)
	}
	cancel()

	runCtx, stopRun := context.WithCancel(context.Background())
	defer stopRun()

	var sinks []notify.Sink
	var producer *mykafka.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer, err = mykafka.NewProducer(cfg.KafkaBrokers)
		if err != nil {
			log.Fatalf("kafka producer: %v", err)
		}
		sinks = append(sinks, notify.NewKafkaSink(producer))
	} else {
		logger.Warn("kafka_disabled", "reason", "KAFKA_BROKERS not set, order events go to the log")
		sinks = append(sinks, notify.LogSink{Log: logger})
	}
	hub := notify.NewHub(logger)
	sinks = append(sinks, hub)
	outbox := notify.NewOutbox(cfg.OutboxSize, logger, sinks...)

	delivery := &service.DeliveryService{Repo: store}
	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rdb, err := cache.Connect(ctx, cfg.RedisURL)
		cancel()
		if err != nil {
			logger.Warn("redis_disabled", "error", err)
		} else {
			defer rdb.Close()
			delivery.Cache = cache.NewZoneCache(rdb, logger)
		}
	}

	catalog := &service.CatalogService{Repo: store}
	if cfg.ESURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		es, err := search.NewClient(ctx, search.Config{URL: cfg.ESURL, User: cfg.ESUser, Password: cfg.ESPassword})
		cancel()
		if err != nil {
			logger.Warn("elasticsearch_disabled", "error", err)
		} else {
			catalog.Index = search.New(es, cfg.ESIndex)
		}
	}

	orders := &service.OrderService{
		Repo:              store,
		Delivery:          delivery,
		Events:            outbox,
		Location:          loc,
		LowStockThreshold: cfg.LowStockThreshold,
	}
	dashboard := &service.DashboardService{Repo: store, Location: loc}
	authSvc := &service.AuthService{
		Repo:          store,
		AccessSecret:  cfg.JWTAccessSecret,
		RefreshSecret: cfg.JWTRefreshSecret,
	}

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = httpserver.ErrorHandler(cfg.IsProduction())
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(loggingmw.RequestLogger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization, middleware.HeaderAdminSecret},
	}))

	httpserver.Register(e, &httpserver.Deps{
		Catalog:  &httpserver.CatalogHTTP{Svc: catalog},
		Delivery: &httpserver.DeliveryHTTP{Svc: delivery},
		Orders: &httpserver.OrderHTTP{
			Svc:       orders,
			Dashboard: dashboard,
			Hub:       hub,
			Upgrader:  websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
		},
		Auth:         &httpserver.AuthHTTP{Svc: authSvc},
		Bearer:       middleware.NewBearerAuth(cfg.JWTAccessSecret, cfg.AdminSecretHash),
		LoginLimiter: ratelimit.NewPerMinute(cfg.LoginRatePerMinute),
		Ready: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	})

	go hub.Run(runCtx)
	outboxDone := make(chan struct{})
	go func() {
		outbox.Run(runCtx)
		close(outboxDone)
	}()

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.ServerPort),
		Handler:           e,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
	}

	go func() {
		logger.Info("storefront_listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)

	stopRun()
	<-outboxDone
	if producer != nil {
		if err := producer.Close(); err != nil {
			logger.Error("kafka_close_failed", "error", err)
		}
	}
	_ = pkgdb.Close(db)

	logger.Info("storefront_stopped")
}
