package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/config"
	"github.com/Skotchmaster/storefront/internal/db"
	"github.com/Skotchmaster/storefront/internal/es"
	"github.com/Skotchmaster/storefront/internal/handlers"
	"github.com/Skotchmaster/storefront/internal/hash"
	"github.com/Skotchmaster/storefront/internal/jobs"
	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/metrics"
	mwauth "github.com/Skotchmaster/storefront/internal/middleware/auth"
	"github.com/Skotchmaster/storefront/internal/mykafka"
	"github.com/Skotchmaster/storefront/internal/notify"
	"github.com/Skotchmaster/storefront/internal/repo"
	authsvc "github.com/Skotchmaster/storefront/internal/service/auth"
	"github.com/Skotchmaster/storefront/internal/service/cart"
	"github.com/Skotchmaster/storefront/internal/service/catalog"
	"github.com/Skotchmaster/storefront/internal/service/order"
	"github.com/Skotchmaster/storefront/internal/service/search"
	"github.com/Skotchmaster/storefront/internal/tokens"
	httpserver "github.com/Skotchmaster/storefront/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gdb, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	if err := db.Migrate(ctx, gdb); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	store := repo.New(gdb)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	events, closeEvents := newPublisher(ctx, cfg, logger)

	verifier := &tokens.Verifier{
		Issuer: &tokens.Issuer{
			AccessSecret:  cfg.JWTSecret,
			RefreshSecret: cfg.RefreshSecret,
			AccessTTL:     cfg.AccessTTL,
			RefreshTTL:    cfg.RefreshTTL,
		},
		Ledger: store,
	}
	auth := &authsvc.Service{
		Users:   store,
		Tokens:  verifier,
		Reset:   tokens.NewResetCodec(cfg.SecretKey),
		Hasher:  hash.Bcrypt{},
		Mailer:  newMailer(cfg, logger),
		Events:  events,
		Metrics: m,
		Opts: authsvc.Options{
			ResetMaxAge:  cfg.ResetMaxAge,
			ResetURLBase: cfg.ResetURLBase,
			MailTimeout:  cfg.Mail.Timeout,
			AdminEmail:   cfg.BootstrapAdminEmail,
		},
	}

	catalogSvc := &catalog.Service{Repo: store, Events: events}
	searchSvc := &search.Service{Fallback: search.SearchFunc(store.SearchProducts)}
	if cfg.ESURL != "" {
		client, err := es.NewClient(ctx, es.Config{URL: cfg.ESURL, User: cfg.ESUser, Password: cfg.ESPassword}, logger)
		if err != nil {
			log.Fatalf("elasticsearch: %v", err)
		}
		idx := search.NewProductIndex(client, cfg.ESIndex)
		catalogSvc.Index = idx
		searchSvc.Index = idx
	}

	e := httpserver.New(logger, &httpserver.Deps{
		AuthHandler:    &handlers.AuthHandler{Svc: auth},
		UserHandler:    &handlers.UserHandler{Svc: auth},
		ProductHandler: &handlers.ProductHandler{Svc: catalogSvc},
		SearchHandler:  &handlers.SearchHandler{Svc: searchSvc},
		CartHandler:    &handlers.CartHandler{Svc: &cart.CartService{Repo: store, Events: events}},
		OrderHandler:   &handlers.OrderHandler{Svc: &order.OrderService{Repo: store, Events: events}},
		TokenAuth:      &mwauth.TokenAuth{Svc: auth},
		Metrics:        m,
		Ready:          func(ctx context.Context) error { return db.Ping(ctx, gdb) },
	})

	scheduler := cron.New()
	purger := &jobs.RevocationPurger{Store: store, Metrics: m, Logger: logger.With("job", "revocation_purge")}
	if err := purger.Schedule(scheduler, cfg.PurgeSchedule); err != nil {
		log.Fatal(err)
	}
	scheduler.Start()

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Info("http server listening", "addr", cfg.HTTPAddr, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	stop()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	<-scheduler.Stop().Done()
	closeEvents()
	closeDB(gdb, logger)

	logger.Info("shutdown complete")
}

func newMailer(cfg *config.Config, logger *slog.Logger) notify.Mailer {
	if cfg.Mail.Host == "" {
		logger.Warn("MAIL_HOST not set, reset emails are only logged")
		return &notify.LogMailer{Logger: logger.With("component", "mailer")}
	}
	return &notify.SMTPMailer{
		Host:     cfg.Mail.Host,
		Port:     cfg.Mail.Port,
		Username: cfg.Mail.Username,
		Password: cfg.Mail.Password,
		From:     cfg.Mail.From,
		UseTLS:   cfg.Mail.UseTLS,
		Logger:   logger.With("component", "mailer"),
	}
}

func newPublisher(ctx context.Context, cfg *config.Config, logger *slog.Logger) (mykafka.Publisher, func()) {
	if len(cfg.KafkaBrokers) == 0 {
		logger.Warn("KAFKA_BROKERS not set, domain events are dropped")
		return mykafka.Nop{}, func() {}
	}

	topicCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := mykafka.EnsureTopics(topicCtx, cfg.KafkaBrokers[0], mykafka.Topics...); err != nil {
		logger.Warn("kafka topic setup failed", "error", err)
	}

	prod, err := mykafka.NewProducer(cfg.KafkaBrokers, mykafka.Topics)
	if err != nil {
		log.Fatalf("kafka: %v", err)
	}
	return prod, func() {
		if err := prod.Close(); err != nil {
			logger.Error("kafka close error", "error", err)
		}
	}
}

func closeDB(gdb *gorm.DB, logger *slog.Logger) {
	if err := db.Close(gdb); err != nil {
		logger.Error("db close error", "error", err)
	}
}
