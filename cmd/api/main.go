package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jogardn/safety-storefront/internal/auth"
	"github.com/jogardn/safety-storefront/internal/cache"
	"github.com/jogardn/safety-storefront/internal/cart"
	"github.com/jogardn/safety-storefront/internal/catalog"
	"github.com/jogardn/safety-storefront/internal/circuitbreaker"
	"github.com/jogardn/safety-storefront/internal/config"
	"github.com/jogardn/safety-storefront/internal/contact"
	"github.com/jogardn/safety-storefront/internal/content"
	"github.com/jogardn/safety-storefront/internal/database"
	"github.com/jogardn/safety-storefront/internal/events"
	"github.com/jogardn/safety-storefront/internal/httpapi"
	"github.com/jogardn/safety-storefront/internal/notify"
	"github.com/jogardn/safety-storefront/internal/orders"
	"github.com/jogardn/safety-storefront/internal/wishlist"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	logger.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewConnection(ctx, &cfg.Database, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	if err := database.Migrate(db, logger); err != nil {
		logger.WithError(err).Fatal("Failed to run migrations")
	}

	rs := httpapi.NewResponder(logger, cfg.Production())

	tokens := auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	authStore := auth.NewPostgresStore(db)
	authService := auth.NewService(authStore, tokens, logger)
	authenticator := auth.NewAuthenticator(tokens, authStore, rs)
	if cfg.Admin.Email != "" {
		if err := authService.EnsureAdmin(ctx, cfg.Admin.Name, cfg.Admin.Email, cfg.Admin.Password); err != nil {
			logger.WithError(err).Fatal("Failed to seed admin user")
		}
	}

	hub := notify.NewHub(authenticator, cfg.Server.CORSOrigin, cfg.Kafka.InstanceID, logger)
	go hub.Run(ctx)

	var (
		deliverer notify.Deliverer = hub
		relay     *events.Relay
	)
	if len(cfg.Kafka.Brokers) > 0 {
		relay, err = startRelay(ctx, cfg, hub, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to start Kafka relay")
		}
		defer relay.Close()
		deliverer = relay
	} else {
		logger.Info("Kafka brokers not configured - notifications delivered to local clients only")
	}

	notifyStore := notify.NewPostgresStore(db)
	bus := notify.NewBus(notifyStore, deliverer, logger)

	cacheStore := cache.Noop()
	if cfg.Redis.Addr != "" {
		client, err := cache.NewRedisClient(ctx, cfg.Redis.Addr)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to Redis")
		}
		defer client.Close()
		cacheStore = cache.NewRedisCache(client, "storefront")
		logger.WithField("addr", cfg.Redis.Addr).Info("Redis cache enabled")
	}
	loader := cache.NewLoader(cacheStore, cfg.Redis.TTL, logger)

	catalogService := catalog.NewService(catalog.NewPostgresStore(db), loader, logger)

	h := handlers{
		auth:     auth.NewHandler(authService, rs, logger, cfg.Auth.CookieSecure),
		catalog:  catalog.NewHandler(catalogService, rs, logger),
		content:  content.NewHandler(content.NewService(content.NewPostgresStore(db), loader, logger), rs),
		cart:     cart.NewHandler(cart.NewService(cart.NewPostgresStore(db), catalogService, logger), rs, logger),
		wishlist: wishlist.NewHandler(wishlist.NewService(wishlist.NewPostgresStore(db), catalogService, logger), rs),
		orders:   orders.NewHandler(orders.NewService(orders.NewPostgresStore(db), catalogService, bus, logger), rs, logger),
		contact:  contact.NewHandler(contact.NewService(contact.NewPostgresStore(db), bus, logger), rs),
		notify:   notify.NewHandler(notifyStore, rs, logger),
		hub:      hub,
		health:   healthCheck(db, relay),
	}
	router := newRouter(h, authenticator, rs, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      httpapi.CORSMiddleware(cfg.Server.CORSOrigin)(router),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.WithField("port", cfg.Server.Port).Info("Starting storefront API")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	<-ctx.Done()

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server gracefully stopped")
}

// startRelay publishes notifications through Kafka and feeds this
// instance's hub from its own consumer group.
func startRelay(ctx context.Context, cfg *config.Config, hub *notify.Hub, logger *logrus.Logger) (*events.Relay, error) {
	producer, err := events.NewSyncProducer(cfg.Kafka.Brokers)
	if err != nil {
		return nil, err
	}

	consumer, err := events.NewConsumer(cfg.Kafka.Brokers, "storefront-"+cfg.Kafka.InstanceID, cfg.Kafka.NotifyTopic, hub, logger)
	if err != nil {
		producer.Close()
		return nil, err
	}
	go func() {
		defer consumer.Close()
		if err := consumer.Start(ctx); err != nil {
			logger.WithError(err).Error("Kafka consumer stopped")
		}
	}()

	breaker := circuitbreaker.New(circuitbreaker.Config{
		Name:        "kafka-notify",
		MaxFailures: 5,
		Cooldown:    30 * time.Second,
	}, logger)

	logger.WithFields(logrus.Fields{
		"brokers": cfg.Kafka.Brokers,
		"topic":   cfg.Kafka.NotifyTopic,
	}).Info("Kafka notification relay enabled")

	return events.NewRelay(producer, cfg.Kafka.NotifyTopic, cfg.Kafka.InstanceID, breaker, hub, logger), nil
}

func healthCheck(db *sql.DB, relay *events.Relay) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := map[string]interface{}{
			"status":    "healthy",
			"service":   "storefront-api",
			"timestamp": time.Now().Format(time.RFC3339),
		}
		code := http.StatusOK

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			status["status"] = "unhealthy"
			status["database"] = err.Error()
			code = http.StatusServiceUnavailable
		} else {
			status["database"] = "ok"
		}

		if relay != nil {
			status["relay"] = relay.Stats()
		}

		writeJSON(w, code, status)
	}
}
