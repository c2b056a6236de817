package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/car-rental/internal/auth"
	"github.com/ukydev/car-rental/internal/config"
	"github.com/ukydev/car-rental/internal/db"
	"github.com/ukydev/car-rental/internal/events"
	"github.com/ukydev/car-rental/internal/handlers"
	"github.com/ukydev/car-rental/internal/lifecycle"
	"github.com/ukydev/car-rental/internal/metrics"
	"github.com/ukydev/car-rental/internal/middleware"
)

// Collections holding the two record kinds.
const (
	reservationsCollection = "reservations"
	maintenanceCollection  = "maintenance"
)

// server bundles what the router needs.
type server struct {
	reservations *lifecycle.Controller
	maintenance  *lifecycle.Controller
	auth         *handlers.AuthHandler
	authMW       *middleware.AuthMiddleware
	limiter      *middleware.RateLimitMiddleware
	rateLimit    int
	trustProxy   bool
	storeTimeout time.Duration
	ping         func(context.Context) error
	gatherer     prometheus.Gatherer
	logger       *log.Entry
}

func newRouter(s server) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	if s.trustProxy {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(middleware.RequestLogger(s.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(s.authMW.Authenticate)

	r.Get("/health", handlers.Health(s.ping))
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Mount("/api/auth", s.auth.Routes(s.limiter.RateLimit(s.rateLimit, time.Minute)))
	r.Mount("/api/reservations", handlers.NewRecordHandler(s.reservations, s.storeTimeout).Routes(s.authMW.RequirePermission))
	r.Mount("/api/maintenance", handlers.NewRecordHandler(s.maintenance, s.storeTimeout).Routes(s.authMW.RequirePermission))
	return r
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Invalid configuration")
	}

	log.SetFormatter(&log.JSONFormatter{})
	log.SetLevel(cfg.LogLevel)
	logger := log.WithField("component", "api")

	ctx := context.Background()
	client, err := db.ConnectMongo(ctx, cfg.MongoURI)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to MongoDB")
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			logger.WithError(err).Warn("MongoDB disconnect failed")
		}
	}()
	logger.WithField("database", cfg.MongoDB).Info("Connected to MongoDB")

	database := client.Database(cfg.MongoDB)
	for _, name := range []string{reservationsCollection, maintenanceCollection} {
		if err := db.EnsureRecordIndexes(ctx, database.Collection(name)); err != nil {
			logger.WithError(err).WithField("collection", name).Warn("Failed to create indexes")
		}
	}
	if err := db.EnsureUserIndexes(ctx, database.Collection("users")); err != nil {
		logger.WithError(err).Warn("Failed to create user indexes")
	}

	var publisher events.Publisher = events.Discard{}
	if cfg.MQTTBroker != "" {
		mqttPublisher, err := events.NewMQTTPublisher(events.MQTTConfig{
			Broker:      cfg.MQTTBroker,
			ClientID:    cfg.MQTTClientID,
			TopicPrefix: cfg.MQTTTopicPrefix,
			QoS:         1,
			Timeout:     5 * time.Second,
		})
		if err != nil {
			logger.WithError(err).Warn("MQTT unavailable, lifecycle events disabled")
		} else {
			publisher = mqttPublisher
			defer mqttPublisher.Close()
			logger.WithField("broker", cfg.MQTTBroker).Info("Publishing lifecycle events")
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recordMetrics := metrics.New(registry)

	authService, err := auth.NewService(cfg.JWTSecret, cfg.JWTExpiry, cfg.CodeTTL)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create auth service")
	}
	if authService.UsesDefaultSecret() {
		logger.Warn("JWT_SECRET is not set, using the development key")
	}

	vehicles := &db.MongoVehicleCollection{Collection: database.Collection("vehicles")}
	controller := func(name string) *lifecycle.Controller {
		return lifecycle.NewController(
			&db.MongoRecordCollection{Collection: database.Collection(name)},
			vehicles,
			lifecycle.Options{
				Collection: name,
				Policy:     cfg.StatusPolicy,
				Publisher:  publisher,
				Metrics:    recordMetrics,
				Logger:     log.WithField("component", "lifecycle"),
			},
		)
	}

	router := newRouter(server{
		reservations: controller(reservationsCollection),
		maintenance:  controller(maintenanceCollection),
		auth: handlers.NewAuthHandler(authService,
			&db.MongoUserCollection{Collection: database.Collection("users")}, nil),
		authMW:       middleware.NewAuthMiddleware(authService),
		limiter:      middleware.NewRateLimitMiddleware(),
		rateLimit:    cfg.AuthRateLimit,
		trustProxy:   cfg.TrustProxy,
		storeTimeout: cfg.StoreTimeout,
		ping:         func(ctx context.Context) error { return client.Ping(ctx, nil) },
		gatherer:     registry,
		logger:       log.WithField("component", "http"),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.WithFields(log.Fields{"addr": srv.Addr, "status_policy": cfg.StatusPolicy}).Info("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("HTTP server failed")
		}
	}()

	<-stop
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Shutdown error")
	}
	logger.Info("Server stopped")
}
