package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/salonsuite/tenant-management-service/internal/api"
	"github.com/salonsuite/tenant-management-service/internal/config"
	"github.com/salonsuite/tenant-management-service/internal/crypto"
	"github.com/salonsuite/tenant-management-service/internal/event"
	"github.com/salonsuite/tenant-management-service/internal/monitoring"
	"github.com/salonsuite/tenant-management-service/internal/naming"
	"github.com/salonsuite/tenant-management-service/internal/router"
	"github.com/salonsuite/tenant-management-service/internal/service"
	"github.com/salonsuite/tenant-management-service/internal/store"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	var (
		configPath = flag.String("config", "", "Path to YAML config file")
		listenAddr = flag.String("listen", "", "Admin API listen address (overrides config)")
		dbURL      = flag.String("db-url", "", "Database server connection string (overrides config)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *listenAddr != "" {
		cfg.Server.ListenAddr = *listenAddr
	}
	if *dbURL != "" {
		cfg.Database.URL = *dbURL
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	scheme := naming.DefaultScheme()
	if cfg.Naming.CurrentPrefix != "" {
		scheme.CurrentPrefix = cfg.Naming.CurrentPrefix
	}
	if cfg.Naming.LegacyPrefix != "" {
		scheme.LegacyPrefix = cfg.Naming.LegacyPrefix
	}
	scheme.ControlPlane = cfg.Database.ControlPlane

	ctx := context.Background()

	server, err := router.NewPgServer(ctx, cfg.Database.URL, cfg.Database.ControlPlane)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database server")
	}
	defer server.Close()

	rtr := router.New(server)
	defer rtr.Close()

	controlHandle, err := rtr.Get(ctx, cfg.Database.ControlPlane)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open control-plane database")
	}

	var cache store.RedisClient
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		cache = rdb
	}

	var cipher *crypto.Cipher
	if key := os.Getenv("TENANT_ENCRYPTION_KEY"); key != "" {
		cipher, err = crypto.NewCipher([]byte(key))
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid TENANT_ENCRYPTION_KEY")
		}
	}

	var events event.Publisher
	if cfg.AMQP.URL != "" {
		publisher, err := event.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to message broker")
		}
		defer publisher.Close()
		events = publisher
	}

	repo := store.NewTenantRepository(controlHandle, cache, cipher)
	tenants := service.NewTenantService(repo, rtr, scheme, events)
	provisioning := service.NewProvisioningService(repo, rtr, scheme, events)

	monitoring.InitMetrics()

	apiRouter := mux.NewRouter()
	api.NewHandler(tenants, provisioning).Register(apiRouter)
	apiServer := &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      apiRouter,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.Server.ListenAddr).Msg("Admin API listening")
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Admin API server error")
		}
	}()

	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := controlHandle.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("control plane unreachable"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	healthMux.Handle("/metrics", promhttp.Handler())
	healthServer := &http.Server{Addr: cfg.Server.HealthAddr, Handler: healthMux}
	go func() {
		log.Info().Str("addr", cfg.Server.HealthAddr).Msg("Health and metrics listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("Health server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Admin API shutdown error")
	}
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Health server shutdown error")
	}
	log.Info().Msg("Server exiting")
}
