// Package main is the entry point for the native user store server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vitaliisemenov/native-user-store/cmd/server/handlers"
	"github.com/vitaliisemenov/native-user-store/internal/config"
	"github.com/vitaliisemenov/native-user-store/internal/database"
	"github.com/vitaliisemenov/native-user-store/internal/database/postgres"
	"github.com/vitaliisemenov/native-user-store/internal/infrastructure/clusterwatch"
	"github.com/vitaliisemenov/native-user-store/internal/infrastructure/docstore"
	"github.com/vitaliisemenov/native-user-store/internal/infrastructure/hasher"
	"github.com/vitaliisemenov/native-user-store/internal/infrastructure/realmcache"
	"github.com/vitaliisemenov/native-user-store/internal/userstore"
	"github.com/vitaliisemenov/native-user-store/pkg/logger"
)

const serviceName = "native-user-store"

func main() {
	var configPath = flag.String("config", "", "Path to YAML configuration file")
	var showVersion = flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s version %s\n", serviceName, "1.0.0")
		os.Exit(0)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		Filename:   cfg.Log.Filename,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	})

	log.Info("starting native user store", "version", cfg.App.Version, "environment", cfg.App.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pgConfig := &postgres.PostgresConfig{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Database,
		User:     cfg.Database.Username,
		Password: cfg.Database.Password,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: int32(cfg.Database.MaxConnections),
		MinConns: int32(cfg.Database.MinConnections),
	}
	pool := postgres.NewPostgresPool(pgConfig, log)
	if err := pool.Connect(ctx); err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := database.RunMigrations(ctx, pool, log); err != nil {
		log.Error("failed to run database migrations", "error", err)
		os.Exit(1)
	}

	var client docstore.Client = docstore.NewPostgresClient(pool, log)
	client = docstore.NewRateLimitedClient(client, cfg.UserStore.ScanRateLimit, cfg.UserStore.ScanRateBurst)

	purgerCfg := &realmcache.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
	purger, err := realmcache.NewRedisPurger(purgerCfg, log)
	if err != nil {
		log.Error("failed to initialize realm cache purger", "error", err)
		os.Exit(1)
	}
	defer purger.Close()

	h := hasher.New(cfg.UserStore.BcryptCost)

	metr := userstore.NewMetrics(cfg.App.Name)

	store := userstore.NewStore(userstore.Config{
		IndexName:       cfg.UserStore.IndexName,
		ScrollSize:      cfg.UserStore.ScrollSize,
		ScrollKeepAlive: cfg.UserStore.ScrollKeepAlive,
		ReloadInterval:  cfg.UserStore.ReloadInterval,
		GetTimeout:      cfg.UserStore.GetTimeout,
	}, client, purger, h, nil, metr, log)

	watcher, err := newClusterWatcher(cfg, log)
	if err != nil {
		log.Error("failed to initialize cluster watcher", "error", err)
		os.Exit(1)
	}
	defer watcher.Close()

	snapshot, err := watcher.Snapshot(ctx)
	if err != nil {
		log.Error("failed to obtain cluster readiness snapshot", "error", err)
		os.Exit(1)
	}

	if !store.CanStart(snapshot, true) {
		log.Error("store reported not ready to start", "snapshot", snapshot)
		os.Exit(1)
	}
	store.OnClusterChanged(snapshot)
	if err := store.Start(ctx); err != nil {
		log.Error("failed to start store", "error", err)
		os.Exit(1)
	}

	go watchClusterReadiness(ctx, watcher, store, cfg.UserStore.ClusterWatch.PollInterval, log)

	feed := handlers.NewChangeFeed(store, log)

	router := mux.NewRouter()
	router.HandleFunc("/healthz", handlers.HealthHandler(store)).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/ws/changes", feed.ServeHTTP)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("http server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server failed", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}
	if err := store.Stop(shutdownCtx); err != nil {
		log.Error("store failed to stop cleanly", "error", err)
	}

	log.Info("shutdown complete")
}

// watchClusterReadiness re-polls the cluster watcher on a fixed interval
// and feeds each fresh snapshot to store.OnClusterChanged, so that primary
// shards going down (or coming back up) mid-run is reflected in indexReady
// rather than frozen at the boot-time snapshot (§4.1/§5's cluster-change
// dispatcher). Runs until ctx is cancelled.
func watchClusterReadiness(ctx context.Context, watcher clusterwatch.Watcher, store userstore.Store, interval time.Duration, log *slog.Logger) {
	if interval <= 0 {
		interval = 15 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snapshot, err := watcher.Snapshot(ctx)
			if err != nil {
				log.Warn("failed to refresh cluster readiness snapshot", "error", err)
				continue
			}
			store.OnClusterChanged(snapshot)
		}
	}
}

// newClusterWatcher builds the cluster readiness watcher selected by
// cfg.UserStore.ClusterWatch.Mode: "kubernetes" watches the backing
// StatefulSet for real multi-node deployments, "static" (the default)
// reports every clause ready for single-node/dev deployments.
func newClusterWatcher(cfg *config.Config, log *slog.Logger) (clusterwatch.Watcher, error) {
	cw := cfg.UserStore.ClusterWatch
	switch cw.Mode {
	case "", "static":
		return clusterwatch.NewStaticWatcher(), nil
	case "kubernetes":
		return clusterwatch.NewK8sWatcher(&clusterwatch.Config{
			Namespace:          cw.Namespace,
			StatefulSetName:    cw.StatefulSetName,
			MigrationConfigMap: cw.MigrationConfigMap,
			Timeout:            cw.Timeout,
			MaxRetries:         cw.MaxRetries,
			RetryBackoff:       cw.RetryBackoff,
			MaxRetryBackoff:    cw.MaxRetryBackoff,
			Logger:             log,
		})
	default:
		return nil, fmt.Errorf("unknown cluster watch mode: %s", cw.Mode)
	}
}
