// Package main loads a YAML file of demo users into the native user store,
// for local development against a freshly migrated, empty backing store.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vitaliisemenov/native-user-store/internal/config"
	"github.com/vitaliisemenov/native-user-store/internal/database/postgres"
	"github.com/vitaliisemenov/native-user-store/internal/infrastructure/clusterwatch"
	"github.com/vitaliisemenov/native-user-store/internal/infrastructure/docstore"
	"github.com/vitaliisemenov/native-user-store/internal/infrastructure/hasher"
	"github.com/vitaliisemenov/native-user-store/internal/infrastructure/realmcache"
	"github.com/vitaliisemenov/native-user-store/internal/userstore"
)

// seedUser is one entry of the seed file. Password is plaintext here and
// hashed before it ever reaches the store — the seed file is a development
// convenience, never loaded in production.
type seedUser struct {
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	Roles    []string `yaml:"roles"`
	FullName string   `yaml:"full_name"`
	Email    string   `yaml:"email"`
}

type seedFile struct {
	Users []seedUser `yaml:"users"`
}

func main() {
	var configPath = flag.String("config", "", "Path to YAML configuration file")
	var seedPath = flag.String("file", "seed/users.yaml", "Path to the seed users YAML file")
	flag.Parse()

	if err := run(*configPath, *seedPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath, seedPath string) error {
	ctx := context.Background()
	log := slog.Default()

	raw, err := os.ReadFile(seedPath)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}

	var seed seedFile
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return fmt.Errorf("parse seed file: %w", err)
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

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
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	var client docstore.Client = docstore.NewPostgresClient(pool, log)
	client = docstore.NewRateLimitedClient(client, cfg.UserStore.ScanRateLimit, cfg.UserStore.ScanRateBurst)

	purger, err := realmcache.NewRedisPurger(&realmcache.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, log)
	if err != nil {
		return fmt.Errorf("connect to realm cache: %w", err)
	}
	defer purger.Close()

	h := hasher.New(cfg.UserStore.BcryptCost)

	store := userstore.NewStore(userstore.Config{
		IndexName:       cfg.UserStore.IndexName,
		ScrollSize:      cfg.UserStore.ScrollSize,
		ScrollKeepAlive: cfg.UserStore.ScrollKeepAlive,
		ReloadInterval:  cfg.UserStore.ReloadInterval,
		GetTimeout:      cfg.UserStore.GetTimeout,
	}, client, purger, h, nil, nil, log)

	watcher, err := newClusterWatcher(cfg, log)
	if err != nil {
		return fmt.Errorf("initialize cluster watcher: %w", err)
	}
	defer watcher.Close()

	snapshot, err := watcher.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("obtain cluster readiness snapshot: %w", err)
	}
	if !store.CanStart(snapshot, true) {
		return fmt.Errorf("store reports not ready to start")
	}
	store.OnClusterChanged(snapshot)
	if err := store.Start(ctx); err != nil {
		return fmt.Errorf("start store: %w", err)
	}
	defer store.Stop(ctx)

	for _, u := range seed.Users {
		hash, err := h.Hash(u.Password)
		if err != nil {
			return fmt.Errorf("hash password for %q: %w", u.Username, err)
		}

		err = store.Put(ctx, userstore.PutRequest{
			Username:     u.Username,
			PasswordHash: hash,
			Roles:        u.Roles,
			FullName:     u.FullName,
			Email:        u.Email,
		}, true)
		if err != nil {
			return fmt.Errorf("seed user %q: %w", u.Username, err)
		}
		log.Info("seeded user", "username", u.Username)
	}

	return nil
}

// newClusterWatcher mirrors cmd/server's watcher selection so seeding
// probes the same readiness source as the running service.
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
