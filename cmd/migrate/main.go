// Package main runs schema migrations for the native user store's
// Postgres-backed document store, outside of server startup.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/vitaliisemenov/native-user-store/internal/config"
	"github.com/vitaliisemenov/native-user-store/internal/database"
	"github.com/vitaliisemenov/native-user-store/internal/database/postgres"
)

func main() {
	var configPath = flag.String("config", "", "Path to YAML configuration file")
	var down = flag.Int("down", 0, "Roll back this many migrations instead of migrating up")
	var status = flag.Bool("status", false, "Print migration status instead of migrating")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := slog.Default()

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
	ctx := context.Background()
	if err := pool.Connect(ctx); err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	switch {
	case *status:
		err = database.GetMigrationStatus(ctx, pool, log)
	case *down > 0:
		err = database.RunMigrationsDown(ctx, pool, *down, log)
	default:
		err = database.RunMigrations(ctx, pool, log)
	}

	if err != nil {
		log.Error("migration command failed", "error", err)
		os.Exit(1)
	}
}
