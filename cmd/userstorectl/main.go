// Package main implements userstorectl, an operator CLI that opens a
// short-lived native user store connection against the configured backing
// store to run a single get/put/delete/verify operation. It is a
// convenience wrapper, not part of the store's own contract (spec §1 keeps
// higher-level authentication endpoints external to the core).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vitaliisemenov/native-user-store/internal/config"
	"github.com/vitaliisemenov/native-user-store/internal/database/postgres"
	"github.com/vitaliisemenov/native-user-store/internal/infrastructure/clusterwatch"
	"github.com/vitaliisemenov/native-user-store/internal/infrastructure/docstore"
	"github.com/vitaliisemenov/native-user-store/internal/infrastructure/hasher"
	"github.com/vitaliisemenov/native-user-store/internal/infrastructure/realmcache"
	"github.com/vitaliisemenov/native-user-store/internal/userstore"
)

var configPath string

func main() {
	if err := rootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "userstorectl",
		Short: "Operate on the native user store from the command line",
		Long:  "Open a short-lived store connection and run a single get/put/delete/verify operation.",
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML configuration file")

	root.AddCommand(
		getUserCommand(),
		putUserCommand(),
		deleteUserCommand(),
		verifyCommand(),
	)

	return root
}

// withStore loads configuration, wires a store against the same
// collaborators cmd/server uses, starts it, runs fn, and stops it again —
// every invocation is a fresh, short-lived lifecycle.
func withStore(fn func(ctx context.Context, store userstore.Store, h hasher.Hasher) error) error {
	ctx := context.Background()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
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

	return fn(ctx, store, h)
}

// newClusterWatcher mirrors cmd/server's watcher selection so the CLI
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

func getUserCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get-user <username>",
		Short: "Look up a single user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			username := args[0]
			return withStore(func(ctx context.Context, store userstore.Store, _ hasher.Hasher) error {
				user := store.GetUser(ctx, username)
				if user == nil {
					fmt.Printf("user %q not found\n", username)
					return nil
				}
				fmt.Printf("username: %s\nroles: %v\nfullName: %s\nemail: %s\n",
					user.Username, user.Roles, user.FullName, user.Email)
				return nil
			})
		},
	}
}

func putUserCommand() *cobra.Command {
	var roles []string
	var fullName, email, password string
	var refresh bool

	cmd := &cobra.Command{
		Use:   "put-user <username>",
		Short: "Create or update a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			username := args[0]
			if password == "" {
				return fmt.Errorf("--password is required")
			}

			return withStore(func(ctx context.Context, store userstore.Store, h hasher.Hasher) error {
				hash, err := h.Hash(password)
				if err != nil {
					return fmt.Errorf("hash password: %w", err)
				}

				err = store.Put(ctx, userstore.PutRequest{
					Username:     username,
					PasswordHash: hash,
					Roles:        roles,
					FullName:     fullName,
					Email:        email,
				}, refresh)
				if err != nil {
					return fmt.Errorf("put user %q: %w", username, err)
				}

				fmt.Printf("user %q saved\n", username)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&roles, "role", nil, "Role to assign (repeatable)")
	cmd.Flags().StringVar(&fullName, "full-name", "", "Full name")
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&password, "password", "", "Plaintext password to hash and store")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Request an immediate index refresh")

	return cmd
}

func deleteUserCommand() *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "delete-user <username>",
		Short: "Delete a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			username := args[0]
			return withStore(func(ctx context.Context, store userstore.Store, _ hasher.Hasher) error {
				found, err := store.Delete(ctx, username, refresh)
				if err != nil {
					return fmt.Errorf("delete user %q: %w", username, err)
				}
				if !found {
					fmt.Printf("user %q did not exist\n", username)
					return nil
				}
				fmt.Printf("user %q deleted\n", username)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "Request an immediate index refresh")
	return cmd
}

func verifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <username> <password>",
		Short: "Verify a username/password pair",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			username, password := args[0], args[1]
			return withStore(func(ctx context.Context, store userstore.Store, _ hasher.Hasher) error {
				user := store.VerifyPassword(ctx, username, password)
				if user == nil {
					fmt.Println("verification failed")
					os.Exit(1)
				}
				fmt.Printf("verified: %s (roles: %v)\n", user.Username, user.Roles)
				return nil
			})
		},
	}
}
