package realmcache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config configures a RedisPurger.
type Config struct {
	Addr         string        `env:"REALM_CACHE_REDIS_ADDR" envDefault:"localhost:6379"`
	Password     string        `env:"REALM_CACHE_REDIS_PASSWORD" envDefault:""`
	DB           int           `env:"REALM_CACHE_REDIS_DB" envDefault:"0"`
	Channel      string        `env:"REALM_CACHE_CHANNEL" envDefault:"realm-cache:invalidate"`
	DialTimeout  time.Duration `env:"REALM_CACHE_DIAL_TIMEOUT" envDefault:"5s"`
	WriteTimeout time.Duration `env:"REALM_CACHE_WRITE_TIMEOUT" envDefault:"3s"`
}

func (c *Config) withDefaults() *Config {
	out := *c
	if out.Channel == "" {
		out.Channel = "realm-cache:invalidate"
	}
	if out.DialTimeout == 0 {
		out.DialTimeout = 5 * time.Second
	}
	if out.WriteTimeout == 0 {
		out.WriteTimeout = 3 * time.Second
	}
	return &out
}

// RedisPurger clears the realm cache by publishing the changed usernames to
// a Redis pub/sub channel; every realm instance subscribed to it drops its
// local copy of those entries. This mirrors the fire-and-forget purge model
// described in §4.7 — a lost subscriber just serves stale data until its own
// cache entry expires, it does not block the mutation path.
type RedisPurger struct {
	client  *redis.Client
	channel string
	timeout time.Duration
	logger  *slog.Logger
}

// NewRedisPurger dials Redis and verifies connectivity with a Ping before
// returning, the same construct-time liveness check the rest of this
// codebase's Redis clients use.
func NewRedisPurger(cfg *Config, logger *slog.Logger) (*RedisPurger, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", ErrInvalidConfig)
	}
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, ErrConnectionFailed.WithCause(err)
	}

	return &RedisPurger{
		client:  client,
		channel: cfg.Channel,
		timeout: cfg.WriteTimeout,
		logger:  logger.With("component", "realmcache"),
	}, nil
}

// NewRedisPurgerFromClient wraps an already-constructed client, for callers
// that share one redis.Client across multiple collaborators.
func NewRedisPurgerFromClient(client *redis.Client, channel string, timeout time.Duration) *RedisPurger {
	if channel == "" {
		channel = "realm-cache:invalidate"
	}
	if timeout == 0 {
		timeout = 3 * time.Second
	}
	return &RedisPurger{client: client, channel: channel, timeout: timeout, logger: slog.Default().With("component", "realmcache")}
}

// ClearRealmCache publishes the changed usernames as a single message. An
// empty slice is a no-op; nothing is published for a no-op delta.
func (p *RedisPurger) ClearRealmCache(ctx context.Context, usernames []string) error {
	if len(usernames) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	payload, err := encodePurgeMessage(usernames)
	if err != nil {
		return fmt.Errorf("realmcache: encode purge message: %w", err)
	}

	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("realmcache: publish to %q: %w", p.channel, err)
	}

	// Best-effort: drop this node's own tombstone keys too, so a local
	// reader hitting the same process doesn't wait on its own pub/sub
	// round trip. A failure here is not surfaced — per §6 a purge is
	// judged successful once the broadcast has gone out.
	keys := make([]string, len(usernames))
	for i, u := range usernames {
		keys[i] = tombstoneKey(u)
	}
	if err := p.client.Del(ctx, keys...).Err(); err != nil {
		p.logger.Warn("failed to delete local tombstone keys", "error", err)
	}

	p.logger.Debug("published realm cache invalidation", "channel", p.channel, "count", len(usernames))
	return nil
}

// Close releases the underlying Redis connection.
func (p *RedisPurger) Close() error {
	return p.client.Close()
}
