package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the native user store's application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Log       LogConfig       `mapstructure:"log"`
	Lock      LockConfig      `mapstructure:"lock"`
	App       AppConfig       `mapstructure:"app"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	UserStore UserStoreConfig `mapstructure:"user_store"`
}

// ServerConfig holds the debug/health HTTP server configuration.
type ServerConfig struct {
	Port                    int           `mapstructure:"port"`
	Host                    string        `mapstructure:"host"`
	ReadTimeout             time.Duration `mapstructure:"read_timeout"`
	WriteTimeout            time.Duration `mapstructure:"write_timeout"`
	IdleTimeout             time.Duration `mapstructure:"idle_timeout"`
	GracefulShutdownTimeout time.Duration `mapstructure:"graceful_shutdown_timeout"`
}

// DatabaseConfig holds the backing document store's Postgres connection settings.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConnections  int           `mapstructure:"max_connections"`
	MinConnections  int           `mapstructure:"min_connections"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	QueryTimeout    time.Duration `mapstructure:"query_timeout"`
	URL             string        `mapstructure:"url"`
}

// RedisConfig holds the realm-cache purge client's Redis connection settings.
type RedisConfig struct {
	Addr            string        `mapstructure:"addr"`
	Password        string        `mapstructure:"password"`
	DB              int           `mapstructure:"db"`
	PoolSize        int           `mapstructure:"pool_size"`
	MinIdleConns    int           `mapstructure:"min_idle_conns"`
	DialTimeout     time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxRetries      int           `mapstructure:"max_retries"`
	MinRetryBackoff time.Duration `mapstructure:"min_retry_backoff"`
	MaxRetryBackoff time.Duration `mapstructure:"max_retry_backoff"`
}

// LogConfig holds logging-related configuration.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// LockConfig holds distributed-lock configuration, used to serialize the poller.
type LockConfig struct {
	TTL            time.Duration `mapstructure:"ttl"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryInterval  time.Duration `mapstructure:"retry_interval"`
	AcquireTimeout time.Duration `mapstructure:"acquire_timeout"`
	ReleaseTimeout time.Duration `mapstructure:"release_timeout"`
	ValuePrefix    string        `mapstructure:"value_prefix"`
}

// AppConfig holds application-identity configuration.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// MetricsConfig holds metrics-endpoint configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
	Port    int    `mapstructure:"port"`
}

// UserStoreConfig holds the native user store's own tunables (spec §6).
type UserStoreConfig struct {
	// IndexName is the backing document store index/table holding user records.
	IndexName string `mapstructure:"index_name"`

	// ScrollSize is the page size used by the poller's scrolled search.
	ScrollSize int `mapstructure:"scroll_size"`

	// ScrollKeepAlive is how long an idle scroll cursor is kept alive.
	ScrollKeepAlive time.Duration `mapstructure:"scroll_keep_alive"`

	// ReloadInterval is the delay between poller iterations, measured from
	// the completion of one iteration to the start of the next.
	ReloadInterval time.Duration `mapstructure:"reload_interval"`

	// GetTimeout bounds the blocking variant of GetUser/VerifyPassword.
	GetTimeout time.Duration `mapstructure:"get_timeout"`

	// BcryptCost is the hashing cost passed to the Hasher.
	BcryptCost int `mapstructure:"bcrypt_cost"`

	// ScanRateLimit caps sustained scroll-scan requests per second issued
	// against the backing document store.
	ScanRateLimit float64 `mapstructure:"scan_rate_limit"`

	// ScanRateBurst is the token-bucket burst allowance layered on top of
	// ScanRateLimit.
	ScanRateBurst int `mapstructure:"scan_rate_burst"`

	// ClusterWatch selects and configures how cluster readiness is probed.
	ClusterWatch ClusterWatchConfig `mapstructure:"cluster_watch"`
}

// ClusterWatchConfig selects between the static (single-node/dev) and
// Kubernetes StatefulSet-backed cluster readiness watchers.
type ClusterWatchConfig struct {
	// Mode is "static" or "kubernetes". Defaults to "static".
	Mode string `mapstructure:"mode"`

	Namespace          string        `mapstructure:"namespace"`
	StatefulSetName    string        `mapstructure:"statefulset_name"`
	MigrationConfigMap string        `mapstructure:"migration_config_map"`
	Timeout            time.Duration `mapstructure:"timeout"`
	MaxRetries         int           `mapstructure:"max_retries"`
	RetryBackoff       time.Duration `mapstructure:"retry_backoff"`
	MaxRetryBackoff    time.Duration `mapstructure:"max_retry_backoff"`

	// PollInterval is how often the server re-snapshots cluster readiness
	// and feeds it to Store.OnClusterChanged after startup.
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// LoadConfig loads configuration from a file (if present) and environment variables.
func LoadConfig(configPath string) (*Config, error) {
	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if configPath != "" {
		viper.SetConfigFile(configPath)
		viper.SetConfigType("yaml")

		if err := viper.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadConfigFromEnv loads configuration from environment variables only.
func LoadConfigFromEnv() (*Config, error) {
	return LoadConfig("")
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")
	viper.SetDefault("server.graceful_shutdown_timeout", "30s")

	viper.SetDefault("database.driver", "postgres")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.database", "userstore")
	viper.SetDefault("database.username", "userstore")
	viper.SetDefault("database.password", "userstore")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_connections", 25)
	viper.SetDefault("database.min_connections", 5)
	viper.SetDefault("database.max_conn_lifetime", "1h")
	viper.SetDefault("database.max_conn_idle_time", "30m")
	viper.SetDefault("database.connect_timeout", "10s")
	viper.SetDefault("database.query_timeout", "30s")

	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.pool_size", 10)
	viper.SetDefault("redis.min_idle_conns", 5)
	viper.SetDefault("redis.dial_timeout", "5s")
	viper.SetDefault("redis.read_timeout", "3s")
	viper.SetDefault("redis.write_timeout", "3s")
	viper.SetDefault("redis.max_retries", 3)
	viper.SetDefault("redis.min_retry_backoff", "100ms")
	viper.SetDefault("redis.max_retry_backoff", "500ms")

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")
	viper.SetDefault("log.output", "stdout")
	viper.SetDefault("log.filename", "")
	viper.SetDefault("log.max_size", 100)
	viper.SetDefault("log.max_backups", 3)
	viper.SetDefault("log.max_age", 28)
	viper.SetDefault("log.compress", true)

	viper.SetDefault("lock.ttl", "30s")
	viper.SetDefault("lock.max_retries", 3)
	viper.SetDefault("lock.retry_interval", "100ms")
	viper.SetDefault("lock.acquire_timeout", "5s")
	viper.SetDefault("lock.release_timeout", "2s")
	viper.SetDefault("lock.value_prefix", "userstore-poll")

	viper.SetDefault("app.name", "native-user-store")
	viper.SetDefault("app.version", "1.0.0")
	viper.SetDefault("app.environment", "development")
	viper.SetDefault("app.debug", false)

	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")
	viper.SetDefault("metrics.port", 8080)

	viper.SetDefault("user_store.index_name", "security-users")
	viper.SetDefault("user_store.scroll_size", 1000)
	viper.SetDefault("user_store.scroll_keep_alive", "10s")
	viper.SetDefault("user_store.reload_interval", "30s")
	viper.SetDefault("user_store.get_timeout", "30s")
	viper.SetDefault("user_store.bcrypt_cost", 10)
	viper.SetDefault("user_store.scan_rate_limit", 20.0)
	viper.SetDefault("user_store.scan_rate_burst", 5)

	viper.SetDefault("user_store.cluster_watch.mode", "static")
	viper.SetDefault("user_store.cluster_watch.timeout", "10s")
	viper.SetDefault("user_store.cluster_watch.max_retries", 3)
	viper.SetDefault("user_store.cluster_watch.retry_backoff", "100ms")
	viper.SetDefault("user_store.cluster_watch.max_retry_backoff", "5s")
	viper.SetDefault("user_store.cluster_watch.poll_interval", "15s")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Database.Driver == "" {
		return fmt.Errorf("database driver cannot be empty")
	}
	if c.Database.Host == "" {
		return fmt.Errorf("database host cannot be empty")
	}
	if c.Database.Database == "" {
		return fmt.Errorf("database name cannot be empty")
	}
	if c.Log.Level == "" {
		return fmt.Errorf("log level cannot be empty")
	}
	if c.App.Name == "" {
		return fmt.Errorf("app name cannot be empty")
	}
	if c.UserStore.IndexName == "" {
		return fmt.Errorf("user_store.index_name cannot be empty")
	}
	if c.UserStore.ScrollSize <= 0 {
		return fmt.Errorf("user_store.scroll_size must be positive")
	}
	if c.UserStore.ReloadInterval <= 0 {
		return fmt.Errorf("user_store.reload_interval must be positive")
	}
	if c.UserStore.GetTimeout <= 0 {
		return fmt.Errorf("user_store.get_timeout must be positive")
	}
	if c.UserStore.ScanRateLimit <= 0 {
		return fmt.Errorf("user_store.scan_rate_limit must be positive")
	}
	switch c.UserStore.ClusterWatch.Mode {
	case "", "static":
	case "kubernetes":
		if c.UserStore.ClusterWatch.StatefulSetName == "" {
			return fmt.Errorf("user_store.cluster_watch.statefulset_name is required in kubernetes mode")
		}
	default:
		return fmt.Errorf("invalid user_store.cluster_watch.mode: %s", c.UserStore.ClusterWatch.Mode)
	}
	return nil
}

// GetDatabaseURL constructs the database URL from configuration.
func (c *Config) GetDatabaseURL() string {
	if c.Database.URL != "" {
		return c.Database.URL
	}

	sslMode := c.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	return fmt.Sprintf("%s://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.Driver,
		c.Database.Username,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		sslMode,
	)
}

// IsDevelopment returns true if the application is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsProduction returns true if the application is running in production mode.
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDebug returns true if debug mode is enabled.
func (c *Config) IsDebug() bool {
	return c.App.Debug || c.IsDevelopment()
}
