package config

import (
	"fmt"
	"time"

	"github.com/sasachat/sasachat/internal/gateway"
	"github.com/sasachat/sasachat/internal/hub"
	"github.com/sasachat/sasachat/internal/registry"
	"github.com/sasachat/sasachat/internal/store"
	pkgconfig "github.com/sasachat/sasachat/pkg/config"
	"github.com/sasachat/sasachat/pkg/database"
	"github.com/sasachat/sasachat/pkg/log"
	"github.com/sasachat/sasachat/pkg/pubsub"
)

const envPrefix = "SASACHAT"

type Config struct {
	NodeID    int64                 `mapstructure:"node_id"`
	Server    ServerConfig          `mapstructure:"server"`
	WebSocket hub.Config            `mapstructure:"websocket"`
	Gateway   gateway.Config        `mapstructure:"gateway"`
	Database  database.Config       `mapstructure:"database"`
	Store     StoreConfig           `mapstructure:"store"`
	Cassandra store.CassandraConfig `mapstructure:"cassandra"`
	Redis     RedisConfig           `mapstructure:"redis"`
	Registry  RegistryConfig        `mapstructure:"registry"`
	Cache     CacheConfig           `mapstructure:"cache"`
	Bus       pubsub.Config         `mapstructure:"bus"`
	Auth      AuthConfig            `mapstructure:"auth"`
	Log       log.Config            `mapstructure:"log"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"` // request headers only
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StoreConfig selects the message store.
type StoreConfig struct {
	Driver    string `mapstructure:"driver"` // gorm, cassandra
	CheckRoom bool   `mapstructure:"check_room"`
}

// RedisConfig is the shared client used by the presence mirror and the
// history cache.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type RegistryConfig struct {
	Mirror bool                  `mapstructure:"mirror"`
	Redis  registry.MirrorConfig `mapstructure:"redis"`
}

type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Prefix  string        `mapstructure:"prefix"`
	TTL     time.Duration `mapstructure:"ttl"`
}

type AuthConfig struct {
	Secret     string        `mapstructure:"secret"`
	Issuer     string        `mapstructure:"issuer"`
	CookieName string        `mapstructure:"cookie_name"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
}

// Load reads config/config.yaml and SASACHAT_* environment variables.
func Load() (*Config, error) {
	v, err := pkgconfig.Load("./config", "config", envPrefix)
	if err != nil {
		return nil, err
	}

	v.SetDefault("node_id", 1)

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("websocket.read_buffer_size", 1024)
	v.SetDefault("websocket.write_buffer_size", 1024)
	v.SetDefault("websocket.max_message_size", 8192)
	v.SetDefault("websocket.ping_interval", "54s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.send_buffer", 256)
	v.SetDefault("websocket.rate_limit", 10)
	v.SetDefault("websocket.rate_burst", 20)
	v.SetDefault("websocket.allowed_origins", []string{})

	v.SetDefault("gateway.store_timeout", "10s")
	v.SetDefault("gateway.worker_idle_timeout", "1m")
	v.SetDefault("gateway.max_text_length", 1000)
	v.SetDefault("gateway.system_sender", "알림")
	v.SetDefault("gateway.history_limit", 0)
	v.SetDefault("gateway.queue_size", 256)

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.user", "root")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "sasachat")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.file_path", "sasachat.db")
	v.SetDefault("database.timezone", "Asia/Seoul")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("database.slow_threshold", "200ms")

	v.SetDefault("store.driver", "gorm")
	v.SetDefault("store.check_room", true)

	v.SetDefault("cassandra.hosts", []string{"localhost"})
	v.SetDefault("cassandra.keyspace", "sasachat")
	v.SetDefault("cassandra.consistency", "QUORUM")
	v.SetDefault("cassandra.connect_timeout", "10s")
	v.SetDefault("cassandra.timeout", "5s")

	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("registry.mirror", false)
	v.SetDefault("registry.redis.prefix", "chat:presence")
	v.SetDefault("registry.redis.key_ttl", "2m")
	v.SetDefault("registry.redis.heartbeat_interval", "40s")

	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.prefix", "chat:history")
	v.SetDefault("cache.ttl", "5m")

	v.SetDefault("bus.driver", "none")
	v.SetDefault("bus.redis.address", "localhost:6379")
	v.SetDefault("bus.kafka.brokers", "localhost:9092")
	v.SetDefault("bus.kafka.partitions", 8)

	v.SetDefault("auth.issuer", "sasachat")
	v.SetDefault("auth.cookie_name", "session")
	v.SetDefault("auth.token_ttl", "24h")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("log.service_name", "chat-server")

	// Keys without a default are invisible to Unmarshal unless bound.
	if err := pkgconfig.BindEnvs(v,
		"auth.secret",
		"bus.kafka.group_id",
		"bus.redis.password",
	); err != nil {
		return nil, err
	}
	// Conventional names used by container platforms.
	_ = v.BindEnv("server.port", envPrefix+"_SERVER_PORT", "PORT")
	_ = v.BindEnv("database.password", envPrefix+"_DATABASE_PASSWORD", "DB_PASSWORD")
	_ = v.BindEnv("auth.secret", envPrefix+"_AUTH_SECRET", "JWT_SECRET")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	if c.Auth.Secret == "" {
		return fmt.Errorf("auth.secret is required")
	}
	switch c.Store.Driver {
	case "gorm", "cassandra":
	default:
		return fmt.Errorf("unknown store.driver %q", c.Store.Driver)
	}
	if c.NodeID < 0 || c.NodeID > 1023 {
		return fmt.Errorf("node_id must be between 0 and 1023")
	}
	return nil
}
