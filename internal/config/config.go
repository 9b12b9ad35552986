package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/weiawesome/wes-io-messenger/internal/media"
	pkgconfig "github.com/weiawesome/wes-io-messenger/pkg/config"
	"github.com/weiawesome/wes-io-messenger/pkg/database"
	"github.com/weiawesome/wes-io-messenger/pkg/log"
	"github.com/weiawesome/wes-io-messenger/pkg/pubsub"
	"github.com/weiawesome/wes-io-messenger/pkg/storage"
)

// Overflow policies for a client's outbound queue.
const (
	OverflowDisconnect = "disconnect"
	OverflowDropOldest = "drop_oldest"
)

type Config struct {
	Server    ServerConfig
	WebSocket WebSocketConfig
	Database  database.Config
	Storage   storage.Config
	Redis     RedisConfig
	Events    pubsub.Config
	Persist   PersistConfig
	Calls     CallsConfig
	Media     media.Config
	Log       log.Config
}

type ServerConfig struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxUploadSize   int64         `mapstructure:"max_upload_size"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type WebSocketConfig struct {
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	SendBuffer     int           `mapstructure:"send_buffer"`
	OverflowPolicy string        `mapstructure:"overflow_policy"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval"`
	RateLimit      float64       `mapstructure:"rate_limit"` // frames per second, 0 disables
	RateBurst      int           `mapstructure:"rate_burst"`
}

// RedisConfig configures the presence mirror. An empty address disables it.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	Prefix   string
	KeyTTL   time.Duration `mapstructure:"key_ttl"`
}

type PersistConfig struct {
	Workers   int
	QueueSize int           `mapstructure:"queue_size"`
	Timeout   time.Duration // per write; zero means no deadline
}

type CallsConfig struct {
	VerifyParticipants bool `mapstructure:"verify_participants"`
}

// ErrNoConfigFile is returned by Watch when there is no file to watch.
var ErrNoConfigFile = errors.New("no config file in use")

// Load reads ./config/config.yaml (optional) and MESSENGER_* environment overrides.
func Load() (*Config, error) {
	_, cfg, err := load()
	return cfg, err
}

// Watch calls fn with the re-decoded config every time the config file is
// written. Invalid edits are logged and skipped. Only settings that can change
// at runtime should be read from the new value.
func Watch(fn func(*Config)) error {
	v, _, err := load()
	if err != nil {
		return err
	}
	if v.ConfigFileUsed() == "" {
		return ErrNoConfigFile
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := decode(v)
		if err != nil {
			l := log.L()
			l.Warn().Err(err).Str("file", e.Name).Msg("ignoring invalid config change")
			return
		}
		fn(cfg)
	})
	v.WatchConfig()
	return nil
}

func load() (*viper.Viper, *Config, error) {
	v, err := pkgconfig.Load("./config", "config", "MESSENGER")
	if err != nil {
		return nil, nil, err
	}
	setDefaults(v)

	cfg, err := decode(v)
	if err != nil {
		return nil, nil, err
	}
	return v, cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.max_upload_size", 20<<20)
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 1<<20)
	v.SetDefault("websocket.send_buffer", 256)
	v.SetDefault("websocket.overflow_policy", OverflowDisconnect)
	v.SetDefault("websocket.idle_timeout", "5m")
	v.SetDefault("websocket.sweep_interval", "30s")
	v.SetDefault("websocket.rate_limit", 20)
	v.SetDefault("websocket.rate_burst", 40)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.file_path", "messenger.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", 30)
	v.SetDefault("database.log_level", "silent")
	v.SetDefault("storage.driver", "local")
	v.SetDefault("storage.local.base_path", "uploads")
	v.SetDefault("storage.local.url_prefix", "/uploads")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.prefix", "attachments")
	v.SetDefault("redis.address", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "messenger:presence")
	v.SetDefault("redis.key_ttl", "0s")
	v.SetDefault("events.driver", "none")
	v.SetDefault("events.prefix", "messenger")
	v.SetDefault("events.redis.address", "localhost:6379")
	v.SetDefault("events.redis.pool_size", 10)
	v.SetDefault("events.kafka.brokers", "localhost:9092")
	v.SetDefault("events.kafka.partitions", 4)
	v.SetDefault("persist.workers", 4)
	v.SetDefault("persist.queue_size", 1024)
	v.SetDefault("persist.timeout", "10s")
	v.SetDefault("calls.verify_participants", true)
	v.SetDefault("media.enabled", true)
	v.SetDefault("media.thumbnail_width", 320)
	v.SetDefault("media.thumbnail_height", 320)
	v.SetDefault("media.jpeg_quality", 80)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("log.service_name", "messenger")

	v.BindEnv("server.port", "PORT")
	v.BindEnv("database.driver", "DB_DRIVER")
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.port", "DB_PORT")
	v.BindEnv("database.user", "DB_USER")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("database.dbname", "DB_NAME")
	v.BindEnv("database.file_path", "DB_FILE_PATH")
	v.BindEnv("storage.driver", "STORAGE_DRIVER")
	v.BindEnv("storage.s3.endpoint", "S3_ENDPOINT")
	v.BindEnv("storage.s3.bucket", "S3_BUCKET")
	v.BindEnv("storage.s3.access_key_id", "S3_ACCESS_KEY_ID")
	v.BindEnv("storage.s3.secret_access_key", "S3_SECRET_ACCESS_KEY")
	v.BindEnv("redis.address", "REDIS_ADDRESS")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("events.driver", "EVENTS_DRIVER")
	v.BindEnv("events.kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("events.redis.address", "EVENTS_REDIS_ADDRESS")
	v.BindEnv("log.level", "LOG_LEVEL")
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.Server.ShutdownTimeout = pkgconfig.Duration(v, "server.shutdown_timeout", 10*time.Second)
	cfg.WebSocket.PingInterval = pkgconfig.Duration(v, "websocket.ping_interval", 30*time.Second)
	cfg.WebSocket.PongWait = pkgconfig.Duration(v, "websocket.pong_wait", 60*time.Second)
	cfg.WebSocket.WriteWait = pkgconfig.Duration(v, "websocket.write_wait", 10*time.Second)
	cfg.WebSocket.IdleTimeout = pkgconfig.Duration(v, "websocket.idle_timeout", 5*time.Minute)
	cfg.WebSocket.SweepInterval = pkgconfig.Duration(v, "websocket.sweep_interval", 30*time.Second)
	cfg.Redis.KeyTTL = pkgconfig.Duration(v, "redis.key_ttl", 0)
	cfg.Persist.Timeout = pkgconfig.Duration(v, "persist.timeout", 10*time.Second)
	cfg.Events.Redis.ReadTimeout = pkgconfig.Duration(v, "events.redis.read_timeout", 3*time.Second)
	cfg.Events.Redis.WriteTimeout = pkgconfig.Duration(v, "events.redis.write_timeout", 3*time.Second)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	switch c.WebSocket.OverflowPolicy {
	case OverflowDisconnect, OverflowDropOldest:
	default:
		return fmt.Errorf("invalid websocket.overflow_policy %q", c.WebSocket.OverflowPolicy)
	}
	switch c.Storage.Driver {
	case "", "local", "s3":
	default:
		return fmt.Errorf("invalid storage.driver %q", c.Storage.Driver)
	}
	switch c.Events.Driver {
	case "", "none", "redis", "kafka":
	default:
		return fmt.Errorf("invalid events.driver %q", c.Events.Driver)
	}
	switch c.Database.Driver {
	case "", "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("invalid database.driver %q", c.Database.Driver)
	}
	if c.WebSocket.SendBuffer <= 0 {
		return fmt.Errorf("websocket.send_buffer must be positive, got %d", c.WebSocket.SendBuffer)
	}
	if c.Persist.Workers <= 0 {
		return fmt.Errorf("persist.workers must be positive, got %d", c.Persist.Workers)
	}
	if c.Persist.QueueSize <= 0 {
		return fmt.Errorf("persist.queue_size must be positive, got %d", c.Persist.QueueSize)
	}
	if c.Persist.Timeout < 0 {
		return fmt.Errorf("persist.timeout must not be negative, got %v", c.Persist.Timeout)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	return nil
}
