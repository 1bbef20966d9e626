package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Port      string   `yaml:"port" env:"PORT" env-default:"8083"`
	JWTSecret string   `yaml:"jwt_secret" env:"JWT_SECRET" env-required:"true"`
	Database  Database `yaml:"database"`
	Redis     Redis    `yaml:"redis"`
	Kafka     Kafka    `yaml:"kafka"`
	Worker    Worker   `yaml:"worker"`
	Cache     Cache    `yaml:"cache"`
	Engine    Engine   `yaml:"engine"`
	Log       Log      `yaml:"log"`
}

type Worker struct {
	MaxWorkers int `yaml:"max_workers" env:"WORKER_MAX_WORKERS" env-default:"8"`

	// MaxRedeliveries caps how often a failed purge goes back on the topic.
	MaxRedeliveries int `yaml:"max_redeliveries" env:"WORKER_MAX_REDELIVERIES" env-default:"5"`
}

type Database struct {
	// Driver selects the inventory store: "postgres" or "memory".
	Driver       string `yaml:"driver" env:"DB_DRIVER" env-default:"postgres"`
	User         string `yaml:"user" env:"DB_USER" env-default:"postgres"`
	Password     string `yaml:"password" env:"DB_PASSWORD" env-default:""`
	DatabaseName string `yaml:"database_name" env:"DB_NAME" env-default:"eventbooking"`
	Host         string `yaml:"host" env:"DB_HOST" env-default:"localhost"`
	Port         string `yaml:"port" env:"DB_PORT" env-default:"5432"`
	SSLMode      string `yaml:"ssl_mode" env:"DB_SSL_MODE" env-default:"disable"`

	// Connection Pool Settings
	MaxOpenConns    int `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	MaxIdleConns    int `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	ConnMaxLifetime int `yaml:"conn_max_lifetime_minutes" env:"DB_CONN_MAX_LIFETIME" env-default:"30"`
}

func (d *Database) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DatabaseName, d.SSLMode)
}

type Redis struct {
	Host      string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port      string `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password  string `yaml:"password" env:"REDIS_PASSWORD" env-default:""`
	DB        int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
	KeyPrefix string `yaml:"key_prefix" env:"REDIS_KEY_PREFIX" env-default:"eventbooking:"`
}

func (r *Redis) GetRedisURL() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

type Kafka struct {
	Brokers       []string `yaml:"brokers" env:"KAFKA_BROKERS" env-default:"localhost:9092" env-separator:","`
	PurgeTopic    string   `yaml:"purge_topic" env:"KAFKA_PURGE_TOPIC" env-default:"cache-purge-retry"`
	ConsumerGroup string   `yaml:"consumer_group" env:"KAFKA_CONSUMER_GROUP" env-default:"cache-purge-worker"`

	// Enabled turns on publishing of failed purges. The API runs fine without a broker.
	Enabled bool `yaml:"enabled" env:"KAFKA_ENABLED" env-default:"false"`
}

// Cache holds TTL classes and purge tuning.
type Cache struct {
	ListTTL                  time.Duration `yaml:"list_ttl" env:"CACHE_LIST_TTL" env-default:"5m"`
	EventTTL                 time.Duration `yaml:"event_ttl" env:"CACHE_EVENT_TTL" env-default:"30m"`
	CatalogTTL               time.Duration `yaml:"catalog_ttl" env:"CACHE_CATALOG_TTL" env-default:"10m"`
	// PurgeTimeout bounds each purge attempt. Unless AsyncPurge is set the first
	// attempt runs inline after commit, so a hung Redis adds up to this much
	// latency to every write response.
	PurgeTimeout             time.Duration `yaml:"purge_timeout" env:"CACHE_PURGE_TIMEOUT" env-default:"500ms"`
	PurgeAttempts            int           `yaml:"purge_attempts" env:"CACHE_PURGE_ATTEMPTS" env-default:"3"`
	PurgeBackoff             time.Duration `yaml:"purge_backoff" env:"CACHE_PURGE_BACKOFF" env-default:"100ms"`
	AsyncPurge               bool          `yaml:"async_purge" env:"CACHE_ASYNC_PURGE" env-default:"false"`
	ScanBatchSize            int           `yaml:"scan_batch_size" env:"CACHE_SCAN_BATCH_SIZE" env-default:"500"`
	QueueSize                int           `yaml:"queue_size" env:"CACHE_QUEUE_SIZE" env-default:"1024"`
	DispatchWorkers          int           `yaml:"dispatch_workers" env:"CACHE_DISPATCH_WORKERS" env-default:"4"`
	PurgeCatalogOnEventWrite bool          `yaml:"purge_catalog_on_event_write" env:"CACHE_PURGE_CATALOG_ON_EVENT_WRITE" env-default:"false"`
}

type Engine struct {
	MaxAttempts          int           `yaml:"max_attempts" env:"ENGINE_MAX_ATTEMPTS" env-default:"3"`
	BaseBackoff          time.Duration `yaml:"base_backoff" env:"ENGINE_BASE_BACKOFF" env-default:"20ms"`
	TxTimeout            time.Duration `yaml:"tx_timeout" env:"ENGINE_TX_TIMEOUT" env-default:"5s"`
	MaxTicketsPerBooking int           `yaml:"max_tickets_per_booking" env:"ENGINE_MAX_TICKETS_PER_BOOKING" env-default:"10"`
}

type Log struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"console"`
}

// TTL bounds per key class. Stale entries self-heal within these windows.
const (
	MinListTTL    = 5 * time.Minute
	MaxListTTL    = 10 * time.Minute
	MinCatalogTTL = 10 * time.Minute
	MaxCatalogTTL = 30 * time.Minute
)

// Validate checks values cleanenv cannot express as tags.
func (c *Config) Validate() error {
	var errs []error
	if c.Database.Driver != "postgres" && c.Database.Driver != "memory" {
		errs = append(errs, fmt.Errorf("database.driver must be postgres or memory, got %q", c.Database.Driver))
	}
	if c.Cache.ListTTL < MinListTTL || c.Cache.ListTTL > MaxListTTL {
		errs = append(errs, fmt.Errorf("cache.list_ttl %s outside [%s, %s]", c.Cache.ListTTL, MinListTTL, MaxListTTL))
	}
	if c.Cache.CatalogTTL < MinCatalogTTL || c.Cache.CatalogTTL > MaxCatalogTTL {
		errs = append(errs, fmt.Errorf("cache.catalog_ttl %s outside [%s, %s]", c.Cache.CatalogTTL, MinCatalogTTL, MaxCatalogTTL))
	}
	if c.Cache.EventTTL <= 0 {
		errs = append(errs, errors.New("cache.event_ttl must be positive"))
	}
	if c.Cache.PurgeTimeout <= 0 {
		errs = append(errs, errors.New("cache.purge_timeout must be positive"))
	}
	if c.Engine.MaxAttempts < 1 {
		errs = append(errs, errors.New("engine.max_attempts must be at least 1"))
	}
	if c.Engine.TxTimeout <= 0 {
		errs = append(errs, errors.New("engine.tx_timeout must be positive"))
	}
	return errors.Join(errs...)
}

func Initialise(configPath string, useEnv bool) (*Config, error) {
	cfg := &Config{}

	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	if useEnv {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment variables: %w", err)
		}
		return validated(cfg)
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if err := cleanenv.ReadConfig(configPath, cfg); err != nil {
				return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
			}
			return validated(cfg)
		}
	}

	// Fallback to environment variables
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment variables: %w", err)
	}

	return validated(cfg)
}

func validated(cfg *Config) (*Config, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
