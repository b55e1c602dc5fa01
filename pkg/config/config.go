package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string           `yaml:"environment" default:"development" validate:"required"`
	Server      ServerConfig     `yaml:"server"`
	Metrics     MetricsConfig    `yaml:"metrics"`
	Log         LogConfig        `yaml:"log"`
	Database    DatabaseConfig   `yaml:"database"`
	Storage     StorageConfig    `yaml:"storage"`
	ClickHouse  ClickHouseConfig `yaml:"clickhouse"`
	Redis       RedisConfig      `yaml:"redis"`
	Cache       CacheConfig      `yaml:"cache"`
	Kafka       KafkaConfig      `yaml:"kafka"`
	Queue       QueueConfig      `yaml:"queue"`
	Finnhub     FinnhubConfig    `yaml:"finnhub"`
	Sync        SyncConfig       `yaml:"sync"`
	Prediction  PredictionConfig `yaml:"prediction"`
}

type ServerConfig struct {
	Port            int           `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"15s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	RateLimit       struct {
		Enabled   bool    `yaml:"enabled" default:"true"`
		Burst     float64 `yaml:"burst" default:"60"`
		PerSecond float64 `yaml:"per_second" default:"10"`
	} `yaml:"rate_limit"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	Path    string `yaml:"path" default:"/metrics"`
}

type LogConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" default:"json" validate:"oneof=json console"`
	Output string `yaml:"output" default:"stdout"`
	// Digest publishes deduplicated warn/error lines to Kafka when Kafka is enabled.
	Digest struct {
		Enabled  bool          `yaml:"enabled"`
		Topic    string        `yaml:"topic" default:"marketpulse.logs"`
		Interval time.Duration `yaml:"interval" default:"30s"`
	} `yaml:"digest"`
}

type DatabaseConfig struct {
	Driver          string        `yaml:"driver" default:"sqlite" validate:"oneof=sqlite postgres"`
	DSN             string        `yaml:"dsn" default:"data/marketpulse.db" validate:"required"`
	MaxOpenConns    int           `yaml:"max_open_conns" default:"10"`
	MaxIdleConns    int           `yaml:"max_idle_conns" default:"5"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" default:"30m"`
}

// StorageConfig picks the backend for price history reads and forecast writes.
type StorageConfig struct {
	Prices    string `yaml:"prices" default:"sql" validate:"oneof=sql clickhouse"`
	Forecasts string `yaml:"forecasts" default:"sql" validate:"oneof=sql clickhouse"`
}

// UsesClickHouse reports whether any storage role is served by ClickHouse.
func (s StorageConfig) UsesClickHouse() bool {
	return s.Prices == "clickhouse" || s.Forecasts == "clickhouse"
}

type ClickHouseConfig struct {
	Host             string        `yaml:"host" default:"localhost"`
	Port             int           `yaml:"port" default:"9000"`
	Database         string        `yaml:"database" default:"marketpulse"`
	User             string        `yaml:"user" default:"default"`
	Password         string        `yaml:"password"`
	UseHTTP          bool          `yaml:"use_http"`
	DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
	WriteTimeout     time.Duration `yaml:"write_timeout" default:"30s"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr" default:"localhost:6379"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix" default:"marketpulse:"`
}

type CacheConfig struct {
	TTL           time.Duration `yaml:"ttl" default:"5m"`
	MaxEntries    int           `yaml:"max_entries" default:"1000" validate:"gte=1"`
	CleanupPeriod time.Duration `yaml:"cleanup_period" default:"1m"`
}

type KafkaConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Brokers      []string `yaml:"brokers" default:"[\"localhost:9092\"]"`
	Topic        string   `yaml:"topic" default:"marketpulse.forecasts"`
	RequiredAcks int      `yaml:"required_acks" default:"-1"`
	Compression  string   `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd none"`
	Producer     struct {
		MaxAttempts  int           `yaml:"max_attempts" default:"5"`
		Linger       time.Duration `yaml:"linger" default:"50ms"`
		BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
		BatchSize    int           `yaml:"batch_size" default:"100"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		Async        bool          `yaml:"async"`
	} `yaml:"producer"`
}

type QueueConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Name         string        `yaml:"name" default:"predictions"`
	Workers      int           `yaml:"workers" default:"1" validate:"gte=1"`
	MaxRetries   int           `yaml:"max_retries" default:"3"`
	RetryDelay   time.Duration `yaml:"retry_delay" default:"30s"`
	PollInterval time.Duration `yaml:"poll_interval" default:"1s"`
}

type FinnhubConfig struct {
	APIKey            string        `yaml:"api_key"`
	BaseURL           string        `yaml:"base_url" default:"https://finnhub.io/api/v1" validate:"url"`
	Timeout           time.Duration `yaml:"timeout" default:"15s"`
	RequestsPerMinute int           `yaml:"requests_per_minute" default:"60" validate:"gte=1"`
}

type SyncConfig struct {
	Universe     []string `yaml:"universe"`
	HistoryYears int      `yaml:"history_years" default:"5" validate:"gte=1,lte=30"`
	Concurrency  int      `yaml:"concurrency" default:"3" validate:"gte=1"`
}

type PredictionConfig struct {
	WindowSize     int         `yaml:"window_size" default:"20" validate:"gte=2"`
	MaxTrainPoints int         `yaml:"max_train_points" default:"250" validate:"gte=0"`
	MinHistory     int         `yaml:"min_history" default:"60" validate:"gte=1"`
	MinSequences   int         `yaml:"min_sequences" default:"10" validate:"gte=1"`
	FeatureOffset  int         `yaml:"feature_offset" default:"25" validate:"gte=0"`
	TopN           int         `yaml:"top_n" default:"50" validate:"gte=1"`
	Workers        int         `yaml:"workers" default:"1" validate:"gte=1,lte=64"`
	ReclaimEvery   int         `yaml:"reclaim_every" default:"5" validate:"gte=1"`
	Schedule       string      `yaml:"schedule"`
	Horizons       []Horizon   `yaml:"horizons" validate:"dive"`
	Model          ModelConfig `yaml:"model"`
}

type Horizon struct {
	Name string `yaml:"name" validate:"required"`
	Days int    `yaml:"days" validate:"gte=1,lte=260"`
}

// ModelConfig spans both historical network variants: a single 32-unit layer with a capped
// training set, and a deeper 64/32 stack with dropout.
type ModelConfig struct {
	Kind         string  `yaml:"kind" default:"lstm" validate:"oneof=lstm linear"`
	LSTMUnits    []int   `yaml:"lstm_units" default:"[32]" validate:"min=1,dive,gte=1"`
	DenseUnits   []int   `yaml:"dense_units" default:"[8]" validate:"dive,gte=1"`
	Dropout      float64 `yaml:"dropout" validate:"gte=0,lt=1"`
	Epochs       int     `yaml:"epochs" default:"10" validate:"gte=1"`
	BatchSize    int     `yaml:"batch_size" default:"32" validate:"gte=1"`
	LearningRate float64 `yaml:"learning_rate" default:"0.001" validate:"gt=0"`
	ClipNorm     float64 `yaml:"clip_norm" default:"5" validate:"gte=0"`
	Ridge        float64 `yaml:"ridge" default:"0.0001" validate:"gte=0"`
	Seed         int64   `yaml:"seed"`
}

// DefaultHorizons are the trading-day horizons forecast when none are configured.
func DefaultHorizons() []Horizon {
	return []Horizon{
		{Name: "1d", Days: 1},
		{Name: "3d", Days: 3},
		{Name: "1w", Days: 7},
		{Name: "1m", Days: 22},
	}
}

var validate = validator.New()

// Default returns a configuration populated only from struct defaults.
func Default() *Config {
	var c Config
	if err := defaults.Set(&c); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	c.Prediction.Horizons = DefaultHorizons()
	return &c
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	c := Default()
	c.Prediction.Horizons = nil
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if len(c.Prediction.Horizons) == 0 {
		c.Prediction.Horizons = DefaultHorizons()
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
// A missing file is not an error: defaults plus environment are enough to run locally.
func LoadWithEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	var c *Config
	if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
		c = Default()
	} else {
		loaded, err := Load(path)
		if err != nil {
			return nil, err
		}
		c = loaded
	}

	applyEnv(c)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func applyEnv(c *Config) {
	if v := os.Getenv("MARKETPULSE_DB_DRIVER"); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv("MARKETPULSE_DB_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("FINNHUB_API_KEY"); v != "" {
		c.Finnhub.APIKey = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv("PREDICT_MODEL"); v != "" {
		c.Prediction.Model.Kind = strings.ToLower(v)
	}
}

// Validate checks struct tags plus cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(c.Prediction.Horizons))
	for _, h := range c.Prediction.Horizons {
		if _, dup := seen[h.Name]; dup {
			return fmt.Errorf("prediction.horizons: duplicate horizon %q", h.Name)
		}
		seen[h.Name] = struct{}{}
	}
	if c.Prediction.MinHistory < c.Prediction.FeatureOffset+c.Prediction.WindowSize {
		return fmt.Errorf("prediction.min_history must be at least feature_offset + window_size (%d)",
			c.Prediction.FeatureOffset+c.Prediction.WindowSize)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	return nil
}
