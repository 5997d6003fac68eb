// Package config loads service configuration from defaults, an optional YAML
// file named by SHEETPORT_CONFIG, and environment variables, in that order of
// increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	platformstrings "sheetport/pkg/platform/strings"
)

// Delegation transports.
const (
	TransportMemory = "memory"
	TransportRedis  = "redis"
	TransportKafka  = "kafka"
)

const devSigningKey = "dev-secret-key-change-in-production"

// Config is the full service configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Auth       AuthConfig       `yaml:"auth"`
	Redis      RedisConfig      `yaml:"redis"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Delegation DelegationConfig `yaml:"delegation"`
	Importer   ImporterConfig   `yaml:"importer"`
}

// ServerConfig captures HTTP server level configuration.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	LogLevel        string        `yaml:"log_level"`
	LogFormat       string        `yaml:"log_format"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// AuthConfig configures HS256 bearer tokens.
type AuthConfig struct {
	JWTSigningKey string        `yaml:"jwt_signing_key"`
	Issuer        string        `yaml:"issuer"`
	Audience      string        `yaml:"audience"`
	TokenTTL      time.Duration `yaml:"token_ttl"`
}

// RedisConfig configures the Redis client. An empty URL disables Redis.
type RedisConfig struct {
	URL          string        `yaml:"url"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// KafkaConfig configures the Kafka delegation transport.
type KafkaConfig struct {
	Brokers     []string `yaml:"brokers"`
	Topic       string   `yaml:"topic"`
	Partitions  int32    `yaml:"partitions"`
	Replication int16    `yaml:"replication"`
}

// PostgresConfig configures the character store. An empty DSN selects the
// in-memory store.
type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// DelegationConfig configures GM-assisted creation.
type DelegationConfig struct {
	Transport string        `yaml:"transport"`
	Channel   string        `yaml:"channel"`
	Timeout   time.Duration `yaml:"timeout"`
	// PeerEnabled runs the privileged peer in this process.
	PeerEnabled bool   `yaml:"peer_enabled"`
	PeerActorID string `yaml:"peer_actor_id"`
}

// ImporterConfig holds world settings the importer consults.
type ImporterConfig struct {
	WorldSystem      string `yaml:"world_system"`
	PlayersMayCreate bool   `yaml:"players_may_create"`
	// RateLimit caps imports per actor per RateWindow. Zero disables it.
	RateLimit  int           `yaml:"rate_limit"`
	RateWindow time.Duration `yaml:"rate_window"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			LogLevel:        "info",
			LogFormat:       "json",
			ShutdownTimeout: 10 * time.Second,
		},
		Auth: AuthConfig{
			JWTSigningKey: devSigningKey,
			Issuer:        "sheetport",
			Audience:      "sheetport",
			TokenTTL:      24 * time.Hour,
		},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Topic:       "sheetport.delegation",
			Partitions:  1,
			Replication: 1,
		},
		Postgres: PostgresConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Delegation: DelegationConfig{
			Transport:   TransportMemory,
			Channel:     "module.gcs-sr6-eden-importer",
			Timeout:     15 * time.Second,
			PeerEnabled: true,
			PeerActorID: "gm",
		},
		Importer: ImporterConfig{
			WorldSystem: "shadowrun6-eden",
			RateLimit:   30,
			RateWindow:  time.Minute,
		},
	}
}

// Load builds the configuration from defaults, the SHEETPORT_CONFIG file and
// the environment, then validates it.
func Load() (*Config, error) {
	cfg := Default()
	if path := os.Getenv("SHEETPORT_CONFIG"); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.overlayEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) overlayFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) overlayEnv() error {
	setString(&c.Server.Addr, "SHEETPORT_ADDR")
	setString(&c.Server.LogLevel, "SHEETPORT_LOG_LEVEL")
	setString(&c.Server.LogFormat, "SHEETPORT_LOG_FORMAT")
	setString(&c.Auth.JWTSigningKey, "SHEETPORT_JWT_SIGNING_KEY")
	setString(&c.Auth.Issuer, "SHEETPORT_JWT_ISSUER")
	setString(&c.Redis.URL, "SHEETPORT_REDIS_URL")
	setString(&c.Kafka.Topic, "SHEETPORT_KAFKA_TOPIC")
	setString(&c.Postgres.DSN, "SHEETPORT_DATABASE_URL")
	setString(&c.Delegation.Transport, "SHEETPORT_DELEGATION_TRANSPORT")
	setString(&c.Delegation.PeerActorID, "SHEETPORT_GM_ACTOR_ID")
	setString(&c.Importer.WorldSystem, "SHEETPORT_WORLD_SYSTEM")

	if v := os.Getenv("SHEETPORT_KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = platformstrings.SplitList(v, ",")
	}

	var errs []error
	errs = append(errs,
		setDuration(&c.Delegation.Timeout, "SHEETPORT_DELEGATION_TIMEOUT"),
		setDuration(&c.Auth.TokenTTL, "SHEETPORT_TOKEN_TTL"),
		setBool(&c.Delegation.PeerEnabled, "SHEETPORT_GM_PEER"),
		setBool(&c.Importer.PlayersMayCreate, "SHEETPORT_PLAYERS_MAY_CREATE"),
		setInt(&c.Importer.RateLimit, "SHEETPORT_IMPORT_RATE_LIMIT"),
		setDuration(&c.Importer.RateWindow, "SHEETPORT_IMPORT_RATE_WINDOW"),
	)
	return errors.Join(errs...)
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Delegation.Transport {
	case TransportMemory:
	case TransportRedis:
		if c.Redis.URL == "" {
			return errors.New("delegation transport redis requires SHEETPORT_REDIS_URL")
		}
	case TransportKafka:
		if len(c.Kafka.Brokers) == 0 {
			return errors.New("delegation transport kafka requires SHEETPORT_KAFKA_BROKERS")
		}
	default:
		return fmt.Errorf("unknown delegation transport %q", c.Delegation.Transport)
	}
	if c.Delegation.Timeout <= 0 {
		return errors.New("delegation timeout must be positive")
	}
	if c.Importer.RateLimit < 0 {
		return errors.New("import rate limit cannot be negative")
	}
	if c.Importer.RateLimit > 0 && c.Importer.RateWindow <= 0 {
		return errors.New("import rate window must be positive")
	}
	if c.Auth.JWTSigningKey == "" {
		return errors.New("jwt signing key cannot be empty")
	}
	return nil
}

// UsesDevSigningKey reports whether the built-in development key is active.
func (c *Config) UsesDevSigningKey() bool {
	return c.Auth.JWTSigningKey == devSigningKey
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

func setBool(dst *bool, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

func setInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}
