package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	pkgstrings "idstatus/pkg/platform/strings"
)

// Config is the full service configuration. Defaults suit local
// development; a YAML file and then IDSTATUS_* environment variables
// override them.
type Config struct {
	Server     Server           `yaml:"server"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Redis      RedisConfig      `yaml:"redis"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Resolver   HTTPClientConfig `yaml:"resolver"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Auth       AuthConfig       `yaml:"auth"`
	Reconcile  ReconcileConfig  `yaml:"reconcile"`
	LogLevel   string           `yaml:"logLevel"`
	// RedactionKey keys the digests used in place of raw ninos in logs.
	RedactionKey string `yaml:"redactionKey"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `yaml:"addr"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// PostgresConfig configures the identity store. An empty URL selects the
// in-memory store.
type PostgresConfig struct {
	URL             string        `yaml:"url"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// RedisConfig configures the ownership cache. An empty URL disables it.
type RedisConfig struct {
	URL          string        `yaml:"url"`
	PoolSize     int           `yaml:"poolSize"`
	MinIdleConns int           `yaml:"minIdleConns"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
}

// KafkaConfig configures the inbound fact topic and outcome topics.
type KafkaConfig struct {
	Brokers         []string `yaml:"brokers"`
	ConsumerGroup   string   `yaml:"consumerGroup"`
	InboundTopic    string   `yaml:"inboundTopic"`
	DeadLetterTopic string   `yaml:"deadLetterTopic"`
	OwnerATopic     string   `yaml:"ownerATopic"`
	OwnerBTopic     string   `yaml:"ownerBTopic"`
	MaxAttempts     int      `yaml:"maxAttempts"`
	// RetryBackoff is the pause between attempts on one fact.
	RetryBackoff time.Duration `yaml:"retryBackoff"`
	// EnsureTopics creates missing topics at startup.
	EnsureTopics bool `yaml:"ensureTopics"`
}

// HTTPClientConfig configures an outbound HTTP dependency.
type HTTPClientConfig struct {
	BaseURL          string        `yaml:"baseUrl"`
	Timeout          time.Duration `yaml:"timeout"`
	FailureThreshold int           `yaml:"failureThreshold"`
	Cooldown         time.Duration `yaml:"cooldown"`
}

// ClassifierConfig adds caching to the routing client.
type ClassifierConfig struct {
	HTTPClientConfig `yaml:",inline"`
	CacheTTL         time.Duration `yaml:"cacheTtl"`
}

// AuthConfig configures bearer-token validation on the query API.
type AuthConfig struct {
	JWTSigningKey string `yaml:"jwtSigningKey"`
	Issuer        string `yaml:"issuer"`
	Audience      string `yaml:"audience"`
}

// ReconcileConfig tunes the reconciliation engine.
type ReconcileConfig struct {
	ResolverTimeout time.Duration `yaml:"resolverTimeout"`
	LockShards      int           `yaml:"lockShards"`
	LockTimeout     time.Duration `yaml:"lockTimeout"`
}

// Default returns development defaults.
func Default() Config {
	return Config{
		Server: Server{
			Addr:            ":8080",
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Postgres: PostgresConfig{
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
		},
		Kafka: KafkaConfig{
			Brokers:         []string{"localhost:9092"},
			ConsumerGroup:   "identity-status",
			InboundTopic:    "identity.verification.facts",
			DeadLetterTopic: "identity.verification.facts.dlq",
			OwnerATopic:     "identity.status.owner-a",
			OwnerBTopic:     "identity.status.owner-b",
			MaxAttempts:     3,
			RetryBackoff:    500 * time.Millisecond,
		},
		Resolver: HTTPClientConfig{
			BaseURL:          "http://localhost:9001",
			Timeout:          5 * time.Second,
			FailureThreshold: 5,
			Cooldown:         30 * time.Second,
		},
		Classifier: ClassifierConfig{
			HTTPClientConfig: HTTPClientConfig{
				BaseURL:          "http://localhost:9002",
				Timeout:          5 * time.Second,
				FailureThreshold: 5,
				Cooldown:         30 * time.Second,
			},
			CacheTTL: 10 * time.Minute,
		},
		Auth: AuthConfig{
			// development default, override in every deployed environment
			JWTSigningKey: "dev-secret-key-change-in-production",
			Issuer:        "identity-status",
			Audience:      "identity-status-api",
		},
		Reconcile: ReconcileConfig{
			ResolverTimeout: 5 * time.Second,
			LockShards:      128,
			LockTimeout:     15 * time.Second,
		},
		LogLevel: "info",
	}
}

// Load builds a Config from defaults, an optional YAML file, and the
// environment, in that order of precedence.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromEnv builds a Config from defaults and environment variables only.
func FromEnv() (Config, error) {
	return Load("")
}

type lookupFunc func(string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []string
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
				return
			}
			*dst = d
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
				return
			}
			*dst = n
		}
	}

	str("IDSTATUS_ADDR", &cfg.Server.Addr)
	dur("IDSTATUS_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)
	str("IDSTATUS_LOG_LEVEL", &cfg.LogLevel)
	str("IDSTATUS_REDACTION_KEY", &cfg.RedactionKey)

	str("IDSTATUS_POSTGRES_URL", &cfg.Postgres.URL)
	num("IDSTATUS_POSTGRES_MAX_OPEN_CONNS", &cfg.Postgres.MaxOpenConns)

	str("IDSTATUS_REDIS_URL", &cfg.Redis.URL)
	num("IDSTATUS_REDIS_POOL_SIZE", &cfg.Redis.PoolSize)

	if v, ok := lookup("IDSTATUS_KAFKA_BROKERS"); ok && v != "" {
		cfg.Kafka.Brokers = pkgstrings.SplitList(v)
	}
	str("IDSTATUS_KAFKA_GROUP", &cfg.Kafka.ConsumerGroup)
	str("IDSTATUS_KAFKA_INBOUND_TOPIC", &cfg.Kafka.InboundTopic)
	str("IDSTATUS_KAFKA_DLQ_TOPIC", &cfg.Kafka.DeadLetterTopic)
	str("IDSTATUS_KAFKA_OWNER_A_TOPIC", &cfg.Kafka.OwnerATopic)
	str("IDSTATUS_KAFKA_OWNER_B_TOPIC", &cfg.Kafka.OwnerBTopic)
	num("IDSTATUS_KAFKA_MAX_ATTEMPTS", &cfg.Kafka.MaxAttempts)
	dur("IDSTATUS_KAFKA_RETRY_BACKOFF", &cfg.Kafka.RetryBackoff)
	if v, ok := lookup("IDSTATUS_KAFKA_ENSURE_TOPICS"); ok && v != "" {
		cfg.Kafka.EnsureTopics = v == "true"
	}

	str("IDSTATUS_RESOLVER_URL", &cfg.Resolver.BaseURL)
	dur("IDSTATUS_RESOLVER_TIMEOUT", &cfg.Reconcile.ResolverTimeout)
	str("IDSTATUS_CLASSIFIER_URL", &cfg.Classifier.BaseURL)
	dur("IDSTATUS_CLASSIFIER_TIMEOUT", &cfg.Classifier.Timeout)
	dur("IDSTATUS_CLASSIFIER_CACHE_TTL", &cfg.Classifier.CacheTTL)

	str("IDSTATUS_JWT_SIGNING_KEY", &cfg.Auth.JWTSigningKey)
	str("IDSTATUS_JWT_ISSUER", &cfg.Auth.Issuer)
	str("IDSTATUS_JWT_AUDIENCE", &cfg.Auth.Audience)

	num("IDSTATUS_LOCK_SHARDS", &cfg.Reconcile.LockShards)
	dur("IDSTATUS_LOCK_TIMEOUT", &cfg.Reconcile.LockTimeout)

	if len(errs) > 0 {
		return fmt.Errorf("invalid environment: %s", strings.Join(errs, "; "))
	}
	return nil
}

