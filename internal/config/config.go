// Package config defines service configuration structures and loading hooks.
//
// Conventions:
//   - Defaults live in New; Load layers a YAML file and RECRUIT_* env vars on top.
//   - Durations are given as Go duration strings ("30m", "720h").
//   - Validation failures wrap ErrInvalidConfig.
package config

import (
	"runtime"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat is text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// PublicURL is where applicants reach this service. Pass mails link to
	// <public_url>/redirect/check; empty links straight to next_form_url.
	PublicURL string `koanf:"public_url"`

	// MetricsEnabled toggles the Prometheus recorders.
	MetricsEnabled bool `koanf:"metrics_enabled"`

	// APIToken guards the /api routes (bearer token). Empty disables them.
	APIToken string `koanf:"api_token"`

	// IntakeRatePerSecond and IntakeBurst throttle the form webhooks.
	IntakeRatePerSecond float64 `koanf:"intake_rate_per_second"`
	IntakeBurst         int     `koanf:"intake_burst"`

	// FieldMapPath optionally points at a YAML form field mapping.
	FieldMapPath string `koanf:"field_map_path"`

	// Store selects the record store: memory or mongo. The memory store keeps
	// records and the outcome ledger in process only and is meant for
	// development; a restart forgets which outcome mails were sent.
	// StoreOpTimeout bounds each store call attempt and the Mongo dial.
	Store          string        `koanf:"store"`
	MongoURI       string        `koanf:"mongo_uri"`
	MongoDatabase  string        `koanf:"mongo_database"`
	EncryptionKey  string        `koanf:"encryption_key"`
	StoreOpTimeout time.Duration `koanf:"store_op_timeout"`

	// Redis holds signup flow sessions.
	RedisAddr     string        `koanf:"redis_addr"`
	RedisPassword string        `koanf:"redis_password"`
	RedisDB       int           `koanf:"redis_db"`
	SessionTTL    time.Duration `koanf:"session_ttl"`

	// Discord channel settings. An empty token runs without a chat channel.
	DiscordToken      string   `koanf:"discord_token"`
	DiscordGuildID    string   `koanf:"discord_guild_id"`
	ApplyChannelID    string   `koanf:"apply_channel_id"`
	LogChannelID      string   `koanf:"log_channel_id"`
	SignupExecutorIDs []string `koanf:"signup_executor_ids"`

	// Token signing.
	JWTSecret    string        `koanf:"jwt_secret"`
	FormTokenTTL time.Duration `koanf:"form_token_ttl"`
	NextFormURL  string        `koanf:"next_form_url"`

	// SMTP. An empty host logs mails instead of sending them.
	SMTPHost     string `koanf:"smtp_host"`
	SMTPPort     int    `koanf:"smtp_port"`
	SMTPUsername string `koanf:"smtp_username"`
	SMTPPassword string `koanf:"smtp_password"`
	MailSender   string `koanf:"mail_sender"`

	// Kafka transition events. No brokers disables publishing.
	KafkaBrokers []string `koanf:"kafka_brokers"`
	KafkaTopic   string   `koanf:"kafka_topic"`

	// Permission thresholds.
	AcceptLevel   int `koanf:"accept_level"`
	OverrideLevel int `koanf:"override_level"`
	AdminLevel    int `koanf:"admin_level"`

	// Presenter budgets, in characters.
	FieldBudget   int `koanf:"field_budget"`
	MessageBudget int `koanf:"message_budget"`
	MaxFields     int `koanf:"max_fields"`

	// Delivery pipeline.
	QueueSize        int           `koanf:"queue_size"`
	WorkerCount      int           `koanf:"worker_count"`
	DeliveryAttempts uint          `koanf:"delivery_attempts"`
	DeliveryTimeout  time.Duration `koanf:"delivery_timeout"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		MetricsEnabled:      true,
		IntakeRatePerSecond: 5,
		IntakeBurst:         20,
		Store:               "memory",
		MongoDatabase:       "recruit",
		StoreOpTimeout:      5 * time.Second,
		RedisAddr:           "localhost:6379",
		SessionTTL:          time.Hour,
		FormTokenTTL:        30 * 24 * time.Hour,
		SMTPPort:            587,
		KafkaTopic:          "recruit.transitions",
		AcceptLevel:         2,
		OverrideLevel:       2,
		AdminLevel:          4,
		FieldBudget:         1024,
		MessageBudget:       6000,
		MaxFields:           25,
		QueueSize:           10_000,
		WorkerCount:         runtime.NumCPU(),
		DeliveryAttempts:    5,
		DeliveryTimeout:     30 * time.Second,
	}
}
