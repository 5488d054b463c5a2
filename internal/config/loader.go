package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix  = "RECRUIT_"
	envFileVar = "RECRUIT_CONFIG"

	minEncryptionKeyBytes = 32
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if RECRUIT_CONFIG is set
//  3. env (prefix RECRUIT_)
func Load(_ context.Context) (*Config, error) {
	base := New()
	k := koanf.New(".")

	if path := os.Getenv(envFileVar); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// RECRUIT_APPLY_CHANNEL_ID -> apply_channel_id, matching the koanf tags.
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	// Env values arrive as a single comma separated string.
	cfg.KafkaBrokers = splitList(cfg.KafkaBrokers)
	cfg.SignupExecutorIDs = splitList(cfg.SignupExecutorIDs)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks invariants that must hold before the process starts.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.Store != "memory" && c.Store != "mongo":
		return fmt.Errorf("%w: store must be memory or mongo, got %q", ErrInvalidConfig, c.Store)
	case c.Store == "mongo" && c.MongoURI == "":
		return fmt.Errorf("%w: mongo_uri is required for the mongo store", ErrInvalidConfig)
	case c.Store == "mongo" && len(c.EncryptionKey) < minEncryptionKeyBytes:
		return fmt.Errorf("%w: encryption_key must be at least %d bytes", ErrInvalidConfig, minEncryptionKeyBytes)
	case c.JWTSecret == "":
		return fmt.Errorf("%w: jwt_secret must not be empty", ErrInvalidConfig)
	case c.DiscordToken != "" && c.ApplyChannelID == "":
		return fmt.Errorf("%w: apply_channel_id is required with a discord token", ErrInvalidConfig)
	case c.AcceptLevel < 0 || c.OverrideLevel < 0 || c.AdminLevel < c.OverrideLevel:
		return fmt.Errorf("%w: permission levels must satisfy 0 <= override <= admin", ErrInvalidConfig)
	case c.FieldBudget <= 0 || c.MessageBudget < c.FieldBudget:
		return fmt.Errorf("%w: message_budget must be >= field_budget > 0", ErrInvalidConfig)
	case c.SessionTTL <= 0 || c.FormTokenTTL <= 0:
		return fmt.Errorf("%w: session_ttl and form_token_ttl must be positive", ErrInvalidConfig)
	}
	return nil
}

func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
