package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

const (
	DefaultConfigPath        = "config.toml"
	DefaultHTTPAddr          = ":8080"
	DefaultJWTExpiresIn      = "24h"
	DefaultPGHost            = "127.0.0.1"
	DefaultPGPort            = 5432
	DefaultPGUser            = "postgres"
	DefaultPGDatabase        = "linkfix"
	DefaultPGSSLMode         = "disable"
	DefaultMessageLimit      = 2000
	DefaultEmbedTimeout      = "5s"
	DefaultSuppressDelay     = "2s"
	DefaultNoticeCooldown    = "1m"
	DefaultEventsRetention   = "720h"
	DefaultEventsPurgeSpec   = "@daily"
	DefaultEmbedEZEndpoint   = "https://embedez.com/api/v1/providers/combined"
	DefaultEmbedEZTimeout    = "15s"
	DefaultRenderConcurrency = 8
)

type Config struct {
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
	Auth     AuthConfig     `toml:"auth"`
	Discord  DiscordConfig  `toml:"discord"`
	Postgres PostgresConfig `toml:"postgres"`
	LinkFix  LinkFixConfig  `toml:"linkfix"`
	EmbedEZ  EmbedEZConfig  `toml:"embedez"`
}

type LogConfig struct {
	Level  string `toml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Format string `toml:"format" validate:"omitempty,oneof=text json"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type AuthConfig struct {
	JWTSecret    string `toml:"jwt_secret"`
	JWTExpiresIn string `toml:"jwt_expires_in"`
}

type DiscordConfig struct {
	Token             string `toml:"token" validate:"required"`
	EventLogChannelID string `toml:"event_log_channel_id" validate:"omitempty,numeric"`
	MessageLimit      int    `toml:"message_limit" validate:"gte=1,lte=4000"`
}

type PostgresConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port" validate:"gte=0,lte=65535"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`
}

// LinkFixConfig tunes the link fixing pipeline.
type LinkFixConfig struct {
	// EmbedTimeout bounds how long a sent message may take to gain an embed.
	EmbedTimeout string `toml:"embed_timeout"`
	// SuppressDelay is the pause between the two embed suppression attempts
	// on the original message.
	SuppressDelay           string `toml:"suppress_delay"`
	RateLimitNoticeCooldown string `toml:"rate_limit_notice_cooldown"`
	RenderConcurrency       int    `toml:"render_concurrency" validate:"gte=1"`
	// ProvidersFile replaces the embedded provider catalog when set.
	ProvidersFile       string `toml:"providers_file"`
	Analytics           bool   `toml:"analytics"`
	EventsRetention     string `toml:"events_retention"`
	EventsPurgeSchedule string `toml:"events_purge_schedule"`
}

type EmbedEZConfig struct {
	Endpoint string `toml:"endpoint" validate:"omitempty,url"`
	APIKey   string `toml:"api_key"`
	Timeout  string `toml:"timeout"`
}

// DSN renders the postgres connection string used by pgx and golang-migrate.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

func (c LinkFixConfig) EmbedTimeoutDuration() time.Duration {
	return parseDuration(c.EmbedTimeout, DefaultEmbedTimeout)
}

func (c LinkFixConfig) SuppressDelayDuration() time.Duration {
	return parseDuration(c.SuppressDelay, DefaultSuppressDelay)
}

func (c LinkFixConfig) NoticeCooldownDuration() time.Duration {
	return parseDuration(c.RateLimitNoticeCooldown, DefaultNoticeCooldown)
}

func (c LinkFixConfig) EventsRetentionDuration() time.Duration {
	return parseDuration(c.EventsRetention, DefaultEventsRetention)
}

func (c EmbedEZConfig) TimeoutDuration() time.Duration {
	return parseDuration(c.Timeout, DefaultEmbedEZTimeout)
}

func (c AuthConfig) ExpiresIn() time.Duration {
	return parseDuration(c.JWTExpiresIn, DefaultJWTExpiresIn)
}

func parseDuration(raw, fallback string) time.Duration {
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	d, _ := time.ParseDuration(fallback)
	return d
}

// Validate checks the loaded configuration for values the bot cannot run with.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	for name, raw := range map[string]string{
		"linkfix.embed_timeout":              c.LinkFix.EmbedTimeout,
		"linkfix.suppress_delay":             c.LinkFix.SuppressDelay,
		"linkfix.rate_limit_notice_cooldown": c.LinkFix.RateLimitNoticeCooldown,
		"linkfix.events_retention":           c.LinkFix.EventsRetention,
		"embedez.timeout":                    c.EmbedEZ.Timeout,
		"auth.jwt_expires_in":                c.Auth.JWTExpiresIn,
	} {
		if raw == "" {
			continue
		}
		if _, err := time.ParseDuration(raw); err != nil {
			return fmt.Errorf("invalid config: %s: %w", name, err)
		}
	}
	return nil
}

func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Auth: AuthConfig{
			JWTExpiresIn: DefaultJWTExpiresIn,
		},
		Discord: DiscordConfig{
			MessageLimit: DefaultMessageLimit,
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
		LinkFix: LinkFixConfig{
			EmbedTimeout:            DefaultEmbedTimeout,
			SuppressDelay:           DefaultSuppressDelay,
			RateLimitNoticeCooldown: DefaultNoticeCooldown,
			RenderConcurrency:       DefaultRenderConcurrency,
			EventsRetention:         DefaultEventsRetention,
			EventsPurgeSchedule:     DefaultEventsPurgeSpec,
		},
		EmbedEZ: EmbedEZConfig{
			Endpoint: DefaultEmbedEZEndpoint,
			Timeout:  DefaultEmbedEZTimeout,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}
