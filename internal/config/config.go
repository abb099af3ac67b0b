// Package config reads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/mcoot/fairway/internal/api"
	"github.com/mcoot/fairway/internal/archive"
	"github.com/mcoot/fairway/internal/services/auth"
	"github.com/mcoot/fairway/internal/services/invite"
	"github.com/mcoot/fairway/internal/services/points"
	"github.com/mcoot/fairway/internal/services/scoring"
	"github.com/mcoot/fairway/internal/storage/postgres"
	redisstorage "github.com/mcoot/fairway/internal/storage/redis"
	"github.com/mcoot/fairway/internal/workers"
)

// Storage backends
const (
	StorageMemory   = "memory"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
)

// Config is the full process configuration
type Config struct {
	LogLevel slog.Level
	Storage  string
	Redis    redisstorage.Config
	Postgres postgres.Config
	Server   api.ServerConfig
	Auth     auth.Config
	Points   points.Config
	Rules    scoring.Rules
	Workers  workers.Config
	Invite   invite.Config
	Archive  archive.Config
}

// Default returns the configuration used when no variables are set
func Default() Config {
	return Config{
		LogLevel: slog.LevelInfo,
		Storage:  StorageMemory,
		Redis:    redisstorage.DefaultConfig(),
		Postgres: postgres.DefaultConfig(),
		Server:   api.DefaultServerConfig(),
		Auth:     auth.DefaultConfig(),
		Points:   points.DefaultConfig(),
		Rules:    scoring.DefaultRules(),
		Workers:  workers.DefaultConfig(),
		Invite:   invite.DefaultConfig(),
		Archive:  archive.DefaultConfig(),
	}
}

// Load reads a .env file from the working directory if one exists, then
// the environment
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from a variable lookup function
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	e := env{lookup: lookup}

	if level, ok := e.str("FAIRWAY_LOG_LEVEL"); ok {
		if err := cfg.LogLevel.UnmarshalText([]byte(level)); err != nil {
			e.fail("FAIRWAY_LOG_LEVEL", err)
		}
	}

	if v, ok := e.str("FAIRWAY_STORAGE"); ok {
		cfg.Storage = strings.ToLower(v)
	}
	switch cfg.Storage {
	case StorageMemory:
	case StorageRedis:
		if v, ok := e.str("REDIS_URL"); ok {
			cfg.Redis.URL = v
		} else {
			e.fail("REDIS_URL", errors.New("required when FAIRWAY_STORAGE=redis"))
		}
	case StoragePostgres:
		if v, ok := e.str("DATABASE_URL"); ok {
			cfg.Postgres.DSN = v
		} else {
			e.fail("DATABASE_URL", errors.New("required when FAIRWAY_STORAGE=postgres"))
		}
	default:
		e.fail("FAIRWAY_STORAGE", fmt.Errorf("unknown backend %q", cfg.Storage))
	}

	if v, ok := e.str("FAIRWAY_ADDR"); ok {
		cfg.Server.Host = v
	}
	e.intVar("PORT", &cfg.Server.Port)

	if v, ok := e.str("FAIRWAY_JWT_SECRET"); ok {
		cfg.Auth.Secret = v
	}
	e.durationVar("FAIRWAY_TOKEN_TTL", &cfg.Auth.TokenDuration)

	e.intVar("FAIRWAY_AWARD_POINTS", &cfg.Points.AwardAmount)
	e.intVar("FAIRWAY_AWARD_CONCURRENCY", &cfg.Points.Concurrency)
	e.boolVar("FAIRWAY_ALLOW_ZERO_SCORES", &cfg.Rules.AllowZeroScores)

	if v, ok := e.str("FAIRWAY_WORKER_ID"); ok {
		cfg.Workers.Consumer = v
	}
	e.durationVar("FAIRWAY_AWARD_POLL_INTERVAL", &cfg.Workers.PollInterval)
	e.durationVar("FAIRWAY_SWEEP_INTERVAL", &cfg.Workers.SweepInterval)
	e.durationVar("FAIRWAY_SWEEP_GRACE", &cfg.Workers.SweepGrace)

	if v, ok := e.str("FAIRWAY_INVITE_BASE_URL"); ok {
		cfg.Invite.BaseURL = v
	}

	if v, ok := e.str("FAIRWAY_ARCHIVE_BUCKET"); ok {
		cfg.Archive.Bucket = v
	}
	if v, ok := e.str("FAIRWAY_ARCHIVE_ENDPOINT"); ok {
		cfg.Archive.Endpoint = v
	}
	if v, ok := e.str("FAIRWAY_ARCHIVE_REGION"); ok {
		cfg.Archive.Region = v
	}
	if v, ok := e.str("FAIRWAY_ARCHIVE_ACCESS_KEY_ID"); ok {
		cfg.Archive.AccessKeyID = v
	}
	if v, ok := e.str("FAIRWAY_ARCHIVE_SECRET_ACCESS_KEY"); ok {
		cfg.Archive.SecretAccessKey = v
	}

	if cfg.Points.AwardAmount < 0 {
		e.fail("FAIRWAY_AWARD_POINTS", errors.New("must not be negative"))
	}

	if len(e.errs) > 0 {
		return Config{}, errors.Join(e.errs...)
	}
	return cfg, nil
}

// env reads typed values and collects every parse failure
type env struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (e *env) fail(key string, err error) {
	e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
}

func (e *env) str(key string) (string, bool) {
	v, ok := e.lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (e *env) intVar(key string, dst *int) {
	v, ok := e.str(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, err)
		return
	}
	*dst = n
}

func (e *env) boolVar(key string, dst *bool) {
	v, ok := e.str(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(key, err)
		return
	}
	*dst = b
}

func (e *env) durationVar(key string, dst *time.Duration) {
	v, ok := e.str(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(key, err)
		return
	}
	*dst = d
}
