// Package config loads service settings from .env and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"competition-engine/utils"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port           string        `env:"PORT" envDefault:"5200"`
	DatabaseURL    string        `env:"DATABASE_URL,required,notEmpty"`
	GatewayToken   string        `env:"GAME_SERVICE_TOKEN,required,notEmpty"`
	AllowedOrigins []string      `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	SweepInterval  time.Duration `env:"SWEEP_INTERVAL" envDefault:"1m"`
	DrawTimeout    time.Duration `env:"DRAW_TIMEOUT" envDefault:"30s"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"10s"`
	RandomSeed     uint64        `env:"DRAW_RANDOM_SEED"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`

	R2AccountID       string `env:"CLOUDFLARE_ACCOUNT_ID"`
	R2AccessKeyID     string `env:"R2_ACCESS_KEY_ID"`
	R2AccessKeySecret string `env:"R2_ACCESS_KEY_SECRET"`
	R2Bucket          string `env:"R2_BUCKET_NAME"`
}

// Load reads an optional .env file, then parses the environment.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	for i, origin := range cfg.AllowedOrigins {
		cfg.AllowedOrigins[i] = strings.TrimSpace(origin)
	}
	if cfg.SweepInterval <= 0 {
		return Config{}, errors.New("SWEEP_INTERVAL must be positive")
	}
	return cfg, nil
}

func (c Config) ArchiveEnabled() bool {
	return c.R2Bucket != ""
}

func (c Config) R2() utils.R2Config {
	return utils.R2Config{
		AccountID:       c.R2AccountID,
		AccessKeyID:     c.R2AccessKeyID,
		AccessKeySecret: c.R2AccessKeySecret,
		Bucket:          c.R2Bucket,
	}
}

func (c Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
