package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port           int    `envconfig:"PORT" default:"8080"`
	AssetDir       string `envconfig:"ASSET_DIR" default:"./data/animations"`
	FfmpegPath     string `envconfig:"FFMPEG_PATH" default:"ffmpeg"`
	AllowedOrigins string `envconfig:"ALLOWED_ORIGINS" default:"localhost:5173,localhost:3000"`
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`

	// Rasterization pipeline
	RasterWorkers  int `envconfig:"RASTER_WORKERS" default:"2"`
	FrameCacheSize int `envconfig:"FRAME_CACHE_SIZE" default:"8"`
	BridgeCapacity int `envconfig:"BRIDGE_CAPACITY" default:"256"`
	TickRate       int `envconfig:"TICK_RATE" default:"60"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.RasterWorkers <= 0 {
		return fmt.Errorf("RASTER_WORKERS must be positive, got %d", c.RasterWorkers)
	}
	if c.BridgeCapacity <= 0 {
		return fmt.Errorf("BRIDGE_CAPACITY must be positive, got %d", c.BridgeCapacity)
	}
	if c.TickRate <= 0 || c.TickRate > 1000 {
		return fmt.Errorf("TICK_RATE must be in (0, 1000], got %d", c.TickRate)
	}
	if c.FrameCacheSize < 0 {
		c.FrameCacheSize = 0
	}
	return nil
}

// Origins splits AllowedOrigins into websocket origin patterns.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
