// Package config provides configuration loading for snap2pdf.
// Supports YAML files, .env files, and environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the CLI and the companion server.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Capture       CaptureConfig       `yaml:"capture"`
	Render        RenderConfig        `yaml:"render"`
	Annotation    AnnotationConfig    `yaml:"annotation"`
	Extract       ExtractConfig       `yaml:"extract"`
	Output        OutputConfig        `yaml:"output"`
	Cache         CacheConfig         `yaml:"cache"`
	Audit         AuditConfig         `yaml:"audit"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
	MaxUploadBytes   int64         `yaml:"max_upload_bytes"`
	AllowedOrigins   []string      `yaml:"allowed_origins"`
}

// CaptureConfig controls the camera and the snapshot page.
type CaptureConfig struct {
	FFmpegPath   string        `yaml:"ffmpeg_path"`
	InputFormat  string        `yaml:"input_format"` // v4l2, avfoundation, dshow
	Device       string        `yaml:"device"`
	FrameTimeout time.Duration `yaml:"frame_timeout"`
	PageWidthMM  float64       `yaml:"page_width_mm"`
	JPEGQuality  int           `yaml:"jpeg_quality"`
	MaxWidth     int           `yaml:"max_width"` // 0 disables downscaling
}

// RenderConfig controls page rasterization.
type RenderConfig struct {
	Scale float64 `yaml:"scale"`
}

// AnnotationConfig holds the default text style and edit session limits.
type AnnotationConfig struct {
	Placeholder string        `yaml:"placeholder"`
	Color       string        `yaml:"color"`
	FontSize    float64       `yaml:"font_size"`
	FontFamily  string        `yaml:"font_family"`
	JPEGQuality int           `yaml:"jpeg_quality"`
	SessionTTL  time.Duration `yaml:"session_ttl"`
	MaxSessions int           `yaml:"max_sessions"`
}

// ExtractConfig selects the text engine.
type ExtractConfig struct {
	Engine string `yaml:"engine"` // mupdf or native
}

// OutputConfig controls where the CLI delivers files.
type OutputConfig struct {
	Dir string `yaml:"dir"`
}

// CacheConfig holds offline asset cache settings.
type CacheConfig struct {
	Driver string      `yaml:"driver"` // memory or redis
	Name   string      `yaml:"name"`
	Redis  RedisConfig `yaml:"redis"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// AuditConfig holds the optional run history database.
type AuditConfig struct {
	Driver string `yaml:"driver"` // none, sqlite or postgres
	DSN    string `yaml:"dsn"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	ServiceName string `yaml:"service_name"`
}

// Load reads configuration from a YAML file and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("apply env overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// LoadDotEnv loads variables from the given .env files (or ./.env) without
// overriding ones already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// DefaultConfig returns a configuration with the documented defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "127.0.0.1",
			Port:             8090,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     120 * time.Second,
			IdleTimeout:      120 * time.Second,
			RequestTimeout:   90 * time.Second,
			GracefulShutdown: 10 * time.Second,
			MaxUploadBytes:   64 << 20,
			AllowedOrigins:   []string{"*"},
		},
		Capture: CaptureConfig{
			FFmpegPath:   "ffmpeg",
			InputFormat:  defaultInputFormat(),
			Device:       defaultDevice(),
			FrameTimeout: 5 * time.Second,
			PageWidthMM:  210,
			JPEGQuality:  100,
		},
		Render: RenderConfig{
			Scale: 1.5,
		},
		Annotation: AnnotationConfig{
			Placeholder: "Edit Me",
			Color:       "#000000",
			FontSize:    18,
			FontFamily:  "Go Regular",
			JPEGQuality: 100,
			SessionTTL:  30 * time.Minute,
			MaxSessions: 64,
		},
		Extract: ExtractConfig{
			Engine: "mupdf",
		},
		Output: OutputConfig{
			Dir: ".",
		},
		Cache: CacheConfig{
			Driver: "memory",
			Name:   "snap2pdf-cache-v1",
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "snap2pdf:assets:",
			},
		},
		Audit: AuditConfig{
			Driver: "none",
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			LogFormat:   "console",
			ServiceName: "snap2pdf",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("max_upload_bytes must be positive")
	}

	if c.Capture.PageWidthMM <= 0 {
		return fmt.Errorf("capture.page_width_mm must be positive")
	}
	if err := validateQuality("capture.jpeg_quality", c.Capture.JPEGQuality); err != nil {
		return err
	}
	if c.Capture.MaxWidth < 0 {
		return fmt.Errorf("capture.max_width must not be negative")
	}

	if c.Render.Scale <= 0 || c.Render.Scale > 8 {
		return fmt.Errorf("render.scale must be in (0, 8], got %g", c.Render.Scale)
	}

	if c.Annotation.FontSize <= 0 {
		return fmt.Errorf("annotation.font_size must be positive")
	}
	if err := validateQuality("annotation.jpeg_quality", c.Annotation.JPEGQuality); err != nil {
		return err
	}
	if c.Annotation.MaxSessions < 1 {
		return fmt.Errorf("annotation.max_sessions must be at least 1")
	}
	if c.Annotation.SessionTTL <= 0 {
		return fmt.Errorf("annotation.session_ttl must be positive")
	}

	if c.Extract.Engine != "mupdf" && c.Extract.Engine != "native" {
		return fmt.Errorf("invalid extract engine: %s", c.Extract.Engine)
	}

	if c.Cache.Driver != "memory" && c.Cache.Driver != "redis" {
		return fmt.Errorf("invalid cache driver: %s", c.Cache.Driver)
	}
	if strings.TrimSpace(c.Cache.Name) == "" {
		return fmt.Errorf("cache name cannot be empty")
	}

	switch c.Audit.Driver {
	case "none":
	case "sqlite", "postgres":
		if c.Audit.DSN == "" {
			return fmt.Errorf("audit driver %s needs a dsn", c.Audit.Driver)
		}
	default:
		return fmt.Errorf("invalid audit driver: %s", c.Audit.Driver)
	}

	return nil
}

// Addr returns the host:port the server listens on.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func validateQuality(field string, q int) error {
	if q < 1 || q > 100 {
		return fmt.Errorf("%s must be between 1 and 100, got %d", field, q)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("SERVER_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}

	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Cache.Driver = "redis"
		cfg.Cache.Redis.Addr = strings.TrimPrefix(v, "redis://")
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		switch {
		case strings.HasPrefix(v, "sqlite:"):
			cfg.Audit.Driver = "sqlite"
			cfg.Audit.DSN = strings.TrimPrefix(v, "sqlite:")
		case strings.HasPrefix(v, "postgres"):
			cfg.Audit.Driver = "postgres"
			cfg.Audit.DSN = v
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}

	if v := os.Getenv("SNAP2PDF_OUTPUT_DIR"); v != "" {
		cfg.Output.Dir = v
	}

	if v := os.Getenv("SNAP2PDF_CAMERA_DEVICE"); v != "" {
		cfg.Capture.Device = v
	}

	if v := os.Getenv("SNAP2PDF_FFMPEG"); v != "" {
		cfg.Capture.FFmpegPath = v
	}

	if v := os.Getenv("SNAP2PDF_EXTRACT_ENGINE"); v != "" {
		cfg.Extract.Engine = v
	}

	if v := os.Getenv("SNAP2PDF_RENDER_SCALE"); v != "" {
		scale, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("SNAP2PDF_RENDER_SCALE: %w", err)
		}
		cfg.Render.Scale = scale
	}

	if v := os.Getenv("SNAP2PDF_CACHE_NAME"); v != "" {
		cfg.Cache.Name = v
	}

	return nil
}
