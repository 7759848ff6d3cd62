// CLAUDE:SUMMARY YAML service configuration: listen address, database, blob driver, link preview chain, MCP, events, limits.
package server

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/yeoju/blobstore"
)

// Config holds the full service configuration.
type Config struct {
	Listen    string          `yaml:"listen"`
	DBPath    string          `yaml:"db_path"`
	LogLevel  string          `yaml:"log_level"`
	MaxBodyMB int             `yaml:"max_body_mb"`
	Blob      BlobConfig      `yaml:"blob"`
	Editor    EditorConfig    `yaml:"editor"`
	Preview   PreviewConfig   `yaml:"preview"`
	MCP       MCPConfig       `yaml:"mcp"`
	Events    EventsConfig    `yaml:"events"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// BlobConfig selects and configures the Blob Store.
type BlobConfig struct {
	Driver    string        `yaml:"driver"` // worker | fs
	WorkerURL string        `yaml:"worker_url"`
	Dir       string        `yaml:"dir"`
	PublicURL string        `yaml:"public_url"`
	Timeout   time.Duration `yaml:"timeout"`
}

// EditorConfig configures editing sessions.
type EditorConfig struct {
	MaxFileMB     int           `yaml:"max_file_mb"`
	DefaultFolder string        `yaml:"default_folder"`
	DraftIdle     time.Duration `yaml:"draft_idle"`
}

// PreviewConfig configures the link metadata chain: microlink first, then the
// page's own OpenGraph tags, optionally rendered through a remote Chrome.
type PreviewConfig struct {
	MicrolinkURL     string        `yaml:"microlink_url"`
	OpenGraph        bool          `yaml:"opengraph"`
	BrowserURL       string        `yaml:"browser_url"`
	Timeout          time.Duration `yaml:"timeout"`
	BreakerThreshold int           `yaml:"breaker_threshold"`
	BreakerReset     time.Duration `yaml:"breaker_reset"`
}

// MCPConfig toggles the MCP endpoint at /mcp.
type MCPConfig struct {
	Enabled bool `yaml:"enabled"`
}

// EventsConfig configures the business event log.
type EventsConfig struct {
	Enabled       bool `yaml:"enabled"`
	BufferSize    int  `yaml:"buffer_size"`
	RetentionDays int  `yaml:"retention_days"`
}

// RateLimitConfig caps link resolutions and uploads per client and window.
// Zero disables a limit.
type RateLimitConfig struct {
	Links  int           `yaml:"links"`
	Images int           `yaml:"images"`
	Window time.Duration `yaml:"window"`
}

// DefaultConfig returns sane defaults for local development.
func DefaultConfig() *Config {
	return &Config{
		Listen:    ":8090",
		DBPath:    "data/yeoju.db",
		LogLevel:  "info",
		MaxBodyMB: 64,
		Blob: BlobConfig{
			Driver:    "fs",
			Dir:       "data/blobs",
			PublicURL: "http://localhost:8090/files",
			Timeout:   30 * time.Second,
		},
		Editor: EditorConfig{
			MaxFileMB: 10,
			DraftIdle: 2 * time.Hour,
		},
		Preview: PreviewConfig{
			MicrolinkURL:     "https://api.microlink.io",
			OpenGraph:        true,
			Timeout:          10 * time.Second,
			BreakerThreshold: 5,
			BreakerReset:     30 * time.Second,
		},
		Events: EventsConfig{
			Enabled:       true,
			BufferSize:    256,
			RetentionDays: 30,
		},
		RateLimit: RateLimitConfig{
			Links:  30,
			Images: 60,
			Window: time.Minute,
		},
	}
}

// LoadConfig reads a YAML file over DefaultConfig and validates the result.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen is required")
	}
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.MaxBodyMB <= 0 {
		return fmt.Errorf("max_body_mb must be > 0")
	}
	switch c.Blob.Driver {
	case "worker":
		if c.Blob.WorkerURL == "" {
			return fmt.Errorf("blob.worker_url is required for the worker driver")
		}
	case "fs":
		if c.Blob.Dir == "" || c.Blob.PublicURL == "" {
			return fmt.Errorf("blob.dir and blob.public_url are required for the fs driver")
		}
	default:
		return fmt.Errorf("unsupported blob.driver %q (use worker or fs)", c.Blob.Driver)
	}
	if c.Editor.MaxFileMB <= 0 {
		return fmt.Errorf("editor.max_file_mb must be > 0")
	}
	if int64(c.Editor.MaxFileMB) > int64(c.MaxBodyMB) {
		return fmt.Errorf("editor.max_file_mb (%d) exceeds max_body_mb (%d)", c.Editor.MaxFileMB, c.MaxBodyMB)
	}
	if c.Editor.DefaultFolder != "" && !blobstore.ValidFolder(c.Editor.DefaultFolder) {
		return fmt.Errorf("editor.default_folder %q is not a known folder", c.Editor.DefaultFolder)
	}
	if c.Preview.BreakerThreshold < 0 {
		return fmt.Errorf("preview.breaker_threshold must be >= 0")
	}
	if c.RateLimit.Links < 0 || c.RateLimit.Images < 0 {
		return fmt.Errorf("rate_limit values must be >= 0")
	}
	return nil
}

// MaxFileBytes returns the per-file upload limit in bytes.
func (c *Config) MaxFileBytes() int64 { return int64(c.Editor.MaxFileMB) << 20 }

// MaxBodyBytes returns the request body cap in bytes.
func (c *Config) MaxBodyBytes() int64 { return int64(c.MaxBodyMB) << 20 }

// Level returns the configured slog level.
func (c *Config) Level() slog.Level {
	l, _ := parseLevel(c.LogLevel)
	return l
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unsupported log_level %q", s)
}
