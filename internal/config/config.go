// Package config loads cineswipe configuration.
//
// Values are layered, later layers winning: built-in defaults, an optional
// YAML file, then CINESWIPE_* environment variables. A nested key is
// spelled with a double underscore, so client.server_url is
// CINESWIPE_CLIENT__SERVER_URL.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/abelbrown/cineswipe/internal/media"
)

// PathEnvVar names an explicit config file.
const PathEnvVar = "CINESWIPE_CONFIG"

const envPrefix = "CINESWIPE_"

// Delivery modes for the client.
const (
	ModeStream = "stream" // SSE from the backend
	ModePaged  = "paged"  // whole JSON pages from the backend
	ModeDirect = "direct" // no backend: assemble pages from TMDB in-process
)

// Config is the full configuration.
type Config struct {
	Client ClientConfig `koanf:"client"`
	Server ServerConfig `koanf:"server"`
	TMDB   TMDBConfig   `koanf:"tmdb"`
	Log    LogConfig    `koanf:"log"`
}

// ClientConfig drives the terminal client and its feed engine.
type ClientConfig struct {
	ServerURL      string        `koanf:"server_url"`
	Mode           string        `koanf:"mode"`
	ContentType    string        `koanf:"content_type"`
	Threshold      float64       `koanf:"threshold"`
	Debounce       time.Duration `koanf:"debounce"`
	NearEndOffset  int           `koanf:"near_end_offset"`
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
	RetryDelay     time.Duration `koanf:"retry_delay"`
	PageTimeout    time.Duration `koanf:"page_timeout"`
	PrefsPath      string        `koanf:"prefs_path"` // empty keeps preferences in memory
}

// ServerConfig drives the streaming backend.
type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	PageSize        int           `koanf:"page_size"`
	PriorityCount   int           `koanf:"priority_count"`
	BatchSize       int           `koanf:"batch_size"`
	Concurrency     int           `koanf:"concurrency"`
	DetailTimeout   time.Duration `koanf:"detail_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// TMDBConfig configures the metadata provider.
type TMDBConfig struct {
	BaseURL    string        `koanf:"base_url"`
	Token      string        `koanf:"token"`
	Language   string        `koanf:"language"`
	Rate       float64       `koanf:"rate"`
	Timeout    time.Duration `koanf:"timeout"`
	MaxRetries int           `koanf:"max_retries"`
}

// LogConfig configures the file logger and the event log.
type LogConfig struct {
	Level  string `koanf:"level"`
	Dir    string `koanf:"dir"`
	Events bool   `koanf:"events"` // write the JSONL event log next to the text log
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Client: ClientConfig{
			ServerURL:      "http://localhost:8080",
			Mode:           ModeStream,
			ContentType:    string(media.Movie),
			Threshold:      0.6,
			Debounce:       120 * time.Millisecond,
			NearEndOffset:  3,
			ConnectTimeout: 30 * time.Second,
			RetryDelay:     time.Second,
			PageTimeout:    30 * time.Second,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			PageSize:        20,
			PriorityCount:   6,
			BatchSize:       5,
			Concurrency:     6,
			DetailTimeout:   10 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		TMDB: TMDBConfig{
			BaseURL:    "https://api.themoviedb.org/3",
			Language:   "en-US",
			Rate:       4,
			Timeout:    15 * time.Second,
			MaxRetries: 3,
		},
		Log: LogConfig{
			Level: "info",
			Dir:   "", // logging.DefaultDir
		},
	}
}

// DefaultDir is ~/.cineswipe.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cineswipe"
	}
	return filepath.Join(home, ".cineswipe")
}

// Path returns the config file to load: $CINESWIPE_CONFIG if set,
// otherwise ~/.cineswipe/config.yaml.
func Path() string {
	if p := os.Getenv(PathEnvVar); p != "" {
		return p
	}
	return filepath.Join(DefaultDir(), "config.yaml")
}

// Load reads the default config file. A missing default file is not an
// error; a missing file named by CINESWIPE_CONFIG is.
func Load() (*Config, error) {
	path := Path()
	if os.Getenv(PathEnvVar) == "" {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			path = ""
		}
	}
	return LoadFile(path)
}

// LoadFile layers defaults, the YAML file at path (skipped when empty) and
// the environment.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(DefaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.AutoPopulateFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// envKey maps CINESWIPE_CLIENT__SERVER_URL to client.server_url.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// AutoPopulateFromEnv fills the TMDB token from the conventional variables
// when the config does not set one.
func (c *Config) AutoPopulateFromEnv() {
	if c.TMDB.Token != "" {
		return
	}
	for _, name := range []string{"TMDB_TOKEN", "TMDB_API_KEY"} {
		if v := os.Getenv(name); v != "" {
			c.TMDB.Token = v
			return
		}
	}
}

// Validate rejects values no component can work with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Client.Mode {
	case ModeStream, ModePaged, ModeDirect:
	default:
		errs = append(errs, fmt.Errorf("client.mode: unknown mode %q", c.Client.Mode))
	}
	if _, err := media.ParseContentType(c.Client.ContentType); err != nil {
		errs = append(errs, fmt.Errorf("client.content_type: %w", err))
	}
	if c.Client.Threshold <= 0 || c.Client.Threshold > 1 {
		errs = append(errs, fmt.Errorf("client.threshold: %v not in (0, 1]", c.Client.Threshold))
	}
	if c.Client.Debounce < 0 {
		errs = append(errs, errors.New("client.debounce: negative"))
	}
	if c.Client.NearEndOffset < 1 {
		errs = append(errs, errors.New("client.near_end_offset: must be at least 1"))
	}
	if c.Client.Mode != ModeDirect && c.Client.ServerURL == "" {
		errs = append(errs, errors.New("client.server_url: required"))
	}
	if c.Server.PageSize < 1 || c.Server.PriorityCount < 1 || c.Server.BatchSize < 1 || c.Server.Concurrency < 1 {
		errs = append(errs, errors.New("server: page_size, priority_count, batch_size and concurrency must be positive"))
	}
	if c.TMDB.Rate <= 0 {
		errs = append(errs, errors.New("tmdb.rate: must be positive"))
	}
	if c.TMDB.MaxRetries < 0 {
		errs = append(errs, errors.New("tmdb.max_retries: negative"))
	}
	return errors.Join(errs...)
}

// ContentType returns the parsed client content type.
func (c *Config) ContentType() media.ContentType {
	ct, err := media.ParseContentType(c.Client.ContentType)
	if err != nil {
		return media.Movie
	}
	return ct
}
