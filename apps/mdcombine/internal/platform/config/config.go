// Package config loads mdcombine settings.
//
// Sources, later ones winning:
//
//  1. built-in defaults
//  2. a YAML file named by --config or CONFIG_FILE
//  3. environment variables (a .env file in the working directory is loaded
//     first; variables already set in the process take precedence over it)
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

// Config is the full runtime configuration.
type Config struct {
	GitHub GitHub `yaml:"github"`
	Server Server `yaml:"server"`
	Export Export `yaml:"export"`
	Redis  Redis  `yaml:"redis"`

	OTelEnabled bool `yaml:"-"`
}

// GitHub configures the remote repository client.
type GitHub struct {
	Token         string        `yaml:"token"`
	APIURL        string        `yaml:"apiURL"`
	RetryAttempts int           `yaml:"retryAttempts"`
	RetryDelay    time.Duration `yaml:"retryDelay"`
	HTTPTimeout   time.Duration `yaml:"httpTimeout"`
	Concurrency   int           `yaml:"concurrency"`
}

// Server configures the HTTP listener.
type Server struct {
	Port        string   `yaml:"port"`
	CORSOrigins []string `yaml:"corsOrigins"`
}

// Export configures artifact output.
type Export struct {
	OutputDir string `yaml:"outputDir"`
	ChromeBin string `yaml:"chromeBin"`
}

// Redis enables cross-process artifact locks when Addr is set.
type Redis struct {
	Addr    string        `yaml:"addr"`
	LockTTL time.Duration `yaml:"lockTTL"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		GitHub: GitHub{
			APIURL:        "https://api.github.com",
			RetryAttempts: 3,
			RetryDelay:    time.Second,
			HTTPTimeout:   30 * time.Second,
			Concurrency:   4,
		},
		Server: Server{
			Port:        "3000",
			CORSOrigins: []string{"*"},
		},
		Export: Export{
			OutputDir: "Downloads",
		},
		Redis: Redis{
			LockTTL: 2 * time.Minute,
		},
	}
}

// Load reads .env, the optional YAML file and the process environment.
// file overrides CONFIG_FILE when non-empty.
func Load(file string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if file == "" {
		file = os.Getenv("CONFIG_FILE")
	}
	return LoadWith(file, os.LookupEnv)
}

// LoadWith builds a Config from an optional YAML file and an environment lookup.
func LoadWith(file string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", file, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", file, err)
		}
	}

	if err := applyEnv(&cfg, lookup); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %q is not an integer", key, v)
		}
		*dst = n
		return nil
	}
	dur := func(key string, dst *time.Duration) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %q is not a duration", key, v)
		}
		*dst = d
		return nil
	}

	str("GITHUB_TOKEN", &cfg.GitHub.Token)
	str("GITHUB_API_URL", &cfg.GitHub.APIURL)
	str("PORT", &cfg.Server.Port)
	str("OUTPUT_DIR", &cfg.Export.OutputDir)
	str("CHROME_BIN", &cfg.Export.ChromeBin)
	str("REDIS_ADDR", &cfg.Redis.Addr)
	if v, ok := lookup("CORS_ORIGINS"); ok && v != "" {
		cfg.Server.CORSOrigins = splitList(v)
	}
	if v, ok := lookup("OTEL_ENABLED"); ok {
		cfg.OTelEnabled = v == "true"
	}

	return errors.Join(
		num("RETRY_ATTEMPTS", &cfg.GitHub.RetryAttempts),
		dur("RETRY_DELAY", &cfg.GitHub.RetryDelay),
		dur("HTTP_TIMEOUT", &cfg.GitHub.HTTPTimeout),
		num("CONCURRENCY", &cfg.GitHub.Concurrency),
		dur("LOCK_TTL", &cfg.Redis.LockTTL),
	)
}

// Validate rejects values the rest of the program cannot work with.
func (c *Config) Validate() error {
	var errs []error
	if c.GitHub.RetryAttempts < 1 {
		errs = append(errs, fmt.Errorf("retry attempts must be at least 1, got %d", c.GitHub.RetryAttempts))
	}
	if c.GitHub.RetryDelay < 0 {
		errs = append(errs, fmt.Errorf("retry delay must not be negative, got %s", c.GitHub.RetryDelay))
	}
	if c.GitHub.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency must be at least 1, got %d", c.GitHub.Concurrency))
	}
	if c.Export.OutputDir == "" {
		errs = append(errs, errors.New("output dir must not be empty"))
	}
	if c.Redis.Addr != "" && c.Redis.LockTTL <= 0 {
		errs = append(errs, fmt.Errorf("lock ttl must be positive, got %s", c.Redis.LockTTL))
	}
	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
