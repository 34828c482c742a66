// Package config loads the proxy configuration from defaults, an optional
// YAML file and the environment, in that order of precedence (lowest first).
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/Sternrassler/sw-proxy/pkg/logging"
	"gopkg.in/yaml.v3"
)

// Environment variables read by Load.
const (
	EnvPort            = "PORT"
	EnvAPIBase         = "SW_API_BASE"
	EnvImageHTTPSBase  = "VG_HTTPS_BASE"
	EnvImageHTTPBase   = "VG_HTTP_BASE"
	EnvImageCDNBase    = "IMG_CDN_BASE"
	EnvUpstreamTimeout = "UPSTREAM_TIMEOUT"
	EnvCoalesce        = "COALESCE_FETCHES"
	EnvLogLevel        = "LOG_LEVEL"
	EnvLogPretty       = "LOG_PRETTY"
)

// Config is the complete proxy configuration.
type Config struct {
	// Port is the TCP port to listen on
	Port int `yaml:"port"`

	// APIBase is the JSON API origin
	APIBase string `yaml:"api_base"`

	// ImageHTTPSBase is the primary image location
	ImageHTTPSBase string `yaml:"image_https_base"`

	// ImageHTTPBase is the plain-HTTP image mirror
	ImageHTTPBase string `yaml:"image_http_base"`

	// ImageCDNBase is the image CDN endpoint taking ?url=
	ImageCDNBase string `yaml:"image_cdn_base"`

	// UpstreamTimeout bounds one upstream attempt
	UpstreamTimeout time.Duration `yaml:"upstream_timeout"`

	// Coalesce shares one upstream request between concurrent cold fetches
	Coalesce bool `yaml:"coalesce_fetches"`

	// ShutdownTimeout bounds the drain of in-flight requests on exit
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// LogLevel is debug, info, warn or error
	LogLevel string `yaml:"log_level"`

	// LogPretty switches from JSON to console log output
	LogPretty bool `yaml:"log_pretty"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Port:            8787,
		APIBase:         "https://sw-api.starnavi.io",
		ImageHTTPSBase:  "https://starwars-visualguide.com/assets/img",
		ImageHTTPBase:   "http://starwars-visualguide.com/assets/img",
		ImageCDNBase:    "https://images.weserv.nl/",
		UpstreamTimeout: 10 * time.Second,
		Coalesce:        true,
		ShutdownTimeout: 10 * time.Second,
		LogLevel:        string(logging.LevelInfo),
		LogPretty:       false,
	}
}

// Load builds the configuration. path may be empty; a named file that does
// not exist is an error. The result is validated.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.APIBase = getEnv(EnvAPIBase, c.APIBase)
	c.ImageHTTPSBase = getEnv(EnvImageHTTPSBase, c.ImageHTTPSBase)
	c.ImageHTTPBase = getEnv(EnvImageHTTPBase, c.ImageHTTPBase)
	c.ImageCDNBase = getEnv(EnvImageCDNBase, c.ImageCDNBase)
	c.LogLevel = getEnv(EnvLogLevel, c.LogLevel)

	if v := getEnv(EnvPort, ""); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPort, err)
		}
		c.Port = port
	}

	if v := getEnv(EnvUpstreamTimeout, ""); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvUpstreamTimeout, err)
		}
		c.UpstreamTimeout = d
	}

	for key, dst := range map[string]*bool{
		EnvCoalesce:  &c.Coalesce,
		EnvLogPretty: &c.LogPretty,
	} {
		if v := getEnv(key, ""); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = b
		}
	}

	return nil
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port must be between 1 and 65535 (got %d)", c.Port))
	}

	for name, base := range map[string]string{
		"api_base":         c.APIBase,
		"image_https_base": c.ImageHTTPSBase,
		"image_http_base":  c.ImageHTTPBase,
		"image_cdn_base":   c.ImageCDNBase,
	} {
		u, err := url.Parse(base)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s must be an absolute http(s) URL (got %q)", name, base))
		}
	}

	if c.UpstreamTimeout <= 0 {
		errs = append(errs, fmt.Errorf("upstream_timeout must be positive (got %s)", c.UpstreamTimeout))
	}

	if c.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("shutdown_timeout must be positive (got %s)", c.ShutdownTimeout))
	}

	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Addr is the listen address for Port.
func (c Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
