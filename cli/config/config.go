package config

import (
	"errors"
	"fmt"
	"time"
)

// Endpoint types accepted in endpoint.type.
const (
	EndpointStdout  = "stdout"
	EndpointWebhook = "webhook"
	EndpointRedis   = "redis"
)

// Validation errors.
var (
	ErrUnknownEndpoint = errors.New("unknown endpoint type")
	ErrEndpointURL     = errors.New("endpoint url is required")
	ErrNegativeRetries = errors.New("endpoint retries must be >= 0")
)

// Config represents an intake.yaml configuration file.
// All values are optional and act as defaults for intake serve flags.
// CLI flags always override config values.
type Config struct {
	ScratchDir     string          `yaml:"scratch_dir"`
	Channel        string          `yaml:"channel"`
	VerifyDirect   bool            `yaml:"verify_direct"`
	ReclaimMaxAge  Duration        `yaml:"reclaim_max_age"`
	HandlerTimeout Duration        `yaml:"handler_timeout"`
	Providers      ProvidersConfig `yaml:"providers"`
	Endpoint       EndpointConfig  `yaml:"endpoint"`
}

// ProvidersConfig selects the content providers used for Indirect addresses.
type ProvidersConfig struct {
	Content ContentConfig `yaml:"content"`
	S3      S3Config      `yaml:"s3"`
	HTTP    HTTPConfig    `yaml:"http"`
}

// ContentConfig serves content:// addresses from a filesystem root,
// one subdirectory per authority.
type ContentConfig struct {
	Root string `yaml:"root"`
}

// S3Config enables s3:// addresses.
type S3Config struct {
	Enabled   bool   `yaml:"enabled"`
	Prefix    string `yaml:"prefix"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style"`
}

// HTTPConfig enables http:// and https:// addresses.
type HTTPConfig struct {
	Enabled bool              `yaml:"enabled"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
}

// EndpointConfig selects where notifications go on attach.
type EndpointConfig struct {
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// Validate checks the endpoint section.
func (c *Config) Validate() error {
	ep := c.Endpoint
	switch ep.Type {
	case "", EndpointStdout:
	case EndpointWebhook, EndpointRedis:
		if ep.URL == "" {
			return fmt.Errorf("%w for %s", ErrEndpointURL, ep.Type)
		}
	default:
		return fmt.Errorf("%w %q", ErrUnknownEndpoint, ep.Type)
	}
	if ep.Retries != nil && *ep.Retries < 0 {
		return fmt.Errorf("%w, got %d", ErrNegativeRetries, *ep.Retries)
	}
	return nil
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}
