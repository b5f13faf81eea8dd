// Package config holds the sealpost configuration file format.
package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/sealpost/sealpost/internal/envelope"
)

const (
	// FormatHybrid is the colon-joined RSA-OAEP/AES-256-CBC envelope.
	FormatHybrid = "hybrid"
	// FormatJWE is compact JWE with RSA-OAEP-256 and A256GCM.
	FormatJWE = "jwe"
)

// Config wraps the options for sealing and posting envelopes.
type Config struct {
	Key       Key       `yaml:"key"`
	Envelope  Envelope  `yaml:"envelope"`
	Transport Transport `yaml:"transport"`
}

// Key selects where the wrapping public key comes from. With neither Path nor
// JWKSURL set, the embedded key is used.
type Key struct {
	Path     string        `yaml:"path,omitempty"`
	JWKSURL  string        `yaml:"jwks-url,omitempty"`
	KeyID    string        `yaml:"key-id,omitempty"`
	CacheTTL time.Duration `yaml:"cache-ttl,omitempty"`
}

// Envelope selects the envelope format and its encoding options.
type Envelope struct {
	Format            string `yaml:"format"`
	Escaping          string `yaml:"escaping"`
	PlaintextEncoding string `yaml:"plaintext-encoding"`
}

// Transport is the configuration of the server where envelopes are posted.
type Transport struct {
	Endpoint     string        `yaml:"endpoint,omitempty"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetryTime time.Duration `yaml:"max-retry-time"`
}

// Default returns a Config with every default applied.
func Default() Config {
	var c Config
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.Envelope.Format == "" {
		c.Envelope.Format = FormatHybrid
	}

	if c.Envelope.Escaping == "" {
		c.Envelope.Escaping = envelope.EscapeNone.String()
	}

	if c.Envelope.PlaintextEncoding == "" {
		c.Envelope.PlaintextEncoding = envelope.CharCode.String()
	}

	if c.Transport.Timeout == 0 {
		c.Transport.Timeout = 30 * time.Second
	}

	if c.Transport.MaxRetryTime == 0 {
		c.Transport.MaxRetryTime = 2 * time.Minute
	}
}

// Dump generates a YAML string of the Config object
func (c *Config) Dump() (string, error) {
	d, err := yaml.Marshal(&c)

	if err != nil {
		return "", errors.Wrap(err, "failed to generate YAML dump of config")
	}

	return string(d), nil
}

// Validate checks the whole configuration and reports every problem found.
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.Key.Path != "" && c.Key.JWKSURL != "" {
		result = multierror.Append(result, fmt.Errorf("key path and key jwks-url are mutually exclusive"))
	}

	if c.Key.JWKSURL != "" {
		if err := validateURL(c.Key.JWKSURL); err != nil {
			result = multierror.Append(result, fmt.Errorf("key jwks-url: %w", err))
		}
	}

	if c.Key.CacheTTL < 0 {
		result = multierror.Append(result, fmt.Errorf("key cache-ttl cannot be negative"))
	}

	switch c.Envelope.Format {
	case FormatHybrid, FormatJWE:
	default:
		result = multierror.Append(result, fmt.Errorf("unknown envelope format %q (expected %s or %s)", c.Envelope.Format, FormatHybrid, FormatJWE))
	}

	if _, err := envelope.ParseEscaping(c.Envelope.Escaping); err != nil {
		result = multierror.Append(result, err)
	}

	if _, err := envelope.ParsePlaintextEncoding(c.Envelope.PlaintextEncoding); err != nil {
		result = multierror.Append(result, err)
	}

	if c.Transport.Endpoint != "" {
		if err := validateURL(c.Transport.Endpoint); err != nil {
			result = multierror.Append(result, fmt.Errorf("transport endpoint: %w", err))
		}
	}

	if c.Transport.Timeout < 0 {
		result = multierror.Append(result, fmt.Errorf("transport timeout cannot be negative"))
	}

	if c.Transport.MaxRetryTime < 0 {
		result = multierror.Append(result, fmt.Errorf("transport max-retry-time cannot be negative"))
	}

	return result.ErrorOrNil()
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}

	if u.Host == "" {
		return fmt.Errorf("host is required")
	}

	return nil
}

// ParseConfig reads config into a struct, applying defaults before validating it.
func ParseConfig(data []byte) (Config, error) {
	var config Config

	err := yaml.UnmarshalStrict(data, &config)
	if err != nil {
		return config, err
	}

	config.applyDefaults()

	if err = config.Validate(); err != nil {
		return config, err
	}

	return config, nil
}

// Load reads and parses the config file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	config, err := ParseConfig(data)
	if err != nil {
		return config, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return config, nil
}
