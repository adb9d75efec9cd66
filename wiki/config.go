package wiki

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied by DefaultConfig
const (
	DefaultEndpoint  = "https://en.wikipedia.org/w/api.php"
	DefaultRate      = 6 * time.Second
	DefaultTimeout   = 30 * time.Second
	DefaultUserAgent = "mediawiki-bot/1.0 (https://github.com/olgasafonova/mediawiki-bot)"
	DefaultByeline   = "(using mediawiki-bot)"
)

// Config holds the settings of one Bot. A Bot copies it at construction.
type Config struct {
	// BaseURL is the wiki API endpoint (e.g., https://wiki.example.com/w/api.php)
	BaseURL string `yaml:"endpoint"`

	// Rate is the minimum time between a response and the next request.
	// In YAML it is a duration ("6s") or a bare number of milliseconds (6000).
	Rate time.Duration `yaml:"rate"`

	// UserAgent identifies the client to the wiki
	UserAgent string `yaml:"user_agent"`

	// Byeline is appended to every Edit summary
	Byeline string `yaml:"byeline"`

	// NoByeline leaves Edit summaries untouched
	NoByeline bool `yaml:"no_byeline"`

	// Timeout for a single HTTP round trip
	Timeout time.Duration `yaml:"timeout"`

	// Username for bot password authentication (optional, used by drivers)
	Username string `yaml:"username"`

	// Password for bot password authentication (optional, used by drivers)
	Password string `yaml:"password"`
}

// DefaultConfig returns the settings used when nothing is configured
func DefaultConfig() Config {
	return Config{
		BaseURL:   DefaultEndpoint,
		Rate:      DefaultRate,
		UserAgent: DefaultUserAgent,
		Byeline:   DefaultByeline,
		Timeout:   DefaultTimeout,
	}
}

// withDefaults fills every unset field from DefaultConfig. A zero Rate means
// the default interval, not an unthrottled stream.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.BaseURL == "" {
		c.BaseURL = def.BaseURL
	}
	if c.Rate == 0 {
		c.Rate = def.Rate
	}
	if c.UserAgent == "" {
		c.UserAgent = def.UserAgent
	}
	if c.Byeline == "" {
		c.Byeline = def.Byeline
	}
	if c.Timeout == 0 {
		c.Timeout = def.Timeout
	}
	return c
}

// UnmarshalYAML reads rate with the same rules as MEDIAWIKI_RATE.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	type plain Config
	p := plain(*c)

	rest := *value
	var rate *yaml.Node
	if value.Kind == yaml.MappingNode {
		rest.Content = nil
		for i := 0; i+1 < len(value.Content); i += 2 {
			if value.Content[i].Value == "rate" {
				rate = value.Content[i+1]
				continue
			}
			rest.Content = append(rest.Content, value.Content[i], value.Content[i+1])
		}
	}
	if err := rest.Decode(&p); err != nil {
		return err
	}

	if rate != nil {
		if rate.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: rate must be a duration or a number of milliseconds", rate.Line)
		}
		d, err := parseRate(rate.Value)
		if err != nil {
			return fmt.Errorf("line %d: invalid rate %q: %w", rate.Line, rate.Value, err)
		}
		p.Rate = d
	}
	*c = Config(p)
	return nil
}

// LoadConfig loads configuration from environment variables on top of the defaults
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadConfigFile reads a YAML file over the defaults, then applies environment
// overrides.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("MEDIAWIKI_URL"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv("MEDIAWIKI_RATE"); v != "" {
		d, err := parseRate(v)
		if err != nil {
			return fmt.Errorf("invalid MEDIAWIKI_RATE %q: %w", v, err)
		}
		c.Rate = d
	}
	if v := os.Getenv("MEDIAWIKI_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid MEDIAWIKI_TIMEOUT %q: %w", v, err)
		}
		c.Timeout = d
	}
	if v := os.Getenv("MEDIAWIKI_USER_AGENT"); v != "" {
		c.UserAgent = v
	}
	if v, ok := os.LookupEnv("MEDIAWIKI_BYELINE"); ok {
		// Set but empty turns the byeline off.
		c.Byeline = v
		c.NoByeline = v == ""
	}
	if v := os.Getenv("MEDIAWIKI_USERNAME"); v != "" {
		c.Username = v
	}
	if v := os.Getenv("MEDIAWIKI_PASSWORD"); v != "" {
		c.Password = v
	}
	return nil
}

// parseRate accepts a Go duration ("6s") or a bare number of milliseconds ("6000").
func parseRate(s string) (time.Duration, error) {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return time.ParseDuration(s)
}

// Validate checks that the configuration can drive a Bot
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("endpoint is required (set MEDIAWIKI_URL)")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid endpoint %q: %w", c.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid endpoint %q: scheme must be http or https", c.BaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid endpoint %q: missing host", c.BaseURL)
	}
	if c.Rate < 0 {
		return fmt.Errorf("rate must not be negative, got %v", c.Rate)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %v", c.Timeout)
	}
	return nil
}

// HasCredentials returns true if authentication credentials are configured
func (c *Config) HasCredentials() bool {
	return c.Username != "" && c.Password != ""
}
