// Package config loads client configuration from YAML files and maps
// it onto gonats.Options.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	gonats "github.com/gftdcojp/gonats"
)

type Config struct {
	Servers   []string        `yaml:"servers"`
	Name      string          `yaml:"name"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
	TLS       TLSConfig       `yaml:"tls"`
	Auth      AuthConfig      `yaml:"auth"`
	Timeouts  TimeoutConfig   `yaml:"timeouts"`
	Echo      *bool           `yaml:"echo"`
	Verbose   bool            `yaml:"verbose"`
	Pedantic  bool            `yaml:"pedantic"`
	// InboxPrefix overrides the reply-inbox root.
	InboxPrefix string        `yaml:"inbox_prefix"`
	MaxPayload  int64         `yaml:"max_payload"`
	Metrics     MetricsConfig `yaml:"metrics"`
}

type ReconnectConfig struct {
	// Preset selects default/disabled/aggressive/conservative;
	// individual fields below override the preset.
	Preset       string   `yaml:"preset"`
	MaxAttempts  *int     `yaml:"max_attempts"`
	InitialDelay Duration `yaml:"initial_delay"`
	MaxDelay     Duration `yaml:"max_delay"`
	Jitter       *float64 `yaml:"jitter"`
	Multiplier   *float64 `yaml:"multiplier"`
}

type TLSConfig struct {
	Enabled            bool   `yaml:"enabled"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
	CAFile             string `yaml:"ca_file"`
	CertFile           string `yaml:"cert_file"`
	KeyFile            string `yaml:"key_file"`
	ServerName         string `yaml:"server_name"`
}

type AuthConfig struct {
	Token           string `yaml:"token"`
	User            string `yaml:"user"`
	Pass            string `yaml:"pass"`
	NKeySeedFile    string `yaml:"nkey_seed_file"`
	CredentialsFile string `yaml:"credentials_file"`
}

type TimeoutConfig struct {
	Connect      Duration `yaml:"connect"`
	Request      Duration `yaml:"request"`
	Drain        Duration `yaml:"drain"`
	PingInterval Duration `yaml:"ping_interval"`
	MaxPingsOut  *int     `yaml:"max_pings_out"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
	Path    string `yaml:"path"`
}

// Load reads, parses, and validates a YAML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	authSet := 0
	if c.Auth.Token != "" {
		authSet++
	}
	if c.Auth.User != "" {
		authSet++
	}
	if c.Auth.NKeySeedFile != "" {
		authSet++
	}
	if c.Auth.CredentialsFile != "" {
		authSet++
	}
	if authSet > 1 {
		return fmt.Errorf("auth: at most one of token, user, nkey_seed_file, credentials_file")
	}

	switch c.Reconnect.Preset {
	case "", "default", "disabled", "aggressive", "conservative":
	default:
		return fmt.Errorf("reconnect.preset: unknown preset %q", c.Reconnect.Preset)
	}

	if c.TLS.CertFile != "" && c.TLS.KeyFile == "" || c.TLS.CertFile == "" && c.TLS.KeyFile != "" {
		return fmt.Errorf("tls: cert_file and key_file must be set together")
	}
	return nil
}

// Options maps the file onto gonats.Options.
func (c *Config) Options() (gonats.Options, error) {
	opts := gonats.GetDefaultOptions()

	if len(c.Servers) > 0 {
		opts.Servers = c.Servers
	}
	opts.Name = c.Name
	opts.Verbose = c.Verbose
	opts.Pedantic = c.Pedantic
	if c.Echo != nil {
		opts.Echo = *c.Echo
	}
	if c.InboxPrefix != "" {
		opts.InboxPrefix = c.InboxPrefix
	}
	opts.MaxPayload = c.MaxPayload
	opts.MetricsEnabled = c.Metrics.Enabled

	opts.Reconnect = c.Reconnect.policy()

	if c.TLS.Enabled || c.TLS.CAFile != "" || c.TLS.CertFile != "" {
		opts.TLS = gonats.TLSConfig{
			Enabled:            true,
			InsecureSkipVerify: c.TLS.InsecureSkipVerify,
			CAFile:             c.TLS.CAFile,
			CertFile:           c.TLS.CertFile,
			KeyFile:            c.TLS.KeyFile,
			ServerName:         c.TLS.ServerName,
		}
	}

	if d := c.Timeouts.Connect.Duration(); d > 0 {
		opts.ConnectTimeout = d
	}
	if d := c.Timeouts.Request.Duration(); d > 0 {
		opts.RequestTimeout = d
	}
	if d := c.Timeouts.Drain.Duration(); d > 0 {
		opts.DrainTimeout = d
	}
	if d := c.Timeouts.PingInterval.Duration(); d > 0 {
		opts.PingInterval = d
	}
	if c.Timeouts.MaxPingsOut != nil {
		opts.MaxPingsOut = *c.Timeouts.MaxPingsOut
	}

	if err := c.applyAuth(&opts); err != nil {
		return opts, err
	}
	return opts, nil
}

func (c *Config) applyAuth(opts *gonats.Options) error {
	apply := func(o gonats.Option) error { return o(opts) }
	switch {
	case c.Auth.Token != "":
		return apply(gonats.WithToken(c.Auth.Token))
	case c.Auth.User != "":
		return apply(gonats.WithUserPass(c.Auth.User, c.Auth.Pass))
	case c.Auth.NKeySeedFile != "":
		seed, err := os.ReadFile(c.Auth.NKeySeedFile)
		if err != nil {
			return fmt.Errorf("reading nkey seed file: %w", err)
		}
		return apply(gonats.WithNKey(strings.TrimSpace(string(seed))))
	case c.Auth.CredentialsFile != "":
		return apply(gonats.WithCredentials(c.Auth.CredentialsFile))
	}
	return nil
}

func (r ReconnectConfig) policy() gonats.ReconnectPolicy {
	var p gonats.ReconnectPolicy
	switch r.Preset {
	case "disabled":
		p = gonats.DisabledReconnect()
	case "aggressive":
		p = gonats.AggressiveReconnect()
	case "conservative":
		p = gonats.ConservativeReconnect()
	default:
		p = gonats.DefaultReconnect()
	}
	if r.MaxAttempts != nil {
		p.MaxAttempts = *r.MaxAttempts
	}
	if d := r.InitialDelay.Duration(); d > 0 {
		p.InitialDelay = d
	}
	if d := r.MaxDelay.Duration(); d > 0 {
		p.MaxDelay = d
	}
	if r.Jitter != nil {
		p.Jitter = *r.Jitter
	}
	if r.Multiplier != nil {
		p.Multiplier = *r.Multiplier
	}
	return p
}

// Duration wraps time.Duration for YAML unmarshaling of strings like
// "250ms", "2m".
type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}
