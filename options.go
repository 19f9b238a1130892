package gonats

import (
	"crypto/tls"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gftdcojp/gonats/subject"
)

// Defaults for the option table.
const (
	DefaultURL            = "nats://localhost:4222"
	DefaultPingInterval   = 2 * time.Minute
	DefaultMaxPingsOut    = 2
	DefaultRequestTimeout = 5 * time.Second
	DefaultDrainTimeout   = 30 * time.Second
	DefaultConnectTimeout = 5 * time.Second
)

// TLSConfig configures the TLS upgrade. Enabled is implied by a
// tls://, nats+tls:// or wss:// server URL. A server that reports
// tls_required while neither is set fails the connection with
// ErrTLSRequired.
type TLSConfig struct {
	Enabled            bool
	InsecureSkipVerify bool
	CAFile             string
	CertFile           string
	KeyFile            string
	// ServerName overrides the SNI hostname; defaults to the host of
	// the URL being dialed.
	ServerName string
	MinVersion uint16
	// Config, when set, is used verbatim and the fields above are
	// ignored.
	Config *tls.Config
}

type authConfig struct {
	token     string
	user      string
	pass      string
	seed      string
	jwt       string
	credsFile string
}

// Options is the full client configuration. Construct with
// GetDefaultOptions and adjust, or pass Option funcs to Connect.
type Options struct {
	Servers        []string
	Name           string
	Reconnect      ReconnectPolicy
	TLS            TLSConfig
	PingInterval   time.Duration
	MaxPingsOut    int
	RequestTimeout time.Duration
	DrainTimeout   time.Duration
	ConnectTimeout time.Duration
	Echo           bool
	Verbose        bool
	Pedantic       bool
	MaxPayload     int64
	InboxPrefix    string
	Logger         *zap.Logger
	// MetricsEnabled turns on the Prometheus counters in the metrics
	// package.
	MetricsEnabled bool

	auth authConfig
}

// GetDefaultOptions returns the documented defaults.
func GetDefaultOptions() Options {
	return Options{
		Servers:        []string{DefaultURL},
		Reconnect:      DefaultReconnect(),
		PingInterval:   DefaultPingInterval,
		MaxPingsOut:    DefaultMaxPingsOut,
		RequestTimeout: DefaultRequestTimeout,
		DrainTimeout:   DefaultDrainTimeout,
		ConnectTimeout: DefaultConnectTimeout,
		Echo:           true,
		InboxPrefix:    subject.DefaultInboxPrefix,
		Logger:         zap.NewNop(),
	}
}

// Option adjusts Options.
type Option func(*Options) error

// WithServers sets the ordered server URL list.
func WithServers(urls ...string) Option {
	return func(o *Options) error {
		if len(urls) == 0 {
			return fmt.Errorf("%w: empty server list", ErrInvalidURL)
		}
		o.Servers = urls
		return nil
	}
}

// WithName sets the client name sent in CONNECT.
func WithName(name string) Option {
	return func(o *Options) error {
		o.Name = name
		return nil
	}
}

// WithReconnect sets the reconnection policy.
func WithReconnect(p ReconnectPolicy) Option {
	return func(o *Options) error {
		o.Reconnect = p
		return nil
	}
}

// WithTLS enables TLS with the given configuration.
func WithTLS(cfg TLSConfig) Option {
	return func(o *Options) error {
		cfg.Enabled = true
		o.TLS = cfg
		return nil
	}
}

// WithToken authenticates with a token.
func WithToken(token string) Option {
	return func(o *Options) error {
		o.auth = authConfig{token: token}
		return nil
	}
}

// WithUserPass authenticates with a username and password.
func WithUserPass(user, pass string) Option {
	return func(o *Options) error {
		o.auth = authConfig{user: user, pass: pass}
		return nil
	}
}

// WithNKey authenticates by signing the server nonce with the key
// derived from seed.
func WithNKey(seed string) Option {
	return func(o *Options) error {
		o.auth = authConfig{seed: seed}
		return nil
	}
}

// WithJWT authenticates with a user JWT plus its signing seed.
func WithJWT(jwt, seed string) Option {
	return func(o *Options) error {
		o.auth = authConfig{jwt: jwt, seed: seed}
		return nil
	}
}

// WithCredentials authenticates with a .creds file.
func WithCredentials(path string) Option {
	return func(o *Options) error {
		o.auth = authConfig{credsFile: path}
		return nil
	}
}

// WithPingInterval sets the keepalive period.
func WithPingInterval(d time.Duration) Option {
	return func(o *Options) error {
		o.PingInterval = d
		return nil
	}
}

// WithMaxPingsOut sets how many unanswered PINGs mark the connection
// stale.
func WithMaxPingsOut(n int) Option {
	return func(o *Options) error {
		o.MaxPingsOut = n
		return nil
	}
}

// WithRequestTimeout sets the default Request deadline.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *Options) error {
		o.RequestTimeout = d
		return nil
	}
}

// WithDrainTimeout sets the Drain grace period.
func WithDrainTimeout(d time.Duration) Option {
	return func(o *Options) error {
		o.DrainTimeout = d
		return nil
	}
}

// WithConnectTimeout bounds each dial attempt.
func WithConnectTimeout(d time.Duration) Option {
	return func(o *Options) error {
		o.ConnectTimeout = d
		return nil
	}
}

// WithEcho controls whether the server echoes this client's own
// publishes back to its subscriptions.
func WithEcho(echo bool) Option {
	return func(o *Options) error {
		o.Echo = echo
		return nil
	}
}

// WithVerbose asks the server to +OK every operation.
func WithVerbose(verbose bool) Option {
	return func(o *Options) error {
		o.Verbose = verbose
		return nil
	}
}

// WithPedantic turns on strict server-side protocol checking.
func WithPedantic(pedantic bool) Option {
	return func(o *Options) error {
		o.Pedantic = pedantic
		return nil
	}
}

// WithMaxPayload sets the publish payload cap used in place of the
// server's advertised max_payload, whether smaller or larger. Zero
// defers to the server.
func WithMaxPayload(n int64) Option {
	return func(o *Options) error {
		o.MaxPayload = n
		return nil
	}
}

// WithInboxPrefix changes the reply-inbox root from "_INBOX".
func WithInboxPrefix(prefix string) Option {
	return func(o *Options) error {
		if err := subject.ValidatePublish(prefix); err != nil {
			return err
		}
		o.InboxPrefix = prefix
		return nil
	}
}

// WithLogger injects a zap logger; zap.NewNop() silences the client.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) error {
		if logger == nil {
			logger = zap.NewNop()
		}
		o.Logger = logger
		return nil
	}
}

// WithMetrics enables the Prometheus client metrics.
func WithMetrics(enabled bool) Option {
	return func(o *Options) error {
		o.MetricsEnabled = enabled
		return nil
	}
}
