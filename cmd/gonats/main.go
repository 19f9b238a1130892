// Command gonats is a command-line client for NATS built on the
// gonats library: publish, subscribe, request/reply, and JetStream
// stream and consumer administration.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	gonats "github.com/gftdcojp/gonats"
	"github.com/gftdcojp/gonats/config"
	"github.com/gftdcojp/gonats/metrics"
)

var version = "dev"

type cliFlags struct {
	servers    []string
	configFile string
	name       string
	creds      string
	logLevel   string
	timeout    time.Duration
}

var flags cliFlags

func main() {
	root := &cobra.Command{
		Use:           "gonats",
		Short:         "NATS command-line client",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringSliceVarP(&flags.servers, "server", "s", []string{gonats.DefaultURL}, "server URL(s)")
	pf.StringVar(&flags.configFile, "config", "", "client configuration file (YAML)")
	pf.StringVar(&flags.name, "name", "gonats", "connection name")
	pf.StringVar(&flags.creds, "creds", "", "credentials file")
	pf.StringVar(&flags.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	pf.DurationVar(&flags.timeout, "timeout", 5*time.Second, "request timeout")

	root.AddCommand(
		newPubCmd(),
		newSubCmd(),
		newRequestCmd(),
		newReplyCmd(),
		newStreamCmd(),
		newConsumerCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "gonats: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// connect builds options from the config file (if given) overlaid
// with command-line flags, and establishes the connection.
func connect(ctx context.Context, fs *pflag.FlagSet) (*gonats.Client, *zap.Logger, error) {
	logger, err := newLogger(flags.logLevel)
	if err != nil {
		return nil, nil, err
	}

	var opts gonats.Options
	if flags.configFile != "" {
		cfg, err := config.Load(flags.configFile)
		if err != nil {
			return nil, nil, err
		}
		opts, err = cfg.Options()
		if err != nil {
			return nil, nil, err
		}
		if cfg.Metrics.Enabled && cfg.Metrics.Listen != "" {
			go func() {
				if err := metrics.RunServer(ctx, metrics.ServerConfig{
					Listen: cfg.Metrics.Listen,
					Path:   cfg.Metrics.Path,
				}); err != nil {
					logger.Warn("metrics server stopped", zap.Error(err))
				}
			}()
		}
	} else {
		opts = gonats.GetDefaultOptions()
	}

	if fs == nil || fs.Changed("server") || flags.configFile == "" {
		opts.Servers = flags.servers
	}
	opts.Name = flags.name
	opts.RequestTimeout = flags.timeout
	opts.Logger = logger.Named("nats")
	if flags.creds != "" {
		if err := gonats.WithCredentials(flags.creds)(&opts); err != nil {
			return nil, nil, err
		}
	}

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	nc, err := gonats.ConnectWithOptions(dialCtx, opts)
	if err != nil {
		logger.Sync()
		return nil, nil, err
	}
	return nc, logger, nil
}
