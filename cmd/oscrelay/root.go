package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"osc-relay/config"
	"osc-relay/frame"
	"osc-relay/logging"
	"osc-relay/relay"
	"osc-relay/transport/udp"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type flags struct {
	configFile    string
	queueCapacity uint
	bufferSize    uint
	strictFraming bool
	statsInterval time.Duration
	metricsAddr   string
	logLevel      string
}

// newRootCmd builds the command; runFn receives the resolved configuration.
func newRootCmd(runFn func(context.Context, config.Config) error) *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:   "oscrelay HOST_SEND HOST_RECV DEVICE_SEND DEVICE_RECV",
		Short: "Relay OSC gate commands between a host and a device",
		Long: `oscrelay receives gate commands from a host over UDP, validates them
and forwards them to a device. Responses from the device travel back the same way.
Every address is host:port.`,
		Args:          cobra.ExactArgs(4),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, f, args)
			if err != nil {
				return err
			}
			return runFn(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&f.configFile, "config", "", "config file (.toml, .yaml or .yml)")
	fs.UintVar(&f.queueCapacity, "queue-capacity", config.DefaultQueueCapacity, "items held per direction before receiving blocks")
	fs.UintVar(&f.bufferSize, "buffer-size", config.DefaultBufferSize, "receive buffer in bytes; longer datagrams are truncated")
	fs.BoolVar(&f.strictFraming, "strict-framing", false, "drop messages that are not wrapped in a bundle")
	fs.DurationVar(&f.statsInterval, "stats-interval", 0, "log relay totals at this interval (0 disables)")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
	fs.StringVar(&f.logLevel, "log-level", "", "trace, debug, info, warn, error or disabled")

	return cmd
}

// resolveConfig layers defaults, the config file, the environment,
// explicitly set flags and finally the positional endpoints.
func resolveConfig(cmd *cobra.Command, f flags, args []string) (config.Config, error) {
	cfg, err := config.Load(f.configFile)
	if err != nil {
		return config.Config{}, err
	}

	fs := cmd.Flags()
	if fs.Changed("queue-capacity") {
		cfg.QueueCapacity = f.queueCapacity
	}
	if fs.Changed("buffer-size") {
		cfg.BufferSize = f.bufferSize
	}
	if fs.Changed("strict-framing") {
		cfg.StrictFraming = f.strictFraming
	}
	if fs.Changed("stats-interval") {
		cfg.StatsInterval = f.statsInterval
	}
	if fs.Changed("metrics-addr") {
		cfg.MetricsAddr = f.metricsAddr
	}
	if fs.Changed("log-level") {
		cfg.Log.Level = f.logLevel
	}

	cfg.Endpoints = config.Endpoints{
		HostSend:      args[0],
		HostReceive:   args[1],
		DeviceSend:    args[2],
		DeviceReceive: args[3],
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, errors.Wrap(err, "invalid configuration")
	}
	return cfg, nil
}

func run(ctx context.Context, cfg config.Config) error {
	logger, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := relay.NewMetrics(reg)

	if cfg.MetricsAddr != "" {
		ln, err := net.Listen("tcp", cfg.MetricsAddr)
		if err != nil {
			return errors.Wrapf(err, "binding metrics %s", cfg.MetricsAddr)
		}
		srv := serveMetrics(ln, reg, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("error when stopping metrics server")
			}
		}()
	}

	framing := frame.PolicyTolerant
	if cfg.StrictFraming {
		framing = frame.PolicyStrict
	}

	r := relay.New(
		relay.Endpoints{
			HostSend:      cfg.Endpoints.HostSend,
			HostReceive:   cfg.Endpoints.HostReceive,
			DeviceSend:    cfg.Endpoints.DeviceSend,
			DeviceReceive: cfg.Endpoints.DeviceReceive,
		},
		udp.Network{},
		logger,
		clock.New(),
		metrics,
		relay.Options{
			QueueCapacity: cfg.QueueCapacity,
			BufferSize:    cfg.BufferSize,
			Framing:       framing,
			StatsInterval: cfg.StatsInterval,
		},
	)

	err = r.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func serveMetrics(ln net.Listener, reg *prometheus.Registry, logger zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Stringer("addr", ln.Addr()).Msg("serving metrics")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server stopped")
		}
	}()

	return srv
}
