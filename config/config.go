// Package config loads relay settings from defaults, a TOML or YAML file,
// and the environment. Command-line flags are layered on top by the caller.
package config

import (
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"osc-relay/logging"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	DefaultQueueCapacity = 100
	DefaultBufferSize    = 1000
)

var (
	ErrMissingEndpoint   = errors.New("missing endpoint")
	ErrInvalidEndpoint   = errors.New("invalid endpoint")
	ErrInvalidValue      = errors.New("invalid value")
	ErrUnsupportedFormat = errors.New("unsupported config format")
)

type Endpoints struct {
	HostSend      string `toml:"host_send" yaml:"host_send"`
	HostReceive   string `toml:"host_receive" yaml:"host_receive"`
	DeviceSend    string `toml:"device_send" yaml:"device_send"`
	DeviceReceive string `toml:"device_receive" yaml:"device_receive"`
}

type Config struct {
	Endpoints Endpoints `toml:"endpoints" yaml:"endpoints"`

	QueueCapacity uint `toml:"queue_capacity" yaml:"queue_capacity"`
	BufferSize    uint `toml:"buffer_size" yaml:"buffer_size"`
	StrictFraming bool `toml:"strict_framing" yaml:"strict_framing"`

	// StatsInterval of 0 disables the periodic stats log.
	StatsInterval time.Duration `toml:"stats_interval" yaml:"stats_interval"`
	// MetricsAddr of "" disables the prometheus endpoint.
	MetricsAddr string `toml:"metrics_addr" yaml:"metrics_addr"`

	Log logging.Config `toml:"log" yaml:"log"`
}

func Default() Config {
	return Config{
		QueueCapacity: DefaultQueueCapacity,
		BufferSize:    DefaultBufferSize,
		Log:           logging.DefaultConfig(),
	}
}

// Load reads path on top of [Default] and applies environment overrides.
// The format is picked from the extension: .toml, .yaml or .yml.
// An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	logging.ApplyEnv(&cfg.Log)

	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return errors.Wrapf(err, "loading %s", path)
		}
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrapf(err, "loading %s", path)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return errors.Wrapf(err, "parsing %s", path)
		}
	default:
		return errors.Wrapf(ErrUnsupportedFormat, "%q", ext)
	}
	return nil
}

// Validate reports the first setting that would keep the relay from starting.
func (c Config) Validate() error {
	endpoints := []struct {
		name, addr string
	}{
		{"host send", c.Endpoints.HostSend},
		{"host receive", c.Endpoints.HostReceive},
		{"device send", c.Endpoints.DeviceSend},
		{"device receive", c.Endpoints.DeviceReceive},
	}
	for _, e := range endpoints {
		if err := validateAddr(e.addr); err != nil {
			return errors.Wrap(err, e.name)
		}
	}

	if c.QueueCapacity == 0 {
		return errors.Wrap(ErrInvalidValue, "queue capacity must be more than 0")
	}
	if c.BufferSize == 0 {
		return errors.Wrap(ErrInvalidValue, "buffer size must be more than 0")
	}
	if c.StatsInterval < 0 {
		return errors.Wrap(ErrInvalidValue, "stats interval cannot be negative")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}

	return nil
}

func validateAddr(addr string) error {
	if addr == "" {
		return ErrMissingEndpoint
	}

	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return errors.Wrap(ErrInvalidEndpoint, err.Error())
	}
	if _, err := strconv.ParseUint(port, 10, 16); err != nil {
		return errors.Wrapf(ErrInvalidEndpoint, "port %q", port)
	}

	return nil
}
