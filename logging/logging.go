package logging

import (
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	EnvLogLevel     = "OSCRELAY_LOG_LEVEL"
	EnvLogTimestamp = "OSCRELAY_LOG_TIMESTAMP"
	EnvLogNoColor   = "OSCRELAY_LOG_NOCOLOR"
	EnvLogJSON      = "OSCRELAY_LOG_JSON"
)

var ErrInvalidLevel = errors.New("invalid log level")

type Config struct {
	Level     string `toml:"level" yaml:"level"`
	Timestamp bool   `toml:"timestamp" yaml:"timestamp"`
	NoColor   bool   `toml:"no_color" yaml:"no_color"`
	JSON      bool   `toml:"json" yaml:"json"`
}

func DefaultConfig() Config {
	return Config{
		Level:     "info",
		Timestamp: true,
	}
}

// New builds the process logger writing to out.
func New(cfg Config, out io.Writer) (zerolog.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), err
	}

	w := out
	if !cfg.JSON {
		cw := zerolog.ConsoleWriter{
			Out:        out,
			NoColor:    cfg.NoColor,
			TimeFormat: time.RFC3339,
		}
		if !cfg.Timestamp {
			cw.PartsExclude = []string{zerolog.TimestampFieldName}
		}
		w = cw
	}

	ctx := zerolog.New(w).Level(level).With()
	if cfg.Timestamp {
		ctx = ctx.Timestamp()
	}

	return ctx.Str("app", "oscrelay").Logger(), nil
}

// ApplyEnv overrides cfg with any of the OSCRELAY_LOG_* variables that are set.
func ApplyEnv(cfg *Config) {
	if lvl := strings.TrimSpace(os.Getenv(EnvLogLevel)); lvl != "" {
		cfg.Level = lvl
	}
	if v, ok := parseBool(os.Getenv(EnvLogTimestamp)); ok {
		cfg.Timestamp = v
	}
	if v, ok := parseBool(os.Getenv(EnvLogNoColor)); ok {
		cfg.NoColor = v
	}
	if v, ok := parseBool(os.Getenv(EnvLogJSON)); ok {
		cfg.JSON = v
	}
}

func ParseLevel(raw string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "trace", "diagnostics":
		return zerolog.TraceLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "", "info":
		return zerolog.InfoLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	case "disabled", "disable", "off", "none":
		return zerolog.Disabled, nil
	default:
		return zerolog.NoLevel, errors.Wrapf(ErrInvalidLevel, "%q", raw)
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
