package logging

import (
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	EnvLogLevel     = "IGGYWIRE_LOG_LEVEL"
	EnvLogTimestamp = "IGGYWIRE_LOG_TIMESTAMP"
	EnvLogNoColor   = "IGGYWIRE_LOG_NOCOLOR"
	EnvLogBypass    = "IGGYWIRE_LOG_BYPASS"
)

type Profile int

const (
	ProfileRuntime Profile = iota
	ProfileTest
)

// Config is the resolved logger setup. Bypass skips console formatting and
// writes raw JSON lines.
type Config struct {
	Level     zerolog.Level
	Timestamp bool
	NoColor   bool
	Bypass    bool
	Out       io.Writer
}

var configureOnce sync.Once

func ConfigureRuntime() {
	Configure(ProfileRuntime)
}

func ConfigureTests() {
	Configure(ProfileTest)
}

func Configure(profile Profile) {
	configureOnce.Do(func() {
		cfg := DefaultConfig(profile)
		applyEnvOverrides(&cfg)
		Apply(cfg)
	})
}

func DefaultConfig(profile Profile) Config {
	cfg := Config{Out: os.Stderr}
	switch profile {
	case ProfileTest:
		cfg.Level = zerolog.DebugLevel
		cfg.Timestamp = false
	default:
		cfg.Level = zerolog.InfoLevel
		cfg.Timestamp = true
	}
	return cfg
}

// Apply installs cfg as the global zerolog logger.
func Apply(cfg Config) {
	out := cfg.Out
	if out == nil {
		out = os.Stderr
	}
	if !cfg.Bypass {
		cw := zerolog.ConsoleWriter{Out: out, NoColor: cfg.NoColor, TimeFormat: time.RFC3339}
		if !cfg.Timestamp {
			cw.PartsExclude = []string{zerolog.TimestampFieldName}
		}
		out = cw
	}
	zerolog.SetGlobalLevel(cfg.Level)
	ctx := zerolog.New(out).With()
	if cfg.Timestamp {
		ctx = ctx.Timestamp()
	}
	log.Logger = ctx.Logger()
}

// SetLevel overrides the global level after Configure, e.g. from a CLI flag.
func SetLevel(raw string) bool {
	lvl, ok := parseLevel(raw)
	if ok {
		zerolog.SetGlobalLevel(lvl)
	}
	return ok
}

func applyEnvOverrides(cfg *Config) {
	if lvl, ok := parseLevel(os.Getenv(EnvLogLevel)); ok {
		cfg.Level = lvl
	}
	if v, ok := parseBool(os.Getenv(EnvLogTimestamp)); ok {
		cfg.Timestamp = v
	}
	if v, ok := parseBool(os.Getenv(EnvLogNoColor)); ok {
		cfg.NoColor = v
	}
	if v, ok := parseBool(os.Getenv(EnvLogBypass)); ok {
		cfg.Bypass = v
	}
}

func parseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, false
	case "trace", "diagnostics":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "disable", "off", "none", "inactive":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
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
