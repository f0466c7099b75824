package config

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/danmuck/iggywire/internal/protocol/frame"
	"github.com/danmuck/iggywire/internal/protocol/session"
	"github.com/pelletier/go-toml/v2"
)

var ErrInvalidConfig = errors.New("config: invalid")

const (
	FormatText = "text"
	FormatJSON = "json"
)

// Config is the iggywire file configuration.
type Config struct {
	Decode DecodeConfig `toml:"decode"`
	Proxy  ProxyConfig  `toml:"proxy"`
	Output OutputConfig `toml:"output"`
}

type DecodeConfig struct {
	MaxFrameBytes uint32 `toml:"max_frame_bytes"`
	LogFrames     bool   `toml:"log_frames"`
}

type ProxyConfig struct {
	Name        string   `toml:"name"`
	Listen      string   `toml:"listen"`
	Upstream    string   `toml:"upstream"`
	MetricsAddr string   `toml:"metrics_addr"`
	DialTimeout string   `toml:"dial_timeout"`
	CorsOrigins []string `toml:"cors_origins"`
	StatusToken string   `toml:"status_token"`
}

type OutputConfig struct {
	Format string `toml:"format"`
	Fields bool   `toml:"fields"`
}

func Default() Config {
	return Config{
		Decode: DecodeConfig{
			MaxFrameBytes: frame.DefaultLimits().MaxFrameBytes,
		},
		Proxy: ProxyConfig{
			Name:        "iggywire",
			Listen:      ":8091",
			Upstream:    "127.0.0.1:8090",
			MetricsAddr: ":9464",
			DialTimeout: "5s",
			CorsOrigins: []string{"http://localhost:3000"},
		},
		Output: OutputConfig{
			Format: FormatText,
			Fields: true,
		},
	}
}

// Load reads path over the defaults. Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	if err := loadToml(path, &cfg); err != nil {
		return Config{}, err
	}
	cfg = Normalize(cfg)
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return fmt.Errorf("config parse failed (%s): %w\n%s", path, err, strict.String())
		}
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

// Normalize trims string values, lowercases the output format and drops blank
// cors origins. Every loader applies it before Validate.
func Normalize(cfg Config) Config {
	p := &cfg.Proxy
	p.Name = strings.TrimSpace(p.Name)
	p.Listen = strings.TrimSpace(p.Listen)
	p.Upstream = strings.TrimSpace(p.Upstream)
	p.MetricsAddr = strings.TrimSpace(p.MetricsAddr)
	p.DialTimeout = strings.TrimSpace(p.DialTimeout)
	p.StatusToken = strings.TrimSpace(p.StatusToken)
	origins := make([]string, 0, len(p.CorsOrigins))
	for _, origin := range p.CorsOrigins {
		if v := strings.TrimSpace(origin); v != "" {
			origins = append(origins, v)
		}
	}
	p.CorsOrigins = origins
	cfg.Output.Format = strings.ToLower(strings.TrimSpace(cfg.Output.Format))
	return cfg
}

func Validate(cfg Config) error {
	if err := ValidateDecode(cfg.Decode); err != nil {
		return fmt.Errorf("%w: decode: %w", ErrInvalidConfig, err)
	}
	if err := ValidateProxy(cfg.Proxy); err != nil {
		return fmt.Errorf("%w: proxy: %w", ErrInvalidConfig, err)
	}
	if err := ValidateOutput(cfg.Output); err != nil {
		return fmt.Errorf("%w: output: %w", ErrInvalidConfig, err)
	}
	return nil
}

func ValidateDecode(cfg DecodeConfig) error {
	if cfg.MaxFrameBytes < frame.ResponseHeaderLen {
		return fmt.Errorf("max_frame_bytes must be at least %d", frame.ResponseHeaderLen)
	}
	return nil
}

func ValidateProxy(cfg ProxyConfig) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if err := validateAddr("listen", cfg.Listen, true); err != nil {
		return err
	}
	if err := validateAddr("upstream", cfg.Upstream, false); err != nil {
		return err
	}
	if strings.TrimSpace(cfg.MetricsAddr) != "" {
		if err := validateAddr("metrics_addr", cfg.MetricsAddr, true); err != nil {
			return err
		}
	}
	if _, err := cfg.Timeout(); err != nil {
		return err
	}
	return nil
}

func ValidateOutput(cfg OutputConfig) error {
	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case FormatText, FormatJSON:
		return nil
	default:
		return fmt.Errorf("unknown format %q", cfg.Format)
	}
}

func validateAddr(key, addr string, allowEmptyHost bool) error {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return fmt.Errorf("%s is required", key)
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("%s %q: %w", key, addr, err)
	}
	if port == "" {
		return fmt.Errorf("%s %q missing port", key, addr)
	}
	if host == "" && !allowEmptyHost {
		return fmt.Errorf("%s %q requires a host", key, addr)
	}
	return nil
}

// Timeout parses DialTimeout. An empty value means no timeout.
func (c ProxyConfig) Timeout() (time.Duration, error) {
	raw := strings.TrimSpace(c.DialTimeout)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse dial_timeout: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("dial_timeout must not be negative")
	}
	return d, nil
}

// Session converts the decode section into per-session settings.
func (c DecodeConfig) Session() session.Config {
	cfg := session.DefaultConfig()
	if c.MaxFrameBytes != 0 {
		cfg.Limits.MaxFrameBytes = c.MaxFrameBytes
	}
	cfg.LogFrames = c.LogFrames
	return cfg
}
