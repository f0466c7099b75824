package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/iggywire/internal/config"
	"github.com/spf13/viper"
)

type fileConfig struct {
	Decode struct {
		MaxFrameBytes uint32 `toml:"max_frame_bytes"`
		LogFrames     bool   `toml:"log_frames"`
	} `toml:"decode"`
	Proxy struct {
		Name        string   `toml:"name"`
		Listen      string   `toml:"listen"`
		Upstream    string   `toml:"upstream"`
		MetricsAddr string   `toml:"metrics_addr"`
		DialTimeout string   `toml:"dial_timeout"`
		CorsOrigins []string `toml:"cors_origins"`
		StatusToken string   `toml:"status_token"`
	} `toml:"proxy"`
	Output struct {
		Format string `toml:"format"`
		Fields bool   `toml:"fields"`
	} `toml:"output"`
}

// loadFileConfig applies the keys defined in path over config.Default().
func loadFileConfig(path string) (config.Config, error) {
	cfg := config.Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return config.Config{}, fmt.Errorf("load iggywire config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return config.Config{}, fmt.Errorf("load iggywire config: unknown key %s", undecoded[0])
	}

	if meta.IsDefined("decode", "max_frame_bytes") {
		cfg.Decode.MaxFrameBytes = raw.Decode.MaxFrameBytes
	}
	if meta.IsDefined("decode", "log_frames") {
		cfg.Decode.LogFrames = raw.Decode.LogFrames
	}

	if meta.IsDefined("proxy", "name") {
		cfg.Proxy.Name = raw.Proxy.Name
	}
	if meta.IsDefined("proxy", "listen") {
		cfg.Proxy.Listen = raw.Proxy.Listen
	}
	if meta.IsDefined("proxy", "upstream") {
		cfg.Proxy.Upstream = raw.Proxy.Upstream
	}
	if meta.IsDefined("proxy", "metrics_addr") {
		cfg.Proxy.MetricsAddr = raw.Proxy.MetricsAddr
	}
	if meta.IsDefined("proxy", "dial_timeout") {
		cfg.Proxy.DialTimeout = raw.Proxy.DialTimeout
	}
	if meta.IsDefined("proxy", "cors_origins") {
		cfg.Proxy.CorsOrigins = raw.Proxy.CorsOrigins
	}
	if meta.IsDefined("proxy", "status_token") {
		cfg.Proxy.StatusToken = raw.Proxy.StatusToken
	}

	if meta.IsDefined("output", "format") {
		cfg.Output.Format = raw.Output.Format
	}
	if meta.IsDefined("output", "fields") {
		cfg.Output.Fields = raw.Output.Fields
	}
	return config.Normalize(cfg), nil
}

// validateFile reports whether path resolves to a valid configuration the same
// way --config does, before any flag or environment override.
func validateFile(path string) (config.Config, error) {
	cfg, err := loadFileConfig(path)
	if err != nil {
		return config.Config{}, err
	}
	if err := config.Validate(cfg); err != nil {
		return config.Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// resolveConfig layers defaults, the --config file, then flags and environment.
func resolveConfig() (config.Config, error) {
	cfg := config.Default()
	if path := strings.TrimSpace(viper.GetString("config")); path != "" {
		loaded, err := loadFileConfig(path)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}
	applyOverrides(&cfg)
	cfg = config.Normalize(cfg)
	if err := config.Validate(cfg); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func applyOverrides(cfg *config.Config) {
	if viper.IsSet("max-frame-bytes") {
		cfg.Decode.MaxFrameBytes = viper.GetUint32("max-frame-bytes")
	}
	if viper.IsSet("log-frames") {
		cfg.Decode.LogFrames = viper.GetBool("log-frames")
	}
	if viper.IsSet("name") {
		cfg.Proxy.Name = viper.GetString("name")
	}
	if viper.IsSet("listen") {
		cfg.Proxy.Listen = viper.GetString("listen")
	}
	if viper.IsSet("upstream") {
		cfg.Proxy.Upstream = viper.GetString("upstream")
	}
	if viper.IsSet("metrics-addr") {
		cfg.Proxy.MetricsAddr = viper.GetString("metrics-addr")
	}
	if viper.IsSet("dial-timeout") {
		cfg.Proxy.DialTimeout = viper.GetString("dial-timeout")
	}
	if viper.IsSet("status-token") {
		cfg.Proxy.StatusToken = viper.GetString("status-token")
	}
	if viper.IsSet("format") {
		cfg.Output.Format = viper.GetString("format")
	}
	if viper.IsSet("fields") {
		cfg.Output.Fields = viper.GetBool("fields")
	}
}
