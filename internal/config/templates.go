package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Render encodes cfg as TOML.
func Render(cfg Config) ([]byte, error) {
	out, err := toml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("config render failed: %w", err)
	}
	return out, nil
}

// Template returns the annotated starter configuration.
func Template() string {
	return configTemplate
}

func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(configTemplate), 0o600)
}

const configTemplate = `# iggywire configuration

[decode]
# frames declaring more bytes than this halt their direction
max_frame_bytes = 67108864
log_frames = false

[proxy]
name = "iggywire"
listen = ":8091"
upstream = "127.0.0.1:8090"
# empty disables the metrics/status server
metrics_addr = ":9464"
dial_timeout = "5s"
cors_origins = ["http://localhost:3000"]
# bearer token required on /sessions; empty leaves it open
status_token = ""

[output]
# text | json
format = "text"
fields = true
`
