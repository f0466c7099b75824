package session

import "github.com/danmuck/iggywire/internal/protocol/frame"

// Config defines per-session decoding behavior.
type Config struct {
	Limits frame.Limits
	// LogFrames logs every decoded message at debug level.
	LogFrames bool
}

func DefaultConfig() Config {
	return Config{
		Limits:    frame.DefaultLimits(),
		LogFrames: false,
	}
}
