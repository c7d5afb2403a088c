package webui

import "time"

// Config defines the runtime configuration for the assistant UI server.
type Config struct {
	Addr              string
	StreamInterval    time.Duration // Annotated MJPEG refresh period
	KeepaliveInterval time.Duration // SSE keepalive period
	CaptureInterval   time.Duration // Initial tracking/detection interval
	IdealWidth        int           // Requested camera resolution
	IdealHeight       int
}

// DefaultConfig returns the default UI server configuration.
func DefaultConfig() Config {
	return Config{
		Addr:              ":8080",
		StreamInterval:    100 * time.Millisecond,
		KeepaliveInterval: 30 * time.Second,
		CaptureInterval:   2 * time.Second,
		IdealWidth:        1280,
		IdealHeight:       720,
	}
}
