package relay

import "time"

// Config holds relay tunables with environment variable support.
// PingPeriod must stay below PongWait or idle connections get reaped
// between pings.
type Config struct {
	SendBuffer     int           `env:"RELAY_SEND_BUFFER" envDefault:"64"`
	MaxMessageSize int64         `env:"RELAY_MAX_MESSAGE_SIZE" envDefault:"4096"`
	WriteWait      time.Duration `env:"RELAY_WRITE_WAIT" envDefault:"10s"`
	PongWait       time.Duration `env:"RELAY_PONG_WAIT" envDefault:"60s"`
	PingPeriod     time.Duration `env:"RELAY_PING_PERIOD" envDefault:"54s"`

	PublishAttempts      int           `env:"RELAY_PUBLISH_ATTEMPTS" envDefault:"3"`
	PublishRetryInterval time.Duration `env:"RELAY_PUBLISH_RETRY_INTERVAL" envDefault:"200ms"`

	FanoutErrorBackoff    time.Duration `env:"RELAY_FANOUT_ERROR_BACKOFF" envDefault:"1s"`
	FanoutShutdownTimeout time.Duration `env:"RELAY_FANOUT_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// DefaultConfig returns a Config with the envDefault values, for callers
// that construct relay components without the config loader (tests mostly).
func DefaultConfig() Config {
	return Config{
		SendBuffer:            64,
		MaxMessageSize:        4096,
		WriteWait:             10 * time.Second,
		PongWait:              60 * time.Second,
		PingPeriod:            54 * time.Second,
		PublishAttempts:       3,
		PublishRetryInterval:  200 * time.Millisecond,
		FanoutErrorBackoff:    time.Second,
		FanoutShutdownTimeout: 10 * time.Second,
	}
}
