package queue

import "time"

// Config holds relay queue configuration with environment variable support.
//
// Group is intentionally empty by default: each relay instance then creates
// its own consumer group, so every instance observes the full stream and can
// broadcast every message to its own connection set. Pinning a group name is
// only useful for tests or for resuming a named instance.
type Config struct {
	Stream       string        `env:"RELAY_STREAM" envDefault:"chat:messages"`
	Group        string        `env:"RELAY_GROUP" envDefault:""`
	Consumer     string        `env:"RELAY_CONSUMER" envDefault:""`
	PollInterval time.Duration `env:"RELAY_POLL_INTERVAL" envDefault:"2s"`
	FetchCount   int64         `env:"RELAY_FETCH_COUNT" envDefault:"64"`
}
