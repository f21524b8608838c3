package main

import (
	"github.com/dmitrymomot/chatrelay/core/relay"
	"github.com/dmitrymomot/chatrelay/core/server"
	"github.com/dmitrymomot/chatrelay/integration/database/pg"
	"github.com/dmitrymomot/chatrelay/integration/database/redis"
	"github.com/dmitrymomot/chatrelay/integration/queue"
)

type Config struct {
	AppName     string `env:"APP_NAME" envDefault:"chatrelay"`
	Environment string `env:"APP_ENV" envDefault:"development"`

	// Development convenience: the frontend usually runs on another origin.
	AllowAnyOrigin bool `env:"WS_ALLOW_ANY_ORIGIN" envDefault:"false"`

	DB     pg.Config
	Redis  redis.Config
	Queue  queue.Config
	Relay  relay.Config
	Server server.Config
}
