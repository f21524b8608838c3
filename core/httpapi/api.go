// Package httpapi exposes the relay's external interfaces: the websocket
// ingress endpoint, history retrieval, health probes, and metrics.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrymomot/chatrelay/core/logger"
	"github.com/dmitrymomot/chatrelay/core/relay"
)

// HistoryLister serves the ordered message history.
type HistoryLister interface {
	List(ctx context.Context) ([]relay.Message, error)
}

// IdentityResolver extracts the authenticated identity attached to a
// request by the external auth collaborator. Returning nil means the
// connection is anonymous.
type IdentityResolver func(r *http.Request) *relay.Identity

// IdentityFromHeaders resolves identity from reverse-proxy auth headers.
// This is the default resolver: the relay trusts whatever the auth layer
// in front of it asserts and never re-validates it.
func IdentityFromHeaders(r *http.Request) *relay.Identity {
	login := r.Header.Get("X-Auth-Login")
	if login == "" {
		return nil
	}
	return &relay.Identity{
		Login:     login,
		AvatarURL: r.Header.Get("X-Auth-Avatar"),
		HTMLURL:   r.Header.Get("X-Auth-Profile"),
	}
}

// API bundles the HTTP surface of the relay.
type API struct {
	registry  *relay.Registry
	ingress   *relay.Ingress
	history   HistoryLister
	identity  IdentityResolver
	clientCfg relay.Config
	log       *slog.Logger
	upgrader  websocket.Upgrader
	readiness []func(context.Context) error
}

// Option configures the API.
type Option func(*API)

// WithLogger sets the logger used by handlers and client lifecycles.
func WithLogger(log *slog.Logger) Option {
	return func(a *API) {
		a.log = log
	}
}

// WithIdentityResolver replaces the default header-based resolver.
func WithIdentityResolver(fn IdentityResolver) Option {
	return func(a *API) {
		a.identity = fn
	}
}

// WithClientConfig sets the relay tunables applied to each new connection.
func WithClientConfig(cfg relay.Config) Option {
	return func(a *API) {
		a.clientCfg = cfg
	}
}

// WithReadiness adds dependency checks for the readiness probe.
func WithReadiness(fns ...func(context.Context) error) Option {
	return func(a *API) {
		a.readiness = append(a.readiness, fns...)
	}
}

// WithAllowAnyOrigin disables the upgrader's origin check. Intended for
// development setups where the frontend is served from another origin.
func WithAllowAnyOrigin() Option {
	return func(a *API) {
		a.upgrader.CheckOrigin = func(r *http.Request) bool {
			return true
		}
	}
}

// New creates the API. The default identity resolver reads auth headers;
// the default upgrader enforces same-origin.
func New(registry *relay.Registry, ingress *relay.Ingress, history HistoryLister, opts ...Option) *API {
	a := &API{
		registry: registry,
		ingress:  ingress,
		history:  history,
		identity: IdentityFromHeaders,
		log:      logger.NewDiscard(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Router builds the route table.
func (a *API) Router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/ws", a.handleWebSocket).Methods(http.MethodGet)
	r.HandleFunc("/history", a.handleHistory).Methods(http.MethodGet)
	r.HandleFunc("/health/live", a.handleLiveness).Methods(http.MethodGet)
	r.HandleFunc("/health/ready", a.handleReadiness).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	return r
}

// handleWebSocket upgrades the connection and hands it to its lifecycle
// manager. The handler blocks for the life of the connection; every exit
// path releases the connection exactly once.
func (a *API) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		a.log.Warn("websocket upgrade failed",
			logger.Component("httpapi"),
			logger.Error(err))
		return
	}

	var ident *relay.Identity
	if a.identity != nil {
		ident = a.identity(r)
	}

	client := relay.NewClient(conn, ident, a.registry, a.ingress, a.clientCfg, a.log)
	client.Run(r.Context())
}
