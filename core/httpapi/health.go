package httpapi

import (
	"net/http"

	"github.com/dmitrymomot/chatrelay/core/logger"
)

// handleLiveness indicates the process is running. No dependency checks.
func (a *API) handleLiveness(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ALIVE"))
}

// handleReadiness verifies all registered dependency checks succeed.
func (a *API) handleReadiness(w http.ResponseWriter, r *http.Request) {
	for _, check := range a.readiness {
		if err := check(r.Context()); err != nil {
			a.log.Error("readiness check failed",
				logger.Component("httpapi"),
				logger.Error(err))
			respondError(w, http.StatusServiceUnavailable, "service unavailable")
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("READY"))
}
