package httpapi

import (
	"net/http"

	"github.com/dmitrymomot/chatrelay/core/logger"
)

// handleHistory returns the full message history as a JSON array, ascending
// by creation time. Reconnecting clients call this to catch up on messages
// missed while disconnected.
func (a *API) handleHistory(w http.ResponseWriter, r *http.Request) {
	messages, err := a.history.List(r.Context())
	if err != nil {
		a.log.Error("failed to load message history",
			logger.Component("httpapi"),
			logger.Error(err))
		respondError(w, http.StatusServiceUnavailable, "history is temporarily unavailable")
		return
	}

	respondJSON(w, http.StatusOK, messages)
}
