package handler

import (
	"net/http"
)

// StatusHandler serves the runtime mode and chain for dashboards.
type StatusHandler struct {
	Mode    string
	ChainID int64
	Cron    string
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(mode string, chainID int64, cron string) *StatusHandler {
	return &StatusHandler{Mode: mode, ChainID: chainID, Cron: cron}
}

// GetStatus responds with the current mode, chain and tick schedule.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":     h.Mode,
		"chain_id": h.ChainID,
		"cron":     h.Cron,
	})
}
