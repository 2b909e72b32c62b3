package engine

import (
	"context"
	"encoding/json"

	"github.com/mugenyume/mugenblock/connectivity"
)

// RegisterConnectivity registers engine services in the connectivity router.
// Services: engine_stats, engine_sweep.
func (e *Engine) RegisterConnectivity(router *connectivity.Router) {
	router.RegisterLocal("engine_stats", e.handleStats)
	router.RegisterLocal("engine_sweep", e.handleSweep)
}

// handleStats returns the local counters snapshot.
func (e *Engine) handleStats(ctx context.Context, payload []byte) ([]byte, error) {
	return json.Marshal(e.Stats())
}

// handleSweep triggers an immediate fast-selector sweep.
// Payload: none. Response: {"hidden": N}.
func (e *Engine) handleSweep(ctx context.Context, payload []byte) ([]byte, error) {
	n := e.Sweep()
	return json.Marshal(map[string]int{"hidden": n})
}
