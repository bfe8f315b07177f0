package api

import (
	"net/http"
	"sync"
	"time"

	"gatekeeper/internal/auth"
	"gatekeeper/internal/models"
)

// probeCounters tracks per-identity probe call counts for this process
// lifetime. Purely informational; quota accounting lives in the rate limiter.
type probeCounters struct {
	mu     sync.Mutex
	counts map[string]int
}

func newProbeCounters() *probeCounters {
	return &probeCounters{counts: make(map[string]int)}
}

func (p *probeCounters) next(identity string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counts[identity]++
	return p.counts[identity]
}

// Probe is the metered test endpoint. It echoes the caller's identity and a
// running request number so clients can watch their quota drain.
func (h *Handlers) Probe(w http.ResponseWriter, r *http.Request) {
	response := models.ProbeResponse{
		Message:   "Request accepted",
		Timestamp: time.Now().UTC(),
	}

	if claims, ok := auth.ClaimsFromContext(r.Context()); ok {
		response.Authenticated = true
		response.UserID = claims.UserID()
		response.Username = claims.Username
		response.RequestNumber = h.probes.next(claims.UserID())
	} else {
		response.RequestNumber = h.probes.next("anonymous")
	}

	h.writeJSON(w, http.StatusOK, response)
}

// PublicProbe is the anonymous reachability check. Anonymous callers are not
// metered, so this endpoint never consumes quota for them.
func (h *Handlers) PublicProbe(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, models.MessageResponse{
		Message: "Public endpoint, no rate limit applied",
	})
}
