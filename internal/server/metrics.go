package server

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
)

// Metrics tracks relay counters for the /metrics endpoint.
type Metrics struct {
	ConnectionsOpened int64
	ConnectionsClosed int64
	MessagesIn        int64
	BroadcastsOut     int64
	DecodeFailures    int64
	PreInitDrops      int64
	SendDrops         int64
}

func (m *Metrics) IncConnectionsOpened() { atomic.AddInt64(&m.ConnectionsOpened, 1) }
func (m *Metrics) IncConnectionsClosed() { atomic.AddInt64(&m.ConnectionsClosed, 1) }
func (m *Metrics) IncMessagesIn()        { atomic.AddInt64(&m.MessagesIn, 1) }
func (m *Metrics) IncBroadcastsOut()     { atomic.AddInt64(&m.BroadcastsOut, 1) }
func (m *Metrics) IncDecodeFailures()    { atomic.AddInt64(&m.DecodeFailures, 1) }
func (m *Metrics) IncPreInitDrops()      { atomic.AddInt64(&m.PreInitDrops, 1) }
func (m *Metrics) IncSendDrops()         { atomic.AddInt64(&m.SendDrops, 1) }

// Snapshot returns a read-only copy for HTTP output.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"connections_opened": atomic.LoadInt64(&m.ConnectionsOpened),
		"connections_closed": atomic.LoadInt64(&m.ConnectionsClosed),
		"messages_in":        atomic.LoadInt64(&m.MessagesIn),
		"broadcasts_out":     atomic.LoadInt64(&m.BroadcastsOut),
		"decode_failures":    atomic.LoadInt64(&m.DecodeFailures),
		"pre_init_drops":     atomic.LoadInt64(&m.PreInitDrops),
		"send_drops":         atomic.LoadInt64(&m.SendDrops),
	}
}

// Handler serves the counters as JSON.
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(m.Snapshot())
	}
}
