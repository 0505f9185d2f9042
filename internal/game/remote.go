package game

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"fieldpump/internal/protocol"
)

// RemoteStore caches the last-known state of other players, fed only by
// inbound messages. Applies for the local player's own id are ignored so an
// echoed broadcast can never overwrite locally predicted state.
type RemoteStore struct {
	mu      sync.Mutex
	localID string
	players map[string]*protocol.PlayerState
	log     *zap.SugaredLogger
}

func NewRemoteStore(localID string, log *zap.SugaredLogger) *RemoteStore {
	return &RemoteStore{
		localID: localID,
		players: make(map[string]*protocol.PlayerState),
		log:     log,
	}
}

// ApplyJoined inserts or replaces a remote player's full state.
func (r *RemoteStore) ApplyJoined(p protocol.PlayerState) {
	if p.ID == r.localID {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := p
	r.players[p.ID] = &cp
}

// ApplyLeft removes a remote player.
func (r *RemoteStore) ApplyLeft(playerID string) {
	if playerID == r.localID {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.players, playerID)
}

// ApplyPosition moves a known remote player. A position for an unknown id is
// stale (it raced a player_left) and is dropped rather than re-adding the
// player.
func (r *RemoteStore) ApplyPosition(playerID string, loc protocol.Location) bool {
	if playerID == r.localID {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[playerID]
	if !ok {
		r.log.Debugw("dropping position for unknown player", "player", playerID)
		return false
	}
	p.Location = loc
	return true
}

// ApplyInventory replaces a known remote player's inventory.
func (r *RemoteStore) ApplyInventory(playerID string, items []protocol.Item) bool {
	if playerID == r.localID {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[playerID]
	if !ok {
		r.log.Debugw("dropping inventory update for unknown player", "player", playerID)
		return false
	}
	p.Inventory = append([]protocol.Item(nil), items...)
	return true
}

// Snapshot returns a copy of every tracked remote player, ordered by id.
func (r *RemoteStore) Snapshot() []protocol.PlayerState {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]protocol.PlayerState, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
