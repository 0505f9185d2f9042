package server

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fieldpump/internal/protocol"
)

// session is the server-side bookkeeping for one live connection. Identity
// fields are populated only after an init message.
type session struct {
	connID      string
	sender      Sender
	player      protocol.PlayerState
	channel     string // current map channel, "" before init
	initialized bool
	leftSent    bool
}

// Registry is the single source of truth for live sessions and their channel
// membership. Each transport connection runs its own goroutine, so every
// operation takes the registry mutex and holds it across the full event,
// fan-out included; events from different connections never interleave.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*session
	bc       *Broadcaster
	metrics  *Metrics
	log      *zap.SugaredLogger
	now      func() time.Time
}

func NewRegistry(bc *Broadcaster, metrics *Metrics, log *zap.SugaredLogger) *Registry {
	return &Registry{
		sessions: make(map[string]*session),
		bc:       bc,
		metrics:  metrics,
		log:      log,
		now:      time.Now,
	}
}

// Register creates a session for a new transport connection and returns its
// id. Every session joins the global channel immediately for chat fan-out.
func (r *Registry) Register(s Sender) string {
	connID := uuid.NewString()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[connID] = &session{connID: connID, sender: s}
	r.bc.Subscribe(connID, GlobalChannel, s)
	r.log.Infow("session registered", "conn", connID)
	return connID
}

// OnInit binds a player identity to a session, subscribes it to its map
// channel, announces the join to the channel, and sends the newcomer a
// snapshot of the players already there.
func (r *Registry) OnInit(connID string, player protocol.PlayerState) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[connID]
	if !ok {
		r.log.Warnw("init for unknown session", "conn", connID)
		return
	}
	if sess.initialized {
		r.log.Warnw("duplicate init ignored", "conn", connID, "player", sess.player.ID)
		return
	}

	sess.player = player
	sess.channel = MapChannel(player.Location.MapID)
	sess.initialized = true
	r.bc.Subscribe(connID, sess.channel, sess.sender)

	r.publish(sess.channel, protocol.NewPlayerJoined(player), connID)

	snapshot := r.channelPlayersLocked(sess.channel, connID)
	r.sendTo(sess, protocol.NewPlayers(snapshot))

	r.log.Infow("player initialized", "conn", connID, "player", player.ID, "map", player.Location.MapID)
}

// OnPosition updates a session's location, switching map channels first when
// the map id changed. The position broadcast itself is the implicit join on
// a map change; player_joined is only sent on init.
func (r *Registry) OnPosition(connID string, loc protocol.Location) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[connID]
	if !ok || !sess.initialized {
		r.metrics.IncPreInitDrops()
		r.log.Debugw("position before init dropped", "conn", connID)
		return
	}

	newChannel := MapChannel(loc.MapID)
	if newChannel != sess.channel {
		old := sess.channel
		r.bc.Unsubscribe(connID, old)
		r.publish(old, protocol.NewPlayerLeft(sess.player.ID, sess.player.Name), connID)
		r.bc.Subscribe(connID, newChannel, sess.sender)
		sess.channel = newChannel
		r.log.Infow("player switched map", "player", sess.player.ID, "from", old, "to", newChannel)
	}

	sess.player.Location = loc
	r.publish(sess.channel, protocol.NewPosition(sess.player.ID, loc), connID)
}

// OnChat routes a chat message either to the global channel (reserved prefix,
// stripped before fan-out) or to the sender's current map channel.
func (r *Registry) OnChat(connID string, content string, timestamp int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[connID]
	if !ok || !sess.initialized {
		r.metrics.IncPreInitDrops()
		r.log.Debugw("chat before init dropped", "conn", connID)
		return
	}

	if timestamp == 0 {
		timestamp = r.now().UnixMilli()
	}

	if strings.HasPrefix(content, protocol.GlobalChatPrefix) {
		stripped := strings.TrimPrefix(content, protocol.GlobalChatPrefix)
		r.publish(GlobalChannel, protocol.NewChat(sess.player.ID, sess.player.Name, stripped, timestamp), "")
		return
	}
	r.publish(sess.channel, protocol.NewChat(sess.player.ID, sess.player.Name, content, timestamp), "")
}

// OnDisconnect tears a session down. A session that completed init announces
// exactly one player_left to its channel; one that never initialized leaves
// silently.
func (r *Registry) OnDisconnect(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[connID]
	if !ok {
		return
	}
	if sess.initialized && !sess.leftSent {
		sess.leftSent = true
		r.publish(sess.channel, protocol.NewPlayerLeft(sess.player.ID, sess.player.Name), connID)
	}
	if sess.channel != "" {
		r.bc.Unsubscribe(connID, sess.channel)
	}
	r.bc.Unsubscribe(connID, GlobalChannel)
	delete(r.sessions, connID)
	r.log.Infow("session removed", "conn", connID, "player", sess.player.ID)
}

// PushInventory lets the external NFT service publish an inventory change for
// a player to that player's current map channel (owner included).
func (r *Registry) PushInventory(playerID string, items []protocol.Item) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, sess := range r.sessions {
		if sess.initialized && sess.player.ID == playerID {
			sess.player.Inventory = append([]protocol.Item(nil), items...)
			r.publish(sess.channel, protocol.NewNFTUpdate(playerID, items), "")
			return true
		}
	}
	r.log.Debugw("inventory push for unknown player", "player", playerID)
	return false
}

// SessionCount reports the number of live sessions, for diagnostics.
func (r *Registry) SessionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// channelPlayersLocked snapshots the players of every initialized session in
// a channel, excluding one connection. Caller holds r.mu.
func (r *Registry) channelPlayersLocked(channel, excludeConnID string) []protocol.PlayerState {
	players := make([]protocol.PlayerState, 0)
	for _, sess := range r.sessions {
		if sess.connID == excludeConnID || !sess.initialized || sess.channel != channel {
			continue
		}
		players = append(players, sess.player)
	}
	return players
}

func (r *Registry) publish(channel string, msg protocol.Message, excludeConnID string) {
	data, err := protocol.Encode(msg)
	if err != nil {
		r.log.Errorw("encode failed", "type", msg.MessageType(), "err", err)
		return
	}
	r.bc.Publish(channel, data, excludeConnID)
}

func (r *Registry) sendTo(sess *session, msg protocol.Message) {
	data, err := protocol.Encode(msg)
	if err != nil {
		r.log.Errorw("encode failed", "type", msg.MessageType(), "err", err)
		return
	}
	sess.sender.Send(data)
}
