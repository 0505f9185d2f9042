package server

import "sync"

// GlobalChannel carries global chat for every connected session.
const GlobalChannel = "global"

// MapChannel names the broadcast channel for one map.
func MapChannel(mapID string) string {
	return "map:" + mapID
}

// Sender is the outbound half of a connection. Sends must not block; a slow
// receiver gets frames dropped, never a stalled broadcast.
type Sender interface {
	Send(data []byte)
}

// Broadcaster maintains channel membership and performs fan-out. No replay:
// a session subscribed after Publish returns never sees that frame.
type Broadcaster struct {
	mu       sync.Mutex
	channels map[string]map[string]Sender
	metrics  *Metrics
}

func NewBroadcaster(metrics *Metrics) *Broadcaster {
	return &Broadcaster{
		channels: make(map[string]map[string]Sender),
		metrics:  metrics,
	}
}

// Subscribe adds a session to a channel. Re-subscribing replaces the sender.
func (b *Broadcaster) Subscribe(sessionID, channel string, s Sender) {
	b.mu.Lock()
	defer b.mu.Unlock()
	members, ok := b.channels[channel]
	if !ok {
		members = make(map[string]Sender)
		b.channels[channel] = members
	}
	members[sessionID] = s
}

// Unsubscribe removes a session from a channel; empty channels are dropped.
func (b *Broadcaster) Unsubscribe(sessionID, channel string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	members, ok := b.channels[channel]
	if !ok {
		return
	}
	delete(members, sessionID)
	if len(members) == 0 {
		delete(b.channels, channel)
	}
}

// Publish delivers data to every current member of the channel except
// excludeID. Iteration order across members is unspecified.
func (b *Broadcaster) Publish(channel string, data []byte, excludeID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sessionID, s := range b.channels[channel] {
		if sessionID == excludeID {
			continue
		}
		s.Send(data)
		if b.metrics != nil {
			b.metrics.IncBroadcastsOut()
		}
	}
}

// Members returns the session ids currently subscribed to a channel.
func (b *Broadcaster) Members(channel string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := make([]string, 0, len(b.channels[channel]))
	for id := range b.channels[channel] {
		ids = append(ids, id)
	}
	return ids
}
