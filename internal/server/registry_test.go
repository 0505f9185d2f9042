package server

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"fieldpump/internal/protocol"
)

func newTestRegistry(t *testing.T) (*Registry, *Broadcaster, *Metrics) {
	t.Helper()
	metrics := &Metrics{}
	bc := NewBroadcaster(metrics)
	return NewRegistry(bc, metrics, zap.NewNop().Sugar()), bc, metrics
}

func testPlayer(id, name, mapID string) protocol.PlayerState {
	return protocol.PlayerState{
		ID:             id,
		Name:           name,
		CharacterClass: "warrior",
		Location:       protocol.Location{X: 25, Y: 25, MapID: mapID},
	}
}

func decodeAll(t *testing.T, s *fakeSender) []protocol.Message {
	t.Helper()
	var msgs []protocol.Message
	for _, raw := range s.received() {
		msg, err := protocol.Decode([]byte(raw))
		if err != nil {
			t.Fatalf("registry emitted undecodable frame %q: %v", raw, err)
		}
		msgs = append(msgs, msg)
	}
	return msgs
}

func countByType(msgs []protocol.Message, typ string) int {
	n := 0
	for _, m := range msgs {
		if m.MessageType() == typ {
			n++
		}
	}
	return n
}

func TestInitAnnouncesJoinAndSendsSnapshot(t *testing.T) {
	reg, _, _ := newTestRegistry(t)

	s1 := &fakeSender{}
	id1 := reg.Register(s1)
	reg.OnInit(id1, testPlayer("p1", "Ada", "starter"))

	s2 := &fakeSender{}
	id2 := reg.Register(s2)
	reg.OnInit(id2, testPlayer("p2", "Bo", "starter"))

	// The earlier session hears about the newcomer.
	var joined *protocol.PlayerJoinedMessage
	for _, m := range decodeAll(t, s1) {
		if j, ok := m.(*protocol.PlayerJoinedMessage); ok {
			joined = j
		}
	}
	if joined == nil || joined.Player.ID != "p2" {
		t.Fatalf("expected session 1 to receive player_joined for p2, got %+v", joined)
	}

	// The newcomer gets a snapshot of who was already there, not itself.
	var snapshot *protocol.PlayersMessage
	for _, m := range decodeAll(t, s2) {
		if p, ok := m.(*protocol.PlayersMessage); ok {
			snapshot = p
		}
	}
	if snapshot == nil {
		t.Fatal("expected players snapshot for newly initialized session")
	}
	if len(snapshot.Players) != 1 || snapshot.Players[0].ID != "p1" {
		t.Fatalf("expected snapshot [p1], got %+v", snapshot.Players)
	}
}

func TestPositionBroadcastExcludesSender(t *testing.T) {
	reg, _, _ := newTestRegistry(t)

	s1 := &fakeSender{}
	id1 := reg.Register(s1)
	reg.OnInit(id1, testPlayer("p1", "Ada", "starter"))
	s2 := &fakeSender{}
	id2 := reg.Register(s2)
	reg.OnInit(id2, testPlayer("p2", "Bo", "starter"))

	reg.OnPosition(id2, protocol.Location{X: 26, Y: 25, MapID: "starter"})

	if n := countByType(decodeAll(t, s1), protocol.TypePosition); n != 1 {
		t.Fatalf("expected session 1 to receive 1 position, got %d", n)
	}
	if n := countByType(decodeAll(t, s2), protocol.TypePosition); n != 0 {
		t.Fatalf("sender must not receive its own position echo, got %d", n)
	}
}

func TestMapSwitchEmitsSingleLeaveAndMovesChannel(t *testing.T) {
	reg, bc, _ := newTestRegistry(t)

	s1 := &fakeSender{}
	id1 := reg.Register(s1)
	reg.OnInit(id1, testPlayer("p1", "Ada", "starter"))
	s2 := &fakeSender{}
	id2 := reg.Register(s2)
	reg.OnInit(id2, testPlayer("p2", "Bo", "starter"))

	before := len(decodeAll(t, s1))
	reg.OnPosition(id2, protocol.Location{X: 5, Y: 5, MapID: "dungeon1"})

	msgs := decodeAll(t, s1)[before:]
	if n := countByType(msgs, protocol.TypePlayerLeft); n != 1 {
		t.Fatalf("expected exactly 1 player_left on session 1, got %d", n)
	}
	// No player_joined on a map change; the position broadcast is the
	// implicit join, and it goes to the new channel only.
	if n := countByType(msgs, protocol.TypePlayerJoined); n != 0 {
		t.Fatalf("unexpected player_joined on map change, got %d", n)
	}
	if n := countByType(msgs, protocol.TypePosition); n != 0 {
		t.Fatalf("old channel must not see the position that moved the player, got %d", n)
	}

	// Channel exclusivity: session 2 belongs to exactly one map channel.
	if members := bc.Members(MapChannel("starter")); len(members) != 1 || members[0] != id1 {
		t.Fatalf("expected map:starter members [%s], got %v", id1, members)
	}
	if members := bc.Members(MapChannel("dungeon1")); len(members) != 1 || members[0] != id2 {
		t.Fatalf("expected map:dungeon1 members [%s], got %v", id2, members)
	}

	// A further move inside dungeon1 reaches no one.
	before = len(decodeAll(t, s1))
	reg.OnPosition(id2, protocol.Location{X: 6, Y: 5, MapID: "dungeon1"})
	if got := len(decodeAll(t, s1)); got != before {
		t.Fatalf("session 1 received %d frames from a map it is not in", got-before)
	}
}

func TestGlobalChatCrossesMapsWithMarkerStripped(t *testing.T) {
	reg, _, _ := newTestRegistry(t)

	s1 := &fakeSender{}
	id1 := reg.Register(s1)
	reg.OnInit(id1, testPlayer("p1", "Ada", "starter"))
	s2 := &fakeSender{}
	id2 := reg.Register(s2)
	reg.OnInit(id2, testPlayer("p2", "Bo", "dungeon1"))

	reg.OnChat(id1, "/global hello", 1234)

	var chat *protocol.ChatMessage
	for _, m := range decodeAll(t, s2) {
		if c, ok := m.(*protocol.ChatMessage); ok {
			chat = c
		}
	}
	if chat == nil {
		t.Fatal("expected global chat to reach a session in another map")
	}
	if chat.Content != "hello" {
		t.Fatalf("expected marker stripped, content %q", chat.Content)
	}
	if chat.PlayerID != "p1" || chat.PlayerName != "Ada" || chat.Timestamp != 1234 {
		t.Fatalf("unexpected chat envelope %+v", chat)
	}
}

func TestMapChatStaysInMap(t *testing.T) {
	reg, _, _ := newTestRegistry(t)

	s1 := &fakeSender{}
	id1 := reg.Register(s1)
	reg.OnInit(id1, testPlayer("p1", "Ada", "starter"))
	s2 := &fakeSender{}
	id2 := reg.Register(s2)
	reg.OnInit(id2, testPlayer("p2", "Bo", "dungeon1"))
	s3 := &fakeSender{}
	id3 := reg.Register(s3)
	reg.OnInit(id3, testPlayer("p3", "Cy", "starter"))

	reg.OnChat(id1, "anyone around?", 0)

	if n := countByType(decodeAll(t, s3), protocol.TypeChat); n != 1 {
		t.Fatalf("expected same-map session to receive 1 chat, got %d", n)
	}
	if n := countByType(decodeAll(t, s2), protocol.TypeChat); n != 0 {
		t.Fatalf("map chat leaked to another map, got %d", n)
	}
}

func TestChatFillsMissingTimestamp(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	fixed := time.UnixMilli(1700000000000)
	reg.now = func() time.Time { return fixed }

	s1 := &fakeSender{}
	id1 := reg.Register(s1)
	reg.OnInit(id1, testPlayer("p1", "Ada", "starter"))
	s2 := &fakeSender{}
	id2 := reg.Register(s2)
	reg.OnInit(id2, testPlayer("p2", "Bo", "starter"))

	reg.OnChat(id1, "hi", 0)

	var chat *protocol.ChatMessage
	for _, m := range decodeAll(t, s2) {
		if c, ok := m.(*protocol.ChatMessage); ok {
			chat = c
		}
	}
	if chat == nil {
		t.Fatal("expected chat to be delivered")
	}
	if chat.Timestamp != fixed.UnixMilli() {
		t.Fatalf("expected server-filled timestamp %d, got %d", fixed.UnixMilli(), chat.Timestamp)
	}
}

func TestDisconnectAfterInitEmitsExactlyOneLeave(t *testing.T) {
	reg, _, _ := newTestRegistry(t)

	s1 := &fakeSender{}
	id1 := reg.Register(s1)
	reg.OnInit(id1, testPlayer("p1", "Ada", "starter"))
	s2 := &fakeSender{}
	id2 := reg.Register(s2)
	reg.OnInit(id2, testPlayer("p2", "Bo", "starter"))

	reg.OnDisconnect(id2)
	reg.OnDisconnect(id2) // read pump teardown can race a server shutdown

	if n := countByType(decodeAll(t, s1), protocol.TypePlayerLeft); n != 1 {
		t.Fatalf("expected exactly 1 player_left, got %d", n)
	}
	if reg.SessionCount() != 1 {
		t.Fatalf("expected 1 remaining session, got %d", reg.SessionCount())
	}
}

func TestDisconnectBeforeInitEmitsNoLeave(t *testing.T) {
	reg, _, _ := newTestRegistry(t)

	s1 := &fakeSender{}
	id1 := reg.Register(s1)
	reg.OnInit(id1, testPlayer("p1", "Ada", "starter"))

	s2 := &fakeSender{}
	id2 := reg.Register(s2)
	reg.OnDisconnect(id2)

	if n := countByType(decodeAll(t, s1), protocol.TypePlayerLeft); n != 0 {
		t.Fatalf("uninitialized session must not cause player_left, got %d", n)
	}
}

func TestOperationsBeforeInitAreNoOps(t *testing.T) {
	reg, _, metrics := newTestRegistry(t)

	s1 := &fakeSender{}
	id1 := reg.Register(s1)
	reg.OnInit(id1, testPlayer("p1", "Ada", "starter"))

	s2 := &fakeSender{}
	id2 := reg.Register(s2)
	reg.OnPosition(id2, protocol.Location{X: 1, Y: 1, MapID: "starter"})
	reg.OnChat(id2, "hi", 0)

	if n := countByType(decodeAll(t, s1), protocol.TypePosition); n != 0 {
		t.Fatalf("pre-init position must not broadcast, got %d", n)
	}
	if n := countByType(decodeAll(t, s1), protocol.TypeChat); n != 0 {
		t.Fatalf("pre-init chat must not broadcast, got %d", n)
	}
	if got := metrics.Snapshot()["pre_init_drops"]; got != 2 {
		t.Fatalf("expected 2 pre-init drops counted, got %d", got)
	}
}

func TestDuplicateInitIgnored(t *testing.T) {
	reg, _, _ := newTestRegistry(t)

	s1 := &fakeSender{}
	id1 := reg.Register(s1)
	reg.OnInit(id1, testPlayer("p1", "Ada", "starter"))
	s2 := &fakeSender{}
	id2 := reg.Register(s2)
	reg.OnInit(id2, testPlayer("p2", "Bo", "starter"))

	before := len(decodeAll(t, s2))
	reg.OnInit(id1, testPlayer("p1-again", "Ada2", "dungeon1"))
	if got := len(decodeAll(t, s2)); got != before {
		t.Fatalf("duplicate init must not broadcast, got %d new frames", got-before)
	}
}

func TestPushInventoryReachesChannel(t *testing.T) {
	reg, _, _ := newTestRegistry(t)

	s1 := &fakeSender{}
	id1 := reg.Register(s1)
	reg.OnInit(id1, testPlayer("p1", "Ada", "starter"))
	s2 := &fakeSender{}
	id2 := reg.Register(s2)
	reg.OnInit(id2, testPlayer("p2", "Bo", "starter"))

	items := []protocol.Item{{ID: "nft1", Name: "Pixel Sword", IsNFT: true, TokenID: "1"}}
	if !reg.PushInventory("p1", items) {
		t.Fatal("expected push for known player to succeed")
	}

	for name, s := range map[string]*fakeSender{"owner": s1, "observer": s2} {
		var upd *protocol.NFTUpdateMessage
		for _, m := range decodeAll(t, s) {
			if u, ok := m.(*protocol.NFTUpdateMessage); ok {
				upd = u
			}
		}
		if upd == nil {
			t.Fatalf("%s did not receive nft_update", name)
		}
		if upd.PlayerID != "p1" || len(upd.Inventory) != 1 || upd.Inventory[0].ID != "nft1" {
			t.Fatalf("%s received unexpected nft_update %+v", name, upd)
		}
	}

	if reg.PushInventory("ghost", items) {
		t.Fatal("expected push for unknown player to report failure")
	}
}
