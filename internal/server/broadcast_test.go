package server

import (
	"sync"
	"testing"
)

type fakeSender struct {
	mu     sync.Mutex
	frames [][]byte
}

func (f *fakeSender) Send(data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, data)
}

func (f *fakeSender) received() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.frames))
	for i, b := range f.frames {
		out[i] = string(b)
	}
	return out
}

func TestPublishDeliversToMembersExceptExcluded(t *testing.T) {
	bc := NewBroadcaster(nil)
	a, b, c := &fakeSender{}, &fakeSender{}, &fakeSender{}
	bc.Subscribe("a", "map:starter", a)
	bc.Subscribe("b", "map:starter", b)
	bc.Subscribe("c", "map:starter", c)

	bc.Publish("map:starter", []byte("m1"), "a")

	if n := len(a.received()); n != 0 {
		t.Fatalf("excluded member received %d frames", n)
	}
	for name, s := range map[string]*fakeSender{"b": b, "c": c} {
		got := s.received()
		if len(got) != 1 || got[0] != "m1" {
			t.Fatalf("member %s expected exactly [m1], got %v", name, got)
		}
	}
}

func TestPublishPreservesPerChannelOrder(t *testing.T) {
	bc := NewBroadcaster(nil)
	s := &fakeSender{}
	bc.Subscribe("a", "map:starter", s)

	bc.Publish("map:starter", []byte("m1"), "")
	bc.Publish("map:starter", []byte("m2"), "")
	bc.Publish("map:starter", []byte("m3"), "")

	got := s.received()
	if len(got) != 3 || got[0] != "m1" || got[1] != "m2" || got[2] != "m3" {
		t.Fatalf("expected [m1 m2 m3] in order, got %v", got)
	}
}

func TestUnsubscribedMemberReceivesNothing(t *testing.T) {
	bc := NewBroadcaster(nil)
	s := &fakeSender{}
	bc.Subscribe("a", "map:starter", s)
	bc.Unsubscribe("a", "map:starter")

	bc.Publish("map:starter", []byte("m1"), "")

	if n := len(s.received()); n != 0 {
		t.Fatalf("unsubscribed member received %d frames", n)
	}
}

func TestNoReplayForLateSubscriber(t *testing.T) {
	bc := NewBroadcaster(nil)
	bc.Publish("map:starter", []byte("before"), "")

	late := &fakeSender{}
	bc.Subscribe("late", "map:starter", late)
	bc.Publish("map:starter", []byte("after"), "")

	got := late.received()
	if len(got) != 1 || got[0] != "after" {
		t.Fatalf("late subscriber expected only [after], got %v", got)
	}
}

func TestPublishToOtherChannelDoesNotLeak(t *testing.T) {
	bc := NewBroadcaster(nil)
	s := &fakeSender{}
	bc.Subscribe("a", "map:starter", s)

	bc.Publish("map:dungeon1", []byte("m1"), "")
	bc.Publish(GlobalChannel, []byte("m2"), "")

	if n := len(s.received()); n != 0 {
		t.Fatalf("member of map:starter received %d frames from other channels", n)
	}
}

func TestMembers(t *testing.T) {
	bc := NewBroadcaster(nil)
	bc.Subscribe("a", "map:starter", &fakeSender{})
	bc.Subscribe("b", "map:starter", &fakeSender{})

	members := bc.Members("map:starter")
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}
	if len(bc.Members("map:dungeon1")) != 0 {
		t.Fatal("expected no members on untouched channel")
	}
}
