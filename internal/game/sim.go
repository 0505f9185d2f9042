package game

import (
	"math"
	"time"

	"go.uber.org/zap"

	"fieldpump/internal/protocol"
)

// Direction is the movement intent derived from held input.
type Direction int

const (
	DirNone Direction = iota
	DirUp
	DirDown
	DirLeft
	DirRight
)

func (d Direction) String() string {
	switch d {
	case DirUp:
		return "up"
	case DirDown:
		return "down"
	case DirLeft:
		return "left"
	case DirRight:
		return "right"
	default:
		return "none"
	}
}

// InputState is the set of held movement keys, sampled once per tick.
type InputState struct {
	Up    bool
	Down  bool
	Left  bool
	Right bool
}

const (
	// MoveSpeed is the local player's speed in tiles per second.
	MoveSpeed = 3.0
	// PositionSendInterval bounds outbound position traffic to 10 Hz.
	PositionSendInterval = 100 * time.Millisecond
)

// Simulator advances the local player once per rendered frame: it applies
// held input, clamps to map bounds, rejects moves into obstacle tiles,
// drives the movement animation, and emits throttled position updates.
type Simulator struct {
	player *protocol.PlayerState
	maps   MapService
	anims  *Animations
	send   func(protocol.Location)
	log    *zap.SugaredLogger

	now      func() time.Time
	lastSent time.Time
}

// NewSimulator wires the simulation loop. send is invoked with the new
// location whenever a throttle window permits an outbound update.
func NewSimulator(player *protocol.PlayerState, maps MapService, anims *Animations, send func(protocol.Location), log *zap.SugaredLogger) *Simulator {
	return &Simulator{
		player: player,
		maps:   maps,
		anims:  anims,
		send:   send,
		log:    log,
		now:    time.Now,
	}
}

// Step advances the local player by dt seconds of held input. It reports
// whether the player actually moved this tick.
func (s *Simulator) Step(input InputState, dt float64) bool {
	orig := s.player.Location
	next := orig

	// Opposite keys cancel: both displacements apply to the same axis.
	if input.Up {
		next.Y -= MoveSpeed * dt
	}
	if input.Down {
		next.Y += MoveSpeed * dt
	}
	if input.Left {
		next.X -= MoveSpeed * dt
	}
	if input.Right {
		next.X += MoveSpeed * dt
	}

	bounds, err := s.maps.Bounds(next.MapID)
	if err != nil {
		s.log.Warnw("map bounds unavailable, skipping move", "map", next.MapID, "err", err)
		return false
	}
	next.X = clamp(next.X, 0, float64(bounds.Width-1))
	next.Y = clamp(next.Y, 0, float64(bounds.Height-1))

	// Binary per-tick collision: landing on an obstacle tile rejects the
	// whole move, no sliding along the free axis.
	obstacles, err := s.maps.Obstacles(next.MapID)
	if err != nil {
		s.log.Warnw("map obstacles unavailable, skipping move", "map", next.MapID, "err", err)
		return false
	}
	tileX := int(math.Floor(next.X))
	tileY := int(math.Floor(next.Y))
	for _, o := range obstacles {
		if o.X == tileX && o.Y == tileY {
			next = orig
			break
		}
	}

	s.player.Location = next
	moved := next != orig

	// Direction comes from the held axes, not the displacement, so a
	// blocked move still faces the attempted direction.
	dir := directionFor(input)
	s.anims.Play(s.player.ID, AnimationFor(s.player.CharacterClass, dir), nil)

	if moved && s.now().Sub(s.lastSent) >= PositionSendInterval {
		s.lastSent = s.now()
		s.send(s.player.Location)
	}
	return moved
}

// directionFor picks the reported facing with a fixed up, down, left, right
// priority when several keys are held.
func directionFor(in InputState) Direction {
	switch {
	case in.Up:
		return DirUp
	case in.Down:
		return DirDown
	case in.Left:
		return DirLeft
	case in.Right:
		return DirRight
	default:
		return DirNone
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
