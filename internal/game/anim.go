package game

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Frame is one step of an animation: which sprite to show and for how long.
type Frame struct {
	SpriteID   string
	DurationMs float64
}

// Animation is a named, immutable frame sequence. Registered once at startup.
type Animation struct {
	ID     string
	Frames []Frame
	Loop   bool
}

// playback tracks one entity's progress through an animation.
type playback struct {
	anim       *Animation
	frame      int
	elapsedMs  float64
	onComplete func()
}

// Animations advances per-entity animation playback. Safe for use from the
// game loop and the socket read goroutine.
type Animations struct {
	mu     sync.Mutex
	clips  map[string]*Animation
	active map[string]*playback
	log    *zap.SugaredLogger
}

func NewAnimations(log *zap.SugaredLogger) *Animations {
	return &Animations{
		clips:  make(map[string]*Animation),
		active: make(map[string]*playback),
		log:    log,
	}
}

// Register adds a clip to the registry. Clips are immutable after this.
func (a *Animations) Register(anim Animation) error {
	if anim.ID == "" {
		return fmt.Errorf("game: animation with empty id")
	}
	if len(anim.Frames) == 0 {
		return fmt.Errorf("game: animation %s has no frames", anim.ID)
	}
	for _, f := range anim.Frames {
		if f.DurationMs <= 0 {
			return fmt.Errorf("game: animation %s has non-positive frame duration", anim.ID)
		}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.clips[anim.ID]; ok {
		return fmt.Errorf("game: animation %s already registered", anim.ID)
	}
	clip := anim
	a.clips[anim.ID] = &clip
	return nil
}

// Play starts animID for an entity, replacing any different clip outright.
// Requesting the clip that is already active keeps its progress; the game
// loop calls Play every tick and must not restart a running walk cycle.
func (a *Animations) Play(entityID, animID string, onComplete func()) {
	a.mu.Lock()
	defer a.mu.Unlock()

	clip, ok := a.clips[animID]
	if !ok {
		a.log.Warnw("unknown animation requested", "entity", entityID, "animation", animID)
		return
	}
	if cur, ok := a.active[entityID]; ok && cur.anim.ID == animID {
		return
	}
	a.active[entityID] = &playback{anim: clip, onComplete: onComplete}
}

// Stop removes an entity's playback without firing its completion callback.
func (a *Animations) Stop(entityID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.active, entityID)
}

// Update advances every active playback by dt seconds. A large dt can step
// over several frames; each advance consumes that frame's full duration. A
// finished non-looping clip is removed and its callback fires exactly once.
func (a *Animations) Update(dt float64) {
	var completed []func()

	a.mu.Lock()
	for entityID, pb := range a.active {
		pb.elapsedMs += dt * 1000
		for pb.elapsedMs >= pb.anim.Frames[pb.frame].DurationMs {
			pb.elapsedMs -= pb.anim.Frames[pb.frame].DurationMs
			pb.frame++
			if pb.frame < len(pb.anim.Frames) {
				continue
			}
			if pb.anim.Loop {
				pb.frame = 0
				continue
			}
			delete(a.active, entityID)
			if pb.onComplete != nil {
				completed = append(completed, pb.onComplete)
			}
			break
		}
	}
	a.mu.Unlock()

	for _, fn := range completed {
		fn()
	}
}

// CurrentFrame returns the frame an entity should display, if any.
func (a *Animations) CurrentFrame(entityID string) (Frame, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	pb, ok := a.active[entityID]
	if !ok {
		return Frame{}, false
	}
	return pb.anim.Frames[pb.frame], true
}

// AnimationFor maps a character class and movement direction to a clip id.
func AnimationFor(class string, dir Direction) string {
	if dir == DirNone {
		return class + "_idle"
	}
	return class + "_walk_" + dir.String()
}

// CharacterClasses are the playable classes with registered default clips.
var CharacterClasses = []string{"warrior", "mage", "archer"}

// RegisterDefaultAnimations installs the stock idle and four-direction walk
// cycles for every character class.
func RegisterDefaultAnimations(a *Animations) error {
	for _, class := range CharacterClasses {
		idle := Animation{
			ID: class + "_idle",
			Frames: []Frame{
				{SpriteID: class + "_idle_1", DurationMs: 500},
				{SpriteID: class + "_idle_2", DurationMs: 500},
			},
			Loop: true,
		}
		if err := a.Register(idle); err != nil {
			return err
		}
		for _, dir := range []string{"up", "down", "left", "right"} {
			walk := Animation{ID: class + "_walk_" + dir, Loop: true}
			for i := 1; i <= 4; i++ {
				walk.Frames = append(walk.Frames, Frame{
					SpriteID:   fmt.Sprintf("%s_walk_%s_%d", class, dir, i),
					DurationMs: 200,
				})
			}
			if err := a.Register(walk); err != nil {
				return err
			}
		}
	}
	return nil
}
