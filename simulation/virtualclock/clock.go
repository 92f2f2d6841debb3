// Package virtualclock maps elapsed real time to simulated time under a
// selectable speed level, with start/pause/reset semantics and continuity
// guarantees across level changes.
package virtualclock

import (
	"sync"
	"time"

	"github.com/Hburdack/happy-button-sub001/simulation"
)

// DefaultSpeedTable maps speed levels 1..5 to their acceleration multipliers.
// Level 1 is real time; level 5 compresses a full 7-day business week into
// ten real minutes.
var DefaultSpeedTable = []int{1, 60, 240, 504, 1008}

// State is a snapshot of the clock's configuration at one instant.
type State struct {
	SimulatedTime time.Time
	Level         int
	Multiplier    int
	Running       bool
}

// Clock is a logical, accelerated clock. Now() is a pure computation from
// the last anchor point; it never blocks and never runs a goroutine.
//
// Clock is safe for concurrent use. Simulated time is continuous across
// Pause/Start and SetLevel: both re-anchor the clock so the current
// simulated instant is preserved.
type Clock struct {
	mu         sync.Mutex
	nowFn      func() time.Time
	speedTable []int
	level      int
	running    bool
	simEpoch   time.Time
	realAnchor time.Time
	lastSeen   time.Time
}

// Option defines a functional option for configuring a Clock.
type Option func(*Clock) error

// WithSpeedTable replaces the default speed table. The table must have its
// first multiplier equal to 1 and be strictly increasing.
func WithSpeedTable(table []int) Option {
	return func(c *Clock) error {
		if len(table) == 0 || table[0] != 1 {
			return simulation.ErrInvalidSpeedTable
		}

		for i := 1; i < len(table); i++ {
			if table[i] <= table[i-1] {
				return simulation.ErrInvalidSpeedTable
			}
		}

		c.speedTable = append([]int(nil), table...)

		return nil
	}
}

// WithNowFunc replaces the real-time source, used by tests to drive the
// clock deterministically.
func WithNowFunc(nowFn func() time.Time) Option {
	return func(c *Clock) error {
		c.nowFn = nowFn
		return nil
	}
}

// NewClock creates a stopped Clock at level 1 with simulated time anchored
// to the current real time.
func NewClock(options ...Option) (*Clock, error) {
	c := &Clock{
		nowFn:      time.Now,
		speedTable: DefaultSpeedTable,
		level:      1,
	}

	for _, option := range options {
		if err := option(c); err != nil {
			return nil, err
		}
	}

	now := c.nowFn()
	c.simEpoch = now
	c.realAnchor = now
	c.lastSeen = now

	return c, nil
}

// Start transitions the clock to running. It is a no-op if already running.
func (c *Clock) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return
	}

	c.realAnchor = c.nowFn()
	c.running = true
}

// Pause freezes simulated time at the call instant. It is a no-op if the
// clock is not running. Now() keeps returning the frozen value until Start.
func (c *Clock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return
	}

	c.simEpoch = c.computeNow()
	c.running = false
}

// Reset returns the clock to its initial configuration: stopped, level 1,
// simulated time anchored to the current real time. This is the only
// operation allowed to move simulated time backward.
func (c *Clock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.nowFn()
	c.running = false
	c.level = 1
	c.simEpoch = now
	c.realAnchor = now
	c.lastSeen = now
}

// SetLevel changes the acceleration multiplier with no discontinuity in
// simulated time: the current simulated instant is preserved by re-anchoring.
// Returns ErrInvalidSpeedLevel if the level is not defined in the speed table.
func (c *Clock) SetLevel(level int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if level < 1 || level > len(c.speedTable) {
		return simulation.ErrInvalidSpeedLevel
	}

	c.simEpoch = c.computeNow()
	c.realAnchor = c.nowFn()
	c.level = level

	return nil
}

// Now returns the current simulated timestamp. It is callable at any time,
// including while paused, and is monotonically non-decreasing except across
// Reset.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.computeNow()
	if now.Before(c.lastSeen) {
		return c.lastSeen
	}

	c.lastSeen = now

	return now
}

// Level returns the currently configured speed level.
func (c *Clock) Level() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.level
}

// Multiplier returns the acceleration factor of the current level.
func (c *Clock) Multiplier() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.speedTable[c.level-1]
}

// Running reports whether simulated time is advancing.
func (c *Clock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.running
}

// Levels returns the number of defined speed levels.
func (c *Clock) Levels() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.speedTable)
}

// Snapshot returns the clock state at one instant.
func (c *Clock) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return State{
		SimulatedTime: c.computeNow(),
		Level:         c.level,
		Multiplier:    c.speedTable[c.level-1],
		Running:       c.running,
	}
}

// computeNow must be called with the mutex held.
func (c *Clock) computeNow() time.Time {
	if !c.running {
		return c.simEpoch
	}

	elapsed := c.nowFn().Sub(c.realAnchor)

	return c.simEpoch.Add(elapsed * time.Duration(c.speedTable[c.level-1]))
}
