package server

import (
	"sync"
	"time"

	"paroliere/internal/game"
)

// Phase is the state of the round cycle
type Phase int

const (
	PhasePlaying Phase = iota
	PhaseCollecting
	PhaseBreak
)

func (p Phase) String() string {
	switch p {
	case PhasePlaying:
		return "playing"
	case PhaseCollecting:
		return "collecting"
	case PhaseBreak:
		return "break"
	default:
		return "unknown"
	}
}

// RoundState is a consistent copy of the round
type RoundState struct {
	Phase     Phase
	Number    int
	Grid      game.Grid
	Remaining time.Duration
}

// Playing reports whether words are accepted
func (s RoundState) Playing() bool {
	return s.Phase == PhasePlaying
}

// RemainingSeconds is Remaining in whole seconds, as sent to clients
func (s RoundState) RemainingSeconds() int {
	return int(s.Remaining / time.Second)
}

// Round is the shared round state. Only the orchestrator changes it.
type Round struct {
	mu sync.RWMutex

	phase         Phase
	number        int
	grid          game.Grid
	started       time.Time
	duration      time.Duration
	breakStarted  time.Time
	breakDuration time.Duration

	now func() time.Time
}

// NewRound creates a round that has not started yet. Until the first Start it
// reports a break of full length.
func NewRound(duration, breakDuration time.Duration) *Round {
	return &Round{
		phase:         PhaseBreak,
		duration:      duration,
		breakDuration: breakDuration,
		now:           time.Now,
	}
}

// Start begins a new round on grid. reset runs before the round is marked
// playing and while readers are held off.
func (r *Round) Start(grid game.Grid, reset func()) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if reset != nil {
		reset()
	}
	r.number++
	r.grid = grid
	r.started = r.now()
	r.phase = PhasePlaying
	return r.number
}

// Stop ends play and enters score collection
func (r *Round) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.phase = PhaseCollecting
}

// StartBreak begins the pause between rounds
func (r *Round) StartBreak() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.phase = PhaseBreak
	r.breakStarted = r.now()
}

// Playing reports whether words are accepted
func (r *Round) Playing() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.phase == PhasePlaying
}

// Elapsed returns how long the current phase has run
func (r *Round) Elapsed() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	switch r.phase {
	case PhasePlaying:
		return r.now().Sub(r.started)
	case PhaseBreak:
		return r.now().Sub(r.breakStarted)
	default:
		return 0
	}
}

// WhileStopped runs fn if the round is not playing, keeping it that way until
// fn returns.
func (r *Round) WhileStopped(fn func()) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.phase == PhasePlaying {
		return false
	}
	fn()
	return true
}

// Snapshot copies the round state
func (r *Round) Snapshot() RoundState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state := RoundState{
		Phase:  r.phase,
		Number: r.number,
		Grid:   r.grid,
	}
	switch r.phase {
	case PhasePlaying:
		state.Remaining = r.duration - r.now().Sub(r.started)
	case PhaseBreak:
		if !r.breakStarted.IsZero() {
			state.Remaining = r.breakDuration - r.now().Sub(r.breakStarted)
		}
	case PhaseCollecting:
		state.Remaining = r.breakDuration
	}
	if state.Remaining < 0 {
		state.Remaining = 0
	}
	return state
}
