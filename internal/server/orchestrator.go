package server

import (
	"context"
	"time"

	"paroliere/internal/game"
	"paroliere/pkg/console"
	"paroliere/pkg/logger"
)

// Timing holds the durations that drive the round cycle
type Timing struct {
	Round          time.Duration
	Break          time.Duration
	ScoreGrace     time.Duration
	RankingTimeout time.Duration
	// Poll is how often the play and break phases check the clock
	Poll time.Duration
	// RankingPoll is how often the ranking wait wakes up
	RankingPoll time.Duration
}

// Orchestrator runs the play, collect and break cycle
type Orchestrator struct {
	round    *Round
	sessions *SessionTable
	queue    *ScoreQueue
	grids    game.GridSource
	fallback game.GridSource
	rankings chan struct{}
	timing   Timing
	log      *logger.Logger
	console  *console.Console
}

// Run cycles rounds until ctx is cancelled
func (o *Orchestrator) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			break
		}

		grid := o.nextGrid()
		number := o.round.Start(grid, o.sessions.ResetRound)
		o.log.Info("Round %d started: %s", number, grid)
		o.console.Round("Round %d started, grid %s", number, grid)

		if !o.waitPhase(ctx, o.timing.Round) {
			break
		}

		o.collect(ctx, number)
		if ctx.Err() != nil {
			break
		}

		o.round.StartBreak()
		o.console.Round("Break, next round in %s", o.timing.Break)
		if !o.waitPhase(ctx, o.timing.Break) {
			break
		}
	}

	o.log.Info("Orchestrator stopped")
	return nil
}

func (o *Orchestrator) nextGrid() game.Grid {
	grid, err := o.grids.Next()
	if err == nil {
		return grid
	}

	o.log.Warn("Grid source failed, using a random grid: %v", err)
	grid, _ = o.fallback.Next()
	return grid
}

// waitPhase polls until the current phase has lasted d. It returns false when
// ctx is cancelled first.
func (o *Orchestrator) waitPhase(ctx context.Context, d time.Duration) bool {
	ticker := time.NewTicker(o.timing.Poll)
	defer ticker.Stop()

	for o.round.Elapsed() < d {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
	return true
}

func (o *Orchestrator) collect(ctx context.Context, number int) {
	o.round.Stop()
	o.sessions.InterruptAll()

	// sessions get a chance to report on their own first
	select {
	case <-ctx.Done():
		return
	case <-time.After(o.timing.ScoreGrace):
	}

	forced := o.sessions.FlushAll(o.queue)
	expected := o.queue.Len()
	o.log.Info("Round %d over: %d scores, %d forced", number, expected, forced)

	select {
	case <-o.rankings:
	default:
	}

	if expected == 0 {
		o.console.Round("Round %d over, nobody to rank", number)
		return
	}
	o.queue.SetExpected(expected)
	o.waitRanking(ctx, number)
}

func (o *Orchestrator) waitRanking(ctx context.Context, number int) {
	ticker := time.NewTicker(o.timing.RankingPoll)
	defer ticker.Stop()
	deadline := time.Now().Add(o.timing.RankingTimeout)

	for {
		select {
		case <-ctx.Done():
			return
		case <-o.rankings:
			return
		case <-ticker.C:
			if time.Now().After(deadline) {
				o.log.Warn("Ranking for round %d not sent within %s, dropping scores", number, o.timing.RankingTimeout)
				o.console.Warning("Ranking for round %d timed out", number)
				o.queue.Reset()
				return
			}
		}
	}
}
