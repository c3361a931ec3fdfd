package server

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"paroliere/internal/network"
	"paroliere/pkg/console"
	"paroliere/pkg/logger"
)

// ScoreEntry is one reported round score
type ScoreEntry struct {
	Username string
	Score    int
}

// ScoreQueue collects the round scores pushed by sessions until the collector
// drains them.
type ScoreQueue struct {
	mu       sync.Mutex
	entries  []ScoreEntry
	capacity int
	expected int
	notify   chan struct{}
}

// NewScoreQueue creates a queue holding at most capacity entries
func NewScoreQueue(capacity int) *ScoreQueue {
	return &ScoreQueue{
		entries:  make([]ScoreEntry, 0, capacity),
		capacity: capacity,
		notify:   make(chan struct{}, 1),
	}
}

// Push appends a score. Anonymous scores and scores past capacity are dropped.
// Waiters are signalled either way.
func (q *ScoreQueue) Push(username string, score int) bool {
	q.mu.Lock()
	added := false
	if username != "" && len(q.entries) < q.capacity {
		q.entries = append(q.entries, ScoreEntry{Username: username, Score: score})
		added = true
	}
	q.mu.Unlock()

	q.signal()
	return added
}

func (q *ScoreQueue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// SetExpected publishes how many scores the current round waits for
func (q *ScoreQueue) SetExpected(n int) {
	q.mu.Lock()
	q.expected = n
	q.mu.Unlock()

	q.signal()
}

// Len returns the number of queued scores
func (q *ScoreQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Reset drops every queued score and the expected count
func (q *ScoreQueue) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.entries = q.entries[:0]
	q.expected = 0
}

// Collect blocks until a round has published a positive expected count and at
// least that many scores are queued. It then returns them in arrival order and
// leaves the queue empty. The wait rechecks every poll interval.
func (q *ScoreQueue) Collect(ctx context.Context, poll time.Duration) ([]ScoreEntry, error) {
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		q.mu.Lock()
		if q.expected > 0 && len(q.entries) >= q.expected {
			snapshot := make([]ScoreEntry, len(q.entries))
			copy(snapshot, q.entries)
			q.entries = q.entries[:0]
			q.expected = 0
			q.mu.Unlock()
			return snapshot, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.notify:
		case <-ticker.C:
		}
	}
}

// RankScores sorts entries by score, highest first. Ties keep arrival order.
func RankScores(entries []ScoreEntry) []ScoreEntry {
	ranked := make([]ScoreEntry, len(entries))
	copy(ranked, entries)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

// FormatRanking renders "name, score, name, score"
func FormatRanking(ranked []ScoreEntry) string {
	return strings.Join(lo.Map(ranked, func(e ScoreEntry, _ int) string {
		return fmt.Sprintf("%s, %d", e.Username, e.Score)
	}), ", ")
}

// Collector turns each round's scores into a ranking broadcast
type Collector struct {
	queue    *ScoreQueue
	sessions *SessionTable
	done     chan<- struct{}
	poll     time.Duration
	log      *logger.Logger
	console  *console.Console
}

// NewCollector creates a collector that signals done after every broadcast
func NewCollector(queue *ScoreQueue, sessions *SessionTable, done chan<- struct{}, log *logger.Logger, con *console.Console) *Collector {
	return &Collector{
		queue:    queue,
		sessions: sessions,
		done:     done,
		poll:     time.Second,
		log:      log,
		console:  con,
	}
}

// Run broadcasts one ranking per round until ctx is cancelled
func (c *Collector) Run(ctx context.Context) error {
	for {
		entries, err := c.queue.Collect(ctx, c.poll)
		if err != nil {
			c.log.Info("Collector stopped")
			return nil
		}

		ranking := FormatRanking(RankScores(entries))
		sent := c.sessions.Broadcast(network.MsgRanking, ranking)
		c.log.Info("Ranking sent to %d clients: %s", sent, ranking)
		c.console.Ranking("%s", ranking)

		select {
		case c.done <- struct{}{}:
		default:
		}
	}
}
