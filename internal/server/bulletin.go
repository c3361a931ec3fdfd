package server

import (
	"strings"
	"sync"

	"github.com/samber/lo"
)

const (
	// BulletinCapacity is the number of posts the board keeps
	BulletinCapacity = 8
	// MaxBulletinMessage bounds the stored length of a post, in bytes
	MaxBulletinMessage = 127
)

// BulletinEntry is one post of the board
type BulletinEntry struct {
	Username string
	Message  string
}

// Bulletin is a ring of the most recent posts. The oldest post is evicted
// when the ring is full.
type Bulletin struct {
	mu      sync.Mutex
	entries [BulletinCapacity]BulletinEntry
	next    int
	count   int
}

// Post stores msg, truncated to MaxBulletinMessage bytes
func (b *Bulletin) Post(username, msg string) {
	if len(msg) > MaxBulletinMessage {
		msg = msg[:MaxBulletinMessage]
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries[b.next] = BulletinEntry{Username: username, Message: msg}
	b.next = (b.next + 1) % BulletinCapacity
	if b.count < BulletinCapacity {
		b.count++
	}
}

// Entries returns the stored posts, oldest first
func (b *Bulletin) Entries() []BulletinEntry {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]BulletinEntry, 0, b.count)
	start := (b.next - b.count + BulletinCapacity) % BulletinCapacity
	for i := 0; i < b.count; i++ {
		out = append(out, b.entries[(start+i)%BulletinCapacity])
	}
	return out
}

// FormatBulletin renders posts as "user,msg,user,msg"
func FormatBulletin(entries []BulletinEntry) string {
	return strings.Join(lo.FlatMap(entries, func(e BulletinEntry, _ int) []string {
		return []string{e.Username, e.Message}
	}), ",")
}
