package server

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBulletinKeepsNewestPosts(t *testing.T) {
	var b Bulletin
	assert.Empty(t, b.Entries())

	for i := 0; i < BulletinCapacity+2; i++ {
		b.Post("ann", fmt.Sprintf("m%d", i))
	}

	entries := b.Entries()
	require.Len(t, entries, BulletinCapacity)
	assert.Equal(t, "m2", entries[0].Message)
	assert.Equal(t, fmt.Sprintf("m%d", BulletinCapacity+1), entries[BulletinCapacity-1].Message)
}

func TestBulletinTruncatesLongPosts(t *testing.T) {
	var b Bulletin
	b.Post("ann", strings.Repeat("x", 300))
	assert.Len(t, b.Entries()[0].Message, MaxBulletinMessage)
}

func TestFormatBulletin(t *testing.T) {
	var b Bulletin
	b.Post("ann", "ciao")
	b.Post("bob", "hello")
	assert.Equal(t, "ann,ciao,bob,hello", FormatBulletin(b.Entries()))
	assert.Equal(t, "", FormatBulletin(nil))
}
