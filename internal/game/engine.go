package game

import (
	"math/rand"
	"strings"
	"sync"
)

// GridSource hands out the grid of each new round
type GridSource interface {
	Next() (Grid, error)
	Close() error
}

// Generate builds a grid by sampling Letters with replacement. The same seed
// always yields the same grid.
func Generate(seed int64) Grid {
	return generate(rand.New(rand.NewSource(seed)))
}

func generate(rng *rand.Rand) Grid {
	var g Grid
	for i := range g {
		g[i] = Letters[rng.Intn(len(Letters))]
	}
	return g
}

// RandomSource draws grids from a single seeded generator, so a fixed seed
// replays the same sequence of rounds.
type RandomSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomSource creates a random grid source seeded with seed
func NewRandomSource(seed int64) *RandomSource {
	return &RandomSource{rng: rand.New(rand.NewSource(seed))}
}

// Next returns the next grid of the sequence
func (s *RandomSource) Next() (Grid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return generate(s.rng), nil
}

// Close is a no-op
func (s *RandomSource) Close() error {
	return nil
}

// IsComposable reports whether word can be traced on g through horizontally,
// vertically or diagonally adjacent cells, never using a cell twice. Words
// shorter than MinWordTokens logical letters are never composable.
func IsComposable(g Grid, word string) bool {
	tokens := Tokenize(word)
	if len(tokens) < MinWordTokens {
		return false
	}

	var cells [GridCells]string
	for i, c := range g {
		cells[i] = strings.ToLower(c)
	}

	var visited [GridCells]bool
	for start := range cells {
		if cells[start] == tokens[0] && trace(&cells, &visited, tokens, start, 0) {
			return true
		}
	}
	return false
}

func trace(cells *[GridCells]string, visited *[GridCells]bool, tokens []string, pos, depth int) bool {
	if depth == len(tokens)-1 {
		return true
	}

	visited[pos] = true
	defer func() { visited[pos] = false }()

	row, col := pos/GridSide, pos%GridSide
	for dr := -1; dr <= 1; dr++ {
		for dc := -1; dc <= 1; dc++ {
			if dr == 0 && dc == 0 {
				continue
			}
			r, c := row+dr, col+dc
			if r < 0 || r >= GridSide || c < 0 || c >= GridSide {
				continue
			}
			next := r*GridSide + c
			if visited[next] || cells[next] != tokens[depth+1] {
				continue
			}
			if trace(cells, visited, tokens, next, depth+1) {
				return true
			}
		}
	}
	return false
}
