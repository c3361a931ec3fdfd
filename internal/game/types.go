// Package game holds the word engines: the dictionary trie, grid generation and
// the adjacency search that decides whether a word can be traced on a grid.
package game

import (
	"errors"
	"strings"
)

const (
	// GridSide is the number of rows and columns of the board
	GridSide = 4
	// GridCells is the number of cells of the board
	GridCells = GridSide * GridSide
	// MinWordTokens is the shortest composable word, in logical letters
	MinWordTokens = 4
	// MaxWordLength bounds raw words accepted by the dictionary
	MaxWordLength = 255
	// QuCell is the composite cell that stands for the "qu" pair
	QuCell = "Qu"
)

// Letters is the distribution grids are sampled from, with replacement.
// The composite "Qu" sits at index 14.
var Letters = [...]string{
	"A", "B", "C", "D", "E", "F", "G", "H",
	"I", "L", "M", "N", "O", "P", QuCell, "R",
	"S", "T", "U", "V", "Z",
}

var (
	ErrEmptyWord     = errors.New("empty word")
	ErrWordTooLong   = errors.New("word too long")
	ErrMalformedGrid = errors.New("malformed grid line")
)

// Grid is the 4x4 board, row-major. Every cell holds one upper-case letter or "Qu".
type Grid [GridCells]string

// String renders the grid as 16 space-separated cells, the wire format of a grid message
func (g Grid) String() string {
	return strings.Join(g[:], " ")
}

// Row returns the cells of row r
func (g Grid) Row(r int) []string {
	return g[r*GridSide : (r+1)*GridSide]
}
