package game

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// ErrNoGrids means a grid file holds no usable line at all
var ErrNoGrids = errors.New("grid file has no grids")

// LoadDictionary reads one word per line from path. Blank lines are ignored;
// lines the dictionary rejects are counted in skipped.
func LoadDictionary(path string) (dict *Dictionary, skipped int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open dictionary: %w", err)
	}
	defer f.Close()

	dict, skipped, err = ReadDictionary(f)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read dictionary %s: %w", path, err)
	}
	return dict, skipped, nil
}

// ReadDictionary builds a dictionary from r, one word per line
func ReadDictionary(r io.Reader) (*Dictionary, int, error) {
	dict := NewDictionary()
	skipped := 0

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		word := strings.TrimSpace(scanner.Text())
		if word == "" {
			continue
		}
		if err := dict.Insert(word); err != nil {
			skipped++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, err
	}
	return dict, skipped, nil
}

// ParseGridLine parses 16 whitespace-separated cells. Each cell is a single
// letter or "qu", in any case.
func ParseGridLine(line string) (Grid, error) {
	var g Grid

	fields := strings.Fields(line)
	if len(fields) != GridCells {
		return g, fmt.Errorf("%w: %d cells, want %d", ErrMalformedGrid, len(fields), GridCells)
	}

	for i, f := range fields {
		cell := strings.ToLower(f)
		switch {
		case cell == "qu":
			g[i] = QuCell
		case len(cell) == 1 && cell[0] >= 'a' && cell[0] <= 'z' && cell[0] != 'q':
			g[i] = strings.ToUpper(cell)
		default:
			return g, fmt.Errorf("%w: bad cell %q", ErrMalformedGrid, f)
		}
	}
	return g, nil
}

// FileSource serves grids from a file, one per line, in order. It starts over
// from the top after the last line.
type FileSource struct {
	mu      sync.Mutex
	file    *os.File
	scanner *bufio.Scanner
	path    string
}

// OpenFileSource opens the grid file at path
func OpenFileSource(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open grid file: %w", err)
	}
	return &FileSource{
		file:    f,
		scanner: bufio.NewScanner(f),
		path:    path,
	}, nil
}

// Next returns the grid on the next non-blank line. A malformed line is
// consumed and reported as ErrMalformedGrid.
func (s *FileSource) Next() (Grid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return Grid{}, os.ErrClosed
	}

	rewound := false
	for {
		if s.scanner.Scan() {
			line := strings.TrimSpace(s.scanner.Text())
			if line == "" {
				continue
			}
			return ParseGridLine(line)
		}
		if err := s.scanner.Err(); err != nil {
			return Grid{}, fmt.Errorf("failed to read grid file %s: %w", s.path, err)
		}
		if rewound {
			return Grid{}, ErrNoGrids
		}
		if _, err := s.file.Seek(0, io.SeekStart); err != nil {
			return Grid{}, fmt.Errorf("failed to rewind grid file %s: %w", s.path, err)
		}
		s.scanner = bufio.NewScanner(s.file)
		rewound = true
	}
}

// Close closes the grid file
func (s *FileSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}
