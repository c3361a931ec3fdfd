// Package console prints human-readable server status lines.
package console

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
)

// Console serializes colourised status output from many goroutines
type Console struct {
	mu  sync.Mutex
	out io.Writer

	serverColor  *color.Color
	roundColor   *color.Color
	rankColor    *color.Color
	sessionColor *color.Color
	warningColor *color.Color
}

// New creates a console writing to out (stdout when nil)
func New(out io.Writer) *Console {
	if out == nil {
		out = os.Stdout
	}
	return &Console{
		out:          out,
		serverColor:  color.New(color.FgCyan, color.Bold),
		roundColor:   color.New(color.FgYellow, color.Bold),
		rankColor:    color.New(color.FgGreen, color.Bold),
		sessionColor: color.New(color.FgWhite),
		warningColor: color.New(color.FgRed),
	}
}

func (c *Console) print(col *color.Color, tag, format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	timestamp := time.Now().Format("15:04:05")
	col.Fprintf(c.out, "[%s] [%s] ", timestamp, tag)
	col.Fprintf(c.out, format, args...)
	io.WriteString(c.out, "\n")
}

// Server prints a lifecycle line (listening, shutdown)
func (c *Console) Server(format string, args ...any) {
	c.print(c.serverColor, "SERVER", format, args...)
}

// Round prints a round transition
func (c *Console) Round(format string, args ...any) {
	c.print(c.roundColor, "ROUND", format, args...)
}

// Ranking prints a final ranking
func (c *Console) Ranking(format string, args ...any) {
	c.print(c.rankColor, "RANKING", format, args...)
}

// Session prints a per-client event
func (c *Console) Session(format string, args ...any) {
	c.print(c.sessionColor, "CLIENT", format, args...)
}

// Warning prints a problem that does not stop the server
func (c *Console) Warning(format string, args ...any) {
	c.print(c.warningColor, "WARN", format, args...)
}
