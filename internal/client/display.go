package client

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"paroliere/internal/game"
	"paroliere/internal/network"
)

// Display prints server messages for a human
type Display struct {
	mu  sync.Mutex
	out io.Writer

	serverColor  *color.Color
	gridColor    *color.Color
	scoreColor   *color.Color
	rankColor    *color.Color
	errorColor   *color.Color
	warningColor *color.Color
	infoColor    *color.Color
}

// NewDisplay creates a display writing to out, or stdout when out is nil
func NewDisplay(out io.Writer) *Display {
	if out == nil {
		out = os.Stdout
	}
	return &Display{
		out:          out,
		serverColor:  color.New(color.FgCyan, color.Bold),
		gridColor:    color.New(color.FgYellow, color.Bold),
		scoreColor:   color.New(color.FgGreen, color.Bold),
		rankColor:    color.New(color.FgMagenta, color.Bold),
		errorColor:   color.New(color.FgRed, color.Bold),
		warningColor: color.New(color.FgYellow),
		infoColor:    color.New(color.FgWhite),
	}
}

func (d *Display) printf(c *color.Color, tag, format string, args ...any) {
	d.mu.Lock()
	defer d.mu.Unlock()

	timestamp := time.Now().Format("15:04:05")
	c.Fprintf(d.out, "[%s] [%s] %s\n", timestamp, tag, fmt.Sprintf(format, args...))
}

func (d *Display) raw(c *color.Color, text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c.Fprint(d.out, text)
}

// PrintInfo displays a local informational line
func (d *Display) PrintInfo(format string, args ...any) {
	d.printf(d.infoColor, "INFO", format, args...)
}

// PrintError displays a local error
func (d *Display) PrintError(format string, args ...any) {
	d.printf(d.errorColor, "ERROR", format, args...)
}

// PrintHelp lists the commands
func (d *Display) PrintHelp() {
	d.raw(d.infoColor, "Commands:\n    "+strings.Join(Usage(), "\n    ")+"\n")
}

// Show renders one server message
func (d *Display) Show(msg network.Message) {
	text := msg.Text()

	switch msg.Type {
	case network.MsgOK:
		d.printf(d.serverColor, "SERVER", "%s", text)
	case network.MsgError:
		d.printf(d.errorColor, "ERROR", "%s", text)
	case network.MsgGrid:
		d.raw(d.gridColor, FormatGrid(text))
	case network.MsgRoundTime:
		d.printf(d.infoColor, "ROUND", "%s seconds left in this round", text)
	case network.MsgBreakTime:
		d.printf(d.warningColor, "BREAK", "no round in progress, next one in %s seconds", text)
	case network.MsgWordScore:
		d.printf(d.scoreColor, "SCORE", "+%s points", text)
	case network.MsgRanking:
		d.raw(d.rankColor, FormatRanking(text))
	case network.MsgBulletinShow:
		d.raw(d.infoColor, FormatBoard(text))
	case network.MsgShutdown:
		d.printf(d.warningColor, "SERVER", "%s", text)
	default:
		d.printf(d.warningColor, "SERVER", "%s: %s", msg.Type, text)
	}
}

// FormatGrid lays the 16 cells of a grid message out as a 4x4 board
func FormatGrid(text string) string {
	cells := strings.Fields(text)
	if len(cells) != game.GridCells {
		return text + "\n"
	}

	var b strings.Builder
	border := "+" + strings.Repeat("----+", game.GridSide) + "\n"
	b.WriteString(border)
	for r := 0; r < game.GridSide; r++ {
		b.WriteString("|")
		for _, cell := range cells[r*game.GridSide : (r+1)*game.GridSide] {
			fmt.Fprintf(&b, " %-2s |", cell)
		}
		b.WriteString("\n" + border)
	}
	return b.String()
}

// FormatRanking prints "name, score, name, score" one player per line
func FormatRanking(text string) string {
	var b strings.Builder
	b.WriteString("Final ranking:\n")
	if text == "" {
		return b.String()
	}

	parts := strings.Split(text, ", ")
	for i := 0; i+1 < len(parts); i += 2 {
		fmt.Fprintf(&b, "  %d. %-10s %s\n", i/2+1, parts[i], parts[i+1])
	}
	return b.String()
}

// FormatBoard prints "user,msg,user,msg" one post per line
func FormatBoard(text string) string {
	var b strings.Builder
	b.WriteString("Message board:\n")
	if text == "" {
		b.WriteString("  (empty)\n")
		return b.String()
	}

	parts := strings.Split(text, ",")
	for i := 0; i+1 < len(parts); i += 2 {
		fmt.Fprintf(&b, "  %s: %s\n", parts[i], parts[i+1])
	}
	return b.String()
}
