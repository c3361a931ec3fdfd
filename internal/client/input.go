// Package client is the terminal client: it reads commands, frames them for
// the server and prints what the server sends back.
package client

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"paroliere/internal/network"
)

var (
	ErrUnknownCommand = errors.New("unknown command, type help")
	ErrMissingArg     = errors.New("missing argument")
)

// Command is one parsed input line
type Command struct {
	Name string
	Arg  string
}

type commandInfo struct {
	msgType network.MessageType
	needArg bool
	usage   string
}

var commands = map[string]commandInfo{
	"register": {network.MsgRegister, true, "register <name>   register a username"},
	"login":    {network.MsgLogin, true, "login <name>      log in"},
	"cancel":   {network.MsgCancelUser, true, "cancel <name>     cancel a registered username"},
	"grid":     {network.MsgGrid, false, "grid              show the grid and the time left"},
	"p":        {network.MsgWord, true, "p <word>          submit a word"},
	"post":     {network.MsgBulletinPost, true, "post <text>       post on the message board"},
	"board":    {network.MsgBulletinShow, false, "board             show the message board"},
	"quit":     {network.MsgShutdown, false, "quit              leave the game"},
	"help":     {0, false, "help              show this list"},
}

var commandOrder = []string{"register", "login", "cancel", "grid", "p", "post", "board", "quit", "help"}

// ParseCommand splits a line into a command and its argument
func ParseCommand(line string) (Command, error) {
	line = strings.TrimSpace(line)
	name, arg, _ := strings.Cut(line, " ")
	name = strings.ToLower(name)
	arg = strings.TrimSpace(arg)

	info, ok := commands[name]
	if !ok {
		return Command{}, ErrUnknownCommand
	}
	if info.needArg && arg == "" {
		return Command{}, fmt.Errorf("%w: %s", ErrMissingArg, info.usage)
	}
	return Command{Name: name, Arg: arg}, nil
}

// Message turns the command into the request sent to the server. ok is false
// for local commands.
func (c Command) Message() (msg network.Message, ok bool) {
	info := commands[c.Name]
	if info.msgType == 0 {
		return network.Message{}, false
	}
	return network.NewTextMessage(info.msgType, c.Arg), true
}

// Usage lists every command
func Usage() []string {
	out := make([]string, 0, len(commandOrder))
	for _, name := range commandOrder {
		out = append(out, commands[name].usage)
	}
	return out
}

// InputHandler reads command lines
type InputHandler struct {
	scanner *bufio.Scanner
}

// NewInputHandler reads commands from r
func NewInputHandler(r io.Reader) *InputHandler {
	return &InputHandler{scanner: bufio.NewScanner(r)}
}

// Lines feeds non-blank input lines to the returned channel until input ends
func (ih *InputHandler) Lines() <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		for ih.scanner.Scan() {
			line := strings.TrimSpace(ih.scanner.Text())
			if line != "" {
				lines <- line
			}
		}
	}()
	return lines
}
