package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"paroliere/internal/network"
	"paroliere/pkg/logger"
)

// Client connects a terminal to a game server
type Client struct {
	conn    *network.Conn
	display *Display
	input   *InputHandler
	log     *logger.Logger
}

// Dial connects to the server at addr
func Dial(addr string, display *Display, input *InputHandler, log *logger.Logger) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	return New(conn, display, input, log), nil
}

// New wraps an established connection
func New(conn net.Conn, display *Display, input *InputHandler, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Nop()
	}
	return &Client{
		conn:    network.NewConn(conn),
		display: display,
		input:   input,
		log:     log,
	}
}

// Run forwards commands to the server and prints replies until the user
// quits, input ends, the server goes away, or ctx is cancelled.
func (c *Client) Run(ctx context.Context) error {
	defer c.conn.Close()

	serverDone := make(chan error, 1)
	go func() { serverDone <- c.readLoop() }()

	lines := c.input.Lines()
	for {
		select {
		case <-ctx.Done():
			c.conn.Send(network.MsgShutdown, "")
			return nil
		case err := <-serverDone:
			return err
		case line, ok := <-lines:
			if !ok {
				c.conn.Send(network.MsgShutdown, "")
				return nil
			}
			quit, err := c.handleLine(line)
			if err != nil {
				return err
			}
			if quit {
				c.waitServer(serverDone)
				return nil
			}
		}
	}
}

func (c *Client) handleLine(line string) (quit bool, err error) {
	cmd, err := ParseCommand(line)
	if err != nil {
		c.display.PrintError("%v", err)
		return false, nil
	}
	if cmd.Name == "help" {
		c.display.PrintHelp()
		return false, nil
	}

	msg, _ := cmd.Message()
	c.log.Debug("Sending %s %q", msg.Type, cmd.Arg)
	if err := c.conn.SendMessage(msg); err != nil {
		return false, fmt.Errorf("failed to send %s: %w", msg.Type, err)
	}
	return cmd.Name == "quit", nil
}

// waitServer gives the server a moment to close its side after a quit
func (c *Client) waitServer(serverDone <-chan error) {
	select {
	case <-serverDone:
	case <-time.After(time.Second):
	}
}

func (c *Client) readLoop() error {
	for {
		msg, err := c.conn.Receive(time.Time{})
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, network.ErrClosed) {
				c.display.PrintInfo("Connection closed")
				return nil
			}
			return fmt.Errorf("connection lost: %w", err)
		}

		c.display.Show(msg)
		if msg.Type == network.MsgRanking {
			// acknowledge so the server can log delivery
			c.conn.Send(network.MsgRanking, "")
		}
		if msg.Type == network.MsgShutdown {
			return nil
		}
	}
}
