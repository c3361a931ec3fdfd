package network

import (
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrTimeout means the receive deadline passed without any complete frame
	ErrTimeout = errors.New("receive timed out")
	// ErrInterrupted means Interrupt woke a blocked Receive on purpose
	ErrInterrupted = errors.New("receive interrupted")
	// ErrClosed means the connection was closed locally
	ErrClosed = errors.New("connection closed")
)

// DefaultWriteTimeout bounds a single Send to a peer that stopped reading
const DefaultWriteTimeout = 5 * time.Second

// Conn frames messages over a net.Conn. Sends may come from any goroutine;
// Receive must only be called by the goroutine that owns the connection.
type Conn struct {
	conn    net.Conn
	decoder *Decoder

	writeMu      sync.Mutex
	writeTimeout time.Duration

	interrupted atomic.Bool
	closed      atomic.Bool
}

// NewConn wraps an accepted or dialled connection
func NewConn(c net.Conn) *Conn {
	return &Conn{
		conn:         c,
		decoder:      NewDecoder(c),
		writeTimeout: DefaultWriteTimeout,
	}
}

// RemoteAddr returns the peer address
func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Send writes one text message. The payload carries a trailing NUL.
func (c *Conn) Send(msgType MessageType, text string) error {
	return c.SendMessage(NewTextMessage(msgType, text))
}

// SendMessage writes one message as a single frame
func (c *Conn) SendMessage(msg Message) error {
	if c.closed.Load() {
		return ErrClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeTimeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return WriteFrame(c.conn, msg.Type, msg.Payload)
}

// Receive blocks until a whole frame arrives, the deadline passes, or
// Interrupt is called. A zero deadline means wait forever.
func (c *Conn) Receive(deadline time.Time) (Message, error) {
	if c.closed.Load() {
		return Message{}, ErrClosed
	}

	c.conn.SetReadDeadline(deadline)
	// An Interrupt that ran before the deadline above was armed would
	// otherwise be lost.
	if c.interrupted.Swap(false) {
		return Message{}, ErrInterrupted
	}

	msg, err := c.decoder.Next()
	if err == nil {
		return msg, nil
	}

	switch {
	case errors.Is(err, os.ErrDeadlineExceeded) || isTimeout(err):
		if c.interrupted.Swap(false) {
			return Message{}, ErrInterrupted
		}
		return Message{}, ErrTimeout
	case c.closed.Load():
		return Message{}, ErrClosed
	case errors.Is(err, net.ErrClosed):
		return Message{}, ErrClosed
	case errors.Is(err, io.EOF):
		return Message{}, io.EOF
	default:
		return Message{}, err
	}
}

// Interrupt wakes a goroutine blocked in Receive. The woken Receive returns
// ErrInterrupted and any partially read frame stays buffered.
func (c *Conn) Interrupt() {
	c.interrupted.Store(true)
	c.conn.SetReadDeadline(time.Now())
}

// Close closes the underlying connection. It is safe to call more than once.
func (c *Conn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.conn.Close()
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
