package network

import (
	"encoding/binary"
	"errors"
	"io"
)

const (
	// HeaderSize is the type byte plus the 4-byte big-endian length
	HeaderSize = 5
	// MaxPayload is the largest payload handed to the application. Longer
	// payloads are cut to this size and the excess is discarded.
	MaxPayload = 511
)

var ErrShortWrite = errors.New("short write")

// Encode builds the wire form of a frame
func Encode(msgType MessageType, payload []byte) []byte {
	frame := make([]byte, HeaderSize+len(payload))
	frame[0] = byte(msgType)
	binary.BigEndian.PutUint32(frame[1:HeaderSize], uint32(len(payload)))
	copy(frame[HeaderSize:], payload)
	return frame
}

// WriteFrame writes a complete frame, continuing after short writes and
// retrying errors the writer reports as temporary.
func WriteFrame(w io.Writer, msgType MessageType, payload []byte) error {
	frame := Encode(msgType, payload)
	for len(frame) > 0 {
		n, err := w.Write(frame)
		frame = frame[n:]
		if err != nil {
			if isTemporary(err) {
				continue
			}
			return err
		}
		if n == 0 {
			return ErrShortWrite
		}
	}
	return nil
}

// Decoder reads frames from a stream. A read that fails part-way through a
// frame keeps the bytes read so far, so the next call resumes where the
// previous one stopped and a frame is only ever returned whole.
type Decoder struct {
	r io.Reader

	header  [HeaderSize]byte
	nheader int

	body     []byte
	nbody    int
	declared uint32
	skip     int64

	scratch [256]byte
}

// NewDecoder creates a decoder over r
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r}
}

// Pending reports whether a frame is partially buffered
func (d *Decoder) Pending() bool {
	return d.nheader > 0
}

// Next returns the next complete frame. io.EOF is returned only when the
// stream ends on a frame boundary; a stream that ends mid-frame yields
// io.ErrUnexpectedEOF.
func (d *Decoder) Next() (Message, error) {
	for d.nheader < HeaderSize {
		n, err := d.r.Read(d.header[d.nheader:])
		d.nheader += n
		if d.nheader == HeaderSize {
			d.startBody()
			break
		}
		if err != nil {
			if errors.Is(err, io.EOF) && d.nheader > 0 {
				return Message{}, io.ErrUnexpectedEOF
			}
			if isTemporary(err) {
				continue
			}
			return Message{}, err
		}
	}

	for d.nbody < len(d.body) {
		n, err := d.r.Read(d.body[d.nbody:])
		d.nbody += n
		if d.nbody == len(d.body) {
			break
		}
		if err != nil {
			if isTemporary(err) {
				continue
			}
			return Message{}, d.readError(err)
		}
	}

	for d.skip > 0 {
		buf := d.scratch[:]
		if int64(len(buf)) > d.skip {
			buf = buf[:d.skip]
		}
		n, err := d.r.Read(buf)
		d.skip -= int64(n)
		if d.skip == 0 {
			break
		}
		if err != nil {
			if isTemporary(err) {
				continue
			}
			return Message{}, d.readError(err)
		}
	}

	msg := Message{Type: MessageType(d.header[0]), Payload: d.body}
	d.reset()
	return msg, nil
}

func (d *Decoder) startBody() {
	d.declared = binary.BigEndian.Uint32(d.header[1:])
	size := d.declared
	if size > MaxPayload {
		size = MaxPayload
		d.skip = int64(d.declared) - MaxPayload
	}
	d.body = make([]byte, size)
	d.nbody = 0
}

func (d *Decoder) readError(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

func (d *Decoder) reset() {
	d.nheader = 0
	d.body = nil
	d.nbody = 0
	d.declared = 0
	d.skip = 0
}

// temporary matches errors such as interrupted system calls that some
// net.Error implementations flag as retryable.
type temporary interface {
	Temporary() bool
	Timeout() bool
}

func isTemporary(err error) bool {
	var t temporary
	if errors.As(err, &t) {
		return t.Temporary() && !t.Timeout()
	}
	return false
}
