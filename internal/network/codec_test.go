package network

import (
	"bytes"
	"io"
	"net"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeLayout(t *testing.T) {
	frame := Encode(MsgWord, []byte("ab\x00"))
	assert.Equal(t, []byte{'W', 0, 0, 0, 3, 'a', 'b', 0}, frame)
}

func TestDecoderOneByteAtATime(t *testing.T) {
	var stream bytes.Buffer
	stream.Write(Encode(MsgLogin, []byte("ann\x00")))
	stream.Write(Encode(MsgGrid, nil))

	d := NewDecoder(iotest.OneByteReader(&stream))

	msg, err := d.Next()
	require.NoError(t, err)
	assert.Equal(t, MsgLogin, msg.Type)
	assert.Equal(t, "ann", msg.Text())

	msg, err = d.Next()
	require.NoError(t, err)
	assert.Equal(t, MsgGrid, msg.Type)
	assert.Empty(t, msg.Payload)

	_, err = d.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestDecoderTruncatesOversizedPayload(t *testing.T) {
	long := strings.Repeat("x", 600)

	var stream bytes.Buffer
	stream.Write(Encode(MsgBulletinPost, []byte(long)))
	stream.Write(Encode(MsgWord, []byte("casa\x00")))

	d := NewDecoder(&stream)

	msg, err := d.Next()
	require.NoError(t, err)
	assert.Len(t, msg.Payload, MaxPayload)

	// the excess is drained, so the following frame is still aligned
	msg, err = d.Next()
	require.NoError(t, err)
	assert.Equal(t, MsgWord, msg.Type)
	assert.Equal(t, "casa", msg.Text())
}

func TestDecoderUnexpectedEOFMidFrame(t *testing.T) {
	frame := Encode(MsgWord, []byte("casa\x00"))
	d := NewDecoder(bytes.NewReader(frame[:7]))

	_, err := d.Next()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestMessageText(t *testing.T) {
	cases := []struct {
		name    string
		payload []byte
		want    string
	}{
		{"nul terminated", []byte("hello\x00"), "hello"},
		{"no terminator", []byte("hello"), "hello"},
		{"garbage after nul", []byte("hi\x00junk"), "hi"},
		{"empty", nil, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Message{Payload: tc.payload}.Text())
		})
	}
}

func TestMessageTypeString(t *testing.T) {
	assert.Equal(t, "LOGIN", MsgLogin.String())
	assert.True(t, MsgRanking.Known())
	assert.False(t, MessageType('Z').Known())
	assert.Equal(t, "UNKNOWN(0x5a)", MessageType('Z').String())
}

func pipe(t *testing.T) (*Conn, net.Conn) {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() {
		server.Close()
		client.Close()
	})
	return NewConn(server), client
}

func writeAsync(t *testing.T, w io.Writer, data []byte) {
	t.Helper()
	go func() {
		_, _ = w.Write(data)
	}()
}

func TestConnReceiveRoundTrip(t *testing.T) {
	conn, client := pipe(t)

	writeAsync(t, client, Encode(MsgRegister, []byte("Ann1\x00")))

	msg, err := conn.Receive(time.Now().Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, MsgRegister, msg.Type)
	assert.Equal(t, "Ann1", msg.Text())
}

func TestConnSendWritesNulTerminatedFrame(t *testing.T) {
	conn, client := pipe(t)

	go func() {
		_ = conn.Send(MsgOK, "ok")
	}()

	peer := NewDecoder(client)
	msg, err := peer.Next()
	require.NoError(t, err)
	assert.Equal(t, MsgOK, msg.Type)
	assert.Equal(t, []byte("ok\x00"), msg.Payload)
}

func TestConnReceiveTimeout(t *testing.T) {
	conn, _ := pipe(t)

	start := time.Now()
	_, err := conn.Receive(time.Now().Add(50 * time.Millisecond))
	assert.ErrorIs(t, err, ErrTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestConnInterruptWakesReceive(t *testing.T) {
	conn, _ := pipe(t)

	errs := make(chan error, 1)
	go func() {
		_, err := conn.Receive(time.Now().Add(10 * time.Second))
		errs <- err
	}()

	time.Sleep(20 * time.Millisecond)
	conn.Interrupt()

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, ErrInterrupted)
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for interrupted receive")
	}
}

func TestConnInterruptBeforeReceiveIsNotLost(t *testing.T) {
	conn, _ := pipe(t)

	conn.Interrupt()
	_, err := conn.Receive(time.Now().Add(10 * time.Second))
	assert.ErrorIs(t, err, ErrInterrupted)
}

func TestConnPartialFrameSurvivesTimeout(t *testing.T) {
	conn, client := pipe(t)
	frame := Encode(MsgWord, []byte("quando\x00"))

	writeAsync(t, client, frame[:8])
	_, err := conn.Receive(time.Now().Add(100 * time.Millisecond))
	require.ErrorIs(t, err, ErrTimeout)
	assert.True(t, conn.decoder.Pending())

	writeAsync(t, client, frame[8:])
	msg, err := conn.Receive(time.Now().Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, "quando", msg.Text())
	assert.False(t, conn.decoder.Pending())
}

func TestConnPeerClose(t *testing.T) {
	conn, client := pipe(t)
	client.Close()

	_, err := conn.Receive(time.Now().Add(time.Second))
	assert.ErrorIs(t, err, io.EOF)
}

func TestConnLocalClose(t *testing.T) {
	conn, _ := pipe(t)
	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())

	_, err := conn.Receive(time.Now().Add(time.Second))
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, conn.Send(MsgOK, "x"), ErrClosed)
}
