// Package network handles all network communication protocols
package network

import (
	"bytes"
	"fmt"
)

// MessageType is the one-byte tag that starts every frame
type MessageType byte

const (
	// Replies
	MsgOK    MessageType = 'K'
	MsgError MessageType = 'E'

	// Account messages
	MsgRegister   MessageType = 'R'
	MsgLogin      MessageType = 'L'
	MsgCancelUser MessageType = 'D'

	// Game messages
	MsgGrid      MessageType = 'M'
	MsgWord      MessageType = 'W'
	MsgWordScore MessageType = 'P'
	MsgRanking   MessageType = 'F'
	MsgRoundTime MessageType = 'T'
	MsgBreakTime MessageType = 'A'

	// Bulletin board messages
	MsgBulletinPost MessageType = 'H'
	MsgBulletinShow MessageType = 'S'

	// System messages. MsgShutdown is sent by the server before closing and by a
	// client that wants to disconnect.
	MsgShutdown MessageType = 'B'
)

var typeNames = map[MessageType]string{
	MsgOK:           "OK",
	MsgError:        "ERROR",
	MsgRegister:     "REGISTER",
	MsgLogin:        "LOGIN",
	MsgCancelUser:   "CANCEL_USER",
	MsgGrid:         "GRID",
	MsgWord:         "WORD",
	MsgWordScore:    "WORD_SCORE",
	MsgRanking:      "RANKING",
	MsgRoundTime:    "ROUND_TIME",
	MsgBreakTime:    "BREAK_TIME",
	MsgBulletinPost: "BULLETIN_POST",
	MsgBulletinShow: "BULLETIN_SHOW",
	MsgShutdown:     "SHUTDOWN",
}

func (t MessageType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(0x%02x)", byte(t))
}

// Known reports whether t is part of the protocol
func (t MessageType) Known() bool {
	_, ok := typeNames[t]
	return ok
}

// Message is one decoded frame
type Message struct {
	Type    MessageType
	Payload []byte
}

// NewTextMessage creates a message whose payload is text followed by a NUL byte
func NewTextMessage(msgType MessageType, text string) Message {
	payload := make([]byte, 0, len(text)+1)
	payload = append(payload, text...)
	payload = append(payload, 0)
	return Message{Type: msgType, Payload: payload}
}

// Text returns the payload up to the first NUL byte
func (m Message) Text() string {
	if i := bytes.IndexByte(m.Payload, 0); i >= 0 {
		return string(m.Payload[:i])
	}
	return string(m.Payload)
}
