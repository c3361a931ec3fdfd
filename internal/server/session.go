package server

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"paroliere/internal/game"
	"paroliere/internal/network"
)

// handleSession runs the protocol for one client until it leaves, idles out,
// or the server stops.
func (s *Server) handleSession(ctx context.Context, sess *Session) {
	conn := sess.conn
	defer s.closeSession(sess)

	s.log.Info("Client connected: %s from %s", sess.ID, conn.RemoteAddr())
	s.console.Session("Client %s connected", conn.RemoteAddr())

	if err := conn.Send(network.MsgOK, "Welcome to "+s.cfg.Name); err != nil {
		s.log.Debug("Failed to greet %s: %v", sess.ID, err)
		return
	}

	limiter := rate.NewLimiter(rate.Limit(s.cfg.MessageRate), s.cfg.MessageBurst)
	lastActivity := time.Now()

	for {
		if ctx.Err() != nil {
			return
		}

		s.round.WhileStopped(func() {
			s.sessions.Flush(sess, s.queue)
		})

		deadline := lastActivity.Add(s.cfg.InactivityTimeout)
		if !time.Now().Before(deadline) {
			s.log.Info("Client %s idle for %s, disconnecting", sess.ID, s.cfg.InactivityTimeout)
			conn.Send(network.MsgShutdown, "disconnected for inactivity")
			return
		}

		msg, err := conn.Receive(deadline)
		switch {
		case err == nil:
		case errors.Is(err, network.ErrInterrupted), errors.Is(err, network.ErrTimeout):
			continue
		case errors.Is(err, io.EOF), errors.Is(err, network.ErrClosed):
			return
		default:
			s.log.Warn("Receive from %s failed: %v", sess.ID, err)
			return
		}

		lastActivity = time.Now()
		if !limiter.Allow() {
			conn.Send(network.MsgError, "too many messages")
			continue
		}

		if quit := s.dispatch(sess, msg); quit {
			return
		}
	}
}

func (s *Server) closeSession(sess *Session) {
	s.sessions.Flush(sess, s.queue)
	sess.conn.Close()

	name := s.sessions.Username(sess)
	s.sessions.Remove(sess)

	if name == "" {
		name = "anonymous"
	}
	s.log.Info("Client disconnected: %s (%s)", sess.ID, name)
	s.console.Session("Client %s left", name)
}

func allowedAnonymous(t network.MessageType) bool {
	switch t {
	case network.MsgRegister, network.MsgLogin, network.MsgShutdown:
		return true
	}
	return false
}

// dispatch handles one message and reports whether the session should end
func (s *Server) dispatch(sess *Session, msg network.Message) bool {
	s.log.Debug("Received %s from %s", msg.Type, sess.ID)

	if s.sessions.Username(sess) == "" && !allowedAnonymous(msg.Type) {
		if !msg.Type.Known() {
			s.reply(sess, network.MsgError, "unknown message type")
		} else {
			s.reply(sess, network.MsgError, "login required")
		}
		return false
	}

	switch msg.Type {
	case network.MsgRegister:
		s.handleRegister(sess, msg.Text())
	case network.MsgLogin:
		s.handleLogin(sess, msg.Text())
	case network.MsgShutdown:
		s.log.Info("Client %s asked to disconnect", sess.ID)
		return true
	case network.MsgCancelUser:
		s.handleCancel(sess, msg.Text())
	case network.MsgGrid:
		s.sendRoundInfo(sess)
	case network.MsgWord:
		s.handleWord(sess, msg.Text())
	case network.MsgBulletinPost:
		s.bulletin.Post(s.sessions.Username(sess), msg.Text())
		s.reply(sess, network.MsgOK, "message posted")
	case network.MsgBulletinShow:
		s.reply(sess, network.MsgBulletinShow, FormatBulletin(s.bulletin.Entries()))
	case network.MsgRanking:
		s.log.Debug("Client %s acknowledged the ranking", sess.ID)
	default:
		s.reply(sess, network.MsgError, "unknown message type")
	}
	return false
}

func (s *Server) reply(sess *Session, msgType network.MessageType, text string) {
	if err := sess.conn.Send(msgType, text); err != nil {
		s.log.Debug("Failed to send %s to %s: %v", msgType, sess.ID, err)
	}
}

func (s *Server) handleRegister(sess *Session, name string) {
	if err := s.registry.Register(name); err != nil {
		s.log.Info("Registration of %q refused: %v", name, err)
		s.reply(sess, network.MsgError, err.Error())
		return
	}
	s.log.Info("Registered %s", name)
	s.reply(sess, network.MsgOK, "registered "+name)
}

func (s *Server) handleLogin(sess *Session, name string) {
	if err := s.registry.Login(sess, name); err != nil {
		s.log.Info("Login of %q refused: %v", name, err)
		s.reply(sess, network.MsgError, err.Error())
		return
	}
	s.log.Info("Client %s logged in as %s", sess.ID, name)
	s.console.Session("%s logged in", name)

	s.reply(sess, network.MsgOK, "logged in as "+name)
	s.sendRoundInfo(sess)
}

func (s *Server) handleCancel(sess *Session, name string) {
	if err := s.registry.Cancel(sess, name); err != nil {
		s.reply(sess, network.MsgError, err.Error())
		return
	}
	s.log.Info("Username %s cancelled by %s", name, s.sessions.Username(sess))
	s.reply(sess, network.MsgOK, "cancelled "+name)
}

// sendRoundInfo sends the grid and the time left while playing, or the time
// left until the next round otherwise.
func (s *Server) sendRoundInfo(sess *Session) {
	state := s.round.Snapshot()
	if !state.Playing() {
		s.reply(sess, network.MsgBreakTime, strconv.Itoa(state.RemainingSeconds()))
		return
	}
	s.reply(sess, network.MsgGrid, state.Grid.String())
	s.reply(sess, network.MsgRoundTime, strconv.Itoa(state.RemainingSeconds()))
}

func (s *Server) handleWord(sess *Session, word string) {
	state := s.round.Snapshot()
	if !state.Playing() {
		s.reply(sess, network.MsgBreakTime, strconv.Itoa(state.RemainingSeconds()))
		return
	}
	if !s.dict.Contains(word) {
		s.reply(sess, network.MsgError, "word not in dictionary")
		return
	}
	if !game.IsComposable(state.Grid, word) {
		s.reply(sess, network.MsgError, "word not on the grid")
		return
	}

	key := strings.Join(game.Tokenize(word), "")
	scored, ok := s.sessions.AddWord(sess, key, game.CountLogicalLetters(word))
	if !ok {
		s.reply(sess, network.MsgBreakTime, strconv.Itoa(s.round.Snapshot().RemainingSeconds()))
		return
	}
	s.reply(sess, network.MsgWordScore, strconv.Itoa(scored))
}
