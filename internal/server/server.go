// Package server implements the TCP game server: session handling, the round
// cycle and the ranking pipeline.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"paroliere/internal/config"
	"paroliere/internal/game"
	"paroliere/internal/network"
	"paroliere/pkg/console"
	"paroliere/pkg/logger"
)

const (
	roundPoll   = 10 * time.Millisecond
	rankingPoll = time.Second
	acceptRetry = 50 * time.Millisecond
)

// Deps are the collaborators a Server is built from
type Deps struct {
	Dictionary *game.Dictionary
	// Grids is optional; random grids are used when nil
	Grids   game.GridSource
	Logger  *logger.Logger
	Console *console.Console
}

// Server owns every piece of shared state of the game
type Server struct {
	cfg *config.Config

	dict     *game.Dictionary
	grids    game.GridSource
	fallback game.GridSource

	sessions *SessionTable
	users    *UserDirectory
	registry *Registry
	bulletin *Bulletin
	queue    *ScoreQueue
	round    *Round
	rankings chan struct{}

	log     *logger.Logger
	console *console.Console

	handlers sync.WaitGroup
	started  time.Time
}

// New builds a server from cfg and deps
func New(cfg *config.Config, deps Deps) *Server {
	seed := time.Now().UnixNano()
	if cfg.SeedSet {
		seed = cfg.Seed
	}
	random := game.NewRandomSource(seed)

	grids := deps.Grids
	if grids == nil {
		grids = random
	}
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}
	con := deps.Console
	if con == nil {
		con = console.New(nil)
	}

	sessions := NewSessionTable(cfg.MaxClients)
	users := NewUserDirectory(DefaultDirectoryCapacity)

	return &Server{
		cfg:      cfg,
		dict:     deps.Dictionary,
		grids:    grids,
		fallback: random,
		sessions: sessions,
		users:    users,
		registry: &Registry{Sessions: sessions, Users: users},
		bulletin: &Bulletin{},
		queue:    NewScoreQueue(cfg.MaxClients),
		round:    NewRound(cfg.RoundDuration, cfg.BreakDuration),
		rankings: make(chan struct{}, 1),
		log:      log,
		console:  con,
		started:  time.Now(),
	}
}

// ListenAndServe listens on the configured address and serves until ctx is done
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Address())
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts clients on ln and runs the round cycle until ctx is cancelled
// or a component fails. The listener is closed on return.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.log.Info("Server %s listening on %s", s.cfg.Name, ln.Addr())
	s.console.Server("%s listening on %s", s.cfg.Name, ln.Addr())

	g, gctx := errgroup.WithContext(ctx)

	orchestrator := &Orchestrator{
		round:    s.round,
		sessions: s.sessions,
		queue:    s.queue,
		grids:    s.grids,
		fallback: s.fallback,
		rankings: s.rankings,
		timing: Timing{
			Round:          s.cfg.RoundDuration,
			Break:          s.cfg.BreakDuration,
			ScoreGrace:     s.cfg.ScoreGrace,
			RankingTimeout: s.cfg.RankingTimeout,
			Poll:           roundPoll,
			RankingPoll:    rankingPoll,
		},
		log:     s.log.Named("orchestrator"),
		console: s.console,
	}
	collector := NewCollector(s.queue, s.sessions, s.rankings, s.log.Named("collector"), s.console)

	g.Go(func() error { return s.acceptLoop(gctx, ln) })
	g.Go(func() error { return orchestrator.Run(gctx) })
	g.Go(func() error { return collector.Run(gctx) })
	if s.cfg.StatusAddr != "" {
		g.Go(func() error { return s.serveStatus(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		return ln.Close()
	})

	err := g.Wait()
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}
	return multierr.Append(err, s.shutdown())
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				time.Sleep(acceptRetry)
				continue
			}
			return fmt.Errorf("failed to accept connection: %w", err)
		}
		s.accept(ctx, conn)
	}
}

func (s *Server) accept(ctx context.Context, raw net.Conn) {
	conn := network.NewConn(raw)

	sess, err := s.sessions.Add(conn)
	if err != nil {
		s.log.Warn("Refusing %s: %v", raw.RemoteAddr(), err)
		conn.Send(network.MsgError, "server full")
		conn.Close()
		return
	}

	s.handlers.Add(1)
	go func() {
		defer s.handlers.Done()
		s.handleSession(ctx, sess)
	}()
}

// shutdown tells every client, waits for the sessions and releases resources
func (s *Server) shutdown() error {
	s.log.Info("Shutting down")
	s.console.Server("Shutting down")

	s.sessions.Broadcast(network.MsgShutdown, "server shutting down")
	s.sessions.CloseAll()

	var errs error
	done := make(chan struct{})
	go func() {
		s.handlers.Wait()
		close(done)
	}()

	select {
	case <-done:
		if s.dict != nil {
			s.dict.Release()
		}
	case <-time.After(s.cfg.ShutdownGrace):
		errs = multierr.Append(errs, fmt.Errorf("%d sessions still running after %s", s.sessions.Len(), s.cfg.ShutdownGrace))
	}

	errs = multierr.Append(errs, s.grids.Close())
	if s.fallback != s.grids {
		errs = multierr.Append(errs, s.fallback.Close())
	}

	s.log.Info("Server stopped")
	return errs
}
