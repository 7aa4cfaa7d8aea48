// Package relay implements the dumb routing daemon between agents: it
// learns each connection's inbox id from a hello envelope, then forwards
// direct messages and membership grants by inbox id, dropping traffic from
// senders the receiver has blocked. It never inspects invite contents.
package relay

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/rs/zerolog"

	"github.com/veylan/knock/internal/relay/wire"
	shared "github.com/veylan/knock/internal/shared/domain"
)

type Server struct {
	Addr        string
	Certificate tls.Certificate
	Logger      *zerolog.Logger

	mu     sync.Mutex
	conns  map[shared.InboxID]*session
	blocks map[shared.InboxID]map[shared.InboxID]struct{}
}

type session struct {
	id   shared.InboxID
	conn net.Conn
	mu   sync.Mutex
}

func (s *session) write(e wire.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return wire.WriteFrame(s.conn, e)
}

func (s *Server) Serve(ctx context.Context) error {
	config := &tls.Config{
		Certificates: []tls.Certificate{s.Certificate},
	}
	ln, err := tls.Listen("tcp", s.Addr, config)
	if err != nil {
		return fmt.Errorf("failed to init server: %w", err)
	}
	defer ln.Close()
	s.Logger.Info().
		Str("address", s.Addr).
		Msg("started server")

	go func() {
		<-ctx.Done()
		s.Logger.Info().Msg("shutting down")
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		s.Logger.Info().
			Str("address", conn.RemoteAddr().String()).
			Msg("established connection")
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	hello, err := wire.ReadFrame(conn)
	if err != nil || hello.Kind != wire.KindHello || hello.From.IsZero() {
		s.Logger.Warn().
			Str("address", conn.RemoteAddr().String()).
			Msg("connection did not start with hello")
		return
	}
	sess := &session{id: hello.From, conn: conn}
	s.register(sess)
	defer s.unregister(sess)
	s.Logger.Info().
		Str("inbox", hello.From.String()).
		Msg("registered inbox")

	for {
		env, err := wire.ReadFrame(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				s.Logger.Warn().
					Str("inbox", sess.id.String()).
					Err(err).
					Msg("dropping connection")
			}
			return
		}
		// Sender identity comes from the registered session, never from
		// the envelope.
		env.From = sess.id
		s.route(sess, env)
	}
}

func (s *Server) route(from *session, env wire.Envelope) {
	switch env.Kind {
	case wire.KindDirectMessage, wire.KindMemberAdded:
		to := env.To
		if env.Kind == wire.KindMemberAdded {
			to = env.Subject
		}
		if s.isBlocked(to, from.id) {
			return
		}
		s.mu.Lock()
		target, ok := s.conns[to]
		s.mu.Unlock()
		if !ok {
			return
		}
		if err := target.write(env); err != nil {
			s.Logger.Warn().
				Str("inbox", to.String()).
				Err(err).
				Msg("failed to forward envelope")
		}
	case wire.KindSetConsent:
		s.mu.Lock()
		if s.blocks == nil {
			s.blocks = make(map[shared.InboxID]map[shared.InboxID]struct{})
		}
		set, ok := s.blocks[from.id]
		if !ok {
			set = make(map[shared.InboxID]struct{})
			s.blocks[from.id] = set
		}
		set[env.Subject] = struct{}{}
		s.mu.Unlock()
	}
}

func (s *Server) isBlocked(receiver, sender shared.InboxID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.blocks[receiver]
	if !ok {
		return false
	}
	_, blocked := set[sender]
	return blocked
}

func (s *Server) register(sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conns == nil {
		s.conns = make(map[shared.InboxID]*session)
	}
	s.conns[sess.id] = sess
}

func (s *Server) unregister(sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conns[sess.id] == sess {
		delete(s.conns, sess.id)
	}
}
