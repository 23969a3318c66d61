package sync

import (
	"bufio"
	"errors"
	"net"
	"sync"
)

// Server accepts newline-delimited JSON feed clients over TCP.
type Server struct {
	Addr string
	Hub  *Hub

	mu sync.Mutex
	ln net.Listener
}

func NewServer(addr string, hub *Hub) *Server {
	return &Server{Addr: addr, Hub: hub}
}

// Run listens on Addr and serves until Close.
func (s *Server) Run() error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	log := s.Hub.log.WithField("addr", ln.Addr().String())
	log.Info("tcp feed listening")

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.WithError(err).Warn("accept failed")
			continue
		}

		_, _ = conn.Write(s.Hub.welcome())
		s.Hub.Add(conn)
		log.WithField("remote", conn.RemoteAddr().String()).Info("client connected")

		go func(c net.Conn) {
			defer func() {
				s.Hub.Remove(c)
				log.WithField("remote", c.RemoteAddr().String()).Info("client disconnected")
			}()

			// clients never send anything meaningful; read until EOF
			sc := bufio.NewScanner(c)
			for sc.Scan() {
			}
		}(conn)
	}
}

// Close stops accepting; connected clients stay until Hub.Close.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Close()
}
