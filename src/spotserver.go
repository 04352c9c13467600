package jt9decode

/*------------------------------------------------------------------
 *
 * Purpose:   	Provide decodes to other applications via a TCP socket.
 *
 * Description:	Each connected client receives every decode, exactly as
 *		it appears on stdout, one per line.  Nothing is read from
 *		clients.
 *
 *		A client that can't keep up loses its connection rather
 *		than holding up the decoder: every client has a small
 *		queue and a full queue means goodbye.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

const MAX_SPOT_CLIENTS = 16

const spotClientQueue = 64

const spotWriteTimeout = 5 * time.Second

type spotClient struct {
	conn  net.Conn
	queue chan string
}

type SpotServer struct {
	listener net.Listener
	logger   *log.Logger

	mu      sync.Mutex
	clients map[*spotClient]struct{}
	closed  bool

	wg sync.WaitGroup
}

/*-------------------------------------------------------------------
 *
 * Name:        ListenSpots
 *
 * Purpose:     Start listening for client connections.
 *
 * Inputs:	addr	- e.g. ":8073".  Port 0 picks a free one.
 *
 * Description:	Accepting happens on a goroutine.  Call Close to stop.
 *
 *--------------------------------------------------------------------*/

func ListenSpots(addr string, logger *log.Logger) (*SpotServer, error) {
	var listener, listenErr = net.Listen("tcp", addr)
	if listenErr != nil {
		return nil, fmt.Errorf("%w: spot server listen on %s: %w", ErrIO, addr, listenErr)
	}

	var s = &SpotServer{ //nolint:exhaustruct
		listener: listener,
		logger:   quietLogger(logger).WithPrefix("spots"),
		clients:  make(map[*spotClient]struct{}),
	}

	s.logger.Info("Ready to accept spot clients", "addr", listener.Addr().String())

	s.wg.Add(1)
	go s.acceptLoop()

	return s, nil
}

// Port actually being listened on.
func (s *SpotServer) Port() int {
	if addr, ok := s.listener.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}

	return 0
}

func (s *SpotServer) acceptLoop() {
	defer s.wg.Done()

	for {
		var conn, acceptErr = s.listener.Accept()
		if acceptErr != nil {
			if errors.Is(acceptErr, net.ErrClosed) {
				return
			}
			s.logger.Warn("Accept failed", "err", acceptErr)
			continue
		}

		s.mu.Lock()
		if s.closed || len(s.clients) >= MAX_SPOT_CLIENTS {
			var closed = s.closed
			s.mu.Unlock()
			if !closed {
				s.logger.Warn("Too many spot clients, refusing", "remote", conn.RemoteAddr().String())
			}
			conn.Close()
			continue
		}

		var c = &spotClient{conn: conn, queue: make(chan string, spotClientQueue)}
		s.clients[c] = struct{}{}
		s.mu.Unlock()

		s.logger.Info("Attached to spot client", "remote", conn.RemoteAddr().String())

		s.wg.Add(1)
		go s.serve(c)
	}
}

func (s *SpotServer) serve(c *spotClient) {
	defer s.wg.Done()
	defer c.conn.Close()

	for line := range c.queue {
		c.conn.SetWriteDeadline(time.Now().Add(spotWriteTimeout)) //nolint:errcheck

		var _, err = fmt.Fprintf(c.conn, "%s\r\n", line)
		if err != nil {
			s.logger.Info("Spot client went away", "remote", c.conn.RemoteAddr().String(), "err", err)
			s.drop(c)
			// Keep draining so Send never blocks on us.
			for range c.queue {
			}
			return
		}
	}
}

// drop forgets a client.  Its queue is closed so serve finishes.
func (s *SpotServer) drop(c *spotClient) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.queue)
	}
}

// Send queues line for every client.  Never blocks.
func (s *SpotServer) Send(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for c := range s.clients {
		select {
		case c.queue <- line:
		default:
			s.logger.Warn("Spot client too slow, dropping", "remote", c.conn.RemoteAddr().String())
			delete(s.clients, c)
			close(c.queue)
			c.conn.Close()
		}
	}
}

// Clients is the number currently connected.
func (s *SpotServer) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.clients)
}

// Close stops listening and disconnects everyone.
func (s *SpotServer) Close() error {
	s.mu.Lock()
	s.closed = true
	var err = s.listener.Close()
	for c := range s.clients {
		delete(s.clients, c)
		close(c.queue)
	}
	s.mu.Unlock()

	s.wg.Wait()

	return err
}

// Announce advertises the server with DNS-SD until ctx is done.
func (s *SpotServer) Announce(ctx context.Context, name string) error {
	return dnsSDAnnounce(ctx, name, s.Port(), s.logger)
}
