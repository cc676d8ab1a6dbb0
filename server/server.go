// Package server exposes the printdesk console over HTTP and WebSocket:
// a static control page, a WebSocket feed of console events, and a
// download route for scan artifacts.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/caosdev/printdesk/config"
	"github.com/caosdev/printdesk/errors"
	"github.com/caosdev/printdesk/feed"
	"github.com/caosdev/printdesk/job"
	"github.com/caosdev/printdesk/reclaim"
)

const (
	// MaxClients bounds concurrent WebSocket observers
	MaxClients = 64

	// ShutdownTimeout bounds how long Stop waits for goroutines to exit
	ShutdownTimeout = 10 * time.Second
)

// Server ties the job engine to its observers: it owns the console feed,
// the runner, the reclaimer, and the set of connected WebSocket clients.
type Server struct {
	cfg       *config.Config
	events    *feed.Feed
	runner    *job.Runner
	reclaimer *reclaim.Reclaimer

	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex

	httpServer *http.Server
	logger     *zap.SugaredLogger

	// Lifecycle management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	drops  atomic.Int64 // events dropped on full client channels
}

// New creates a server wired to a fresh feed, runner, and reclaimer.
func New(cfg *config.Config, logger *zap.SugaredLogger) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	events := feed.New()
	reclaimer := reclaim.New(ctx, logger)
	runner := job.NewRunner(events, reclaimer, job.RunnerConfig{
		ReclaimDelay:  cfg.ReclaimDelay(),
		ArtifactRoute: cfg.Artifact.RoutePrefix,
	}, logger)

	return &Server{
		cfg:        cfg,
		events:     events,
		runner:     runner,
		reclaimer:  reclaimer,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Run is the hub event loop handling client registration.
func (s *Server) Run() {
	for {
		select {
		case <-s.ctx.Done():
			s.logger.Debugw("Server hub stopping due to context cancellation")
			return
		case client := <-s.register:
			s.handleClientRegister(client)
		case client := <-s.unregister:
			s.handleClientUnregister(client)
		}
	}
}

// handleClientRegister handles a new client connection
func (s *Server) handleClientRegister(client *Client) {
	s.mu.Lock()

	if len(s.clients) >= MaxClients {
		s.mu.Unlock()
		s.logger.Warnw("Max clients reached, rejecting connection",
			"client_id", client.id,
			"max_clients", MaxClients,
		)
		// Closing the connection, not the send channel: the read pump may
		// still be delivering on it. The channel closes on unregister,
		// after the pump has exited.
		client.conn.Close()
		return
	}

	s.clients[client] = true
	totalClients := len(s.clients)
	s.mu.Unlock()

	s.logger.Infow("Client connected",
		"client_id", client.id,
		"total_clients", totalClients,
	)
}

// handleClientUnregister handles a client disconnection
func (s *Server) handleClientUnregister(client *Client) {
	s.mu.Lock()
	if _, ok := s.clients[client]; ok {
		delete(s.clients, client)
		totalClients := len(s.clients)
		s.mu.Unlock()

		client.close()

		s.logger.Infow("Client disconnected",
			"client_id", client.id,
			"total_clients", totalClients,
		)
	} else {
		s.mu.Unlock()
	}
}

// broadcastEvent sends a console event to all connected clients.
// Returns the number of clients that accepted the event (channel not full).
func (s *Server) broadcastEvent(ev feed.Event) int {
	// Sending under the read lock keeps the send channels alive for the
	// duration: close always follows the map delete, which needs the
	// write lock. The sends never block, so the lock is held briefly.
	s.mu.RLock()
	defer s.mu.RUnlock()

	sent := 0
	for client := range s.clients {
		select {
		case client.send <- ev:
			sent++
		default:
			s.drops.Add(1)
		}
	}
	return sent
}

// startFeedForwarder subscribes to the console feed and fans events out to
// WebSocket clients.
func (s *Server) startFeedForwarder() {
	events := s.events.Subscribe()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			// Unsubscribe first (removes from list), then close
			// Order matters: closing while still subscribed could panic on send
			s.events.Unsubscribe(events)
			close(events)
		}()

		for {
			select {
			case <-s.ctx.Done():
				s.logger.Debugw("Feed forwarder stopping due to context cancellation")
				return
			case ev := <-events:
				s.broadcastEvent(ev)
			}
		}
	}()

	s.logger.Infow("Feed forwarder started")
}

// routes builds the HTTP mux for the console surface.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.HandleWebSocket)
	mux.HandleFunc("/health", s.HandleHealth)
	mux.HandleFunc(s.cfg.Artifact.RoutePrefix, s.HandleArtifact)
	mux.HandleFunc("/", s.HandleIndex)
	return mux
}

// startBackground starts the hub and the feed forwarder.
func (s *Server) startBackground() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Run()
	}()

	s.startFeedForwarder()
}

// Start runs the server on the given port. Blocks until the listener fails
// or Stop shuts it down.
func (s *Server) Start(port int) error {
	s.startBackground()

	addr := fmt.Sprintf(":%d", port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Infow("Server ready",
		"url", fmt.Sprintf("http://localhost:%d", port),
		"port", port,
	)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "http server failed")
	}
	return nil
}

// Stop gracefully shuts down the server and cleans up resources
func (s *Server) Stop() error {
	s.logger.Infow("Initiating server shutdown")

	// Close all client connections BEFORE cancelling context, so each
	// readPump exits cleanly before its context stops the writePump
	s.mu.Lock()
	clientsToClose := make([]*Client, 0, len(s.clients))
	for client := range s.clients {
		clientsToClose = append(clientsToClose, client)
		delete(s.clients, client)
	}
	s.mu.Unlock()

	if len(clientsToClose) > 0 {
		s.logger.Infow("Closing client connections", "count", len(clientsToClose))
		for _, client := range clientsToClose {
			client.conn.Close()
		}
	}

	if s.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warnw("HTTP server shutdown error", "error", err)
		}
	}

	// A job already past TryAcquire runs to completion - cancellation of
	// in-flight child processes is unsupported
	s.runner.Wait()

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Infow("All goroutines stopped cleanly")
	case <-time.After(ShutdownTimeout):
		s.logger.Warnw("Goroutine shutdown timed out, forcing exit",
			"timeout", ShutdownTimeout,
		)
	}

	s.logger.Infow("Server shutdown complete",
		"broadcast_drops", s.drops.Load(),
	)
	return nil
}
