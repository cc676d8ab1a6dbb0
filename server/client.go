package server

import (
	"encoding/base64"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/caosdev/printdesk/errors"
	"github.com/caosdev/printdesk/feed"
	"github.com/caosdev/printdesk/job"
)

const (
	// writeWait is the time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// pingPeriod sends pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize bounds inbound messages. Print payloads travel base64
	// encoded inside the request, so this also caps print jobs at roughly
	// 12 MB of decoded content.
	maxMessageSize = 16 << 20

	// sendBufferSize is the per-client outbound event buffer
	sendBufferSize = 256
)

// busyNotice mirrors the console line shown when a second job is submitted
// while one is running.
const busyNotice = "[process already running – wait for it to finish]\n"

// request is a command message from the control page.
type request struct {
	Type       string `json:"type"`
	ContentB64 string `json:"content_b64,omitempty"`
}

// Client represents a single WebSocket observer of the console feed.
type Client struct {
	id     string
	conn   *websocket.Conn
	server *Server
	send   chan feed.Event

	closeOnce sync.Once
}

func newClient(conn *websocket.Conn, server *Server) *Client {
	return &Client{
		id:     uuid.NewString(),
		conn:   conn,
		server: server,
		send:   make(chan feed.Event, sendBufferSize),
	}
}

// close shuts down the client's send channel exactly once.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// deliver queues an event for this client only, dropping it if the client
// cannot keep up.
func (c *Client) deliver(ev feed.Event) {
	select {
	case c.send <- ev:
	default:
		c.server.drops.Add(1)
	}
}

// readPump reads command messages from the WebSocket connection and routes
// them to the job engine. Runs in its own goroutine per connection.
func (c *Client) readPump() {
	defer func() {
		// The hub may already be gone during shutdown
		select {
		case c.server.unregister <- c:
		case <-c.server.ctx.Done():
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.server.logger.Warnw("WebSocket read error",
					"client_id", c.id,
					"error", err,
				)
			}
			return
		}

		if err := c.handleRequest(data); err != nil {
			c.server.logger.Warnw("Request handling failed",
				"client_id", c.id,
				"error", err,
			)
		}
	}
}

// handleRequest decodes and dispatches one command message.
func (c *Client) handleRequest(data []byte) error {
	var req request
	if err := json.Unmarshal(data, &req); err != nil {
		return errors.Wrap(errors.ErrInvalidRequest, "malformed request JSON")
	}

	switch req.Type {
	case "scan":
		scanJob, err := c.server.scanJob()
		if err != nil {
			return err
		}
		return c.submit(scanJob)
	case "print":
		content, err := base64.StdEncoding.DecodeString(req.ContentB64)
		if err != nil {
			return errors.Wrap(errors.ErrInvalidRequest, "print content is not valid base64")
		}
		printJob, err := c.server.printJob(content)
		if err != nil {
			return err
		}
		return c.submit(printJob)
	case "ping":
		// Application-level keepalive from the page, nothing to do
		return nil
	default:
		return errors.Wrapf(errors.ErrInvalidRequest, "unknown request type %q", req.Type)
	}
}

// submit hands a job to the runner. A busy engine is not an error for the
// connection: the requesting client alone sees the busy notice, as other
// observers did not ask for anything.
func (c *Client) submit(j *job.Job) error {
	err := c.server.runner.Submit(j)
	if err == nil {
		return nil
	}
	if errors.IsBusy(err) {
		c.deliver(feed.Output(busyNotice))
		return nil
	}
	return err
}

// writePump pushes console events and pings to the WebSocket connection.
// Runs in its own goroutine per connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
				c.server.logger.Debugw("WebSocket write failed",
					"client_id", c.id,
					"error", err,
				)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.server.ctx.Done():
			return
		}
	}
}
