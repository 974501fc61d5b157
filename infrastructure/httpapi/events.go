package httpapi

import (
	"encoding/json"
	"time"

	"tourney-media/domain/mixer"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	eventBuffer  = 32
	writeTimeout = 5 * time.Second
)

// eventMessage is the JSON frame sent to /api/events subscribers
type eventMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// eventClient is one websocket subscriber. Events are dropped for a client
// whose buffer is full rather than blocking the mixer's read loop.
type eventClient struct {
	conn      *websocket.Conn
	send      chan eventMessage
	done      chan struct{}
	listeners map[mixer.ListenerID]string
}

func (s *Server) handleEvents(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("event stream upgrade failed", "error", err)
		return
	}

	client := &eventClient{
		conn:      conn,
		send:      make(chan eventMessage, eventBuffer),
		done:      make(chan struct{}),
		listeners: make(map[mixer.ListenerID]string),
	}

	s.mu.Lock()
	s.clients[client] = struct{}{}
	s.mu.Unlock()

	for _, name := range s.events {
		id := s.controller.On(name, func(e mixer.Event) {
			select {
			case client.send <- eventMessage{Event: e.Name, Data: e.Data}:
			case <-client.done:
			default:
				s.logger.Debug("dropping event for slow subscriber", "event", e.Name)
			}
		})
		client.listeners[id] = name
	}

	go s.writeEvents(client)
	s.readUntilClosed(client)
}

func (s *Server) writeEvents(client *eventClient) {
	for {
		select {
		case msg := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := client.conn.WriteJSON(msg); err != nil {
				client.conn.Close()
				return
			}
		case <-client.done:
			return
		}
	}
}

// readUntilClosed discards client frames until the socket closes, then
// unsubscribes the client
func (s *Server) readUntilClosed(client *eventClient) {
	defer s.removeClient(client)
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) removeClient(client *eventClient) {
	s.mu.Lock()
	_, ok := s.clients[client]
	delete(s.clients, client)
	s.mu.Unlock()
	if !ok {
		return
	}

	for id, name := range client.listeners {
		s.controller.Off(name, id)
	}
	close(client.done)
	client.conn.Close()
}

func (s *Server) closeClients() {
	s.mu.Lock()
	clients := make([]*eventClient, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		s.removeClient(c)
	}
}

// subscriberCount reports the number of connected event subscribers
func (s *Server) subscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}
