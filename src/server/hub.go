package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"quote-observer/src/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Hub Pattern Implementation
// -----------------------------------------------------------------------------

// handleWebsockets is the main Hub loop
func (s *StatusServer) handleWebsockets() {
	for {
		select {
		case <-s.done:
			for client := range s.clients {
				delete(s.clients, client)
				close(client.send)
			}
			s.clientCount.Store(0)
			return

		case client := <-s.register:
			s.clients[client] = struct{}{}
			s.clientCount.Store(int64(len(s.clients)))

			// Send the current state on connect
			initial := s.pipeline.LatestData()
			select {
			case client.send <- &initial:
			default:
			}

		case client := <-s.unregister:
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				close(client.send)
				s.clientCount.Store(int64(len(s.clients)))
			}

		case message := <-s.broadcast:
			for client := range s.clients {
				filtered := client.filter(message)
				if filtered == nil {
					continue
				}
				select {
				case client.send <- filtered:
				default:
					// Client too slow, disconnect to prevent Hub blocking
					delete(s.clients, client)
					close(client.send)
				}
			}
			s.clientCount.Store(int64(len(s.clients)))
		}
	}
}

// -----------------------------------------------------------------------------
// Data Exchange Interface Implementation
// -----------------------------------------------------------------------------

// Broadcast queues an update for every connected client. It never blocks:
// when the queue is full the update is dropped.
func (s *StatusServer) Broadcast(payload interface{}) {
	var message *models.MLatestData
	switch v := payload.(type) {
	case *models.MLatestData:
		message = v
	case models.MLatestData:
		message = &v
	default:
		s.Logger.Warning("Broadcast expected MLatestData, got %T", payload)
		return
	}

	select {
	case s.broadcast <- message:
	default:
		s.Logger.Warning("Broadcast queue full, dropping update")
	}
}

// -----------------------------------------------------------------------------
// Snapshot Sink Implementation
// -----------------------------------------------------------------------------

func (s *StatusServer) Name() string { return "websocket" }

func (s *StatusServer) Publish(_ context.Context, snapshots []models.MSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	s.Broadcast(&models.MLatestData{
		Type:      "UPDATE",
		Snapshots: groupSnapshots(snapshots),
		Timestamp: time.Now().UnixMilli(),
		Metrics:   s.pipeline.Stats(),
	})
	return nil
}

func (s *StatusServer) Close() error {
	return s.Stop()
}

// -----------------------------------------------------------------------------
// WebSocket Handlers
// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------

func (s *StatusServer) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	client := newClient(s, conn)

	select {
	case s.register <- client:
	case <-s.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// -----------------------------------------------------------------------------
// Client Message Handling
// -----------------------------------------------------------------------------

// HandleClientMessage applies a subscribe command: later updates are limited
// to the requested symbols and window, and the client gets the matching
// current state right away.
func (s *StatusServer) HandleClientMessage(client *Client, message []byte) {
	var cmd models.MSubscribeCommand
	if err := json.Unmarshal(message, &cmd); err != nil {
		s.Logger.Info("Failed to parse client command: %v, disconnecting client", err)
		client.conn.Close()
		return
	}

	if cmd.Command != "subscribe" {
		return
	}

	sub := &subscription{symbols: cmd.Symbols, window: cmd.Window}
	client.sub.Store(sub)

	latest := s.pipeline.LatestData()
	latest.Snapshots = filterSnapshots(latest.Snapshots, sub.symbols, sub.window)
	latest.Current = filterSnapshots(latest.Current, sub.symbols, sub.window)

	select {
	case client.direct <- &latest:
	default:
	}
}
