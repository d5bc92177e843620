package ws

import (
	"encoding/json"
	"log"
	"sync"

	"musicjam/internal/model"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	MsgParticipantsUpdate MessageType = "participants_update"
	MsgJamEnded           MessageType = "jam_ended"
	MsgError              MessageType = "error"
)

// Message is the WebSocket envelope format
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Hub manages viewer WebSocket connections per jam. Every viewer of a jam
// receives every snapshot, including the one whose own report triggered it.
type Hub struct {
	// jamID -> connection set
	viewers map[string]map[*Connection]struct{}

	mu sync.RWMutex

	register   chan *Connection
	unregister chan *Connection
	broadcast  chan *broadcastMessage
}

// Connection represents one viewer's WebSocket connection
type Connection struct {
	JamID  string
	UserID string
	Send   chan []byte
	Hub    *Hub
}

type broadcastMessage struct {
	jamID   string
	message *Message
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	h := &Hub{
		viewers:    make(map[string]map[*Connection]struct{}),
		register:   make(chan *Connection),
		unregister: make(chan *Connection),
		broadcast:  make(chan *broadcastMessage, 256),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			if h.viewers[conn.JamID] == nil {
				h.viewers[conn.JamID] = make(map[*Connection]struct{})
			}
			h.viewers[conn.JamID][conn] = struct{}{}
			h.mu.Unlock()
			log.Printf("Viewer %s connected to jam %s", conn.UserID, conn.JamID)

		case conn := <-h.unregister:
			h.mu.Lock()
			if conns, ok := h.viewers[conn.JamID]; ok {
				if _, ok := conns[conn]; ok {
					delete(conns, conn)
					close(conn.Send)
					if len(conns) == 0 {
						delete(h.viewers, conn.JamID)
					}
					log.Printf("Viewer %s disconnected from jam %s", conn.UserID, conn.JamID)
				}
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			data, _ := json.Marshal(msg.message)
			for conn := range h.viewers[msg.jamID] {
				select {
				case conn.Send <- data:
				default:
					// Drop message if buffer full
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Register adds a connection
func (h *Hub) Register(conn *Connection) {
	h.register <- conn
}

// Unregister removes a connection
func (h *Hub) Unregister(conn *Connection) {
	h.unregister <- conn
}

// BroadcastParticipants delivers a fresh ordered snapshot to every viewer
// of the jam (implements fanout.Broadcaster).
func (h *Hub) BroadcastParticipants(jamID string, participants []model.Participant) {
	data, _ := json.Marshal(participants)
	h.broadcast <- &broadcastMessage{
		jamID: jamID,
		message: &Message{
			Type:    MsgParticipantsUpdate,
			Payload: data,
		},
	}
}

// BroadcastJamEnded tells every viewer the host ended the jam (implements
// service.EndedBroadcaster).
func (h *Hub) BroadcastJamEnded(jamID string) {
	h.broadcast <- &broadcastMessage{
		jamID: jamID,
		message: &Message{
			Type: MsgJamEnded,
		},
	}
}
