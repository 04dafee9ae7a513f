package game

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	HUB_BUFFER_SIZE   = 100
	HUB_WRITE_TIMEOUT = 10 * time.Second
)

// Client is one WebSocket subscriber. A client with an empty game receives
// settlements of every game.
type Client struct {
	conn   *websocket.Conn
	player string
	game   GameType
	mu     sync.Mutex
}

// Hub fans settlements out to WebSocket subscribers.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan interface{}
	register   chan *Client
	unregister chan *Client
	stop       chan struct{}
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan interface{}, HUB_BUFFER_SIZE),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stop:       make(chan struct{}),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case <-h.stop:
			log.Println("[WS] Hub stopped")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			log.Printf("[WS] Subscriber connected: %s game=%q (Total: %d)", client.player, client.game, total)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.conn.Close()
				log.Printf("[WS] Subscriber disconnected: %s (Total: %d)", client.player, len(h.clients))
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			payload, err := json.Marshal(message)
			if err != nil {
				log.Printf("[WS] Marshal error: %v", err)
				continue
			}
			game := messageGame(message)

			h.mu.RLock()
			for client := range h.clients {
				if client.game != "" && game != "" && client.game != game {
					continue
				}
				go client.send(payload)
			}
			h.mu.RUnlock()
		}
	}
}

// Stop ends Run. Open connections are closed by the server shutdown.
func (h *Hub) Stop() {
	close(h.stop)
}

// Broadcast queues message for the subscribers and drops it when the queue
// is full, so settlement never waits on a slow socket.
func (h *Hub) Broadcast(message interface{}) {
	select {
	case h.broadcast <- message:
	default:
		log.Println("[WS] Broadcast channel full, dropping message")
	}
}

func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) RegisterClient(conn *websocket.Conn, player string, game GameType) *Client {
	client := &Client{
		conn:   conn,
		player: player,
		game:   game,
	}
	h.register <- client
	return client
}

func (h *Hub) UnregisterClient(conn *websocket.Conn) {
	h.mu.RLock()
	for client := range h.clients {
		if client.conn == conn {
			h.mu.RUnlock()
			h.unregister <- client
			return
		}
	}
	h.mu.RUnlock()
}

// SendInitialState writes the current state of every game to one client.
func (c *Client) SendInitialState(states map[GameType]*GameState) {
	if len(states) == 0 {
		return
	}
	c.SendJSON(WSMessage{Type: "initial_state", Data: states})
}

// SendJSON writes one message to the client. It is safe to call alongside
// hub broadcasts.
func (c *Client) SendJSON(message interface{}) {
	payload, err := json.Marshal(message)
	if err != nil {
		log.Printf("[WS] Marshal error: %v", err)
		return
	}
	c.send(payload)
}

func (c *Client) send(payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(HUB_WRITE_TIMEOUT))
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		log.Printf("[WS] Write error for %s: %v", c.player, err)
	}
}

// messageGame returns the game a broadcast belongs to, or "" for messages
// every subscriber should see.
func messageGame(message interface{}) GameType {
	msg, ok := message.(WSMessage)
	if !ok {
		return ""
	}
	if s, ok := msg.Data.(*Settlement); ok && s != nil {
		return s.Game
	}
	return ""
}
