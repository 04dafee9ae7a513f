package server

import (
	"context"
	"encoding/json"

	"github.com/gofiber/contrib/websocket"
	log "github.com/sirupsen/logrus"

	"dicevault/internal/game"
)

// wsClientMessage is what subscribers may send. Only "ping" and "roll" are
// understood; anything else is ignored.
type wsClientMessage struct {
	Type string `json:"type"`
	rollRequest
}

// gameWebSocketHandler streams settlements of the game named in the "game"
// query parameter, or of every game when it is empty.
func (s *FiberServer) gameWebSocketHandler(conn *websocket.Conn) {
	player := conn.Query("player", "anonymous")
	gameType := game.GameType(conn.Query("game"))

	if gameType != "" {
		if _, ok := s.gameFactory.GetEngine(gameType); !ok {
			writeJSON(conn, game.WSMessage{Type: "error", Data: game.CodeUnknownGame})
			return
		}
	}

	log.Printf("[WS] New connection from player: %s", player)

	client := s.gameHub.RegisterClient(conn, player, gameType)
	defer s.gameHub.UnregisterClient(conn)

	states := s.gameStates(context.Background())
	if gameType != "" {
		states = map[game.GameType]*game.GameState{gameType: states[gameType]}
		if states[gameType] == nil {
			states = nil
		}
	}
	client.SendInitialState(states)

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			log.Printf("[WS] Read error for player %s: %v", player, err)
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var msg wsClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case "roll":
			target := gameType
			if target == "" {
				target = game.GameTypeDice
			}
			if msg.Player.IsZero() {
				client.SendJSON(game.WSMessage{Type: "error", Data: game.CodeInvalidAddress})
				continue
			}
			amount, err := msg.lamports()
			if err != nil {
				client.SendJSON(game.WSMessage{Type: "error", Data: err.Error()})
				continue
			}
			result := s.roll(context.Background(), target, msg.Player, amount, msg.BetType, msg.BetValue)
			client.SendJSON(game.WSMessage{Type: "roll_result", Data: result})

		case "ping":
			client.SendJSON(game.WSMessage{Type: "pong"})
		}
	}
}

// writeJSON is for connections not yet registered with the hub.
func writeJSON(conn *websocket.Conn, message game.WSMessage) {
	payload, err := json.Marshal(message)
	if err != nil {
		log.Printf("[WS] Marshal error: %v", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		log.Printf("[WS] Write error: %v", err)
	}
}
