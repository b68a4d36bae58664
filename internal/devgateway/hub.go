package devgateway

import (
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/digimartpay/digipay-go/domain"
)

// StatusMessage is the payload pushed to every websocket subscriber when a
// transaction changes state.
type StatusMessage struct {
	Type        string              `json:"type"`
	Transaction *domain.Transaction `json:"transaction"`
}

// Hub fans transaction status changes out to connected websocket clients.
type Hub struct {
	Clients    map[*websocket.Conn]bool
	Broadcast  chan StatusMessage
	Register   chan *websocket.Conn
	Unregister chan *websocket.Conn
	Logger     zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		Clients:    make(map[*websocket.Conn]bool),
		Broadcast:  make(chan StatusMessage, 100),
		Register:   make(chan *websocket.Conn, 100),
		Unregister: make(chan *websocket.Conn, 100),
		Logger:     logger.With().Str("component", "status_hub").Logger(),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case conn := <-h.Register:
			h.Clients[conn] = true
			h.Logger.Info().
				Int("connection_count", len(h.Clients)).
				Msg("Status subscriber registered")

		case conn := <-h.Unregister:
			if _, ok := h.Clients[conn]; ok {
				delete(h.Clients, conn)
				conn.Close()
				h.Logger.Info().
					Int("connection_count", len(h.Clients)).
					Msg("Status subscriber unregistered")
			}

		case message := <-h.Broadcast:
			for conn := range h.Clients {
				if err := conn.WriteJSON(message); err != nil {
					h.Logger.Warn().Err(err).Msg("Dropping unreachable status subscriber")
					delete(h.Clients, conn)
					conn.Close()
				}
			}
		}
	}
}

// NotifyTransaction pushes the latest transaction record to all subscribers.
func (h *Hub) NotifyTransaction(tx domain.Transaction) {
	h.Broadcast <- StatusMessage{Type: "transaction", Transaction: &tx}
}
