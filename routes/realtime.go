package routes

import (
	"log"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"farmdirect/realtime"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 512

	sendBuffer = 64
)

func (h *Handler) upgradeChanges(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return c.Status(fiber.StatusUpgradeRequired).JSON(fiber.Map{
		"error": "Websocket upgrade required",
	})
}

// subscriptionsFor lists what one user's stream carries: their own orders,
// ratings and conversations, plus every auction and bid.
func subscriptionsFor(userID string) map[string]realtime.Predicate {
	party := func(a, b string) realtime.Predicate {
		return realtime.Any(realtime.Eq(a, userID), realtime.Eq(b, userID))
	}
	return map[string]realtime.Predicate{
		"orders":        party("buyer_id", "farmer_id"),
		"ratings":       party("rated_user_id", "rating_user_id"),
		"conversations": party("participant_1", "participant_2"),
		"messages":      party("participant_1", "participant_2"),
		"auctions":      realtime.All(),
		"bids":          realtime.All(),
		"products":      realtime.All(),
	}
}

func (h *Handler) streamChanges() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		userID, _ := conn.Locals("user_id").(string)
		send := make(chan realtime.Change, sendBuffer)

		var subs []*realtime.Subscription
		for table, pred := range subscriptionsFor(userID) {
			subs = append(subs, h.hub.SubscribeFunc(table, pred, func(change realtime.Change) {
				select {
				case send <- change:
				default:
					log.Printf("ws: send buffer full for user %s, dropping %s change", userID, change.Table)
				}
			}))
		}
		defer func() {
			for _, sub := range subs {
				sub.Cancel()
			}
		}()
		log.Printf("ws: user %s connected", userID)

		done := make(chan struct{})
		go readPump(conn, done)
		writePump(conn, send, done)
		log.Printf("ws: user %s disconnected", userID)
	})
}

// readPump discards client frames; it exists to process pongs and notice
// the peer going away.
func readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error { conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("ws: read error: %v", err)
			}
			return
		}
	}
}

func writePump(conn *websocket.Conn, send <-chan realtime.Change, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case change := <-send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(change); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
