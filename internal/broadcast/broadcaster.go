package broadcast

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Event is what dashboards see for every finished signal.
type Event struct {
	At           time.Time `json:"at"`
	SignalID     string    `json:"signalId"`
	Symbol       string    `json:"symbol"`
	Side         string    `json:"side"`
	Venue        string    `json:"venue"`
	Status       string    `json:"status"`
	AmountIn     string    `json:"amountIn,omitempty"`
	MinOut       string    `json:"minOut,omitempty"`
	TxHash       string    `json:"txHash,omitempty"`
	UnwrapTxHash string    `json:"unwrapTxHash,omitempty"`
	UsedFallback bool      `json:"usedFallback"`
	DryRun       bool      `json:"dryRun"`
	Error        string    `json:"error,omitempty"`
}

// Broadcaster fans execution events out to connected websocket clients.
// Slow or dead clients are dropped, never waited on.
type Broadcaster struct {
	mu       sync.Mutex
	clients  map[*websocket.Conn]struct{}
	upgrader websocket.Upgrader
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		clients: make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Publish sends the event to every connected client.
func (b *Broadcaster) Publish(ev Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		fmt.Printf("[WS] marshal event: %v\n", err)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.clients {
		if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
			c.Close()
			delete(b.clients, c)
		}
	}
}

// ClientCount reports connected listeners; used by /diag.
func (b *Broadcaster) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Handler upgrades the request and registers the connection. The read loop
// only exists to notice disconnects.
func (b *Broadcaster) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := b.upgrader.Upgrade(w, r, nil)
		if err != nil {
			fmt.Printf("[WS] upgrade error: %v\n", err)
			return
		}

		b.mu.Lock()
		b.clients[conn] = struct{}{}
		b.mu.Unlock()

		go func() {
			defer func() {
				b.mu.Lock()
				delete(b.clients, conn)
				b.mu.Unlock()
				conn.Close()
			}()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}
}
