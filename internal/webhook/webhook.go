// Package webhook fans a scan's results out to external observers: an
// HTTP POST notifier for one-shot integrations, and an optional
// websocket broadcast for a connected live-UI client. Grounded on the
// teacher's direct use of gorilla/websocket for exactly this kind of
// push channel.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Event is one notification payload, sent both to the HTTP webhook and
// to every connected websocket client.
type Event struct {
	Type      string `json:"type"` // "online", "offline", "error"
	IP        string `json:"ip"`
	Port      int    `json:"port"`
	Timestamp int64  `json:"timestamp"`
	Payload   any    `json:"payload,omitempty"`
}

// Observer receives scan events. The coordinator calls Notify
// synchronously; a Fanout runs several Observers concurrently.
type Observer interface {
	Notify(ctx context.Context, event Event)
}

// HTTPNotifier POSTs each event as JSON to a configured URL.
type HTTPNotifier struct {
	url    string
	client *http.Client
	log    *zap.Logger
}

// NewHTTPNotifier builds a notifier posting to url.
func NewHTTPNotifier(url string, log *zap.Logger) *HTTPNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &HTTPNotifier{url: url, client: &http.Client{Timeout: 5 * time.Second}, log: log}
}

func (n *HTTPNotifier) Notify(ctx context.Context, event Event) {
	body, err := json.Marshal(event)
	if err != nil {
		n.log.Warn("failed to marshal webhook event", zap.Error(err))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		n.log.Warn("failed to build webhook request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.log.Warn("webhook delivery failed", zap.String("url", n.url), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		n.log.Warn("webhook endpoint returned non-2xx", zap.Int("status", resp.StatusCode))
	}
}

// Hub broadcasts events to every connected websocket client, for a
// live UI dashboard. Clients that fall behind are disconnected rather
// than allowed to stall the broadcast for everyone else.
type Hub struct {
	upgrader websocket.Upgrader
	log      *zap.Logger

	mu      sync.Mutex
	clients map[*websocket.Conn]chan Event
}

// NewHub builds an empty hub.
func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		log:      log,
		clients:  make(map[*websocket.Conn]chan Event),
	}
}

// ServeHTTP upgrades the connection and registers it as a broadcast
// target until the client disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	feed := make(chan Event, 32)
	h.mu.Lock()
	h.clients[conn] = feed
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		conn.Close()
	}()

	for event := range feed {
		if err := conn.WriteJSON(event); err != nil {
			return
		}
	}
}

// Notify implements Observer by broadcasting to every connected client.
func (h *Hub) Notify(ctx context.Context, event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn, feed := range h.clients {
		select {
		case feed <- event:
		default:
			h.log.Warn("dropping slow websocket client", zap.String("remote", conn.RemoteAddr().String()))
			close(feed)
			delete(h.clients, conn)
		}
	}
}

// Fanout dispatches one event to every registered observer concurrently
// and returns once all of them have returned, so the caller waits for
// the slowest observer.
type Fanout struct {
	observers []Observer
}

// NewFanout builds a Fanout over observers.
func NewFanout(observers ...Observer) *Fanout {
	return &Fanout{observers: observers}
}

func (f *Fanout) Notify(ctx context.Context, event Event) {
	var wg sync.WaitGroup
	for _, o := range f.observers {
		wg.Add(1)
		go func(o Observer) {
			defer wg.Done()
			o.Notify(ctx, event)
		}(o)
	}
	wg.Wait()
}

func newTimestampedEvent(eventType, ip string, port int, payload any) Event {
	return Event{Type: eventType, IP: ip, Port: port, Timestamp: time.Now().UTC().Unix(), Payload: payload}
}

// NewOnlineEvent builds an "online" event for ip:port.
func NewOnlineEvent(ip string, port int, payload any) Event {
	return newTimestampedEvent("online", ip, port, payload)
}

// NewOfflineEvent builds an "offline" event for ip:port.
func NewOfflineEvent(ip string, port int) Event {
	return newTimestampedEvent("offline", ip, port, nil)
}

// NewErrorEvent builds an "error" event carrying err's message.
func NewErrorEvent(ip string, port int, err error) Event {
	return newTimestampedEvent("error", ip, port, fmt.Sprintf("%v", err))
}
