package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

func TestHTTPNotifierPostsEvent(t *testing.T) {
	var received Event
	var mu sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		_ = json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier := NewHTTPNotifier(server.URL, nil)
	notifier.Notify(context.Background(), NewOnlineEvent("192.0.2.1", 25565, "hi"))

	mu.Lock()
	defer mu.Unlock()
	if received.Type != "online" || received.IP != "192.0.2.1" {
		t.Errorf("received = %+v, want type=online ip=192.0.2.1", received)
	}
}

type recordingObserver struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingObserver) Notify(ctx context.Context, event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func TestFanoutDispatchesToAllObservers(t *testing.T) {
	a, b := &recordingObserver{}, &recordingObserver{}
	fanout := NewFanout(a, b)

	fanout.Notify(context.Background(), NewOfflineEvent("192.0.2.2", 25565))

	for _, obs := range []*recordingObserver{a, b} {
		obs.mu.Lock()
		count := len(obs.events)
		obs.mu.Unlock()
		if count != 1 {
			t.Errorf("observer got %d events, want 1", count)
		}
	}
}

func TestNewErrorEventCarriesMessage(t *testing.T) {
	event := NewErrorEvent("192.0.2.3", 25565, context.DeadlineExceeded)
	if event.Type != "error" {
		t.Errorf("Type = %q, want error", event.Type)
	}
	if event.Payload == "" {
		t.Error("expected non-empty payload carrying the error message")
	}
}
