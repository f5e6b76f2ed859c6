package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// next waits for one message on ch.
func next(t *testing.T, ch chan []byte, within time.Duration) string {
	t.Helper()
	select {
	case msg, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return string(msg)
	case <-time.After(within):
		t.Fatal("timeout waiting for message")
		return ""
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	ch := b.Subscribe()
	if n := b.ClientCount(); n != 1 {
		t.Fatalf("clients = %d, want 1", n)
	}
	b.Unsubscribe(ch)
	if n := b.ClientCount(); n != 0 {
		t.Fatalf("clients after unsubscribe = %d", n)
	}
	if _, ok := <-ch; ok {
		t.Error("unsubscribed channel should be closed")
	}
}

func TestPublish_SequencedMessages(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: "sync.completed", Data: map[string]string{"repo": "o/r"}})
	b.Publish(Event{Type: "sync.completed", Data: map[string]string{"repo": "o/s"}})

	first := next(t, ch, time.Second)
	want := "id: 1\nevent: sync.completed\ndata: {\"repo\":\"o/r\"}\n\n"
	if first != want {
		t.Errorf("first = %q, want %q", first, want)
	}
	if second := next(t, ch, time.Second); !strings.HasPrefix(second, "id: 2\n") {
		t.Errorf("second = %q", second)
	}
}

func TestPublishDocumentEvent_OutlineThrottle(t *testing.T) {
	b := NewBroker(200 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishDocumentEvent(KindChanged, "issues.org")
	b.PublishDocumentEvent(KindRemoved, "issues.org")
	b.PublishDocumentEvent("renamed", "issues.org")

	var got []string
	for range 3 {
		msg := next(t, ch, time.Second)
		got = append(got, msg[strings.Index(msg, "event: ")+len("event: "):strings.Index(msg, "\ndata")])
	}
	want := []string{TypeDocumentChanged, TypeOutlineUpdated, TypeDocumentRemoved}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("events = %v, want %v", got, want)
	}

	// The change inside the gap is announced once the gap ends.
	if msg := next(t, ch, time.Second); !strings.Contains(msg, "event: "+TypeOutlineUpdated) {
		t.Errorf("trailing = %q", msg)
	}
	select {
	case msg := <-ch:
		t.Errorf("unexpected extra message %q", msg)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestServeHTTP(t *testing.T) {
	b := NewBroker(100*time.Millisecond, WithHeartbeat(20*time.Millisecond))
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	w := &lockedRecorder{ResponseRecorder: httptest.NewRecorder()}

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for b.ClientCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("handler never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	b.Publish(Event{Type: TypeDocumentChanged, Data: map[string]string{"path": "issues.org"}})
	time.Sleep(60 * time.Millisecond)
	cancel()
	<-done

	body := w.body()
	for _, want := range []string{"retry: 3000\n\n", "event: document.changed", ": ping\n\n"} {
		if !strings.Contains(body, want) {
			t.Errorf("stream missing %q: %q", want, body)
		}
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}

	deadline = time.Now().Add(time.Second)
	for b.ClientCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("client not cleaned up after disconnect")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPublish_DropsWhenClientQueueFull(t *testing.T) {
	b := NewBroker(time.Second, WithClientBuffer(4))
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	for range 10 {
		b.Publish(Event{Type: "test", Data: 1})
	}

	deadline := time.Now().Add(time.Second)
	for b.Dropped() != 6 {
		if time.Now().After(deadline) {
			t.Fatalf("dropped = %d, want 6", b.Dropped())
		}
		time.Sleep(5 * time.Millisecond)
	}
	if len(ch) != 4 {
		t.Errorf("queued = %d, want 4", len(ch))
	}
}

func TestClose(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe()

	b.Close()
	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("subscriber channel should be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}
	if n := b.ClientCount(); n != 0 {
		t.Fatalf("clients after close = %d", n)
	}
	if _, ok := <-b.Subscribe(); ok {
		t.Error("subscribe after close should return a closed channel")
	}

	b.Publish(Event{Type: TypeDocumentChanged, Data: nil})
	b.PublishDocumentEvent(KindChanged, "issues.org")
}

// lockedRecorder guards the body so the test can read it while the handler
// goroutine is writing.
type lockedRecorder struct {
	mu sync.Mutex
	*httptest.ResponseRecorder
}

func (l *lockedRecorder) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ResponseRecorder.Write(p)
}

func (l *lockedRecorder) body() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ResponseRecorder.Body.String()
}
