// Package sse streams document and sync notifications to browsers and
// scripts as Server-Sent Events.
package sse

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"
)

// Event types emitted by the broker itself. Callers may publish others.
const (
	TypeDocumentChanged = "document.changed"
	TypeDocumentRemoved = "document.removed"
	TypeOutlineUpdated  = "outline.updated"
)

// Document change kinds accepted by PublishDocumentEvent.
const (
	KindChanged = "changed"
	KindRemoved = "removed"
)

// Event is one notification. Data is sent as the JSON data field.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type documentChange struct {
	kind string
	path string
}

// Option configures a Broker.
type Option func(*Broker)

// WithHeartbeat sets how often idle streams receive a keep-alive comment.
// Zero disables heartbeats.
func WithHeartbeat(d time.Duration) Option {
	return func(b *Broker) { b.heartbeat = d }
}

// WithClientBuffer sets the per-client queue length. Messages for a client
// whose queue is full are dropped.
func WithClientBuffer(n int) Option {
	return func(b *Broker) {
		if n > 0 {
			b.buffer = n
		}
	}
}

// Broker fans events out to connected clients.
//
// The client set, the message sequence and the outline throttle state are
// owned by a single loop goroutine; every public method is a channel send.
type Broker struct {
	outlineGap time.Duration
	heartbeat  time.Duration
	buffer     int

	join    chan chan []byte
	leave   chan chan []byte
	events  chan Event
	changes chan documentChange
	count   chan chan int

	dropped atomic.Int64
	closed  atomic.Bool
	quit    chan struct{}
	done    chan struct{}
}

// NewBroker starts a broker. outlineThrottle is the minimum gap between two
// outline.updated events; a change inside the gap is announced when the gap
// ends.
func NewBroker(outlineThrottle time.Duration, opts ...Option) *Broker {
	if outlineThrottle <= 0 {
		outlineThrottle = 2 * time.Second
	}
	b := &Broker{
		outlineGap: outlineThrottle,
		heartbeat:  30 * time.Second,
		buffer:     64,
		join:       make(chan chan []byte),
		leave:      make(chan chan []byte),
		events:     make(chan Event, 256),
		changes:    make(chan documentChange, 256),
		count:      make(chan chan int),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	go b.loop()
	return b
}

func (b *Broker) loop() {
	defer close(b.done)

	clients := make(map[chan []byte]struct{})
	var (
		seq         uint64
		lastOutline time.Time
		trailing    *time.Timer
		trailingC   <-chan time.Time
		pendingPath string
	)

	send := func(ev Event) {
		data, err := json.Marshal(ev.Data)
		if err != nil {
			return
		}
		seq++
		msg := encode(seq, ev.Type, data)
		for ch := range clients {
			select {
			case ch <- msg:
			default:
				b.dropped.Add(1)
			}
		}
	}
	outline := func(path string, now time.Time) {
		lastOutline = now
		send(Event{Type: TypeOutlineUpdated, Data: map[string]string{"path": path}})
	}

	for {
		select {
		case <-b.quit:
			if trailing != nil {
				trailing.Stop()
			}
			for ch := range clients {
				close(ch)
			}
			return

		case ch := <-b.join:
			clients[ch] = struct{}{}

		case ch := <-b.leave:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case ev := <-b.events:
			send(ev)

		case c := <-b.changes:
			switch c.kind {
			case KindChanged:
				send(Event{Type: TypeDocumentChanged, Data: map[string]string{"path": c.path}})
			case KindRemoved:
				send(Event{Type: TypeDocumentRemoved, Data: map[string]string{"path": c.path}})
			default:
				continue
			}
			now := time.Now()
			if wait := b.outlineGap - now.Sub(lastOutline); wait > 0 {
				pendingPath = c.path
				if trailingC == nil {
					trailing = time.NewTimer(wait)
					trailingC = trailing.C
				}
				continue
			}
			outline(c.path, now)

		case now := <-trailingC:
			trailing, trailingC = nil, nil
			outline(pendingPath, now)

		case resp := <-b.count:
			resp <- len(clients)
		}
	}
}

// encode renders one message in the text/event-stream format.
func encode(id uint64, typ string, data []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString("id: ")
	buf.WriteString(strconv.FormatUint(id, 10))
	buf.WriteString("\nevent: ")
	buf.WriteString(typ)
	buf.WriteString("\ndata: ")
	buf.Write(data)
	buf.WriteString("\n\n")
	return buf.Bytes()
}

// Close stops the loop and closes every client channel. It is safe to call
// more than once.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.quit)
	}
	<-b.done
}

// Subscribe registers a client. The returned channel is closed by
// Unsubscribe or Close.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, b.buffer)
	if b.closed.Load() {
		close(ch)
		return ch
	}
	select {
	case b.join <- ch:
	case <-b.done:
		close(ch)
	}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.leave <- ch:
	case <-b.done:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}
	resp := make(chan int, 1)
	select {
	case b.count <- resp:
	case <-b.done:
		return 0
	}
	select {
	case n := <-resp:
		return n
	case <-b.done:
		return 0
	}
}

// Dropped returns how many messages were discarded because a client queue
// was full.
func (b *Broker) Dropped() int64 { return b.dropped.Load() }

// Publish broadcasts ev to every client.
func (b *Broker) Publish(ev Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.events <- ev:
	case <-b.done:
	}
}

// PublishDocumentEvent announces a change of the outline file. kind is
// KindChanged or KindRemoved; other kinds are ignored. Its signature
// matches watch.EventCallback.
func (b *Broker) PublishDocumentEvent(kind, path string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.changes <- documentChange{kind: kind, path: path}:
	case <-b.done:
	}
}

// ServeHTTP streams events to one client (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("retry: 3000\n\n"))
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	var ping <-chan time.Time
	if b.heartbeat > 0 {
		t := time.NewTicker(b.heartbeat)
		defer t.Stop()
		ping = t.C
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ping:
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
