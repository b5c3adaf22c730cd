// Package remote provides clients for the hosted document store.
package remote

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/stockpoint-app/backend/internal/logging"
	"github.com/stockpoint-app/backend/internal/models"
)

// Envelope wraps all change notifications pushed by the document store.
type Envelope struct {
	Type       string                 `json:"type"`
	Collection models.Collection      `json:"collection"`
	DocumentID string                 `json:"document_id"`
	Data       map[string]interface{} `json:"data,omitempty"`
	Timestamp  int64                  `json:"timestamp"`
}

// Change event types pushed over the feed.
const (
	EventDocumentCreated = "document.created"
	EventDocumentUpdated = "document.updated"
	EventDocumentDeleted = "document.deleted"
)

// Feed maintains a live websocket subscription to remote change
// notifications and dispatches envelopes to per-collection subscribers.
//
// The feed is independent of the sync engine: after the engine drains an
// operation, the store pushes the new state back through here and the UI
// converges on it. No echo suppression is needed; the engine's patches are
// idempotent and commutative with themselves.
type Feed struct {
	url    string
	dialer *websocket.Dialer
	token  TokenSource

	mu      sync.RWMutex
	subs    map[models.Collection]map[int]func(Envelope)
	nextSub int
	conn    *websocket.Conn
}

// NewFeed creates a Feed for the given websocket endpoint.
func NewFeed(url string, token TokenSource) *Feed {
	return &Feed{
		url:    url,
		dialer: websocket.DefaultDialer,
		token:  token,
		subs:   make(map[models.Collection]map[int]func(Envelope)),
	}
}

// Subscribe registers a callback for one collection's change events and
// returns its id. Callbacks run on the read loop and must not block.
func (f *Feed) Subscribe(collection models.Collection, fn func(Envelope)) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextSub++
	id := f.nextSub
	if f.subs[collection] == nil {
		f.subs[collection] = make(map[int]func(Envelope))
	}
	f.subs[collection][id] = fn
	return id
}

// Unsubscribe removes a subscription by id.
func (f *Feed) Unsubscribe(collection models.Collection, id int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs[collection], id)
}

// Run connects and reads until ctx is cancelled, reconnecting with doubling
// delay (capped at one minute) after connection loss.
func (f *Feed) Run(ctx context.Context) {
	delay := time.Second
	const maxDelay = time.Minute

	for {
		if ctx.Err() != nil {
			return
		}

		if err := f.connectAndRead(ctx); err != nil {
			logging.Warn("feed disconnected",
				map[string]interface{}{"error": err.Error(), "retry_in": delay.String()})
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}

func (f *Feed) connectAndRead(ctx context.Context) error {
	var header map[string][]string
	if f.token != nil {
		if tok := f.token(); tok != "" {
			header = map[string][]string{"Authorization": {"Bearer " + tok}}
		}
	}

	conn, _, err := f.dialer.DialContext(ctx, f.url, header)
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.conn = conn
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.conn = nil
		f.mu.Unlock()
		conn.Close()
	}()

	logging.Info("feed connected", map[string]interface{}{"url": f.url})

	// Close the socket when ctx ends so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			logging.Warn("feed message dropped",
				map[string]interface{}{"error": err.Error()})
			continue
		}
		f.dispatch(env)
	}
}

func (f *Feed) dispatch(env Envelope) {
	f.mu.RLock()
	subs := make([]func(Envelope), 0, len(f.subs[env.Collection]))
	for _, fn := range f.subs[env.Collection] {
		subs = append(subs, fn)
	}
	f.mu.RUnlock()

	for _, fn := range subs {
		fn(env)
	}
}

// Connected reports whether a live socket is currently open.
func (f *Feed) Connected() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.conn != nil
}
