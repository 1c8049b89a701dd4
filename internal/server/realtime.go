package server

import (
	"context"
	"sync"
	"time"
)

const (
	// RealtimeEventDocumentChanged is the SSE event name for document pushes.
	RealtimeEventDocumentChanged = "document-change"
	realtimeEventHeartbeat       = "heartbeat"
	realtimeSourceBackend        = "gradebook-syncd"
)

// RealtimeMessage notifies one account's subscribers about a stored document.
type RealtimeMessage struct {
	AccountID   string
	EventType   string
	UpdatedAtMs int64
	Timestamp   time.Time
}

// RealtimeDispatcher fans document-change messages out to per-account
// subscribers. Delivery is best effort: a subscriber with a full buffer misses
// the message and recovers on its next fetch.
type RealtimeDispatcher struct {
	mu          sync.RWMutex
	subscribers map[string]map[int64]*realtimeSubscriber
	nextID      int64
	bufferSize  int
}

type realtimeSubscriber struct {
	id     int64
	stream chan RealtimeMessage
}

func NewRealtimeDispatcher() *RealtimeDispatcher {
	return &RealtimeDispatcher{
		subscribers: make(map[string]map[int64]*realtimeSubscriber),
		bufferSize:  16,
	}
}

func (d *RealtimeDispatcher) Subscribe(ctx context.Context, accountID string) (<-chan RealtimeMessage, func()) {
	if accountID == "" {
		ch := make(chan RealtimeMessage)
		close(ch)
		return ch, func() {}
	}
	subscriber := &realtimeSubscriber{
		id:     d.nextSequence(),
		stream: make(chan RealtimeMessage, d.bufferSize),
	}
	d.registerSubscriber(accountID, subscriber)
	cleanup := func() {
		d.unregisterSubscriber(accountID, subscriber.id)
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return subscriber.stream, cleanup
}

func (d *RealtimeDispatcher) Publish(message RealtimeMessage) {
	if message.AccountID == "" || message.EventType == "" {
		return
	}
	d.mu.RLock()
	subscribers := d.subscribers[message.AccountID]
	if len(subscribers) == 0 {
		d.mu.RUnlock()
		return
	}
	copies := make([]*realtimeSubscriber, 0, len(subscribers))
	for _, subscriber := range subscribers {
		copies = append(copies, subscriber)
	}
	d.mu.RUnlock()
	for _, subscriber := range copies {
		select {
		case subscriber.stream <- message:
		default:
		}
	}
}

func (d *RealtimeDispatcher) nextSequence() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	return d.nextID
}

func (d *RealtimeDispatcher) registerSubscriber(accountID string, subscriber *realtimeSubscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.subscribers[accountID]; !ok {
		d.subscribers[accountID] = make(map[int64]*realtimeSubscriber)
	}
	d.subscribers[accountID][subscriber.id] = subscriber
}

func (d *RealtimeDispatcher) unregisterSubscriber(accountID string, subscriberID int64) {
	d.mu.Lock()
	subscribers := d.subscribers[accountID]
	if subscribers != nil {
		delete(subscribers, subscriberID)
		if len(subscribers) == 0 {
			delete(d.subscribers, accountID)
		}
	}
	d.mu.Unlock()
}
