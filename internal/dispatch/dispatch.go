// Package dispatch delivers in-process change notifications. Views and the
// replication layer register listeners and get called after every applied
// mutation, so derived state is always recomputed from the document instead of
// patched incrementally.
package dispatch

import (
	"sync"
)

// Origin states where a change came from.
type Origin string

const (
	// OriginLocal marks a change made through the local mutation API.
	OriginLocal Origin = "local"
	// OriginRemote marks a change applied from a replicated document.
	OriginRemote Origin = "remote"
	// OriginImport marks a wholesale document replacement from an import.
	OriginImport Origin = "import"
)

// Event describes one applied document change.
type Event struct {
	Origin Origin
	// UpdatedAtMs is the document's logical timestamp after the change.
	UpdatedAtMs int64
}

// Listener receives change events. Listeners run synchronously on the
// notifying goroutine and must not call back into Notify.
type Listener func(Event)

// Dispatcher is a registry of change listeners.
type Dispatcher struct {
	mu        sync.Mutex
	listeners map[int64]Listener
	nextID    int64
}

// NewDispatcher returns an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{listeners: make(map[int64]Listener)}
}

// Register adds a listener and returns its removal function. Calling the
// removal function more than once is harmless.
func (d *Dispatcher) Register(listener Listener) func() {
	if listener == nil {
		return func() {}
	}
	d.mu.Lock()
	d.nextID++
	id := d.nextID
	d.listeners[id] = listener
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		delete(d.listeners, id)
		d.mu.Unlock()
	}
}

// Notify invokes every registered listener with the event. Listeners are
// snapshotted under the lock and invoked outside it, so a listener may
// unregister itself or others mid-notification.
func (d *Dispatcher) Notify(event Event) {
	d.mu.Lock()
	snapshot := make([]Listener, 0, len(d.listeners))
	for _, listener := range d.listeners {
		snapshot = append(snapshot, listener)
	}
	d.mu.Unlock()

	for _, listener := range snapshot {
		listener(event)
	}
}

// Len reports the number of registered listeners.
func (d *Dispatcher) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.listeners)
}
