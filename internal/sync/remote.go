package sync

import (
	"context"
	"errors"

	"github.com/MarcoPoloResearchLab/gradebook/internal/document"
)

// ErrUnauthenticated indicates the remote rejected the account credentials.
// Implementations wrap it so the controller can park itself instead of
// retrying a hopeless session.
var ErrUnauthenticated = errors.New("sync: unauthenticated")

// Remote is one replica endpoint holding the account's document. The identity
// binding lives inside the implementation; the controller only moves
// documents.
type Remote interface {
	// Fetch returns the remote document, or nil when the account has never
	// pushed one.
	Fetch(ctx context.Context) (*document.Document, error)
	// Upsert replaces the remote document wholesale.
	Upsert(ctx context.Context, doc *document.Document) error
	// Subscribe delivers every remote document change to the handler until
	// the returned cancel function runs or the context ends. Handlers run on
	// the subscription's goroutine.
	Subscribe(ctx context.Context, handler func(*document.Document)) (func(), error)
}

// LocalReplica is the controller's view of the locally persisted document.
type LocalReplica interface {
	// Snapshot returns a deep copy of the current local document.
	Snapshot() *document.Document
	// ApplyRemote replaces the local document with a replicated one,
	// persisting it and notifying listeners.
	ApplyRemote(ctx context.Context, doc *document.Document) error
}
