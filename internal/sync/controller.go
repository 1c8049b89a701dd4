// Package sync reconciles the local document with a remote replica. The
// document is the unit of replication: conflicts resolve by comparing the
// _updatedAt stamps of the two whole documents and keeping the later one.
// There is no field-level merge, so concurrent edits on two devices lose the
// older document's changes.
package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"

	"go.uber.org/zap"

	"github.com/MarcoPoloResearchLab/gradebook/internal/document"
)

// Status reports the controller's replication state.
type Status string

const (
	// StatusDisabled means no remote is attached or the controller stopped.
	StatusDisabled Status = "disabled"
	// StatusUnauthenticated means the remote rejected the credentials.
	StatusUnauthenticated Status = "unauthenticated"
	// StatusSyncing means the controller is attached and reconciling.
	StatusSyncing Status = "syncing"
)

const (
	opControllerNew = "sync.controller.new"
	opStart         = "sync.start"
	opPush          = "sync.push"
	opApplyRemote   = "sync.apply_remote"

	reasonMissingRemote   = "missing_remote"
	reasonMissingLocal    = "missing_local"
	reasonFetchFailed     = "fetch_failed"
	reasonPushFailed      = "push_failed"
	reasonApplyFailed     = "apply_failed"
	reasonSubscribeFailed = "subscribe_failed"
	reasonUnauthenticated = "unauthenticated"
	reasonAlreadyStarted  = "already_started"
)

var (
	errMissingRemote  = errors.New("remote endpoint is required")
	errMissingLocal   = errors.New("local replica is required")
	errAlreadyStarted = errors.New("controller already started")
	noOpLogger        = zap.NewNop()
)

// ServiceError carries a stable machine-readable code alongside the cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// ControllerConfig describes the dependencies of a Controller.
type ControllerConfig struct {
	Remote Remote
	Local  LocalReplica
	Logger *zap.Logger
}

// Controller drives replication: an initial pull-merge on start, a push after
// every local save, and applies for documents arriving over the subscription.
type Controller struct {
	remote Remote
	local  LocalReplica
	logger *zap.Logger

	mu             gosync.Mutex
	applyingRemote bool
	status         Status
	unsubscribe    func()
}

// NewController validates the configuration and returns a Controller.
func NewController(cfg ControllerConfig) (*Controller, error) {
	if cfg.Remote == nil {
		return nil, newServiceError(opControllerNew, reasonMissingRemote, errMissingRemote)
	}
	if cfg.Local == nil {
		return nil, newServiceError(opControllerNew, reasonMissingLocal, errMissingLocal)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Controller{
		remote: cfg.Remote,
		local:  cfg.Local,
		logger: logger,
		status: StatusDisabled,
	}, nil
}

// Status returns the current replication state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Start performs the initial reconciliation and subscribes to remote changes.
// When the remote copy is strictly newer it replaces the local document;
// otherwise the local document is pushed so both replicas converge on the
// later stamp.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.unsubscribe != nil {
		c.mu.Unlock()
		return newServiceError(opStart, reasonAlreadyStarted, errAlreadyStarted)
	}
	c.mu.Unlock()

	remoteDoc, err := c.remote.Fetch(ctx)
	if err != nil {
		return c.startFailure(opStart, reasonFetchFailed, err)
	}

	local := c.local.Snapshot()
	switch {
	case remoteDoc != nil && remoteDoc.UpdatedAt > local.UpdatedAt:
		if err := c.applyRemote(ctx, remoteDoc); err != nil {
			return c.startFailure(opStart, reasonApplyFailed, err)
		}
	default:
		if err := c.remote.Upsert(ctx, local); err != nil {
			return c.startFailure(opStart, reasonPushFailed, err)
		}
	}

	unsubscribe, err := c.remote.Subscribe(ctx, c.onRemoteChange)
	if err != nil {
		return c.startFailure(opStart, reasonSubscribeFailed, err)
	}

	c.mu.Lock()
	c.unsubscribe = unsubscribe
	c.status = StatusSyncing
	c.mu.Unlock()
	c.logger.Info("replication started")
	return nil
}

// Stop detaches from the remote. Stopping twice is harmless.
func (c *Controller) Stop() {
	c.mu.Lock()
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	c.status = StatusDisabled
	c.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
		c.logger.Info("replication stopped")
	}
}

// PushLocal replicates a locally saved document to the remote. Calls made
// while a remote document is being applied are dropped: the incoming change
// came from the remote, pushing it back would only echo.
func (c *Controller) PushLocal(ctx context.Context, doc *document.Document) error {
	c.mu.Lock()
	applying := c.applyingRemote
	status := c.status
	c.mu.Unlock()
	if applying {
		return nil
	}
	if status != StatusSyncing {
		return nil
	}

	if err := c.remote.Upsert(ctx, doc); err != nil {
		c.noteAuthFailure(err)
		c.logError(opPush, reasonPushFailed, err)
		return newServiceError(opPush, reasonPushFailed, err)
	}
	return nil
}

func (c *Controller) onRemoteChange(remoteDoc *document.Document) {
	if remoteDoc == nil {
		return
	}
	local := c.local.Snapshot()
	if remoteDoc.UpdatedAt <= local.UpdatedAt {
		return
	}
	if err := c.applyRemote(context.Background(), remoteDoc); err != nil {
		c.logError(opApplyRemote, reasonApplyFailed, err)
	}
}

// applyRemote runs the local replacement under the re-entrancy guard. The
// guard is released on every path so a failed apply cannot wedge future
// pushes.
func (c *Controller) applyRemote(ctx context.Context, remoteDoc *document.Document) error {
	c.mu.Lock()
	c.applyingRemote = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.applyingRemote = false
		c.mu.Unlock()
	}()
	return c.local.ApplyRemote(ctx, remoteDoc)
}

func (c *Controller) startFailure(operation, reason string, err error) error {
	c.noteAuthFailure(err)
	c.logError(operation, reason, err)
	return newServiceError(operation, reason, err)
}

func (c *Controller) noteAuthFailure(err error) {
	if !errors.Is(err, ErrUnauthenticated) {
		return
	}
	c.mu.Lock()
	c.status = StatusUnauthenticated
	c.mu.Unlock()
	c.logError(opStart, reasonUnauthenticated, err)
}

func (c *Controller) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	c.logger.Error("sync controller error", attrs...)
}
