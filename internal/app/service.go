// Package app owns the live document and coordinates everything around it:
// persistence, change notification, replication, and the derived report views.
// Mutations follow one path: validate against the in-memory document, apply,
// persist, notify, replicate. A persistence or replication failure never rolls
// back an applied mutation; the change is kept in memory and surfaced through
// the status message instead.
package app

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	"go.uber.org/zap"

	"github.com/MarcoPoloResearchLab/gradebook/internal/aggregate"
	"github.com/MarcoPoloResearchLab/gradebook/internal/dispatch"
	"github.com/MarcoPoloResearchLab/gradebook/internal/document"
	"github.com/MarcoPoloResearchLab/gradebook/internal/store"
	"github.com/MarcoPoloResearchLab/gradebook/internal/sync"
)

const (
	opServiceNew  = "app.service.new"
	opCommit      = "app.commit"
	opApplyRemote = "app.apply_remote"
	opEnableSync  = "app.enable_sync"

	reasonMissingStore    = "missing_store"
	reasonLoadFailed      = "load_failed"
	reasonPersistFailed   = "persist_failed"
	reasonReplicateFailed = "replicate_failed"
	reasonStartFailed     = "start_failed"
	reasonAlreadyEnabled  = "already_enabled"
	reasonMissingRemote   = "missing_remote"
)

var (
	errMissingStore   = errors.New("document store is required")
	errMissingRemote  = errors.New("remote endpoint is required")
	errAlreadyEnabled = errors.New("sync already enabled")
	errUnchanged      = errors.New("no change applied")
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

// ServiceConfig describes the dependencies of the application service.
type ServiceConfig struct {
	Store      *store.DocumentStore
	Dispatcher *dispatch.Dispatcher
	IDProvider document.IDProvider
	Clock      func() time.Time
	Logger     *zap.Logger
}

// Service is the application core shared by the CLI commands.
type Service struct {
	store      *store.DocumentStore
	dispatcher *dispatch.Dispatcher
	ids        document.IDProvider
	clock      func() time.Time
	logger     *zap.Logger

	mu         gosync.Mutex
	doc        *document.Document
	controller *sync.Controller
	lastFault  error
}

// NewService loads the persisted document and returns a ready Service.
func NewService(ctx context.Context, cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, newServiceError(opServiceNew, reasonMissingStore, errMissingStore)
	}
	ids := cfg.IDProvider
	if ids == nil {
		ids = document.NewUUIDProvider()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	dispatcher := cfg.Dispatcher
	if dispatcher == nil {
		dispatcher = dispatch.NewDispatcher()
	}

	doc, err := cfg.Store.Load(ctx)
	if err != nil {
		return nil, newServiceError(opServiceNew, reasonLoadFailed, err)
	}

	return &Service{
		store:      cfg.Store,
		dispatcher: dispatcher,
		ids:        ids,
		clock:      clock,
		logger:     logger,
		doc:        doc,
	}, nil
}

// Document returns a deep copy of the current document.
func (s *Service) Document() *document.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Clone()
}

// OnChange registers a listener for applied changes and returns its removal
// function.
func (s *Service) OnChange(listener dispatch.Listener) func() {
	return s.dispatcher.Register(listener)
}

// mutate runs apply under the lock, then persists, notifies, and replicates
// the outcome. An error from apply rejects the whole mutation and nothing else
// happens. The lock is released before the listener fan-out and the remote
// push: a slow or stalled upload must never block reads or the incoming event
// apply path. Persistence and replication failures are recorded as the last
// fault and logged, never propagated; the in-memory document is the source of
// truth and the caller's change has already happened.
func (s *Service) mutate(ctx context.Context, origin dispatch.Origin, apply func() error) error {
	s.mu.Lock()
	if err := apply(); err != nil {
		s.mu.Unlock()
		if errors.Is(err, errUnchanged) {
			return nil
		}
		return err
	}

	if _, err := s.store.Save(ctx, s.doc); err != nil {
		s.lastFault = err
		s.logError(opCommit, reasonPersistFailed, err)
	} else {
		s.lastFault = nil
	}
	snapshot := s.doc.Clone()
	controller := s.controller
	s.mu.Unlock()

	s.dispatcher.Notify(dispatch.Event{Origin: origin, UpdatedAtMs: snapshot.UpdatedAt})

	// Concurrent mutations can race their pushes here; the strictly-newer
	// stamp guard on both ends keeps the newest snapshot regardless of
	// arrival order.
	if controller != nil {
		if err := controller.PushLocal(ctx, snapshot); err != nil {
			s.mu.Lock()
			s.lastFault = err
			s.mu.Unlock()
			s.logError(opCommit, reasonReplicateFailed, err)
		}
	}
	return nil
}

// AddStudent enrolls a student.
func (s *Service) AddStudent(ctx context.Context, name string) (document.Student, error) {
	var student document.Student
	err := s.mutate(ctx, dispatch.OriginLocal, func() error {
		created, err := s.doc.AddStudent(s.ids, name)
		if err != nil {
			return err
		}
		student = created
		return nil
	})
	return student, err
}

// RemoveStudent deletes a student and every assignment referencing them.
func (s *Service) RemoveStudent(ctx context.Context, id string) {
	_ = s.mutate(ctx, dispatch.OriginLocal, func() error {
		s.doc.RemoveStudent(id)
		return nil
	})
}

// AddSubject adds a course of study.
func (s *Service) AddSubject(ctx context.Context, name string) (document.Subject, error) {
	var subject document.Subject
	err := s.mutate(ctx, dispatch.OriginLocal, func() error {
		created, err := s.doc.AddSubject(s.ids, name)
		if err != nil {
			return err
		}
		subject = created
		return nil
	})
	return subject, err
}

// RemoveSubject deletes a subject and every assignment referencing it.
func (s *Service) RemoveSubject(ctx context.Context, id string) {
	_ = s.mutate(ctx, dispatch.OriginLocal, func() error {
		s.doc.RemoveSubject(id)
		return nil
	})
}

// AddAssignment records a graded piece of work.
func (s *Service) AddAssignment(ctx context.Context, studentID, subjectID string, total, correct int, date document.CalendarDate) (document.Assignment, error) {
	var assignment document.Assignment
	err := s.mutate(ctx, dispatch.OriginLocal, func() error {
		created, err := s.doc.AddAssignment(s.ids, studentID, subjectID, total, correct, date)
		if err != nil {
			return err
		}
		assignment = created
		return nil
	})
	return assignment, err
}

// UpdateAssignment rewrites an assignment's score and date.
func (s *Service) UpdateAssignment(ctx context.Context, id string, total, correct int, date document.CalendarDate) (document.Assignment, error) {
	var assignment document.Assignment
	err := s.mutate(ctx, dispatch.OriginLocal, func() error {
		updated, err := s.doc.UpdateAssignment(id, total, correct, date)
		if err != nil {
			return err
		}
		assignment = updated
		return nil
	})
	return assignment, err
}

// RemoveAssignment deletes one assignment.
func (s *Service) RemoveAssignment(ctx context.Context, id string) {
	_ = s.mutate(ctx, dispatch.OriginLocal, func() error {
		s.doc.RemoveAssignment(id)
		return nil
	})
}

// ClearAssignments drops every assignment while keeping the roster and term
// configuration.
func (s *Service) ClearAssignments(ctx context.Context) {
	_ = s.mutate(ctx, dispatch.OriginLocal, func() error {
		s.doc.ClearAssignments()
		return nil
	})
}

// SetSchoolName renames the school.
func (s *Service) SetSchoolName(ctx context.Context, name string) error {
	return s.mutate(ctx, dispatch.OriginLocal, func() error {
		return s.doc.SetSchoolName(name)
	})
}

// SetAssignmentsPageSize stores the preferred table page size.
func (s *Service) SetAssignmentsPageSize(ctx context.Context, size int) error {
	if size < 1 {
		return fmt.Errorf("page size %d must be at least 1", size)
	}
	return s.mutate(ctx, dispatch.OriginLocal, func() error {
		s.doc.AssignmentsPageSize = size
		return nil
	})
}

// AddSchoolYear splits the inclusive date range into four terms and makes the
// new year current.
func (s *Service) AddSchoolYear(ctx context.Context, start, end document.CalendarDate) (document.SchoolYear, error) {
	var year document.SchoolYear
	err := s.mutate(ctx, dispatch.OriginLocal, func() error {
		terms, err := document.GenerateTerms(start, end, s.ids)
		if err != nil {
			return err
		}
		created, err := s.doc.AddSchoolYear(s.ids, terms)
		if err != nil {
			return err
		}
		year = created
		return nil
	})
	return year, err
}

// SetCurrentYear switches the active school year.
func (s *Service) SetCurrentYear(ctx context.Context, yearID string) error {
	return s.mutate(ctx, dispatch.OriginLocal, func() error {
		return s.doc.SetCurrentYear(yearID)
	})
}

// ReplaceActiveTerms swaps the active year's term boundaries for edited ones.
// Existing assignments keep their stored term references until a backfill.
func (s *Service) ReplaceActiveTerms(ctx context.Context, terms []document.Term) error {
	return s.mutate(ctx, dispatch.OriginLocal, func() error {
		return s.doc.ReplaceActiveTerms(terms)
	})
}

// BackfillTerms re-resolves every assignment's term reference and reports how
// many changed. A no-op backfill neither persists nor notifies.
func (s *Service) BackfillTerms(ctx context.Context) int {
	changed := 0
	_ = s.mutate(ctx, dispatch.OriginLocal, func() error {
		changed = s.doc.BackfillTerms()
		if changed == 0 {
			return errUnchanged
		}
		return nil
	})
	return changed
}

// SeedSampleData fills the document with generated assignments for trying the
// reports out.
func (s *Service) SeedSampleData(ctx context.Context, seed uint32) (int, error) {
	created := 0
	err := s.mutate(ctx, dispatch.OriginLocal, func() error {
		count, err := s.doc.SeedSampleData(s.ids, seed)
		if err != nil {
			return err
		}
		created = count
		return nil
	})
	return created, err
}

// Reset replaces everything with a freshly initialized default document.
func (s *Service) Reset(ctx context.Context) error {
	return s.mutate(ctx, dispatch.OriginLocal, func() error {
		doc, err := document.NewDefaultDocument(s.baseYear(), s.ids)
		if err != nil {
			return err
		}
		s.doc = doc
		return nil
	})
}

// ImportDocument replaces the document with a parsed export payload. A payload
// that fails validation leaves the current document untouched.
func (s *Service) ImportDocument(ctx context.Context, payload []byte) error {
	return s.mutate(ctx, dispatch.OriginImport, func() error {
		doc, err := document.ParseImport(payload, s.baseYear(), s.ids)
		if err != nil {
			return err
		}
		s.doc = doc
		return nil
	})
}

// SubjectTermAverage exposes the stored-term weighted average view.
func (s *Service) SubjectTermAverage(studentID, subjectID, termID string) *float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return aggregate.SubjectTermAverage(s.doc, studentID, subjectID, termID)
}

// TermAverages exposes the date-attributed per-term average view.
func (s *Service) TermAverages(studentID string) []*float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return aggregate.TermAverages(s.doc, studentID)
}

// YearRollup exposes the full-year summary for one student.
func (s *Service) YearRollup(studentID string) aggregate.YearRollup {
	s.mu.Lock()
	defer s.mu.Unlock()
	return aggregate.ComputeYearRollup(s.doc, studentID)
}

// TrendSeries exposes the weekly trend buckets for the filter.
func (s *Service) TrendSeries(filter aggregate.Filter) []aggregate.TrendPoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return aggregate.TrendSeries(s.doc, filter)
}

// WeekdayAverages exposes the day-of-week average view for the filter.
func (s *Service) WeekdayAverages(filter aggregate.Filter) [7]aggregate.WeekdayAverage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return aggregate.WeekdayAverages(s.doc, filter)
}

// ReportCard assembles the printable report card for one student.
func (s *Service) ReportCard(studentID string) (aggregate.ReportCard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return aggregate.BuildReportCard(s.doc, studentID)
}

// EnableSync attaches a remote replica and starts reconciling against it.
func (s *Service) EnableSync(ctx context.Context, remote sync.Remote) error {
	if remote == nil {
		return newServiceError(opEnableSync, reasonMissingRemote, errMissingRemote)
	}
	s.mu.Lock()
	if s.controller != nil {
		s.mu.Unlock()
		return newServiceError(opEnableSync, reasonAlreadyEnabled, errAlreadyEnabled)
	}
	s.mu.Unlock()

	controller, err := sync.NewController(sync.ControllerConfig{
		Remote: remote,
		Local:  &localReplica{service: s},
		Logger: s.logger,
	})
	if err != nil {
		return err
	}
	if err := controller.Start(ctx); err != nil {
		return newServiceError(opEnableSync, reasonStartFailed, err)
	}

	s.mu.Lock()
	s.controller = controller
	s.mu.Unlock()
	return nil
}

// DisableSync detaches from the remote. Disabling twice is harmless.
func (s *Service) DisableSync() {
	s.mu.Lock()
	controller := s.controller
	s.controller = nil
	s.mu.Unlock()
	if controller != nil {
		controller.Stop()
	}
}

// SyncStatus reports the replication state.
func (s *Service) SyncStatus() sync.Status {
	s.mu.Lock()
	controller := s.controller
	s.mu.Unlock()
	if controller == nil {
		return sync.StatusDisabled
	}
	return controller.Status()
}

// StatusMessage renders the replication state for display.
func (s *Service) StatusMessage() string {
	s.mu.Lock()
	fault := s.lastFault
	s.mu.Unlock()

	switch s.SyncStatus() {
	case sync.StatusSyncing:
		if fault != nil {
			return fmt.Sprintf("Sync enabled, last operation failed: %v", fault)
		}
		return "Sync enabled"
	case sync.StatusUnauthenticated:
		return "Sign-in required"
	default:
		if fault != nil {
			return fmt.Sprintf("Local only, last save failed: %v", fault)
		}
		return "Local only"
	}
}

func (s *Service) baseYear() int {
	now := s.clock().UTC()
	if now.Month() >= time.August {
		return now.Year()
	}
	return now.Year() - 1
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("app service error", attrs...)
}

// localReplica adapts the service to the replication controller's view of the
// local store.
type localReplica struct {
	service *Service
}

func (l *localReplica) Snapshot() *document.Document {
	return l.service.Document()
}

func (l *localReplica) ApplyRemote(ctx context.Context, doc *document.Document) error {
	s := l.service
	s.mu.Lock()

	replaced := doc.Clone()
	if _, err := replaced.Normalize(s.baseYear(), s.ids); err != nil {
		s.mu.Unlock()
		return newServiceError(opApplyRemote, reasonLoadFailed, err)
	}
	s.doc = replaced

	// The remote stamp is kept as-is; restamping would make this replica
	// claim the change as its own and ping-pong with the other device.
	if err := s.store.SaveVerbatim(ctx, s.doc); err != nil {
		s.lastFault = err
		s.logError(opApplyRemote, reasonPersistFailed, err)
	}
	stamp := s.doc.UpdatedAt
	s.mu.Unlock()

	s.dispatcher.Notify(dispatch.Event{Origin: dispatch.OriginRemote, UpdatedAtMs: stamp})
	return nil
}
