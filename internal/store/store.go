// Package store persists the grading document. The whole dataset is written as
// one JSON row per storage key, mirroring the document's role as the unit of
// replication. A missing or unreadable row degrades to the default document
// rather than failing the load.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/MarcoPoloResearchLab/gradebook/internal/document"
)

// StorageKey is the row key of the locally persisted document. It is fixed so
// that datasets written by earlier releases keep loading.
const StorageKey = "homeschool_grading_v1"

const (
	opStoreNew  = "store.new"
	opLoad      = "store.load"
	opSave      = "store.save"
	opLoadKey   = "store.load_key"
	opSaveKey   = "store.save_key"
	opDeleteKey = "store.delete_key"

	reasonMissingDatabase = "missing_database"
	reasonQueryFailed     = "query_failed"
	reasonEncodeFailed    = "encode_failed"
	reasonUpsertFailed    = "upsert_failed"
	reasonDeleteFailed    = "delete_failed"
	reasonRepairFailed    = "repair_failed"
)

var (
	errMissingDatabase = errors.New("database handle is required")
	noOpLogger         = zap.NewNop()
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

// DocumentStoreConfig describes the dependencies of a DocumentStore.
type DocumentStoreConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider document.IDProvider
	Logger     *zap.Logger
}

// DocumentStore reads and writes serialized documents.
type DocumentStore struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider document.IDProvider
	logger     *zap.Logger
}

// NewDocumentStore validates the configuration and returns a DocumentStore.
func NewDocumentStore(cfg DocumentStoreConfig) (*DocumentStore, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opStoreNew, reasonMissingDatabase, errMissingDatabase)
	}
	idProvider := cfg.IDProvider
	if idProvider == nil {
		idProvider = document.NewUUIDProvider()
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &DocumentStore{
		db:         cfg.Database,
		clock:      clock,
		idProvider: idProvider,
		logger:     logger,
	}, nil
}

// Load reads the local document. A missing row, an unreadable payload, or a
// payload that fails structural repair all yield a freshly initialized default
// document; the only hard failures are database errors.
func (s *DocumentStore) Load(ctx context.Context) (*document.Document, error) {
	var record DocumentRecord
	err := s.db.WithContext(ctx).
		Where("storage_key = ?", StorageKey).
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.defaultDocument(opLoad)
	}
	if err != nil {
		s.logError(opLoad, reasonQueryFailed, err)
		return nil, newServiceError(opLoad, reasonQueryFailed, err)
	}

	doc := &document.Document{}
	if err := json.Unmarshal([]byte(record.Payload), doc); err != nil {
		s.logger.Warn("stored document unreadable, starting fresh",
			zap.String("storage_key", StorageKey),
			zap.Error(err))
		return s.defaultDocument(opLoad)
	}
	if doc.UpdatedAt == 0 {
		doc.UpdatedAt = record.UpdatedAtMs
	}

	repaired, err := doc.Normalize(s.baseYear(), s.idProvider)
	if err != nil {
		s.logError(opLoad, reasonRepairFailed, err)
		return nil, newServiceError(opLoad, reasonRepairFailed, err)
	}
	if repaired {
		s.logger.Info("stored document repaired on load", zap.String("storage_key", StorageKey))
	}
	return doc, nil
}

// Save stamps the document with the current wall-clock milliseconds and writes
// it under the local storage key. The stamped timestamp is returned so callers
// can hand it to replication.
func (s *DocumentStore) Save(ctx context.Context, doc *document.Document) (int64, error) {
	doc.UpdatedAt = s.clock().UTC().UnixMilli()

	payload, err := json.Marshal(doc)
	if err != nil {
		s.logError(opSave, reasonEncodeFailed, err)
		return 0, newServiceError(opSave, reasonEncodeFailed, err)
	}
	if err := s.upsert(ctx, StorageKey, string(payload), doc.UpdatedAt); err != nil {
		s.logError(opSave, reasonUpsertFailed, err)
		return 0, newServiceError(opSave, reasonUpsertFailed, err)
	}
	return doc.UpdatedAt, nil
}

// SaveVerbatim writes the document under the local storage key without
// touching its timestamp. Replicated documents keep the stamp of the device
// that wrote them, otherwise replicas would never agree on who is newest.
func (s *DocumentStore) SaveVerbatim(ctx context.Context, doc *document.Document) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		s.logError(opSave, reasonEncodeFailed, err)
		return newServiceError(opSave, reasonEncodeFailed, err)
	}
	if err := s.upsert(ctx, StorageKey, string(payload), doc.UpdatedAt); err != nil {
		s.logError(opSave, reasonUpsertFailed, err)
		return newServiceError(opSave, reasonUpsertFailed, err)
	}
	return nil
}

// LoadKey reads the raw payload stored under an arbitrary key. The sync server
// uses this with account identities as keys. Found is false when no row exists.
func (s *DocumentStore) LoadKey(ctx context.Context, key string) (payload string, updatedAtMs int64, found bool, err error) {
	var record DocumentRecord
	queryErr := s.db.WithContext(ctx).
		Where("storage_key = ?", key).
		Take(&record).Error
	if errors.Is(queryErr, gorm.ErrRecordNotFound) {
		return "", 0, false, nil
	}
	if queryErr != nil {
		s.logError(opLoadKey, reasonQueryFailed, queryErr, zap.String("storage_key", key))
		return "", 0, false, newServiceError(opLoadKey, reasonQueryFailed, queryErr)
	}
	return record.Payload, record.UpdatedAtMs, true, nil
}

// SaveKey writes a raw payload under an arbitrary key, keeping the caller's
// timestamp. The sync server stores client documents verbatim so that the
// client's logical clock survives the round trip.
func (s *DocumentStore) SaveKey(ctx context.Context, key, payload string, updatedAtMs int64) error {
	if err := s.upsert(ctx, key, payload, updatedAtMs); err != nil {
		s.logError(opSaveKey, reasonUpsertFailed, err, zap.String("storage_key", key))
		return newServiceError(opSaveKey, reasonUpsertFailed, err)
	}
	return nil
}

// DeleteKey removes the row under a key. Deleting an absent key is not an
// error.
func (s *DocumentStore) DeleteKey(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).
		Where("storage_key = ?", key).
		Delete(&DocumentRecord{}).Error; err != nil {
		s.logError(opDeleteKey, reasonDeleteFailed, err, zap.String("storage_key", key))
		return newServiceError(opDeleteKey, reasonDeleteFailed, err)
	}
	return nil
}

func (s *DocumentStore) upsert(ctx context.Context, key, payload string, updatedAtMs int64) error {
	record := DocumentRecord{
		StorageKey:  key,
		Payload:     payload,
		UpdatedAtMs: updatedAtMs,
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "storage_key"}},
			UpdateAll: true,
		}).
		Create(&record).Error
}

func (s *DocumentStore) defaultDocument(operation string) (*document.Document, error) {
	doc, err := document.NewDefaultDocument(s.baseYear(), s.idProvider)
	if err != nil {
		s.logError(operation, reasonRepairFailed, err)
		return nil, newServiceError(operation, reasonRepairFailed, err)
	}
	return doc, nil
}

// baseYear maps the current date onto the school year it belongs to: July or
// earlier still counts against the year that started the previous August.
func (s *DocumentStore) baseYear() int {
	now := s.clock().UTC()
	if now.Month() >= time.August {
		return now.Year()
	}
	return now.Year() - 1
}

func (s *DocumentStore) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("document store error", attrs...)
}
