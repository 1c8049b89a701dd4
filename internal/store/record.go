package store

// DocumentRecord stores one serialized grading document per storage key. The
// local store keeps a single row under StorageKey; the sync server keys rows
// by account identity instead.
type DocumentRecord struct {
	StorageKey  string `gorm:"column:storage_key;primaryKey;size:190;not null"`
	Payload     string `gorm:"column:payload;type:text;not null"`
	UpdatedAtMs int64  `gorm:"column:updated_at_ms;not null;default:0"`
}

// TableName provides the explicit table binding for GORM.
func (DocumentRecord) TableName() string {
	return "grading_documents"
}
