package domain

import (
	"time"

	"github.com/google/uuid"
)

// StoredRecord is a Record as persisted, keyed by document ID.
type StoredRecord struct {
	DocumentID        uuid.UUID `db:"document_id" json:"document_id"`
	Filename          string    `db:"filename" json:"filename"`
	DocType           DocType   `db:"doc_type" json:"doc_type"`
	OverallConfidence float64   `db:"overall_confidence" json:"overall_confidence"`
	Record            Record    `db:"-" json:"record"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}
