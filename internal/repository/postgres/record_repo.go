package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"docextract/internal/domain"
	"docextract/internal/port"
)

type recordRepo struct {
	db *sqlx.DB
}

// NewRecordRepo creates a new PostgreSQL-backed RecordRepository.
func NewRecordRepo(db *sqlx.DB) port.RecordRepository {
	return &recordRepo{db: db}
}

// recordRow is the table shape; the record itself is stored as JSONB.
type recordRow struct {
	DocumentID        uuid.UUID      `db:"document_id"`
	Filename          string         `db:"filename"`
	DocType           domain.DocType `db:"doc_type"`
	OverallConfidence float64        `db:"overall_confidence"`
	Record            []byte         `db:"record"`
	CreatedAt         time.Time      `db:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at"`
}

func (row recordRow) toDomain() (domain.StoredRecord, error) {
	out := domain.StoredRecord{
		DocumentID:        row.DocumentID,
		Filename:          row.Filename,
		DocType:           row.DocType,
		OverallConfidence: row.OverallConfidence,
		CreatedAt:         row.CreatedAt,
		UpdatedAt:         row.UpdatedAt,
	}
	if err := json.Unmarshal(row.Record, &out.Record); err != nil {
		return domain.StoredRecord{}, fmt.Errorf("decoding record %s: %w", row.DocumentID, err)
	}
	return out, nil
}

const recordColumns = `document_id, filename, doc_type, overall_confidence, record, created_at, updated_at`

func (r *recordRepo) Save(ctx context.Context, rec *domain.StoredRecord) error {
	body, err := json.Marshal(rec.Record)
	if err != nil {
		return fmt.Errorf("recordRepo.Save encode: %w", err)
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	query := `INSERT INTO extraction_records (` + recordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (document_id) DO UPDATE SET
			filename = EXCLUDED.filename,
			doc_type = EXCLUDED.doc_type,
			overall_confidence = EXCLUDED.overall_confidence,
			record = EXCLUDED.record,
			updated_at = EXCLUDED.updated_at`

	_, err = r.db.ExecContext(ctx, query,
		rec.DocumentID, rec.Filename, rec.DocType, rec.OverallConfidence, body,
		rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("recordRepo.Save: %w", err)
	}
	return nil
}

func (r *recordRepo) GetByID(ctx context.Context, documentID uuid.UUID) (*domain.StoredRecord, error) {
	var row recordRow
	err := r.db.GetContext(ctx, &row,
		"SELECT "+recordColumns+" FROM extraction_records WHERE document_id = $1", documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, fmt.Errorf("recordRepo.GetByID: %w", err)
	}
	out, err := row.toDomain()
	if err != nil {
		return nil, fmt.Errorf("recordRepo.GetByID: %w", err)
	}
	return &out, nil
}

func (r *recordRepo) ListRecent(ctx context.Context, limit int) ([]domain.StoredRecord, error) {
	var rows []recordRow
	err := r.db.SelectContext(ctx, &rows,
		"SELECT "+recordColumns+" FROM extraction_records ORDER BY created_at DESC LIMIT $1", limit)
	if err != nil {
		return nil, fmt.Errorf("recordRepo.ListRecent: %w", err)
	}
	out := make([]domain.StoredRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.toDomain()
		if err != nil {
			return nil, fmt.Errorf("recordRepo.ListRecent: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}
