package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/docuscan/docuscan/constants"
	"github.com/docuscan/docuscan/internal/common"
	"github.com/docuscan/docuscan/internal/entity"
)

// ScanRecordRepository persists scan records, the server-side mirror of
// completed extractions.
type ScanRecordRepository interface {
	InsertExtracted(ctx context.Context, rec entity.ScanRecord) error
	SaveReview(ctx context.Context, rec entity.ScanRecord) error
	Confirm(ctx context.Context, scanID string) error
	GetByID(ctx context.Context, scanID string) (*entity.ScanRecord, error)
	ListByOrg(ctx context.Context, orgID string, status *constants.RecordStatus) ([]*entity.ScanRecord, error)
}

type scanRecordRepo struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewScanRecordRepository wires the SQL implementation.
func NewScanRecordRepository(db *sql.DB, logger *slog.Logger) ScanRecordRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &scanRecordRepo{db: db, logger: logger}
}

// InsertExtracted stores the fresh extraction snapshot. Re-inserting an
// existing scan id is a no-op so the mirror step stays safe to repeat.
func (r *scanRecordRepo) InsertExtracted(ctx context.Context, rec entity.ScanRecord) error {
	data, err := json.Marshal(rec.ExtractedData)
	if err != nil {
		return fmt.Errorf("encode extracted data: %w", err)
	}
	now := rec.CreatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO scan_records (id, org_id, template_key, storage_path, extracted_data, status, created_by, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (id) DO NOTHING`,
		rec.ID, rec.OrgID, rec.TemplateKey, rec.StoragePath, string(data),
		string(constants.RecordExtracted), rec.CreatedBy, fmtTime(now), fmtTime(now),
	)
	if err != nil {
		r.logger.Error("scan_record insert failed", "scan_id", rec.ID, "error", err)
		return common.WrapError(err, "insert scan record")
	}
	r.logger.Info("scan_record inserted", "scan_id", rec.ID, "org_id", rec.OrgID, "template_key", rec.TemplateKey)
	return nil
}

// SaveReview overwrites the persisted snapshot with the reviewed data and
// stamps the reviewer. Saving twice with the same data yields the same row.
func (r *scanRecordRepo) SaveReview(ctx context.Context, rec entity.ScanRecord) error {
	data, err := json.Marshal(rec.ExtractedData)
	if err != nil {
		return fmt.Errorf("encode extracted data: %w", err)
	}
	reviewedAt := ""
	if rec.ReviewedAt != nil {
		reviewedAt = fmtTime(*rec.ReviewedAt)
	}
	reviewedBy := ""
	if rec.ReviewedBy != nil {
		reviewedBy = *rec.ReviewedBy
	}
	now := fmtTime(time.Now().UTC())

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO scan_records (id, org_id, template_key, storage_path, extracted_data, status, created_by, reviewed_by, reviewed_at, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (id) DO UPDATE SET
			extracted_data = excluded.extracted_data,
			template_key   = excluded.template_key,
			status         = excluded.status,
			reviewed_by    = excluded.reviewed_by,
			reviewed_at    = excluded.reviewed_at,
			updated_at     = excluded.updated_at`,
		rec.ID, rec.OrgID, rec.TemplateKey, rec.StoragePath, string(data),
		string(constants.RecordReviewed), rec.CreatedBy, reviewedBy, reviewedAt, now, now,
	)
	if err != nil {
		r.logger.Error("scan_record save failed", "scan_id", rec.ID, "error", err)
		return common.WrapError(err, "save scan record")
	}
	r.logger.Info("scan_record reviewed", "scan_id", rec.ID, "reviewed_by", reviewedBy)
	return nil
}

// Confirm flips the status flag only. Confirming an already-confirmed record
// is a no-op; confirming an unknown scan id is ErrNotFound.
func (r *scanRecordRepo) Confirm(ctx context.Context, scanID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE scan_records
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status != $1`,
		string(constants.RecordConfirmed), fmtTime(time.Now().UTC()), scanID,
	)
	if err != nil {
		r.logger.Error("scan_record confirm failed", "scan_id", scanID, "error", err)
		return common.WrapError(err, "confirm scan record")
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		var exists int
		err := r.db.QueryRowContext(ctx, `SELECT 1 FROM scan_records WHERE id = $1`, scanID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("scan %s: %w", scanID, common.ErrNotFound)
		}
		if err != nil {
			return common.WrapError(err, "confirm scan record")
		}
		// Already confirmed.
		return nil
	}
	r.logger.Info("scan_record confirmed", "scan_id", scanID)
	return nil
}

func (r *scanRecordRepo) GetByID(ctx context.Context, scanID string) (*entity.ScanRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, org_id, template_key, storage_path, extracted_data, status, created_by, reviewed_by, reviewed_at, created_at, updated_at
		FROM scan_records WHERE id = $1`, scanID)
	rec, err := scanRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("scan %s: %w", scanID, common.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("scan_record get failed", "scan_id", scanID, "error", err)
		return nil, common.WrapError(err, "get scan record")
	}
	return rec, nil
}

func (r *scanRecordRepo) ListByOrg(ctx context.Context, orgID string, status *constants.RecordStatus) ([]*entity.ScanRecord, error) {
	query := `
		SELECT id, org_id, template_key, storage_path, extracted_data, status, created_by, reviewed_by, reviewed_at, created_at, updated_at
		FROM scan_records WHERE org_id = $1`
	args := []any{orgID}
	if status != nil {
		query += ` AND status = $2`
		args = append(args, string(*status))
	}
	query += ` ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("scan_record list failed", "org_id", orgID, "error", err)
		return nil, common.WrapError(err, "list scan records")
	}
	defer rows.Close()

	var out []*entity.ScanRecord
	for rows.Next() {
		rec, err := scanRow(rows)
		if err != nil {
			return nil, common.WrapError(err, "list scan records")
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRow(row rowScanner) (*entity.ScanRecord, error) {
	var (
		rec        entity.ScanRecord
		data       string
		status     string
		reviewedBy sql.NullString
		reviewedAt sql.NullString
		createdAt  string
		updatedAt  string
	)
	if err := row.Scan(&rec.ID, &rec.OrgID, &rec.TemplateKey, &rec.StoragePath, &data,
		&status, &rec.CreatedBy, &reviewedBy, &reviewedAt, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(data), &rec.ExtractedData); err != nil {
		return nil, fmt.Errorf("decode extracted data: %w", err)
	}
	rec.Status = constants.RecordStatus(status)
	if reviewedBy.Valid && reviewedBy.String != "" {
		rec.ReviewedBy = &reviewedBy.String
	}
	if reviewedAt.Valid && reviewedAt.String != "" {
		if t, err := parseTime(reviewedAt.String); err == nil {
			rec.ReviewedAt = &t
		}
	}
	if t, err := parseTime(createdAt); err == nil {
		rec.CreatedAt = t
	}
	if t, err := parseTime(updatedAt); err == nil {
		rec.UpdatedAt = t
	}
	return &rec, nil
}

// Timestamps are stored as RFC3339 text so Postgres and SQLite behave alike.
func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
