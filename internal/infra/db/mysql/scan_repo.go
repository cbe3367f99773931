package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bryanwahyu/plantscan/internal/infra/db"
	domain "github.com/bryanwahyu/plantscan/internal/domain/scans"
)

type ScanRepository struct {
	db *sql.DB
}

func NewScanRepository(conn *sql.DB) *ScanRepository {
	return &ScanRepository{db: conn}
}

// Insert simpan scan record baru
func (r *ScanRepository) Insert(ctx context.Context, s *domain.ScanRecord) error {
	q := `INSERT INTO scan_records (` + db.RecordColumns + `) VALUES (?,?,?,?,?,?,?,?,?)`
	if _, err := r.db.ExecContext(ctx, q, db.RecordArgs(s)...); err != nil {
		return fmt.Errorf("insert scan record: %w", err)
	}
	return nil
}

// Get by ID + identity
func (r *ScanRepository) Get(ctx context.Context, identity domain.Identity, id domain.ScanID) (*domain.ScanRecord, error) {
	q := `SELECT ` + db.RecordColumns + ` FROM scan_records WHERE identity = ? AND id = ? LIMIT 1`
	rec, err := db.ScanRecord(r.db.QueryRowContext(ctx, q, identity, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return rec, err
}

// ListByIdentity newest first, keyset pagination
func (r *ScanRepository) ListByIdentity(ctx context.Context, identity domain.Identity, opts domain.ListOptions) ([]*domain.ScanRecord, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	var (
		rows *sql.Rows
		err  error
	)
	if opts.Before == nil {
		q := `SELECT ` + db.RecordColumns + ` FROM scan_records
WHERE identity = ?
ORDER BY created_at DESC, id DESC
LIMIT ?`
		rows, err = r.db.QueryContext(ctx, q, identity, limit)
	} else {
		q := `SELECT ` + db.RecordColumns + ` FROM scan_records
WHERE identity = ? AND (created_at < ? OR (created_at = ? AND id < ?))
ORDER BY created_at DESC, id DESC
LIMIT ?`
		at := opts.Before.CreatedAt.UTC()
		rows, err = r.db.QueryContext(ctx, q, identity, at, at, opts.Before.ID, limit)
	}
	if err != nil {
		return nil, err
	}
	return db.ScanRecords(rows)
}

func (r *ScanRepository) Delete(ctx context.Context, identity domain.Identity, id domain.ScanID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM scan_records WHERE identity = ? AND id = ?`, identity, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Summary rekap sejak waktu tertentu
func (r *ScanRepository) Summary(ctx context.Context, identity domain.Identity, since time.Time) (domain.Summary, error) {
	q := `SELECT COUNT(*),
       COALESCE(SUM(CASE WHEN ` + db.DiseasedPredicate + ` THEN 1 ELSE 0 END), 0),
       AVG(confidence_score)
FROM scan_records
WHERE identity = ? AND created_at >= ?`
	var (
		total, diseased int
		avg             sql.NullFloat64
	)
	if err := r.db.QueryRowContext(ctx, q, identity, since.UTC()).Scan(&total, &diseased, &avg); err != nil {
		return domain.Summary{}, err
	}
	return db.SummaryFrom(total, diseased, avg), nil
}
