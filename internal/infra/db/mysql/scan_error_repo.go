package mysql

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/bryanwahyu/plantscan/internal/infra/db"
	domain "github.com/bryanwahyu/plantscan/internal/domain/scanerrors"
)

type FailureRepository struct {
	db *sql.DB
}

func NewFailureRepository(conn *sql.DB) *FailureRepository { return &FailureRepository{db: conn} }

func (r *FailureRepository) Save(ctx context.Context, f *domain.ScanFailure) error {
	const q = `
INSERT INTO scan_failures (identity, phase, message, image_url, created_at)
VALUES (?,?,?,?,?)`
	created := f.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	res, err := r.db.ExecContext(ctx, q,
		dashIfEmpty(f.Identity), dashIfEmpty(string(f.Phase)), dashIfEmpty(f.Message), f.ImageURL, created.UTC())
	if err != nil {
		return err
	}
	if id, err := res.LastInsertId(); err == nil {
		f.ID = id
	}
	return nil
}

func (r *FailureRepository) ListByIdentity(ctx context.Context, identity string, limit int) ([]*domain.ScanFailure, error) {
	if limit <= 0 {
		limit = 20
	}
	q := `SELECT ` + db.FailureColumns + ` FROM scan_failures
WHERE identity = ?
ORDER BY created_at DESC, id DESC
LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, identity, limit)
	if err != nil {
		return nil, err
	}
	return db.ScanFailures(rows)
}

func dashIfEmpty(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
