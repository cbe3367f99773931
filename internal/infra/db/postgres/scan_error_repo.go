package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/bryanwahyu/plantscan/internal/infra/db"
	domain "github.com/bryanwahyu/plantscan/internal/domain/scanerrors"
)

type FailureRepository struct{ db *sql.DB }

func NewFailureRepository(conn *sql.DB) *FailureRepository { return &FailureRepository{db: conn} }

// Save pakai RETURNING karena lib/pq tidak support LastInsertId
func (r *FailureRepository) Save(ctx context.Context, f *domain.ScanFailure) error {
	const q = `
INSERT INTO scan_failures (identity, phase, message, image_url, created_at)
VALUES ($1,$2,$3,$4,$5)
RETURNING id`
	created := f.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	return r.db.QueryRowContext(ctx, q,
		orDash(f.Identity), orDash(string(f.Phase)), orDash(f.Message), f.ImageURL, created.UTC()).Scan(&f.ID)
}

func (r *FailureRepository) ListByIdentity(ctx context.Context, identity string, limit int) ([]*domain.ScanFailure, error) {
	if limit <= 0 {
		limit = 20
	}
	q := `SELECT ` + db.FailureColumns + ` FROM scan_failures
WHERE identity = $1
ORDER BY created_at DESC, id DESC
LIMIT $2`
	rows, err := r.db.QueryContext(ctx, q, identity, limit)
	if err != nil {
		return nil, err
	}
	return db.ScanFailures(rows)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
