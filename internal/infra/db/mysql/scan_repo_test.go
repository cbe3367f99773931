package mysql

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/bryanwahyu/plantscan/internal/domain/scanerrors"
	domain "github.com/bryanwahyu/plantscan/internal/domain/scans"
	"github.com/bryanwahyu/plantscan/internal/infra/db/migrations"
)

// repositories share the ? dialect with sqlite, so tests run against a temp file db
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "scans.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { conn.Close() })
	if err := migrations.MigrateUp(conn, "sqlite"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func strPtr(s string) *string { return &s }
func fltPtr(f float64) *float64 { return &f }

func record(id, identity string, at time.Time, disease *string, conf *float64) *domain.ScanRecord {
	return &domain.ScanRecord{
		ID:       domain.ScanID(id),
		Identity: domain.Identity(identity),
		Image: domain.StoredImageRef{
			Key: identity + "/" + id + ".jpg",
			URL: "https://cdn.example.com/" + identity + "/" + id + ".jpg",
		},
		Result:    domain.AnalysisResult{Disease: disease, Confidence: conf},
		CreatedAt: at,
	}
}

func TestScanRepository_InsertGet(t *testing.T) {
	ctx := context.Background()
	repo := NewScanRepository(openTestDB(t))

	at := time.Date(2024, 5, 1, 10, 0, 0, 123e6, time.UTC)
	in := record("a1", "user-1", at, strPtr("Late Blight"), fltPtr(0.92))
	in.Result.Diagnosis = strPtr("Phytophthora infestans lesions")
	if err := repo.Insert(ctx, in); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, err := repo.Get(ctx, "user-1", "a1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Image != in.Image {
		t.Errorf("image = %+v, want %+v", got.Image, in.Image)
	}
	if got.Result.Disease == nil || *got.Result.Disease != "Late Blight" {
		t.Errorf("disease = %v", got.Result.Disease)
	}
	if got.Result.Recommendations != nil {
		t.Errorf("recommendations = %q, want nil", *got.Result.Recommendations)
	}
	if got.Result.Confidence == nil || *got.Result.Confidence != 0.92 {
		t.Errorf("confidence = %v", got.Result.Confidence)
	}
	if !got.CreatedAt.Equal(at) {
		t.Errorf("created_at = %v, want %v", got.CreatedAt, at)
	}

	if _, err := repo.Get(ctx, "user-2", "a1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Get other identity err = %v, want ErrNotFound", err)
	}
}

func TestScanRepository_ListByIdentity_NewestFirstWithCursor(t *testing.T) {
	ctx := context.Background()
	repo := NewScanRepository(openTestDB(t))

	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"r1", "r2", "r3", "r4", "r5"} {
		if err := repo.Insert(ctx, record(id, "user-1", base.Add(time.Duration(i)*time.Minute), nil, nil)); err != nil {
			t.Fatalf("Insert %s: %v", id, err)
		}
	}
	if err := repo.Insert(ctx, record("x1", "user-2", base, nil, nil)); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	first, err := repo.ListByIdentity(ctx, "user-1", domain.ListOptions{Limit: 2})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(first) != 2 || first[0].ID != "r5" || first[1].ID != "r4" {
		t.Fatalf("first page = %v", ids(first))
	}

	cur := &domain.Cursor{CreatedAt: first[1].CreatedAt, ID: first[1].ID}
	second, err := repo.ListByIdentity(ctx, "user-1", domain.ListOptions{Limit: 10, Before: cur})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if got := ids(second); len(got) != 3 || got[0] != "r3" || got[2] != "r1" {
		t.Fatalf("second page = %v", got)
	}
}

func TestScanRepository_Delete(t *testing.T) {
	ctx := context.Background()
	repo := NewScanRepository(openTestDB(t))

	if err := repo.Insert(ctx, record("d1", "user-1", time.Now().UTC(), nil, nil)); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := repo.Delete(ctx, "user-2", "d1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Delete other identity err = %v, want ErrNotFound", err)
	}
	if err := repo.Delete(ctx, "user-1", "d1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.Get(ctx, "user-1", "d1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Get after delete err = %v, want ErrNotFound", err)
	}
}

func TestScanRepository_Summary(t *testing.T) {
	ctx := context.Background()
	repo := NewScanRepository(openTestDB(t))

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	rows := []*domain.ScanRecord{
		record("s1", "user-1", now.Add(-time.Hour), strPtr("Late Blight"), fltPtr(0.9)),
		record("s2", "user-1", now.Add(-2*time.Hour), strPtr("Healthy"), fltPtr(0.7)),
		record("s3", "user-1", now.Add(-3*time.Hour), nil, nil),
		record("s4", "user-1", now.AddDate(0, 0, -40), strPtr("Rust"), fltPtr(0.5)),
	}
	for _, r := range rows {
		if err := repo.Insert(ctx, r); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	sum, err := repo.Summary(ctx, "user-1", now.AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.Total != 3 || sum.Diseased != 1 || sum.Healthy != 2 {
		t.Errorf("summary = %+v, want total 3 diseased 1 healthy 2", sum)
	}
	if sum.AvgConfidence == nil || *sum.AvgConfidence < 0.79 || *sum.AvgConfidence > 0.81 {
		t.Errorf("avg confidence = %v, want 0.8", sum.AvgConfidence)
	}

	empty, err := repo.Summary(ctx, "nobody", now.AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if empty.Total != 0 || empty.AvgConfidence != nil {
		t.Errorf("empty summary = %+v", empty)
	}
}

func TestFailureRepository_SaveList(t *testing.T) {
	ctx := context.Background()
	repo := NewFailureRepository(openTestDB(t))

	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	first := &scanerrors.ScanFailure{Identity: "user-1", Phase: scanerrors.PhaseUpload, Message: "bucket missing", CreatedAt: base}
	second := &scanerrors.ScanFailure{Identity: "user-1", Phase: scanerrors.PhaseAnalysis, Message: "", ImageURL: "https://cdn/x.jpg", CreatedAt: base.Add(time.Second)}
	for _, f := range []*scanerrors.ScanFailure{first, second} {
		if err := repo.Save(ctx, f); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	if first.ID == 0 || second.ID == 0 {
		t.Errorf("ids not assigned: %d %d", first.ID, second.ID)
	}

	got, err := repo.ListByIdentity(ctx, "user-1", 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Phase != scanerrors.PhaseAnalysis || got[0].Message != "-" || got[0].ImageURL != "https://cdn/x.jpg" {
		t.Errorf("newest = %+v", got[0])
	}
}

func ids(recs []*domain.ScanRecord) []domain.ScanID {
	out := make([]domain.ScanID, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.ID)
	}
	return out
}
