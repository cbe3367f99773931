package db

import (
	"database/sql"
	"time"

	"github.com/bryanwahyu/plantscan/internal/domain/scanerrors"
	"github.com/bryanwahyu/plantscan/internal/domain/scans"
)

// RecordColumns is the select list matching ScanRecord.
const RecordColumns = `id, identity, image_key, image_url, disease_detected, diagnosis, recommendations, confidence_score, created_at`

// FailureColumns is the select list matching ScanFailure.
const FailureColumns = `id, identity, phase, message, image_url, created_at`

// Scanner is satisfied by *sql.Row and *sql.Rows.
type Scanner interface {
	Scan(dest ...any) error
}

// ScanRecord reads one row selected with RecordColumns.
func ScanRecord(row Scanner) (*scans.ScanRecord, error) {
	var (
		r                      scans.ScanRecord
		disease, diag, recomms sql.NullString
		conf                   sql.NullFloat64
		created                time.Time
	)
	if err := row.Scan(&r.ID, &r.Identity, &r.Image.Key, &r.Image.URL, &disease, &diag, &recomms, &conf, &created); err != nil {
		return nil, err
	}
	r.Result = scans.AnalysisResult{
		Disease:         StringPtr(disease),
		Diagnosis:       StringPtr(diag),
		Recommendations: StringPtr(recomms),
		Confidence:      FloatPtr(conf),
	}
	r.CreatedAt = created.UTC()
	return &r, nil
}

// ScanRecords drains rows with ScanRecord.
func ScanRecords(rows *sql.Rows) ([]*scans.ScanRecord, error) {
	defer rows.Close()
	var out []*scans.ScanRecord
	for rows.Next() {
		r, err := ScanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ScanFailures drains rows selected with FailureColumns.
func ScanFailures(rows *sql.Rows) ([]*scanerrors.ScanFailure, error) {
	defer rows.Close()
	var out []*scanerrors.ScanFailure
	for rows.Next() {
		var f scanerrors.ScanFailure
		var created time.Time
		if err := rows.Scan(&f.ID, &f.Identity, &f.Phase, &f.Message, &f.ImageURL, &created); err != nil {
			return nil, err
		}
		f.CreatedAt = created.UTC()
		out = append(out, &f)
	}
	return out, rows.Err()
}

// RecordArgs returns insert args in RecordColumns order.
func RecordArgs(r *scans.ScanRecord) []any {
	created := r.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	return []any{
		r.ID, r.Identity, r.Image.Key, r.Image.URL,
		NullString(r.Result.Disease), NullString(r.Result.Diagnosis), NullString(r.Result.Recommendations),
		NullFloat(r.Result.Confidence), created.UTC(),
	}
}

// SummaryFrom converts aggregate columns into a Summary.
func SummaryFrom(total, diseased int, avg sql.NullFloat64) scans.Summary {
	return scans.Summary{
		Total:         total,
		Diseased:      diseased,
		Healthy:       total - diseased,
		AvgConfidence: FloatPtr(avg),
	}
}

// DiseasedPredicate counts a row as diseased when its label is not a healthy label.
const DiseasedPredicate = `disease_detected IS NOT NULL AND LOWER(disease_detected) NOT IN ('', 'healthy', 'none', 'no disease')`

func NullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func NullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func StringPtr(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	s := n.String
	return &s
}

func FloatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	f := n.Float64
	return &f
}
