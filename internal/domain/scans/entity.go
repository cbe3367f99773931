package scans

import (
	"strings"
	"time"
)

// Identity is the opaque token of the user that acquired an image.
type Identity string

// ScanID tipe untuk ScanRecord
type ScanID string

// StoredImageRef is the durable address of an uploaded image.
type StoredImageRef struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// AnalysisResult is the diagnosis returned by the remote analysis function.
// Every field is optional; the remote output is never trusted to be complete.
type AnalysisResult struct {
	Disease         *string  `json:"disease"`
	Diagnosis       *string  `json:"diagnosis"`
	Recommendations *string  `json:"recommendations"`
	Confidence      *float64 `json:"confidence"`
}

// Healthy reports whether no disease was detected.
func (r AnalysisResult) Healthy() bool {
	if r.Disease == nil {
		return true
	}
	return IsHealthyLabel(*r.Disease)
}

// IsHealthyLabel matches the labels the analysis function uses for a plant with no disease.
func IsHealthyLabel(label string) bool {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "", "healthy", "none", "no disease":
		return true
	}
	return false
}

// Aggregate Root: ScanRecord
type ScanRecord struct {
	ID        ScanID         `json:"id"`
	Identity  Identity       `json:"identity"`
	Image     StoredImageRef `json:"image"`
	Result    AnalysisResult `json:"result"`
	CreatedAt time.Time      `json:"created_at"`
}

// Summary rekap scan per identity
type Summary struct {
	Total         int      `json:"total_scans"`
	Diseased      int      `json:"diseased"`
	Healthy       int      `json:"healthy"`
	AvgConfidence *float64 `json:"avg_confidence"`
}
