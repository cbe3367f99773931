package testutil

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/bryanwahyu/plantscan/internal/domain/scanerrors"
	"github.com/bryanwahyu/plantscan/internal/domain/scans"
)

// PNG is the smallest byte prefix content sniffing accepts as image/png.
var PNG = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

// PNGImage returns a CapturedImage holding PNG.
func PNGImage() scans.CapturedImage {
	return scans.CapturedImage{Data: append([]byte(nil), PNG...), ContentType: "image/png", Filename: "leaf.png"}
}

// MemoryScanRepository is an in-memory scans.Repository.
type MemoryScanRepository struct {
	mu      sync.Mutex
	records []*scans.ScanRecord

	// InsertErr, when set, fails every Insert.
	InsertErr error
	// Calls records the method names in call order.
	Calls []string
}

func NewMemoryScanRepository() *MemoryScanRepository {
	return &MemoryScanRepository{}
}

func (m *MemoryScanRepository) Insert(ctx context.Context, r *scans.ScanRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, "Insert")
	if m.InsertErr != nil {
		return m.InsertErr
	}
	cp := *r
	m.records = append(m.records, &cp)
	return nil
}

func (m *MemoryScanRepository) Get(ctx context.Context, identity scans.Identity, id scans.ScanID) (*scans.ScanRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.Identity == identity && r.ID == id {
			cp := *r
			return &cp, nil
		}
	}
	return nil, scans.ErrNotFound
}

func (m *MemoryScanRepository) ListByIdentity(ctx context.Context, identity scans.Identity, opts scans.ListOptions) ([]*scans.ScanRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*scans.ScanRecord
	for _, r := range m.records {
		if r.Identity != identity {
			continue
		}
		if b := opts.Before; b != nil {
			if r.CreatedAt.After(b.CreatedAt) || (r.CreatedAt.Equal(b.CreatedAt) && r.ID >= b.ID) {
				continue
			}
		}
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (m *MemoryScanRepository) Delete(ctx context.Context, identity scans.Identity, id scans.ScanID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, "Delete")
	for i, r := range m.records {
		if r.Identity == identity && r.ID == id {
			m.records = append(m.records[:i], m.records[i+1:]...)
			return nil
		}
	}
	return scans.ErrNotFound
}

func (m *MemoryScanRepository) Summary(ctx context.Context, identity scans.Identity, since time.Time) (scans.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var (
		sum   scans.Summary
		total float64
		n     int
	)
	for _, r := range m.records {
		if r.Identity != identity || r.CreatedAt.Before(since) {
			continue
		}
		sum.Total++
		if r.Result.Healthy() {
			sum.Healthy++
		} else {
			sum.Diseased++
		}
		if r.Result.Confidence != nil {
			total += *r.Result.Confidence
			n++
		}
	}
	if n > 0 {
		avg := total / float64(n)
		sum.AvgConfidence = &avg
	}
	return sum, nil
}

// Len returns the number of stored records.
func (m *MemoryScanRepository) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// MemoryFailureRepository is an in-memory scanerrors.Repository.
type MemoryFailureRepository struct {
	mu       sync.Mutex
	failures []*scanerrors.ScanFailure
	SaveErr  error
}

func (m *MemoryFailureRepository) Save(ctx context.Context, f *scanerrors.ScanFailure) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	cp := *f
	cp.ID = int64(len(m.failures) + 1)
	m.failures = append(m.failures, &cp)
	return nil
}

func (m *MemoryFailureRepository) ListByIdentity(ctx context.Context, identity string, limit int) ([]*scanerrors.ScanFailure, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*scanerrors.ScanFailure
	for i := len(m.failures) - 1; i >= 0; i-- {
		if m.failures[i].Identity == identity {
			out = append(out, m.failures[i])
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// All returns every saved failure in insertion order.
func (m *MemoryFailureRepository) All() []*scanerrors.ScanFailure {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*scanerrors.ScanFailure(nil), m.failures...)
}

// ScriptedAnalyzer returns Result or Err and records every URL it was asked about.
type ScriptedAnalyzer struct {
	mu     sync.Mutex
	Result scans.AnalysisResult
	Err    error
	URLs   []string
}

func (a *ScriptedAnalyzer) Analyze(ctx context.Context, imageURL string) (scans.AnalysisResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.URLs = append(a.URLs, imageURL)
	if a.Err != nil {
		return scans.AnalysisResult{}, a.Err
	}
	return a.Result, nil
}

// ErrStoreDown is returned by FailingStore.
var ErrStoreDown = errors.New("object store unavailable")

// FailingStore wraps an object store and fails the operations that are switched on.
type FailingStore struct {
	scans.ObjectStore
	FailPut    bool
	FailDelete bool
}

func (f *FailingStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if f.FailPut {
		return ErrStoreDown
	}
	return f.ObjectStore.Put(ctx, key, r, size, contentType)
}

func (f *FailingStore) Delete(ctx context.Context, key string) error {
	if f.FailDelete {
		return ErrStoreDown
	}
	return f.ObjectStore.Delete(ctx, key)
}
