package scans

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bryanwahyu/plantscan/internal/application"
	"github.com/bryanwahyu/plantscan/internal/domain/scanerrors"
	domain "github.com/bryanwahyu/plantscan/internal/domain/scans"
)

const (
	defaultListLimit   = 20
	maxListLimit       = 100
	defaultSummaryDays = 30
)

// Service implements the scan pipeline and the history use-cases.
// Service is safe for concurrent use; it must not be copied after first use.
type Service struct {
	Repo     domain.Repository
	Store    domain.ObjectStore
	Analyzer domain.Analyzer
	// Failures is optional; when set every failed stage is recorded best-effort.
	Failures scanerrors.Repository
	Clock    application.Clock
	IDs      application.IDGenerator
	Log      logrus.FieldLogger

	lastStamp atomic.Int64
}

//
// ==== PIPELINE ====
//

// Analyze uploads img, runs the remote analysis on its public URL and persists
// the record. Each stage runs only if the previous one succeeded; every error
// is a *domain.PipelineError. An uploaded image is not removed when a later
// stage fails.
func (s *Service) Analyze(ctx context.Context, img domain.CapturedImage, identity domain.Identity) (*domain.ScanRecord, error) {
	if strings.TrimSpace(string(identity)) == "" {
		return nil, &domain.PipelineError{Kind: domain.KindInvalidInput, Err: errors.New("identity is required")}
	}
	if err := img.Validate(); err != nil {
		return nil, &domain.PipelineError{Kind: domain.KindInvalidInput, Err: err}
	}

	stamp := s.nextStamp()
	key := ObjectKey(identity, stamp, img.Extension())
	log := s.logger().WithFields(logrus.Fields{
		"identity": identity,
		"key":      key,
		"bytes":    len(img.Data),
	})

	// 1. upload
	if err := s.Store.Put(ctx, key, bytes.NewReader(img.Data), int64(len(img.Data)), img.ContentType); err != nil {
		log.WithError(err).Warn("image upload failed")
		s.recordFailure(ctx, identity, scanerrors.PhaseUpload, err, "")
		return nil, &domain.PipelineError{Kind: domain.KindUploadFailed, Err: err}
	}

	// 2. resolve
	ref := domain.StoredImageRef{Key: key, URL: s.Store.PublicURL(key)}

	// 3. analyze
	started := time.Now()
	result, err := s.Analyzer.Analyze(ctx, ref.URL)
	if err != nil {
		log.WithError(err).Warn("image analysis failed; uploaded image kept")
		s.recordFailure(ctx, identity, scanerrors.PhaseAnalysis, err, ref.URL)
		return nil, &domain.PipelineError{Kind: domain.KindAnalysisFailed, Image: &ref, Err: err}
	}
	log = log.WithField("analysis_ms", time.Since(started).Milliseconds())

	// 4. persist
	rec := &domain.ScanRecord{
		ID:        domain.ScanID(s.ids().New()),
		Identity:  identity,
		Image:     ref,
		Result:    result.Normalized(),
		CreatedAt: time.UnixMilli(stamp).UTC(),
	}
	if err := s.Repo.Insert(ctx, rec); err != nil {
		log.WithError(err).Error("scan record insert failed; image and analysis left without record")
		s.recordFailure(ctx, identity, scanerrors.PhasePersist, err, ref.URL)
		return nil, &domain.PipelineError{Kind: domain.KindPersistFailed, Image: &ref, Err: err}
	}

	log.WithField("scan_id", rec.ID).Info("scan stored")
	return rec, nil
}

// ObjectKey builds the storage key {identity}/{stamp}.{ext}.
func ObjectKey(identity domain.Identity, stamp int64, ext string) string {
	return fmt.Sprintf("%s/%d.%s", identity, stamp, ext)
}

// nextStamp returns the current time in milliseconds, bumped past the last
// value handed out so two uploads never share a key.
func (s *Service) nextStamp() int64 {
	now := s.now().UnixMilli()
	for {
		last := s.lastStamp.Load()
		next := now
		if next <= last {
			next = last + 1
		}
		if s.lastStamp.CompareAndSwap(last, next) {
			return next
		}
	}
}

func (s *Service) recordFailure(ctx context.Context, identity domain.Identity, phase scanerrors.Phase, cause error, imageURL string) {
	if s.Failures == nil {
		return
	}
	f := &scanerrors.ScanFailure{
		Identity:  string(identity),
		Phase:     phase,
		Message:   cause.Error(),
		ImageURL:  imageURL,
		CreatedAt: s.now().UTC(),
	}
	if err := s.Failures.Save(context.WithoutCancel(ctx), f); err != nil {
		s.logger().WithError(err).WithField("phase", phase).Warn("could not record scan failure")
	}
}

//
// ==== HISTORY ====
//

// List returns one newest-first page of records for identity.
func (s *Service) List(ctx context.Context, identity domain.Identity, limit int, before *domain.Cursor) (domain.Page, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	recs, err := s.Repo.ListByIdentity(ctx, identity, domain.ListOptions{Limit: limit, Before: before})
	if err != nil {
		return domain.Page{}, fmt.Errorf("listing scans: %w", err)
	}
	page := domain.Page{Data: recs}
	if len(recs) == limit {
		last := recs[len(recs)-1]
		page.NextCursor = &domain.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return page, nil
}

// Get ambil 1 scan by id
func (s *Service) Get(ctx context.Context, identity domain.Identity, id domain.ScanID) (*domain.ScanRecord, error) {
	return s.Repo.Get(ctx, identity, id)
}

// Delete removes the record and then its image. The record goes first so it
// never outlives the image; a failed image delete only leaves an orphan.
func (s *Service) Delete(ctx context.Context, identity domain.Identity, id domain.ScanID) error {
	rec, err := s.Repo.Get(ctx, identity, id)
	if err != nil {
		return err
	}
	if err := s.Repo.Delete(ctx, identity, id); err != nil {
		return fmt.Errorf("deleting scan %s: %w", id, err)
	}
	if err := s.Store.Delete(ctx, rec.Image.Key); err != nil {
		s.logger().WithError(err).WithFields(logrus.Fields{
			"scan_id": id,
			"key":     rec.Image.Key,
		}).Warn("scan deleted but image left in storage")
	}
	return nil
}

// Summary rekap hasil scan N hari terakhir
func (s *Service) Summary(ctx context.Context, identity domain.Identity, sinceDays int) (domain.Summary, error) {
	if sinceDays <= 0 {
		sinceDays = defaultSummaryDays
	}
	since := s.now().AddDate(0, 0, -sinceDays).UTC()
	return s.Repo.Summary(ctx, identity, since)
}

// ListFailures lists recorded pipeline failures for identity, newest first.
func (s *Service) ListFailures(ctx context.Context, identity domain.Identity, limit int) ([]*scanerrors.ScanFailure, error) {
	if s.Failures == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	return s.Failures.ListByIdentity(ctx, string(identity), limit)
}

// helper
func (s *Service) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock.Now()
}

func (s *Service) ids() application.IDGenerator {
	if s.IDs == nil {
		return application.UUIDGenerator{}
	}
	return s.IDs
}

func (s *Service) logger() logrus.FieldLogger {
	if s.Log == nil {
		return logrus.StandardLogger()
	}
	return s.Log
}
