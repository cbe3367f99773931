package scans

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	appai "github.com/bryanwahyu/plantscan/internal/application/ai"
	domai "github.com/bryanwahyu/plantscan/internal/domain/ai"
	"github.com/bryanwahyu/plantscan/internal/domain/scanerrors"
	domain "github.com/bryanwahyu/plantscan/internal/domain/scans"
	"github.com/bryanwahyu/plantscan/internal/infra/storage"
	"github.com/bryanwahyu/plantscan/internal/testutil"
)

type fixture struct {
	svc      *Service
	repo     *testutil.MemoryScanRepository
	store    *storage.MemoryStore
	failing  *testutil.FailingStore
	analyzer *testutil.ScriptedAnalyzer
	failures *testutil.MemoryFailureRepository
	clock    *testutil.StubClock
	hook     *test.Hook
}

func newFixture() *fixture {
	log, hook := test.NewNullLogger()
	f := &fixture{
		repo:     testutil.NewMemoryScanRepository(),
		store:    storage.NewMemoryStore("https://cdn.example.com/plants"),
		analyzer: &testutil.ScriptedAnalyzer{},
		failures: &testutil.MemoryFailureRepository{},
		clock:    testutil.FixedClock(),
		hook:     hook,
	}
	f.failing = &testutil.FailingStore{ObjectStore: f.store}
	f.svc = &Service{
		Repo:     f.repo,
		Store:    f.failing,
		Analyzer: f.analyzer,
		Failures: f.failures,
		Clock:    f.clock,
		IDs:      testutil.NewStubIDGenerator(),
		Log:      log,
	}
	return f
}

func strPtr(s string) *string   { return &s }
func fltPtr(v float64) *float64 { return &v }

func TestAnalyze_BlightScenario(t *testing.T) {
	f := newFixture()
	f.analyzer.Result = domain.AnalysisResult{
		Disease:         strPtr("Late Blight"),
		Diagnosis:       strPtr("Dark water-soaked lesions on leaves"),
		Recommendations: strPtr("Remove infected leaves; apply copper fungicide"),
		Confidence:      fltPtr(0.92),
	}

	rec, err := f.svc.Analyze(context.Background(), testutil.PNGImage(), "user-1")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	wantKey := fmt.Sprintf("user-1/%d.png", f.clock.Now().UnixMilli())
	if keys := f.store.Keys(); len(keys) != 1 || keys[0] != wantKey {
		t.Fatalf("stored keys = %v, want [%s]", keys, wantKey)
	}
	if rec.Image.Key != wantKey {
		t.Errorf("record key = %q, want %q", rec.Image.Key, wantKey)
	}
	wantURL := "https://cdn.example.com/plants/" + wantKey
	if rec.Image.URL != wantURL {
		t.Errorf("record url = %q, want %q", rec.Image.URL, wantURL)
	}
	if len(f.analyzer.URLs) != 1 || f.analyzer.URLs[0] != wantURL {
		t.Errorf("analyzer urls = %v, want [%s]", f.analyzer.URLs, wantURL)
	}
	if *rec.Result.Disease != "Late Blight" || *rec.Result.Confidence != 0.92 {
		t.Errorf("result = %+v", rec.Result)
	}
	if rec.Identity != "user-1" || rec.ID == "" {
		t.Errorf("record identity/id = %q/%q", rec.Identity, rec.ID)
	}
	if !rec.CreatedAt.Equal(f.clock.Now()) {
		t.Errorf("created_at = %v, want %v", rec.CreatedAt, f.clock.Now())
	}

	stored, err := f.repo.Get(context.Background(), "user-1", rec.ID)
	if err != nil {
		t.Fatalf("record not persisted: %v", err)
	}
	if stored.Image.URL != rec.Image.URL {
		t.Errorf("persisted url = %q, want %q", stored.Image.URL, rec.Image.URL)
	}
}

func TestAnalyze_AnalysisFailureKeepsUploadWithoutRecord(t *testing.T) {
	f := newFixture()
	f.analyzer.Err = errors.New("remote function returned 500")

	rec, err := f.svc.Analyze(context.Background(), testutil.PNGImage(), "user-1")
	if rec != nil {
		t.Fatalf("record = %+v, want nil", rec)
	}
	if !errors.Is(err, domain.ErrAnalysisFailed) {
		t.Fatalf("err = %v, want ErrAnalysisFailed", err)
	}
	if !errors.Is(err, f.analyzer.Err) {
		t.Errorf("err does not unwrap to the cause: %v", err)
	}

	var pe *domain.PipelineError
	if !errors.As(err, &pe) || pe.Image == nil {
		t.Fatalf("pipeline error should carry the uploaded image: %#v", err)
	}
	if len(f.store.Keys()) != 1 {
		t.Errorf("upload should be kept, keys = %v", f.store.Keys())
	}
	for _, c := range f.repo.Calls {
		if c == "Insert" {
			t.Fatal("Insert must not be called after analysis failure")
		}
	}

	failures := f.failures.All()
	if len(failures) != 1 || failures[0].Phase != scanerrors.PhaseAnalysis || failures[0].ImageURL != pe.Image.URL {
		t.Errorf("failures = %+v", failures)
	}
}

type rawClient string

func (r rawClient) Analyze(ctx context.Context, imageURL string) (string, error) {
	return string(r), nil
}

func TestAnalyze_ProviderErrorPayloadIsAnalysisFailure(t *testing.T) {
	for _, raw := range []string{`{"error":"model overloaded"}`, `{}`} {
		t.Run(raw, func(t *testing.T) {
			f := newFixture()
			f.svc.Analyzer = appai.NewService(rawClient(raw))

			rec, err := f.svc.Analyze(context.Background(), testutil.PNGImage(), "user-1")
			if rec != nil {
				t.Fatalf("record = %+v, want nil", rec)
			}
			if !errors.Is(err, domain.ErrAnalysisFailed) || !errors.Is(err, domai.ErrMalformedResponse) {
				t.Fatalf("err = %v, want analysis failure wrapping ErrMalformedResponse", err)
			}
			if f.repo.Len() != 0 {
				t.Errorf("records = %d, want 0", f.repo.Len())
			}
			for _, c := range f.repo.Calls {
				if c == "Insert" {
					t.Fatal("Insert must not be called for a provider error payload")
				}
			}
			if len(f.store.Keys()) != 1 {
				t.Errorf("upload should be kept, keys = %v", f.store.Keys())
			}
		})
	}
}

func TestAnalyze_UploadFailure(t *testing.T) {
	f := newFixture()
	f.failing.FailPut = true

	_, err := f.svc.Analyze(context.Background(), testutil.PNGImage(), "user-1")
	if !errors.Is(err, domain.ErrUploadFailed) {
		t.Fatalf("err = %v, want ErrUploadFailed", err)
	}
	if errors.Is(err, domain.ErrAnalysisFailed) {
		t.Error("upload failure must not match ErrAnalysisFailed")
	}
	if len(f.analyzer.URLs) != 0 {
		t.Error("analyzer must not run after upload failure")
	}
	if f.repo.Len() != 0 {
		t.Error("no record expected")
	}
	if got := f.failures.All(); len(got) != 1 || got[0].Phase != scanerrors.PhaseUpload {
		t.Errorf("failures = %+v", got)
	}
}

func TestAnalyze_PersistFailure(t *testing.T) {
	f := newFixture()
	f.repo.InsertErr = errors.New("database is locked")
	f.analyzer.Result = domain.AnalysisResult{Disease: strPtr("Rust")}

	rec, err := f.svc.Analyze(context.Background(), testutil.PNGImage(), "user-1")
	if rec != nil {
		t.Fatal("record must be nil on persist failure")
	}
	if !errors.Is(err, domain.ErrPersistFailed) || !errors.Is(err, f.repo.InsertErr) {
		t.Fatalf("err = %v, want ErrPersistFailed wrapping the insert error", err)
	}
	if domain.KindOf(err) != domain.KindPersistFailed {
		t.Errorf("kind = %q", domain.KindOf(err))
	}
	if got := f.failures.All(); len(got) != 1 || got[0].Phase != scanerrors.PhasePersist {
		t.Errorf("failures = %+v", got)
	}
}

func TestAnalyze_InvalidInput(t *testing.T) {
	tests := []struct {
		name     string
		img      domain.CapturedImage
		identity domain.Identity
	}{
		{"empty identity", testutil.PNGImage(), " "},
		{"empty image", domain.CapturedImage{ContentType: "image/png"}, "user-1"},
		{"not an image", domain.CapturedImage{Data: []byte("%PDF-1.4"), ContentType: "application/pdf"}, "user-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			_, err := f.svc.Analyze(context.Background(), tt.img, tt.identity)
			if !errors.Is(err, domain.ErrInvalidInput) {
				t.Fatalf("err = %v, want ErrInvalidInput", err)
			}
			if len(f.store.Keys()) != 0 || len(f.analyzer.URLs) != 0 || f.repo.Len() != 0 {
				t.Error("invalid input must not touch any remote")
			}
		})
	}
}

func TestAnalyze_ConfidenceIsClamped(t *testing.T) {
	f := newFixture()
	f.analyzer.Result = domain.AnalysisResult{Disease: strPtr("Mildew"), Confidence: fltPtr(1.7), Diagnosis: strPtr("  ")}

	rec, err := f.svc.Analyze(context.Background(), testutil.PNGImage(), "user-1")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if *rec.Result.Confidence != 1 {
		t.Errorf("confidence = %v, want 1", *rec.Result.Confidence)
	}
	if rec.Result.Diagnosis != nil {
		t.Errorf("blank diagnosis should be nil, got %q", *rec.Result.Diagnosis)
	}
}

func TestAnalyze_SequentialCallsListedNewestFirst(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first, err := f.svc.Analyze(ctx, testutil.PNGImage(), "user-1")
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	// same clock reading: the key stamp must still move forward
	second, err := f.svc.Analyze(ctx, testutil.PNGImage(), "user-1")
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if first.Image.Key == second.Image.Key {
		t.Fatalf("keys collide: %s", first.Image.Key)
	}

	page, err := f.svc.List(ctx, "user-1", 10, nil)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page.Data) != 2 || page.Data[0].ID != second.ID || page.Data[1].ID != first.ID {
		t.Fatalf("list order = %v", page.Data)
	}
	if page.NextCursor != nil {
		t.Error("short page must not have a next cursor")
	}
}

func TestAnalyze_ConcurrentCallsGetDistinctKeys(t *testing.T) {
	f := newFixture()
	f.svc.IDs = nil // uuid

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.Analyze(context.Background(), testutil.PNGImage(), "user-1"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("Analyze: %v", err)
	}
	if got := len(f.store.Keys()); got != n {
		t.Errorf("distinct keys = %d, want %d", got, n)
	}
	if f.repo.Len() != n {
		t.Errorf("records = %d, want %d", f.repo.Len(), n)
	}
}

func TestList_Pagination(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	for range 5 {
		if _, err := f.svc.Analyze(ctx, testutil.PNGImage(), "user-1"); err != nil {
			t.Fatalf("Analyze: %v", err)
		}
		f.clock.Advance(time.Second)
	}

	page, err := f.svc.List(ctx, "user-1", 2, nil)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page.Data) != 2 || page.NextCursor == nil {
		t.Fatalf("first page = %d records, cursor %v", len(page.Data), page.NextCursor)
	}

	var seen []domain.ScanID
	for _, r := range page.Data {
		seen = append(seen, r.ID)
	}
	for page.NextCursor != nil {
		page, err = f.svc.List(ctx, "user-1", 2, page.NextCursor)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		for _, r := range page.Data {
			seen = append(seen, r.ID)
		}
	}
	want := []domain.ScanID{"id-5", "id-4", "id-3", "id-2", "id-1"}
	if fmt.Sprint(seen) != fmt.Sprint(want) {
		t.Errorf("walk = %v, want %v", seen, want)
	}
}

func TestDelete_RemovesRecordThenImage(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	rec, err := f.svc.Analyze(ctx, testutil.PNGImage(), "user-1")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if err := f.svc.Delete(ctx, "user-2", rec.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("delete by other identity err = %v, want ErrNotFound", err)
	}
	if err := f.svc.Delete(ctx, "user-1", rec.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := f.repo.Get(ctx, "user-1", rec.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Error("record should be gone")
	}
	if len(f.store.Keys()) != 0 {
		t.Errorf("image should be gone, keys = %v", f.store.Keys())
	}
}

func TestDelete_ImageFailureLeavesOrphanOnly(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	rec, err := f.svc.Analyze(ctx, testutil.PNGImage(), "user-1")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	f.failing.FailDelete = true

	if err := f.svc.Delete(ctx, "user-1", rec.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if f.repo.Len() != 0 {
		t.Error("record must be deleted even when the image delete fails")
	}
	if len(f.store.Keys()) != 1 {
		t.Error("image is expected to remain as an orphan")
	}
	last := f.hook.LastEntry()
	if last == nil || last.Level != logrus.WarnLevel || !strings.Contains(last.Message, "image left in storage") {
		t.Errorf("expected orphan warning, got %+v", last)
	}
}

func TestSummary(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.analyzer.Result = domain.AnalysisResult{Disease: strPtr("Late Blight"), Confidence: fltPtr(0.9)}
	if _, err := f.svc.Analyze(ctx, testutil.PNGImage(), "user-1"); err != nil {
		t.Fatal(err)
	}
	f.analyzer.Result = domain.AnalysisResult{Disease: strPtr("healthy"), Confidence: fltPtr(0.7)}
	if _, err := f.svc.Analyze(ctx, testutil.PNGImage(), "user-1"); err != nil {
		t.Fatal(err)
	}

	sum, err := f.svc.Summary(ctx, "user-1", 0)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.Total != 2 || sum.Diseased != 1 || sum.Healthy != 1 {
		t.Errorf("summary = %+v", sum)
	}
	if sum.AvgConfidence == nil || *sum.AvgConfidence < 0.79 || *sum.AvgConfidence > 0.81 {
		t.Errorf("avg = %v, want 0.8", sum.AvgConfidence)
	}
}

func TestRecordFailure_SaveErrorIsOnlyLogged(t *testing.T) {
	f := newFixture()
	f.failures.SaveErr = errors.New("disk full")
	f.failing.FailPut = true

	_, err := f.svc.Analyze(context.Background(), testutil.PNGImage(), "user-1")
	if !errors.Is(err, domain.ErrUploadFailed) {
		t.Fatalf("err = %v, want ErrUploadFailed", err)
	}
	found := false
	for _, e := range f.hook.AllEntries() {
		if strings.Contains(e.Message, "could not record scan failure") {
			found = true
		}
	}
	if !found {
		t.Error("expected a log entry for the failed failure record")
	}
}

func TestObjectKey(t *testing.T) {
	if got := ObjectKey("user-1", 1717228800000, "jpg"); got != "user-1/1717228800000.jpg" {
		t.Errorf("ObjectKey = %q", got)
	}
}
