package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"

	"github.com/bryanwahyu/plantscan/internal/config"
	"github.com/bryanwahyu/plantscan/internal/domain/scans"
	"github.com/bryanwahyu/plantscan/internal/testutil"
)

func newTestApp(t *testing.T, functionURL string) *App {
	t.Helper()
	yml := fmt.Sprintf(`
database:
  driver: sqlite
  path: %s
  migrate: true
storage:
  type: memory
  publicBaseURL: https://cdn.example.com/plants
analysis:
  provider: function
  functionURL: %s
  timeout: 2s
`, filepath.Join(t.TempDir(), "app.db"), functionURL)

	cfg, err := config.Parse([]byte(yml), ".yaml")
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	log, _ := test.NewNullLogger()
	a, err := New(context.Background(), cfg, log)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestApp_AnalyzeEndToEnd(t *testing.T) {
	var gotURL string
	fn := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			ImageURL string `json:"imageUrl"`
		}
		if err := decodeJSON(r, &body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		gotURL = body.ImageURL
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"disease_detected":"Late Blight","diagnosis":"lesions","recommendations":["remove leaves"],"confidence_score":0.92}`))
	}))
	defer fn.Close()

	a := newTestApp(t, fn.URL)
	ctx := context.Background()

	rec, err := a.Scans.Analyze(ctx, testutil.PNGImage(), "user-1")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if gotURL != rec.Image.URL {
		t.Errorf("function saw %q, record has %q", gotURL, rec.Image.URL)
	}

	page, err := a.Scans.List(ctx, "user-1", 10, nil)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page.Data) != 1 || page.Data[0].ID != rec.ID {
		t.Fatalf("history = %+v", page.Data)
	}
	if d := page.Data[0].Result.Disease; d == nil || *d != "Late Blight" {
		t.Errorf("persisted disease = %v", d)
	}

	for name, c := range a.HealthCheckers() {
		if err := c.Check(ctx); err != nil {
			t.Errorf("%s unhealthy: %v", name, err)
		}
	}
}

func TestApp_AnalysisFailureIsRecorded(t *testing.T) {
	fn := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model crashed", http.StatusInternalServerError)
	}))
	defer fn.Close()

	a := newTestApp(t, fn.URL)
	ctx := context.Background()

	_, err := a.Scans.Analyze(ctx, testutil.PNGImage(), "user-1")
	if !errors.Is(err, scans.ErrAnalysisFailed) {
		t.Fatalf("err = %v, want ErrAnalysisFailed", err)
	}
	page, err := a.Scans.List(ctx, "user-1", 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Data) != 0 {
		t.Errorf("no record expected, got %d", len(page.Data))
	}
	failures, err := a.Scans.ListFailures(ctx, "user-1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(failures) != 1 || failures[0].ImageURL == "" {
		t.Errorf("failures = %+v", failures)
	}
}

func TestNewAnalyzer_UnknownProvider(t *testing.T) {
	if _, err := NewAnalyzer(config.AnalysisConfig{Provider: "carrier-pigeon"}); err == nil {
		t.Error("expected error")
	}
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}
