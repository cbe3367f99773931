package ai

import (
	"context"
	"errors"
	"testing"

	domai "github.com/bryanwahyu/plantscan/internal/domain/ai"
)

type stubClient struct {
	raw string
	err error
}

func (s stubClient) Analyze(ctx context.Context, imageURL string) (string, error) {
	return s.raw, s.err
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		disease string // "" means nil
		recs    string
		conf    float64 // -1 means nil
		wantErr error
	}{
		{
			name:    "canonical",
			raw:     `{"disease":"Late Blight","diagnosis":"lesions","recommendations":"copper spray","confidence":0.92}`,
			disease: "Late Blight", recs: "copper spray", conf: 0.92,
		},
		{
			name:    "aliases and string confidence",
			raw:     `{"disease_detected":"Rust","treatment":"prune","confidence_score":"0.5"}`,
			disease: "Rust", recs: "prune", conf: 0.5,
		},
		{
			name:    "list recommendations in code fence",
			raw:     "```json\n{\"label\":\"Mildew\",\"recommendations\":[\"water less\",\" \",\"sulfur\"]}\n```",
			disease: "Mildew", recs: "water less\nsulfur", conf: -1,
		},
		{
			name:    "nested data and clamped score",
			raw:     `{"data":{"disease":"Scab","score":3}}`,
			disease: "Scab", conf: 1,
		},
		{
			name:    "blank alias falls through",
			raw:     `{"disease":"  ","label":"blight","recommendations":[],"treatment":"prune"}`,
			disease: "blight", recs: "prune", conf: -1,
		},
		{
			name: "fields present but null",
			raw:  `{"disease":null,"confidence":null}`,
			conf: -1,
		},
		{name: "all fields missing", raw: `{}`, wantErr: domai.ErrMalformedResponse},
		{name: "unrelated fields", raw: `{"status":"ok"}`, wantErr: domai.ErrMalformedResponse},
		{name: "error payload", raw: `{"error":"model overloaded"}`, wantErr: domai.ErrMalformedResponse},
		{name: "error object", raw: `{"error":{"message":"quota"},"data":{"disease":"Rust"}}`, wantErr: domai.ErrMalformedResponse},
		{name: "error next to fields", raw: `{"error":"timeout","disease":"Rust"}`, wantErr: domai.ErrMalformedResponse},
		{name: "not json", raw: "I think it is blight", wantErr: domai.ErrMalformedResponse},
		{name: "array", raw: `[1,2]`, wantErr: domai.ErrMalformedResponse},
		{name: "null", raw: `null`, wantErr: domai.ErrMalformedResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Decode(tt.raw)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if got := deref(res.Disease); got != tt.disease {
				t.Errorf("disease = %q, want %q", got, tt.disease)
			}
			if got := deref(res.Recommendations); got != tt.recs {
				t.Errorf("recommendations = %q, want %q", got, tt.recs)
			}
			switch {
			case tt.conf < 0 && res.Confidence != nil:
				t.Errorf("confidence = %v, want nil", *res.Confidence)
			case tt.conf >= 0 && (res.Confidence == nil || *res.Confidence != tt.conf):
				t.Errorf("confidence = %v, want %v", res.Confidence, tt.conf)
			}
		})
	}
}

func TestService_Analyze(t *testing.T) {
	svc := NewService(stubClient{raw: `{"disease":"Healthy","confidence":0.99}`})
	res, err := svc.Analyze(context.Background(), "https://cdn/x.png")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !res.Healthy() {
		t.Errorf("expected healthy result, got %+v", res)
	}

	svc = NewService(stubClient{raw: `{"error":"model overloaded"}`})
	if _, err := svc.Analyze(context.Background(), "https://cdn/x.png"); !errors.Is(err, domai.ErrMalformedResponse) {
		t.Errorf("err = %v, want ErrMalformedResponse", err)
	}

	svc = NewService(stubClient{err: domai.ErrQuotaExceeded})
	if _, err := svc.Analyze(context.Background(), "https://cdn/x.png"); !errors.Is(err, domai.ErrQuotaExceeded) {
		t.Errorf("err = %v, want ErrQuotaExceeded", err)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
