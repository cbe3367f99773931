package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/bryanwahyu/plantscan/internal/domain/ai"
	"github.com/bryanwahyu/plantscan/internal/domain/scans"
)

// Service turns a provider's raw answer into a normalized AnalysisResult.
// It satisfies scans.Analyzer.
type Service struct {
	client ai.Client
}

func NewService(client ai.Client) *Service {
	return &Service{client: client}
}

func (s *Service) Analyze(ctx context.Context, imageURL string) (scans.AnalysisResult, error) {
	raw, err := s.client.Analyze(ctx, imageURL)
	if err != nil {
		return scans.AnalysisResult{}, err
	}
	return Decode(raw)
}

// Decode parses an untrusted diagnosis object. Known aliases are accepted for
// each field, recommendations may be a list, confidence may be a numeric string.
// Anything that is not a JSON object, carries an error, or has none of the
// diagnosis fields yields ai.ErrMalformedResponse.
func Decode(raw string) (scans.AnalysisResult, error) {
	body := stripFences(raw)
	var obj map[string]any
	if err := json.Unmarshal([]byte(body), &obj); err != nil || obj == nil {
		return scans.AnalysisResult{}, fmt.Errorf("%w: %s", ai.ErrMalformedResponse, snippet(body))
	}
	// some providers nest the payload
	if inner, ok := obj["data"].(map[string]any); ok && !hasError(obj) {
		obj = inner
	}
	if hasError(obj) {
		return scans.AnalysisResult{}, fmt.Errorf("%w: provider error: %s", ai.ErrMalformedResponse, snippet(fmt.Sprint(obj["error"])))
	}
	if !hasAny(obj, diagnosisKeys...) {
		return scans.AnalysisResult{}, fmt.Errorf("%w: no diagnosis fields: %s", ai.ErrMalformedResponse, snippet(body))
	}

	res := scans.AnalysisResult{
		Disease:         textField(obj, "disease", "disease_detected", "label"),
		Diagnosis:       textField(obj, "diagnosis", "description"),
		Recommendations: textField(obj, "recommendations", "recommendation", "treatment"),
		Confidence:      numberField(obj, "confidence", "confidence_score", "score"),
	}
	return res.Normalized(), nil
}

var diagnosisKeys = []string{
	"disease", "disease_detected", "label",
	"diagnosis", "description",
	"recommendations", "recommendation", "treatment",
	"confidence", "confidence_score", "score",
}

func hasError(obj map[string]any) bool {
	switch e := obj["error"].(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(e) != ""
	case bool:
		return e
	default:
		return true
	}
}

func hasAny(obj map[string]any, keys ...string) bool {
	for _, k := range keys {
		if _, ok := obj[k]; ok {
			return true
		}
	}
	return false
}

// textField returns the first alias holding non-blank text.
func textField(obj map[string]any, keys ...string) *string {
	for _, k := range keys {
		v, ok := obj[k]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case string:
			if strings.TrimSpace(t) == "" {
				continue
			}
			return &t
		case []any:
			parts := make([]string, 0, len(t))
			for _, p := range t {
				if s, ok := p.(string); ok && strings.TrimSpace(s) != "" {
					parts = append(parts, strings.TrimSpace(s))
				}
			}
			if len(parts) == 0 {
				continue
			}
			joined := strings.Join(parts, "\n")
			return &joined
		}
	}
	return nil
}

func numberField(obj map[string]any, keys ...string) *float64 {
	for _, k := range keys {
		switch t := obj[k].(type) {
		case float64:
			return &t
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
				return &f
			}
		}
	}
	return nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}

func snippet(s string) string {
	if len(s) > 120 {
		return s[:120] + "..."
	}
	return s
}
