package scans

import (
	"math"
	"strings"
)

// Normalized returns a copy with blank texts dropped and the confidence
// forced into [0,1]. NaN and infinite confidences are dropped.
func (r AnalysisResult) Normalized() AnalysisResult {
	out := AnalysisResult{
		Disease:         trimmedOrNil(r.Disease),
		Diagnosis:       trimmedOrNil(r.Diagnosis),
		Recommendations: trimmedOrNil(r.Recommendations),
	}
	if r.Confidence != nil {
		c := *r.Confidence
		if !math.IsNaN(c) && !math.IsInf(c, 0) {
			c = math.Max(0, math.Min(1, c))
			out.Confidence = &c
		}
	}
	return out
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
