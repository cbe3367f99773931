package scanerrors

import "time"

// Phase names the pipeline stage that failed.
type Phase string

const (
	PhaseUpload   Phase = "upload"
	PhaseAnalysis Phase = "analysis"
	PhasePersist  Phase = "persist"
)

// ScanFailure represents a persisted pipeline failure entry
type ScanFailure struct {
	ID       int64  `json:"id"`
	Identity string `json:"identity"`
	Phase    Phase  `json:"phase"`
	Message  string `json:"message"`
	// ImageURL is set when the image was uploaded before the failure (orphaned image).
	ImageURL  string    `json:"image_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
