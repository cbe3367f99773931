package scans

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by repositories when a record does not exist for the identity.
var ErrNotFound = errors.New("scan not found")

// ErrorKind tags the stage at which Analyze stopped.
type ErrorKind string

const (
	KindInvalidInput   ErrorKind = "invalid_input"
	KindUploadFailed   ErrorKind = "upload_failed"
	KindAnalysisFailed ErrorKind = "analysis_failed"
	KindPersistFailed  ErrorKind = "persist_failed"
)

// PipelineError is the only error type returned by Service.Analyze.
type PipelineError struct {
	Kind ErrorKind
	// Image is set once the upload succeeded, so callers can tell what was left behind.
	Image *StoredImageRef
	Err   error
}

func (e *PipelineError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// Is matches the kind sentinels below, e.g. errors.Is(err, ErrUploadFailed).
func (e *PipelineError) Is(target error) bool {
	t, ok := target.(*PipelineError)
	if !ok {
		return false
	}
	return t.Err == nil && t.Kind == e.Kind
}

var (
	ErrInvalidInput   = &PipelineError{Kind: KindInvalidInput}
	ErrUploadFailed   = &PipelineError{Kind: KindUploadFailed}
	ErrAnalysisFailed = &PipelineError{Kind: KindAnalysisFailed}
	ErrPersistFailed  = &PipelineError{Kind: KindPersistFailed}
)

// KindOf returns the pipeline kind of err, or "" when err is not a PipelineError.
func KindOf(err error) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}
