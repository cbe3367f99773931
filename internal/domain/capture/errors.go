package capture

import "errors"

var (
	// ErrDeviceUnavailable is returned when the camera is denied or missing. Callers may retry
	// or fall back to file selection.
	ErrDeviceUnavailable = errors.New("camera device unavailable")
	// ErrAlreadyCapturing is returned by Start while a stream is active.
	ErrAlreadyCapturing = errors.New("camera already capturing")
	// ErrInvalidState is returned for transitions the current state does not allow.
	ErrInvalidState = errors.New("invalid capture state")
	// ErrNotAnImage is returned by file selection for non-image content.
	ErrNotAnImage = errors.New("file is not an image")
)
