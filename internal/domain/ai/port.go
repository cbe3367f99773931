package ai

import "context"

// Client sends an image URL to a remote model and returns its raw JSON answer.
type Client interface {
	Analyze(ctx context.Context, imageURL string) (string, error)
}
