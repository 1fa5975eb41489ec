package client

import (
	"context"
)

// VisionClient sends one image plus a prompt to a vision model and returns
// the raw text reply.
type VisionClient interface {
	Query(ctx context.Context, model, prompt string, image []byte, mediaType string) (string, error)
}
