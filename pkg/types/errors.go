package types

import "errors"

var (
	ErrInvalidInputType     = errors.New("file is not an image")
	ErrDecode               = errors.New("image could not be decoded")
	ErrUnsupportedMediaType = errors.New("unsupported output media type")
	ErrNotReady             = errors.New("image is not ready yet")
	ErrBusy                 = errors.New("analysis already in progress")
	ErrInvalidTransition    = errors.New("action not allowed in current state")
	ErrSuperseded           = errors.New("superseded by a newer selection")
)

// DefaultAnalysisMessage is used when a failure carries no message.
const DefaultAnalysisMessage = "Analysis failed"

// AnalysisError reports a failed upload or remote analysis.
type AnalysisError struct {
	Message    string
	StatusCode int
	Err        error
}

func (e *AnalysisError) Error() string {
	if e.Message == "" {
		return DefaultAnalysisMessage
	}
	return e.Message
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}
