package types

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"strings"
)

// SourceImage is a user supplied file before normalisation.
type SourceImage struct {
	Name      string
	MediaType string
	Data      []byte
}

// IsImage reports whether the declared media type is an image type.
func (s SourceImage) IsImage() bool {
	return IsImageMediaType(s.MediaType)
}

// IsImageMediaType reports whether mediaType names an image/* type.
func IsImageMediaType(mediaType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(mediaType)), "image/")
}

// NormalizedArtifact is the re-encoded image that gets uploaded.
// Treat it as immutable once produced.
type NormalizedArtifact struct {
	ID        string
	Filename  string
	MediaType string
	Width     int
	Height    int
	Quality   int
	Data      []byte
}

// Preview returns a data URI for displaying the artifact without a round trip.
func (a NormalizedArtifact) Preview() string {
	return DataURI(a.MediaType, a.Data)
}

// Clone returns a copy that shares no memory with a.
func (a NormalizedArtifact) Clone() NormalizedArtifact {
	a.Data = bytes.Clone(a.Data)
	return a
}

// DataURI builds a base64 data URI.
func DataURI(mediaType string, data []byte) string {
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// Nutrient is a per-gram value rendered verbatim. Strings are unquoted,
// null is empty and any other JSON value keeps its literal text.
type Nutrient string

func (n *Nutrient) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = Nutrient(s)
	case bytes.Equal(data, []byte("null")):
		*n = ""
	default:
		*n = Nutrient(data)
	}
	return nil
}

// FoodItem is one identified food with its nutrient values.
type FoodItem struct {
	Name    string   `json:"name"`
	Protein Nutrient `json:"protein"`
	Carbs   Nutrient `json:"carbs"`
	Fat     Nutrient `json:"fat"`
	Fiber   Nutrient `json:"fiber"`
}

// ResultKind discriminates AnalysisResult variants.
type ResultKind int

const (
	ResultFoods ResultKind = iota
	ResultAdvisory
)

func (k ResultKind) String() string {
	switch k {
	case ResultAdvisory:
		return "advisory"
	default:
		return "foods"
	}
}

// AnalysisResult is either a list of foods or an advisory message.
type AnalysisResult struct {
	Kind    ResultKind
	Message string
	Foods   []FoodItem
}

// NewAdvisory builds the advisory-message variant.
func NewAdvisory(message string) AnalysisResult {
	return AnalysisResult{Kind: ResultAdvisory, Message: message}
}

// NewFoodList builds the food-list variant.
func NewFoodList(foods []FoodItem) AnalysisResult {
	return AnalysisResult{Kind: ResultFoods, Foods: foods}
}

// AnalysisResponse is the JSON body exchanged with the analysis endpoint.
type AnalysisResponse struct {
	Message     string     `json:"message,omitempty"`
	Foods       []FoodItem `json:"foods,omitempty"`
	Error       string     `json:"error,omitempty"`
	RawResponse string     `json:"raw_response,omitempty"`
}

// Result converts the wire shape into an AnalysisResult. A non-empty
// message wins over any food list.
func (r AnalysisResponse) Result() AnalysisResult {
	if r.Message != "" {
		return NewAdvisory(r.Message)
	}
	return NewFoodList(r.Foods)
}

// WorkflowState is the active UI state.
type WorkflowState int

const (
	StateIdle WorkflowState = iota
	StatePreviewing
	StateSubmitting
	StateResultsShown
	StateErrored
)

func (s WorkflowState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePreviewing:
		return "previewing"
	case StateSubmitting:
		return "submitting"
	case StateResultsShown:
		return "results"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}
