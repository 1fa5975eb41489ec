package workflow

import (
	"github.com/menta2k/food-analyzer/pkg/render"
	"github.com/menta2k/food-analyzer/pkg/types"
)

// Sections lists which UI regions are visible.
type Sections struct {
	Upload  bool `json:"upload"`
	Preview bool `json:"preview"`
	Loading bool `json:"loading"`
	Error   bool `json:"error"`
	Results bool `json:"results"`
}

// SectionsFor returns the visible regions for a state. The error banner is
// the only section shown on top of another one.
func SectionsFor(state types.WorkflowState) Sections {
	switch state {
	case types.StatePreviewing:
		return Sections{Preview: true}
	case types.StateSubmitting:
		return Sections{Loading: true}
	case types.StateErrored:
		return Sections{Preview: true, Error: true}
	case types.StateResultsShown:
		return Sections{Results: true}
	default:
		return Sections{Upload: true}
	}
}

// ViewModel is a snapshot of everything the UI displays.
type ViewModel struct {
	State    types.WorkflowState `json:"state"`
	Sections Sections            `json:"sections"`
	FileName string              `json:"file_name,omitempty"`
	Preview  string              `json:"preview,omitempty"`
	Ready    bool                `json:"ready"`
	Width    int                 `json:"width,omitempty"`
	Height   int                 `json:"height,omitempty"`
	Error    string              `json:"error,omitempty"`
	Notice   string              `json:"notice,omitempty"`
	Results  *render.View        `json:"results,omitempty"`
}
