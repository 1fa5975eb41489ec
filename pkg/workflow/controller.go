// Package workflow sequences photo selection, preview, upload and results.
//
// The Controller is a state machine over types.WorkflowState:
//
//	Idle -> Previewing        image rendered for the latest selection
//	Previewing -> Idle        Clear
//	Previewing -> Submitting  Analyze, once the artifact is encoded
//	Submitting -> Results     upload succeeded
//	Submitting -> Errored     upload failed, preview stays visible
//	Submitting -> Previewing  Cancel
//	Errored -> Submitting     Analyze again with the same artifact
//	any -> Idle               Reset
//
// Normalisation and upload run in their own goroutines and report back
// through the controller lock, so transitions never interleave. Results of a
// selection that has since been replaced are dropped.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/menta2k/food-analyzer/pkg/normalizer"
	"github.com/menta2k/food-analyzer/pkg/render"
	"github.com/menta2k/food-analyzer/pkg/types"
)

// Notices shown without leaving the current state.
const (
	NoticeInvalidType  = "Please select an image file (JPG or PNG)"
	NoticeNotReady     = "Please wait for the image to be prepared."
	NoticeDecodeFailed = "This image could not be read. Please choose another file."
)

// Normalizer renders and encodes a selected image.
type Normalizer interface {
	Render(ctx context.Context, src types.SourceImage, maxWidth int) (*normalizer.Surface, error)
	Encode(ctx context.Context, s *normalizer.Surface, quality int) (*types.NormalizedArtifact, error)
}

// Uploader sends an artifact for analysis.
type Uploader interface {
	Submit(ctx context.Context, artifact types.NormalizedArtifact) (*types.AnalysisResult, error)
}

// Config holds the normalisation parameters applied to every selection.
type Config struct {
	MaxWidth int
	Quality  int
}

// Controller owns the workflow state and the single artifact slot.
type Controller struct {
	config     Config
	normalizer Normalizer
	uploader   Uploader
	log        *zap.Logger

	mu       sync.Mutex
	observer func(ViewModel)
	seq      uint64

	notifyMu  sync.Mutex
	delivered uint64

	state types.WorkflowState

	selection       uint64
	cancelNormalize context.CancelFunc

	submission   uint64
	cancelSubmit context.CancelFunc

	fileName string
	preview  string
	width    int
	height   int
	artifact *types.NormalizedArtifact
	result   *types.AnalysisResult
	view     *render.View
	errMsg   string
	notice   string
}

// New creates a Controller in the Idle state.
func New(config Config, n Normalizer, u Uploader, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{
		config:     config,
		normalizer: n,
		uploader:   u,
		log:        log,
		state:      types.StateIdle,
	}
}

// Observe registers fn to receive a snapshot after every change.
// fn runs outside the controller lock and never sees a snapshot older than
// one it already received. It may read the controller but must not call
// methods that change state.
func (c *Controller) Observe(fn func(ViewModel)) {
	c.mu.Lock()
	c.observer = fn
	c.mu.Unlock()
}

// State returns the active state.
func (c *Controller) State() types.WorkflowState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// View returns a snapshot of the current view model.
func (c *Controller) View() ViewModel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

// Artifact returns a copy of the prepared artifact, if any.
func (c *Controller) Artifact() (types.NormalizedArtifact, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.artifact == nil {
		return types.NormalizedArtifact{}, false
	}
	return c.artifact.Clone(), true
}

// Outcome is the artifact, result and view of a finished analysis.
type Outcome struct {
	Artifact types.NormalizedArtifact
	Result   types.AnalysisResult
	View     render.View
}

// Outcome returns the shown results together with the artifact they were
// computed from, read under a single lock.
func (c *Controller) Outcome() (Outcome, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != types.StateResultsShown || c.result == nil || c.view == nil || c.artifact == nil {
		return Outcome{}, false
	}
	return Outcome{
		Artifact: c.artifact.Clone(),
		Result:   *c.result,
		View:     *c.view,
	}, true
}

// Result returns the last successful analysis while results are shown.
func (c *Controller) Result() (types.AnalysisResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.result == nil || c.state != types.StateResultsShown {
		return types.AnalysisResult{}, false
	}
	return *c.result, true
}

// SelectFile accepts a new photo and starts normalising it. Non-image files
// are rejected with a notice and leave the state untouched. The returned
// Pending resolves when the artifact is ready, normalisation failed, or a
// later selection superseded this one.
func (c *Controller) SelectFile(ctx context.Context, src types.SourceImage) (*Pending, error) {
	var p *Pending
	err := c.update(func() error {
		c.notice = ""
		if !src.IsImage() {
			c.notice = NoticeInvalidType
			c.log.Info("file rejected", zap.String("name", src.Name), zap.String("media_type", src.MediaType))
			return fmt.Errorf("%w: %q", types.ErrInvalidInputType, src.MediaType)
		}

		switch c.state {
		case types.StateSubmitting:
			return types.ErrBusy
		case types.StateResultsShown:
			return types.ErrInvalidTransition
		}

		c.discardSelection()
		c.fileName = src.Name
		c.setState(types.StateIdle)

		nctx, cancel := context.WithCancel(ctx)
		c.cancelNormalize = cancel
		p = newPending()
		go c.normalize(nctx, c.selection, src, p)
		return nil
	})
	return p, err
}

func (c *Controller) normalize(ctx context.Context, gen uint64, src types.SourceImage, p *Pending) {
	surface, err := c.normalizer.Render(ctx, src, c.config.MaxWidth)
	if rerr := c.rendered(gen, surface, err); rerr != nil {
		p.resolve(rerr)
		return
	}

	artifact, err := c.normalizer.Encode(ctx, surface, c.config.Quality)
	p.resolve(c.encoded(gen, artifact, err))
}

func (c *Controller) rendered(gen uint64, surface *normalizer.Surface, err error) error {
	return c.update(func() error {
		if gen != c.selection {
			return types.ErrSuperseded
		}
		if err != nil {
			c.normalizationFailed(err)
			return err
		}
		c.preview = surface.Preview
		c.width, c.height = surface.Width, surface.Height
		c.setState(types.StatePreviewing)
		return nil
	})
}

func (c *Controller) encoded(gen uint64, artifact *types.NormalizedArtifact, err error) error {
	return c.update(func() error {
		if gen != c.selection {
			return types.ErrSuperseded
		}
		if err != nil {
			c.normalizationFailed(err)
			return err
		}
		c.artifact = artifact
		if c.cancelNormalize != nil {
			c.cancelNormalize()
			c.cancelNormalize = nil
		}
		c.log.Info("artifact ready",
			zap.String("id", artifact.ID),
			zap.Int("width", artifact.Width),
			zap.Int("height", artifact.Height),
			zap.Int("size", len(artifact.Data)))
		return nil
	})
}

func (c *Controller) normalizationFailed(err error) {
	c.log.Warn("normalization failed", zap.String("name", c.fileName), zap.Error(err))
	c.discardSelection()
	if errors.Is(err, types.ErrDecode) {
		c.notice = NoticeDecodeFailed
	}
	c.setState(types.StateIdle)
}

// Clear drops the current selection and returns to Idle.
func (c *Controller) Clear() error {
	return c.update(func() error {
		switch c.state {
		case types.StateIdle, types.StatePreviewing, types.StateErrored:
		default:
			return types.ErrInvalidTransition
		}
		c.notice = ""
		c.discardSelection()
		c.setState(types.StateIdle)
		return nil
	})
}

// Analyze uploads the prepared artifact. It is rejected with ErrNotReady
// while the artifact is still being encoded and with ErrBusy while an
// upload is in flight. The returned Pending resolves with nil on success or
// a *types.AnalysisError.
func (c *Controller) Analyze(ctx context.Context) (*Pending, error) {
	var p *Pending
	err := c.update(func() error {
		c.notice = ""
		switch c.state {
		case types.StateSubmitting:
			return types.ErrBusy
		case types.StatePreviewing, types.StateErrored:
		default:
			return types.ErrInvalidTransition
		}
		if c.artifact == nil {
			c.notice = NoticeNotReady
			return types.ErrNotReady
		}

		artifact := c.artifact.Clone()
		c.errMsg = ""
		c.submission++
		sctx, cancel := context.WithCancel(ctx)
		c.cancelSubmit = cancel
		c.setState(types.StateSubmitting)

		p = newPending()
		go c.submit(sctx, c.submission, artifact, p)
		return nil
	})
	return p, err
}

func (c *Controller) submit(ctx context.Context, id uint64, artifact types.NormalizedArtifact, p *Pending) {
	result, err := c.uploader.Submit(ctx, artifact)

	p.resolve(c.update(func() error {
		if id != c.submission || c.state != types.StateSubmitting {
			return context.Canceled
		}
		c.cancelSubmit()
		c.cancelSubmit = nil

		if err != nil {
			ae := asAnalysisError(err)
			c.errMsg = ae.Error()
			c.log.Warn("analysis failed", zap.String("artifact", artifact.ID), zap.Error(err))
			c.setState(types.StateErrored)
			return ae
		}
		if result == nil {
			empty := types.NewFoodList(nil)
			result = &empty
		}

		view := render.Render(*result)
		c.result = result
		c.view = &view
		c.setState(types.StateResultsShown)
		return nil
	}))
}

// Cancel aborts an in-flight upload and returns to Previewing with the same
// artifact.
func (c *Controller) Cancel() error {
	return c.update(func() error {
		if c.state != types.StateSubmitting {
			return types.ErrInvalidTransition
		}
		c.abortSubmission()
		c.setState(types.StatePreviewing)
		return nil
	})
}

// Reset discards the selection and any result and returns to Idle from any
// state.
func (c *Controller) Reset() error {
	return c.update(func() error {
		c.abortSubmission()
		c.discardSelection()
		c.result = nil
		c.view = nil
		c.notice = ""
		c.setState(types.StateIdle)
		return nil
	})
}

// update runs fn under the lock and notifies the observer afterwards.
func (c *Controller) update(fn func() error) error {
	c.mu.Lock()
	err := fn()
	c.seq++
	seq := c.seq
	vm := c.snapshot()
	observer := c.observer
	c.mu.Unlock()

	c.notify(observer, seq, vm)
	return err
}

// notify delivers snapshots in order, dropping any that a later one
// overtook on the way out of the lock.
func (c *Controller) notify(observer func(ViewModel), seq uint64, vm ViewModel) {
	if observer == nil {
		return
	}
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	if seq <= c.delivered {
		return
	}
	c.delivered = seq
	observer(vm)
}

func (c *Controller) discardSelection() {
	c.selection++
	if c.cancelNormalize != nil {
		c.cancelNormalize()
		c.cancelNormalize = nil
	}
	c.fileName = ""
	c.preview = ""
	c.width, c.height = 0, 0
	c.artifact = nil
	c.errMsg = ""
}

func (c *Controller) abortSubmission() {
	c.submission++
	if c.cancelSubmit != nil {
		c.cancelSubmit()
		c.cancelSubmit = nil
	}
}

func (c *Controller) setState(next types.WorkflowState) {
	if c.state == next {
		return
	}
	c.log.Debug("state change",
		zap.Stringer("from", c.state),
		zap.Stringer("to", next))
	c.state = next
}

func (c *Controller) snapshot() ViewModel {
	vm := ViewModel{
		State:    c.state,
		Sections: SectionsFor(c.state),
		FileName: c.fileName,
		Preview:  c.preview,
		Ready:    c.artifact != nil,
		Width:    c.width,
		Height:   c.height,
		Error:    c.errMsg,
		Notice:   c.notice,
	}
	if c.view != nil && c.state == types.StateResultsShown {
		v := *c.view
		vm.Results = &v
	}
	return vm
}

func asAnalysisError(err error) *types.AnalysisError {
	var ae *types.AnalysisError
	if errors.As(err, &ae) {
		return ae
	}
	return &types.AnalysisError{Message: types.DefaultAnalysisMessage, Err: err}
}
