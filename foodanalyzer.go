// Package foodanalyzer prepares food photos for nutritional analysis and
// presents the results.
//
// A photo is normalised on the client before upload: it is decoded, scaled
// to at most 1024 pixels wide keeping its aspect ratio, and re-encoded as
// JPEG at quality 90. The artifact is posted as multipart field "image" to an
// analysis endpoint, which answers with a list of foods and their per-gram
// macronutrients or with an advisory message.
//
// Basic usage:
//
//	fa, err := foodanalyzer.New("http://localhost:5000", nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	report, err := fa.AnalyzeFile(ctx, "lunch.jpg")
//	if err != nil {
//		log.Fatal(err) // *types.AnalysisError carries the server message
//	}
//	render.WriteText(os.Stdout, report.View)
//
// The package consists of four main components:
//
// 1. Normalizer (pkg/normalizer): decoding, resizing and re-encoding
// 2. Uploader (pkg/uploader): multipart upload and response decoding
// 3. Workflow (pkg/workflow): the Idle/Previewing/Submitting/Results/Errored state machine
// 4. Render (pkg/render): food cards and advisory views
//
// The reference analysis server lives in internal/server and is started by
// cmd/analysis-server.
package foodanalyzer

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/menta2k/food-analyzer/internal/utils"
	"github.com/menta2k/food-analyzer/pkg/normalizer"
	"github.com/menta2k/food-analyzer/pkg/render"
	"github.com/menta2k/food-analyzer/pkg/types"
	"github.com/menta2k/food-analyzer/pkg/uploader"
	"github.com/menta2k/food-analyzer/pkg/workflow"
)

// Version of the food analyzer library
const Version = "1.0.0"

// FoodAnalyzer drives one photo at a time through the workflow
type FoodAnalyzer struct {
	normalizer *normalizer.Normalizer
	uploader   *uploader.Client
	controller *workflow.Controller
	log        *zap.Logger
}

// Report is the outcome of a successful analysis
type Report struct {
	Artifact types.NormalizedArtifact `json:"artifact"`
	Result   types.AnalysisResult     `json:"result"`
	View     render.View              `json:"view"`
}

// New creates a FoodAnalyzer with default normalisation posting to baseURL
func New(baseURL string, log *zap.Logger) (*FoodAnalyzer, error) {
	uc := uploader.DefaultConfig()
	if baseURL != "" {
		uc.BaseURL = baseURL
	}
	return NewWithConfig(normalizer.DefaultConfig(), uc, log)
}

// NewWithConfig creates a FoodAnalyzer with custom configuration
func NewWithConfig(nc normalizer.Config, uc uploader.Config, log *zap.Logger, opts ...uploader.Option) (*FoodAnalyzer, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := nc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid normalizer config: %w", err)
	}

	n := normalizer.New(nc, log.Named("normalizer"))
	u, err := uploader.NewClient(uc, append([]uploader.Option{uploader.WithLogger(log.Named("uploader"))}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("invalid upload config: %w", err)
	}

	ctrl := workflow.New(workflow.Config{MaxWidth: nc.MaxWidth, Quality: nc.Quality}, n, u, log.Named("workflow"))

	return &FoodAnalyzer{
		normalizer: n,
		uploader:   u,
		controller: ctrl,
		log:        log,
	}, nil
}

// Controller returns the underlying workflow controller
func (fa *FoodAnalyzer) Controller() *workflow.Controller {
	return fa.controller
}

// Endpoint returns the analysis URL artifacts are posted to
func (fa *FoodAnalyzer) Endpoint() string {
	return fa.uploader.URL()
}

// NormalizeFile loads and normalises a photo without uploading it
func (fa *FoodAnalyzer) NormalizeFile(ctx context.Context, path string) (*types.NormalizedArtifact, error) {
	src, err := utils.LoadSource(path)
	if err != nil {
		return nil, err
	}
	if !src.IsImage() {
		return nil, fmt.Errorf("%w: %q", types.ErrInvalidInputType, src.MediaType)
	}
	cfg := fa.normalizer.Config()
	return fa.normalizer.Normalize(ctx, src, cfg.MaxWidth, cfg.Quality)
}

// AnalyzeFile is a convenience function that loads a photo from disk and
// analyzes it
func (fa *FoodAnalyzer) AnalyzeFile(ctx context.Context, path string) (*Report, error) {
	src, err := utils.LoadSource(path)
	if err != nil {
		return nil, err
	}
	return fa.Analyze(ctx, src)
}

// Analyze selects src, waits for normalisation, uploads the artifact and
// waits for the result. Upload failures are returned as *types.AnalysisError.
// If ctx ends first the workflow is reset.
func (fa *FoodAnalyzer) Analyze(ctx context.Context, src types.SourceImage) (*Report, error) {
	ctrl := fa.controller
	if err := ctrl.Reset(); err != nil {
		return nil, err
	}

	selected, err := ctrl.SelectFile(ctx, src)
	if err != nil {
		return nil, err
	}
	if err := fa.wait(ctx, selected); err != nil {
		return nil, fmt.Errorf("failed to prepare %s: %w", src.Name, err)
	}

	submitted, err := ctrl.Analyze(ctx)
	if err != nil {
		return nil, err
	}
	if err := fa.wait(ctx, submitted); err != nil {
		return nil, err
	}

	out, ok := ctrl.Outcome()
	if !ok {
		return nil, types.ErrInvalidTransition
	}
	return &Report{Artifact: out.Artifact, Result: out.Result, View: out.View}, nil
}

func (fa *FoodAnalyzer) wait(ctx context.Context, p *workflow.Pending) error {
	err := p.Wait(ctx)
	if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) && ctx.Err() != nil {
		_ = fa.controller.Reset()
	}
	return err
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
