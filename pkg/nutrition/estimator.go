package nutrition

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/menta2k/food-analyzer/pkg/client"
)

// DefaultModel is used when no model is configured
const DefaultModel = "models/gemini-2.5-flash"

// DefaultPrompt asks the model for per-100g macronutrients of every food it sees
const DefaultPrompt = `Analyze this food image and list nutritional information for each food item you can identify.

Return a valid JSON object with a "foods" array. Each entry has:
  "name": the food,
  "protein", "carbs", "fat", "fiber": grams per 100g, written like "31g" or "3.6g".

Example: {"foods": [{"name": "Grilled Chicken", "protein": "31g", "carbs": "0g", "fat": "3.6g", "fiber": "0g"}]}

If no food can be identified, return a JSON object with a "message" key explaining why.
JSON only. No markdown, no code fences, no comments.`

// ParseError reports a model reply that is not valid JSON
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse model response: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Estimator asks a vision model for the nutrients of a food photo
type Estimator struct {
	client client.VisionClient
	model  string
	prompt string
	log    *zap.Logger
}

// NewEstimator creates an estimator backed by a vision client
func NewEstimator(c client.VisionClient, model string, log *zap.Logger) *Estimator {
	if model == "" {
		model = DefaultModel
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Estimator{client: c, model: model, prompt: DefaultPrompt, log: log}
}

// WithPrompt replaces the prompt sent with every image
func (e *Estimator) WithPrompt(prompt string) *Estimator {
	if strings.TrimSpace(prompt) != "" {
		e.prompt = prompt
	}
	return e
}

// Model returns the configured model name
func (e *Estimator) Model() string {
	return e.model
}

// Estimate queries the model and returns its JSON reply with nutrient values
// converted from per-100g to per-gram.
func (e *Estimator) Estimate(ctx context.Context, image []byte, mediaType string) (json.RawMessage, error) {
	if len(image) == 0 {
		return nil, errors.New("empty image")
	}

	raw, err := e.client.Query(ctx, e.model, e.prompt, image, mediaType)
	if err != nil {
		return nil, err
	}

	text := stripFences(raw)
	var data any
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		e.log.Warn("model returned invalid JSON", zap.String("model", e.model), zap.Int("length", len(text)))
		return nil, &ParseError{Raw: text, Err: err}
	}

	out, err := json.Marshal(PerGram(data))
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	e.log.Debug("estimate complete", zap.String("model", e.model), zap.Int("bytes", len(out)))
	return out, nil
}
