package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Client queries Gemini models through the generative-ai SDK
type Client struct {
	apiKey string
}

// NewClient creates a client authenticated with apiKey
func NewClient(apiKey string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("GEMINI_API_KEY is empty")
	}
	return &Client{apiKey: apiKey}, nil
}

// Query sends the prompt followed by the image and returns the first text part
func (c *Client) Query(ctx context.Context, model, prompt string, image []byte, mediaType string) (string, error) {
	cl, err := genai.NewClient(ctx, option.WithAPIKey(c.apiKey))
	if err != nil {
		return "", fmt.Errorf("gemini: %w", err)
	}
	defer cl.Close()

	m := cl.GenerativeModel(strings.TrimSpace(model))
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:      ptrFloat32(0),
		ResponseMIMEType: "application/json",
	}

	if mediaType == "" {
		mediaType = http.DetectContentType(image)
	}
	parts := []genai.Part{
		genai.Text(prompt),
		&genai.Blob{MIMEType: mediaType, Data: image},
	}

	resp, err := m.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	txt := firstText(resp)
	if txt == "" {
		return "", errors.New("gemini: empty response")
	}
	return txt, nil
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				return string(t)
			}
		}
	}
	return ""
}

func ptrFloat32(v float32) *float32 { return &v }
