package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"go.uber.org/zap"

	"github.com/menta2k/food-analyzer/pkg/types"
)

// Config describes where artifacts are posted
type Config struct {
	BaseURL   string
	Endpoint  string
	FieldName string
}

// DefaultConfig returns the endpoint served by the reference backend
func DefaultConfig() Config {
	return Config{
		BaseURL:   "http://localhost:5000",
		Endpoint:  "/api/analyze",
		FieldName: "image",
	}
}

// Client posts normalised artifacts to the analysis endpoint.
// It makes a single attempt per call and imposes no timeout of its own;
// callers bound the request through the context.
type Client struct {
	url        string
	fieldName  string
	httpClient *http.Client
	log        *zap.Logger
}

// Option customises a Client
type Option func(*Client)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger attaches a logger
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.log = log }
}

func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if cfg.FieldName == "" {
		return nil, fmt.Errorf("field name is required")
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}

	c := &Client{
		url:        strings.TrimSuffix(cfg.BaseURL, "/") + "/" + strings.TrimPrefix(cfg.Endpoint, "/"),
		fieldName:  cfg.FieldName,
		httpClient: &http.Client{},
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	return c, nil
}

// URL returns the full endpoint address
func (c *Client) URL() string {
	return c.url
}

// Submit uploads artifact and decodes the analysis. Any failure is
// reported as *types.AnalysisError.
func (c *Client) Submit(ctx context.Context, artifact types.NormalizedArtifact) (*types.AnalysisResult, error) {
	body, contentType, err := c.encodeForm(artifact)
	if err != nil {
		return nil, &types.AnalysisError{Message: types.DefaultAnalysisMessage, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, body)
	if err != nil {
		return nil, &types.AnalysisError{Message: types.DefaultAnalysisMessage, Err: err}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("upload failed", zap.String("url", c.url), zap.Error(err))
		return nil, &types.AnalysisError{Message: types.DefaultAnalysisMessage, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &types.AnalysisError{Message: types.DefaultAnalysisMessage, StatusCode: resp.StatusCode, Err: err}
	}

	c.log.Debug("analysis response",
		zap.String("artifact", artifact.ID),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(raw)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errorFromBody(resp.StatusCode, raw)
	}

	var payload types.AnalysisResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, &types.AnalysisError{
			Message:    types.DefaultAnalysisMessage,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("failed to parse response: %w", err),
		}
	}

	result := payload.Result()
	return &result, nil
}

func (c *Client) encodeForm(artifact types.NormalizedArtifact) (io.Reader, string, error) {
	if len(artifact.Data) == 0 {
		return nil, "", errors.New("artifact is empty")
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		escapeQuotes(c.fieldName), escapeQuotes(artifact.Filename)))
	h.Set("Content-Type", artifact.MediaType)

	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form part: %w", err)
	}
	if _, err := part.Write(artifact.Data); err != nil {
		return nil, "", fmt.Errorf("failed to write form part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close form: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

func errorFromBody(status int, raw []byte) error {
	var payload struct {
		Error string `json:"error"`
	}
	message := types.DefaultAnalysisMessage
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Error != "" {
		message = payload.Error
	}
	return &types.AnalysisError{
		Message:    message,
		StatusCode: status,
		Err:        fmt.Errorf("server returned status %d", status),
	}
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
