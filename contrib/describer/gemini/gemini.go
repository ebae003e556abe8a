// Package gemini implements the image description collaborator against the
// Gemini REST generateContent endpoint.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sweetpotato0/tripflow/analysis"
	"github.com/sweetpotato0/tripflow/pkg/logging"
)

const defaultAPIURL = "https://generativelanguage.googleapis.com/v1/models"

const analyzerInstructions = "You are an expert image analyst. Describe the main subject and scene " +
	"of the image at the given URL concisely. If a specific location is identifiable (city, landmark, " +
	"country), state it clearly. Respond ONLY with a JSON object with the fields " +
	`"description" (string), "location" (string or empty) and "error" (string or empty).`

// Config holds Gemini describer configuration.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
}

// DefaultConfig returns default Gemini configuration.
func DefaultConfig(apiKey string) *Config {
	return &Config{
		APIKey: apiKey,
		Model:  "gemini-1.5-flash",
	}
}

// Describer asks a Gemini model to describe a single image URL.
type Describer struct {
	config *Config
	client *http.Client
	logger *slog.Logger
}

// Option is a function that configures the Gemini describer.
type Option func(*Describer)

// WithHTTPClient sets the shared HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(d *Describer) {
		if client != nil {
			d.client = client
		}
	}
}

// New creates a Gemini-backed describer.
func New(config *Config, opts ...Option) *Describer {
	if config == nil {
		config = DefaultConfig("")
	}
	if config.Model == "" {
		config.Model = "gemini-1.5-flash"
	}
	if config.BaseURL == "" {
		config.BaseURL = defaultAPIURL
	}

	d := &Describer{
		config: config,
		client: &http.Client{},
		logger: logging.WithComponent("gemini_describer"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiMessage struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiMessage `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *geminiError `json:"error,omitempty"`
}

type geminiError struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

type visionResult struct {
	Description string `json:"description"`
	Location    string `json:"location"`
	Error       string `json:"error"`
}

// Describe analyzes one image URL. All failures are encoded in the result's
// Error field.
func (d *Describer) Describe(ctx context.Context, url string) *analysis.ImageAnalysis {
	if d.config.APIKey == "" {
		return analysis.Failure(url, "Gemini API key not configured")
	}

	payload := geminiRequest{
		Contents: []geminiMessage{
			{
				Role: "user",
				Parts: []geminiPart{
					{Text: analyzerInstructions},
					{Text: "Image URL: " + url},
				},
			},
		},
	}
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return analysis.Failure(url, "failed to build vision request: "+err.Error())
	}

	endpoint := fmt.Sprintf("%s/%s:generateContent?key=%s", d.config.BaseURL, d.config.Model, d.config.APIKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(reqBody))
	if err != nil {
		return analysis.Failure(url, "failed to build vision request: "+err.Error())
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := d.client.Do(httpReq)
	if err != nil {
		d.logger.Warn("vision call failed", "url", url, "error", err)
		return analysis.Failure(url, "vision model error: "+err.Error())
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return analysis.Failure(url, "failed to read vision response: "+err.Error())
	}
	if httpResp.StatusCode != http.StatusOK {
		return analysis.Failure(url, fmt.Sprintf("vision API status %d", httpResp.StatusCode))
	}

	var resp geminiResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return analysis.Failure(url, "malformed vision response")
	}
	if resp.Error != nil {
		return analysis.Failure(url, fmt.Sprintf("vision API error %d: %s", resp.Error.Code, resp.Error.Message))
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return analysis.Failure(url, "vision model returned no candidates")
	}

	text := resp.Candidates[0].Content.Parts[0].Text
	var parsed visionResult
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &parsed); err != nil {
		return analysis.Failure(url, "malformed vision output")
	}
	if parsed.Error != "" {
		return analysis.Failure(url, parsed.Error)
	}
	if strings.TrimSpace(parsed.Description) == "" {
		return analysis.Failure(url, "vision model produced no description")
	}

	return &analysis.ImageAnalysis{
		URL:         url,
		OK:          true,
		Description: parsed.Description,
		Location:    parsed.Location,
	}
}

// stripCodeFence removes a markdown code fence the model sometimes wraps its
// JSON in.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
