// Package openai implements the image description collaborator on the
// OpenAI vision chat API.
package openai

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	openaisdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/sweetpotato0/tripflow/analysis"
	"github.com/sweetpotato0/tripflow/pkg/logging"
)

const analyzerInstructions = "You are an expert image analyst. Analyze the provided image URL. " +
	"Describe the main subject and scene concisely. " +
	"If a specific location is identifiable (city, landmark, country), state it clearly. " +
	"Respond ONLY with a JSON object with the fields " +
	`"description" (string), "location" (string or empty) and "error" (string or empty).`

// Config holds OpenAI describer configuration.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// DefaultConfig returns default describer configuration.
func DefaultConfig() *Config {
	return &Config{
		Model: "gpt-4o-mini",
	}
}

// Describer asks an OpenAI vision model to describe a single image URL.
type Describer struct {
	config *Config
	client openaisdk.Client
	logger *slog.Logger
}

// New creates an OpenAI-backed describer.
func New(config *Config) *Describer {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Model == "" {
		config.Model = "gpt-4o-mini"
	}

	options := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if config.BaseURL != "" {
		options = append(options, option.WithBaseURL(config.BaseURL))
	}

	return &Describer{
		config: config,
		client: openaisdk.NewClient(options...),
		logger: logging.WithComponent("openai_describer"),
	}
}

// visionResult mirrors the JSON object the model is instructed to emit.
type visionResult struct {
	Description string `json:"description"`
	Location    string `json:"location"`
	Error       string `json:"error"`
}

// Describe analyzes one image URL. Failures of any kind come back as a
// populated Error field, never as a Go error.
func (d *Describer) Describe(ctx context.Context, url string) *analysis.ImageAnalysis {
	params := openaisdk.ChatCompletionNewParams{
		Model: openaisdk.ChatModel(d.config.Model),
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.SystemMessage(analyzerInstructions),
			openaisdk.UserMessage([]openaisdk.ChatCompletionContentPartUnionParam{
				openaisdk.ImageContentPart(openaisdk.ChatCompletionContentPartImageImageURLParam{
					URL: url,
				}),
				openaisdk.TextContentPart("Analyze this image based on your instructions."),
			}),
		},
		ResponseFormat: openaisdk.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openaisdk.ResponseFormatJSONObjectParam{},
		},
	}

	completion, err := d.client.Chat.Completions.New(ctx, params)
	if err != nil {
		d.logger.Warn("vision call failed", "url", url, "error", err)
		return analysis.Failure(url, "vision model error: "+err.Error())
	}
	if len(completion.Choices) == 0 {
		return analysis.Failure(url, "vision model returned no choices")
	}

	var parsed visionResult
	content := completion.Choices[0].Message.Content
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		d.logger.Warn("vision output not parseable", "url", url, "error", err)
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
