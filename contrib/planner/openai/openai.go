// Package openai implements the plan synthesis and conversational reply
// collaborators on the OpenAI chat API.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	openaisdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"
	"github.com/pkoukk/tiktoken-go"

	"github.com/sweetpotato0/tripflow/analysis"
	"github.com/sweetpotato0/tripflow/message"
	"github.com/sweetpotato0/tripflow/pkg/logging"
)

const synthesizerInstructions = "You are a travel profile synthesizer. You receive image analysis results " +
	"for photos a user shared. Based ONLY on these results, produce a JSON object describing their travel " +
	"preferences with the fields: " +
	`"destination" (string), "dates" (string, may be empty), "summary" (string), ` +
	`"itinerary" (array of strings), "places" (array of strings), "notes" (string, may be empty).`

const responderInstructions = "You are a friendly travel-planning assistant. The user chats with you about " +
	"their travel plans and may share links to image galleries or Instagram profiles for you to analyze. " +
	"Reply conversationally and concisely."

// Config holds OpenAI planner configuration.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int64
	Temperature float64
	// TokenBudget caps the serialized analyses fed to one synthesis call.
	TokenBudget int
}

// DefaultConfig returns default planner configuration.
func DefaultConfig() *Config {
	return &Config{
		Model:       "gpt-4o-mini",
		MaxTokens:   2000,
		Temperature: 0.7,
		TokenBudget: 6000,
	}
}

// Planner implements both the Synthesizer and Responder contracts.
type Planner struct {
	config *Config
	client openaisdk.Client
	enc    *tiktoken.Tiktoken
	logger *slog.Logger
}

// New creates an OpenAI-backed planner.
func New(config *Config) (*Planner, error) {
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

	enc, err := tiktoken.EncodingForModel(config.Model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("load token encoding: %w", err)
		}
	}

	return &Planner{
		config: config,
		client: openaisdk.NewClient(options...),
		enc:    enc,
		logger: logging.WithComponent("openai_planner"),
	}, nil
}

// Synthesize merges the successful analyses into one structured travel plan.
func (p *Planner) Synthesize(ctx context.Context, analyses []*analysis.ImageAnalysis) (*analysis.TravelPlan, error) {
	if len(analyses) == 0 {
		return nil, fmt.Errorf("no analyses to synthesize")
	}

	payload := p.serializeWithinBudget(analyses)
	prompt := "Here are the analysis results for the user's images:\n" + payload +
		"\n\nPlease generate the user profile based ONLY on these results."

	params := openaisdk.ChatCompletionNewParams{
		Model: openaisdk.ChatModel(p.config.Model),
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.SystemMessage(synthesizerInstructions),
			openaisdk.UserMessage(prompt),
		},
		ResponseFormat: openaisdk.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openaisdk.ResponseFormatJSONObjectParam{},
		},
	}
	if p.config.MaxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(p.config.MaxTokens)
	}

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("synthesis call failed: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("synthesis returned no choices")
	}

	var plan analysis.TravelPlan
	if err := json.Unmarshal([]byte(completion.Choices[0].Message.Content), &plan); err != nil {
		return nil, fmt.Errorf("malformed synthesis output: %w", err)
	}
	if strings.TrimSpace(plan.Summary) == "" {
		return nil, fmt.Errorf("synthesis produced an empty summary")
	}
	return &plan, nil
}

// Reply generates a conversational answer from the session history for turns
// with no extractable source.
func (p *Planner) Reply(ctx context.Context, turns []*message.Message) (string, error) {
	msgs := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(turns)+1)
	msgs = append(msgs, openaisdk.SystemMessage(responderInstructions))
	for _, turn := range turns {
		switch turn.Role {
		case message.RoleUser:
			msgs = append(msgs, openaisdk.UserMessage(turn.Content))
		case message.RoleAssistant:
			msgs = append(msgs, openaisdk.AssistantMessage(turn.Content))
		case message.RoleTool:
			msgs = append(msgs, openaisdk.ToolMessage(turn.Content, turn.ToolID))
		case message.RoleSystem:
			msgs = append(msgs, openaisdk.SystemMessage(turn.Content))
		}
	}

	params := openaisdk.ChatCompletionNewParams{
		Model:    openaisdk.ChatModel(p.config.Model),
		Messages: msgs,
	}
	if p.config.Temperature > 0 {
		params.Temperature = param.NewOpt(p.config.Temperature)
	}
	if p.config.MaxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(p.config.MaxTokens)
	}

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("reply call failed: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("reply returned no choices")
	}
	return strings.TrimSpace(completion.Choices[0].Message.Content), nil
}

// serializeWithinBudget renders the analyses as indented JSON and, when the
// payload exceeds the token budget, drops trailing entries until it fits.
// At least one analysis is always kept.
func (p *Planner) serializeWithinBudget(analyses []*analysis.ImageAnalysis) string {
	for len(analyses) > 1 {
		raw, err := json.MarshalIndent(analyses, "", "  ")
		if err != nil {
			break
		}
		payload := string(raw)
		if p.config.TokenBudget <= 0 || len(p.enc.Encode(payload, nil, nil)) <= p.config.TokenBudget {
			return payload
		}
		p.logger.Debug("trimming synthesis payload", "analyses", len(analyses))
		analyses = analyses[:len(analyses)-1]
	}

	raw, err := json.MarshalIndent(analyses, "", "  ")
	if err != nil {
		return "[]"
	}
	return string(raw)
}
