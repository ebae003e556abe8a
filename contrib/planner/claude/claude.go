// Package claude implements the plan synthesis and conversational reply
// collaborators on the Anthropic Messages API.
package claude

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"

	"github.com/sweetpotato0/tripflow/analysis"
	"github.com/sweetpotato0/tripflow/message"
	"github.com/sweetpotato0/tripflow/pkg/logging"
)

const synthesizerInstructions = "You are a travel profile synthesizer. You receive image analysis results " +
	"for photos a user shared. Based ONLY on these results, respond with a single JSON object describing " +
	"their travel preferences with the fields: " +
	`"destination" (string), "dates" (string, may be empty), "summary" (string), ` +
	`"itinerary" (array of strings), "places" (array of strings), "notes" (string, may be empty). ` +
	"Respond with the JSON object only, no surrounding text."

const responderInstructions = "You are a friendly travel-planning assistant. The user chats with you about " +
	"their travel plans and may share links to image galleries or Instagram profiles for you to analyze. " +
	"Reply conversationally and concisely."

// Config holds Claude planner configuration.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int64
	Temperature float64
}

// DefaultConfig returns default Claude planner configuration.
func DefaultConfig(apiKey string) *Config {
	return &Config{
		APIKey:      apiKey,
		Model:       "claude-3-5-sonnet-20241022",
		MaxTokens:   4096,
		Temperature: 0.7,
	}
}

// Planner implements both the Synthesizer and Responder contracts.
type Planner struct {
	config *Config
	client anthropic.Client
	logger *slog.Logger
}

// New creates a Claude-backed planner.
func New(config *Config) *Planner {
	if config == nil {
		config = DefaultConfig("")
	}
	if config.Model == "" {
		config.Model = "claude-3-5-sonnet-20241022"
	}

	options := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if config.BaseURL != "" {
		options = append(options, option.WithBaseURL(config.BaseURL))
	}

	return &Planner{
		config: config,
		client: anthropic.NewClient(options...),
		logger: logging.WithComponent("claude_planner"),
	}
}

// Synthesize merges the successful analyses into one structured travel plan.
func (p *Planner) Synthesize(ctx context.Context, analyses []*analysis.ImageAnalysis) (*analysis.TravelPlan, error) {
	if len(analyses) == 0 {
		return nil, fmt.Errorf("no analyses to synthesize")
	}

	raw, err := json.MarshalIndent(analyses, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("serialize analyses: %w", err)
	}
	prompt := "Here are the analysis results for the user's images:\n" + string(raw) +
		"\n\nPlease generate the user profile based ONLY on these results."

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.config.Model),
		MaxTokens: p.config.MaxTokens,
		System: []anthropic.TextBlockParam{
			{Text: synthesizerInstructions},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	apiMessage, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("synthesis call failed: %w", err)
	}

	text := firstText(apiMessage)
	if text == "" {
		return nil, fmt.Errorf("synthesis returned no text")
	}

	var plan analysis.TravelPlan
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &plan); err != nil {
		return nil, fmt.Errorf("malformed synthesis output: %w", err)
	}
	if strings.TrimSpace(plan.Summary) == "" {
		return nil, fmt.Errorf("synthesis produced an empty summary")
	}
	return &plan, nil
}

// Reply generates a conversational answer from the session history.
func (p *Planner) Reply(ctx context.Context, turns []*message.Message) (string, error) {
	conversation := make([]anthropic.MessageParam, 0, len(turns))
	for _, turn := range turns {
		switch turn.Role {
		case message.RoleUser:
			conversation = append(conversation,
				anthropic.NewUserMessage(anthropic.NewTextBlock(turn.Content)))
		case message.RoleAssistant, message.RoleTool:
			conversation = append(conversation,
				anthropic.NewAssistantMessage(anthropic.NewTextBlock(turn.Content)))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.config.Model),
		MaxTokens: p.config.MaxTokens,
		System: []anthropic.TextBlockParam{
			{Text: responderInstructions},
		},
		Messages: conversation,
	}
	if p.config.Temperature > 0 {
		params.Temperature = param.NewOpt(p.config.Temperature)
	}

	apiMessage, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("reply call failed: %w", err)
	}

	text := firstText(apiMessage)
	if text == "" {
		return "", fmt.Errorf("reply returned no text")
	}
	return strings.TrimSpace(text), nil
}

func firstText(msg *anthropic.Message) string {
	for _, content := range msg.Content {
		if content.Type == "text" {
			return content.Text
		}
	}
	return ""
}

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
