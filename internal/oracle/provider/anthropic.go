package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/alanyoungcy/polyedge/internal/oracle"
)

// AnthropicConfig configures the Anthropic Messages API client.
type AnthropicConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	Version     string
	MaxTokens   int
	Temperature float64
	HTTPClient  *http.Client
}

// Anthropic calls the Messages API.
type Anthropic struct {
	cfg AnthropicConfig
}

var _ oracle.Provider = (*Anthropic)(nil)

// NewAnthropic fills unset fields with defaults.
func NewAnthropic(cfg AnthropicConfig) *Anthropic {
	if cfg.Model == "" {
		cfg.Model = "claude-3-5-sonnet-20241022"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com"
	}
	if cfg.Version == "" {
		cfg.Version = "2023-06-01"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.3
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.HTTPClient = defaultClient(cfg.HTTPClient)
	return &Anthropic{cfg: cfg}
}

func (a *Anthropic) Name() string { return "anthropic" }

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []anthropicContent `json:"content"`
}

// Complete sends one user message. JSON requests carry the oracle persona as
// the system prompt.
func (a *Anthropic) Complete(ctx context.Context, req oracle.Request) (string, error) {
	body := anthropicRequest{
		Model:       a.cfg.Model,
		MaxTokens:   a.cfg.MaxTokens,
		Temperature: a.cfg.Temperature,
	}
	text := req.Prompt
	if req.JSON {
		body.System = Persona
		text += verdictSuffix
	}
	body.Messages = []anthropicMessage{{
		Role:    "user",
		Content: []anthropicContent{{Type: "text", Text: text}},
	}}

	headers := map[string]string{
		"x-api-key":         a.cfg.APIKey,
		"anthropic-version": a.cfg.Version,
	}
	var resp anthropicResponse
	if err := postJSON(ctx, a.cfg.HTTPClient, a.cfg.BaseURL+"/v1/messages", headers, body, &resp); err != nil {
		return "", fmt.Errorf("anthropic: complete: %w", err)
	}
	if len(resp.Content) == 0 || resp.Content[0].Type != "text" || strings.TrimSpace(resp.Content[0].Text) == "" {
		return "", missingText("anthropic")
	}
	return resp.Content[0].Text, nil
}
