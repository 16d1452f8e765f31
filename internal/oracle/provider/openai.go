package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/alanyoungcy/polyedge/internal/oracle"
)

// OpenAIConfig configures the Responses API client.
type OpenAIConfig struct {
	APIKey string
	Model  string
	// BaseURL is the API host root; "/v1/responses" is appended. ResponsesURL,
	// when set, is used verbatim instead.
	BaseURL      string
	ResponsesURL string
	HTTPClient   *http.Client
}

// OpenAI calls the Responses API.
type OpenAI struct {
	cfg OpenAIConfig
}

var _ oracle.Provider = (*OpenAI)(nil)

func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if strings.TrimSpace(cfg.ResponsesURL) == "" {
		base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
		if base == "" {
			base = "https://api.openai.com"
		}
		cfg.ResponsesURL = base + "/v1/responses"
	}
	cfg.HTTPClient = defaultClient(cfg.HTTPClient)
	return &OpenAI{cfg: cfg}
}

func (o *OpenAI) Name() string { return "openai" }

type openAIRequest struct {
	Model        string  `json:"model"`
	Instructions string  `json:"instructions,omitempty"`
	Input        string  `json:"input"`
	Temperature  float64 `json:"temperature,omitempty"`
}

type openAIResponse struct {
	OutputText string `json:"output_text"`
	Output     []struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
}

func (o *OpenAI) Complete(ctx context.Context, req oracle.Request) (string, error) {
	body := openAIRequest{Model: o.cfg.Model, Input: req.Prompt}
	if req.JSON {
		body.Instructions = Persona
		body.Input += keysSuffix
		body.Temperature = 0.3
	}
	headers := map[string]string{"Authorization": "Bearer " + o.cfg.APIKey}

	var resp openAIResponse
	if err := postJSON(ctx, o.cfg.HTTPClient, o.cfg.ResponsesURL, headers, body, &resp); err != nil {
		return "", fmt.Errorf("openai: complete: %w", err)
	}

	text := strings.TrimSpace(resp.OutputText)
	if text == "" {
		for _, item := range resp.Output {
			for _, c := range item.Content {
				if strings.TrimSpace(c.Text) != "" {
					text = strings.TrimSpace(c.Text)
					break
				}
			}
			if text != "" {
				break
			}
		}
	}
	if text == "" {
		return "", missingText("openai")
	}
	return text, nil
}
