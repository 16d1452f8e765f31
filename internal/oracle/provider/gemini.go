package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/alanyoungcy/polyedge/internal/oracle"
)

// GeminiConfig configures the Generative Language API client.
type GeminiConfig struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// Gemini calls models/{model}:generateContent.
type Gemini struct {
	cfg GeminiConfig
}

var _ oracle.Provider = (*Gemini)(nil)

func NewGemini(cfg GeminiConfig) *Gemini {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash-preview-09-2025"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.HTTPClient = defaultClient(cfg.HTTPClient)
	return &Gemini{cfg: cfg}
}

func (g *Gemini) Name() string { return "gemini" }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	ResponseMimeType string `json:"responseMimeType,omitempty"`
}

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func (g *Gemini) Complete(ctx context.Context, req oracle.Request) (string, error) {
	text := req.Prompt
	body := geminiRequest{}
	if req.JSON {
		text += keysSuffix
		body.GenerationConfig = &geminiGenerationConfig{ResponseMimeType: "application/json"}
	}
	body.Contents = []geminiContent{{Role: "user", Parts: []geminiPart{{Text: text}}}}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		g.cfg.BaseURL, url.PathEscape(g.cfg.Model), url.QueryEscape(g.cfg.APIKey))

	var resp geminiResponse
	if err := postJSON(ctx, g.cfg.HTTPClient, endpoint, nil, body, &resp); err != nil {
		// The key travels in the query string; keep it out of the error.
		return "", fmt.Errorf("gemini: complete: %w", redact(err, g.cfg.APIKey))
	}

	var b strings.Builder
	if len(resp.Candidates) > 0 {
		for _, p := range resp.Candidates[0].Content.Parts {
			b.WriteString(p.Text)
		}
	}
	out := b.String()
	if strings.TrimSpace(out) == "" {
		return "", missingText("gemini")
	}
	return out, nil
}

type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.err }

func redact(err error, secret string) error {
	if secret == "" || !strings.Contains(err.Error(), secret) {
		return err
	}
	return &redactedError{msg: strings.ReplaceAll(err.Error(), secret, "***"), err: err}
}
