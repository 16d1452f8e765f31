package provider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyedge/internal/domain"
	"github.com/alanyoungcy/polyedge/internal/oracle"
)

type roundTripFunc func(req *http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func response(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func clientFunc(fn roundTripFunc) *http.Client {
	return &http.Client{Transport: fn}
}

func decodeBody(t *testing.T, req *http.Request) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
	return body
}

func TestAnthropicComplete(t *testing.T) {
	var seen map[string]any
	client := clientFunc(func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, http.MethodPost, req.Method)
		assert.Equal(t, "https://api.anthropic.test/v1/messages", req.URL.String())
		assert.Equal(t, "sk-ant", req.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", req.Header.Get("anthropic-version"))
		seen = decodeBody(t, req)
		return response(http.StatusOK, `{"content":[{"type":"text","text":"{\"score\":9}"}]}`), nil
	})

	p := NewAnthropic(AnthropicConfig{APIKey: "sk-ant", BaseURL: "https://api.anthropic.test/", HTTPClient: client})
	out, err := p.Complete(context.Background(), oracle.Request{Prompt: "ctx", JSON: true})
	require.NoError(t, err)
	assert.Equal(t, `{"score":9}`, out)

	assert.Equal(t, "claude-3-5-sonnet-20241022", seen["model"])
	assert.EqualValues(t, 1024, seen["max_tokens"])
	assert.InDelta(t, 0.3, seen["temperature"], 1e-9)
	assert.Equal(t, Persona, seen["system"])
	msgs := seen["messages"].([]any)
	require.Len(t, msgs, 1)
	content := msgs[0].(map[string]any)["content"].([]any)
	assert.Equal(t, "ctx"+verdictSuffix, content[0].(map[string]any)["text"])
}

func TestAnthropicFreeTextHasNoPersona(t *testing.T) {
	client := clientFunc(func(req *http.Request) (*http.Response, error) {
		body := decodeBody(t, req)
		_, hasSystem := body["system"]
		assert.False(t, hasSystem)
		return response(http.StatusOK, `{"content":[{"type":"text","text":"a profile"}]}`), nil
	})
	out, err := NewAnthropic(AnthropicConfig{HTTPClient: client}).Complete(context.Background(), oracle.Request{Prompt: "who"})
	require.NoError(t, err)
	assert.Equal(t, "a profile", out)
}

func TestAnthropicFailures(t *testing.T) {
	tests := []struct {
		name string
		rt   roundTripFunc
	}{
		{"server error", func(*http.Request) (*http.Response, error) {
			return response(http.StatusInternalServerError, `{"error":"overloaded"}`), nil
		}},
		{"transport error", func(*http.Request) (*http.Response, error) {
			return nil, errors.New("connection reset")
		}},
		{"non text block", func(*http.Request) (*http.Response, error) {
			return response(http.StatusOK, `{"content":[{"type":"tool_use"}]}`), nil
		}},
		{"no content", func(*http.Request) (*http.Response, error) {
			return response(http.StatusOK, `{"content":[]}`), nil
		}},
		{"invalid body", func(*http.Request) (*http.Response, error) {
			return response(http.StatusOK, `<html>`), nil
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewAnthropic(AnthropicConfig{APIKey: "k", HTTPClient: clientFunc(tt.rt)})
			_, err := p.Complete(context.Background(), oracle.Request{Prompt: "x", JSON: true})
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrProvider)
		})
	}
}

func TestRateLimitedStatusIsTagged(t *testing.T) {
	client := clientFunc(func(*http.Request) (*http.Response, error) {
		return response(http.StatusTooManyRequests, "slow down"), nil
	})
	_, err := NewOpenAI(OpenAIConfig{HTTPClient: client}).Complete(context.Background(), oracle.Request{Prompt: "x"})
	assert.ErrorIs(t, err, domain.ErrProvider)
	assert.ErrorIs(t, err, domain.ErrRateLimited)
}

func TestGeminiComplete(t *testing.T) {
	var seen map[string]any
	client := clientFunc(func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "/v1beta/models/gemini-test:generateContent", req.URL.Path)
		assert.Equal(t, "g-key", req.URL.Query().Get("key"))
		seen = decodeBody(t, req)
		return response(http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":"{\"score\":"},{"text":"8}"}]}}]}`), nil
	})

	p := NewGemini(GeminiConfig{APIKey: "g-key", Model: "gemini-test", HTTPClient: client})
	out, err := p.Complete(context.Background(), oracle.Request{Prompt: "ctx", JSON: true})
	require.NoError(t, err)
	assert.Equal(t, `{"score":8}`, out)

	cfg := seen["generationConfig"].(map[string]any)
	assert.Equal(t, "application/json", cfg["responseMimeType"])
	contents := seen["contents"].([]any)
	parts := contents[0].(map[string]any)["parts"].([]any)
	assert.Equal(t, "ctx"+keysSuffix, parts[0].(map[string]any)["text"])
}

func TestGeminiErrorsDoNotLeakKey(t *testing.T) {
	client := clientFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("dial tcp: no route to host")
	})
	_, err := NewGemini(GeminiConfig{APIKey: "super-secret", HTTPClient: client}).
		Complete(context.Background(), oracle.Request{Prompt: "x"})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "super-secret")
	assert.ErrorIs(t, err, domain.ErrProvider)
}

func TestGeminiEmptyCandidates(t *testing.T) {
	client := clientFunc(func(*http.Request) (*http.Response, error) {
		return response(http.StatusOK, `{"candidates":[]}`), nil
	})
	_, err := NewGemini(GeminiConfig{HTTPClient: client}).Complete(context.Background(), oracle.Request{Prompt: "x"})
	assert.ErrorIs(t, err, domain.ErrProvider)
}

func TestOpenAIComplete(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"output text", `{"output_text":" {\"score\":7} "}`, `{"score":7}`},
		{"output items", `{"output":[{"content":[{"type":"output_text","text":""},{"type":"output_text","text":"{\"score\":6}"}]}]}`, `{"score":6}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := clientFunc(func(req *http.Request) (*http.Response, error) {
				assert.Equal(t, "Bearer sk-oai", req.Header.Get("Authorization"))
				body := decodeBody(t, req)
				assert.Equal(t, Persona, body["instructions"])
				return response(http.StatusOK, tt.body), nil
			})
			out, err := NewOpenAI(OpenAIConfig{APIKey: "sk-oai", HTTPClient: client}).
				Complete(context.Background(), oracle.Request{Prompt: "ctx", JSON: true})
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestDefaults(t *testing.T) {
	a := NewAnthropic(AnthropicConfig{})
	assert.Equal(t, "https://api.anthropic.com", a.cfg.BaseURL)
	assert.NotNil(t, a.cfg.HTTPClient)

	g := NewGemini(GeminiConfig{})
	assert.Equal(t, "gemini-2.5-flash-preview-09-2025", g.cfg.Model)

	o := NewOpenAI(OpenAIConfig{})
	assert.Equal(t, "https://api.openai.com/v1/responses", o.cfg.ResponsesURL)
}

func TestOpenAIBaseURL(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_, _ = w.Write([]byte(`{"output_text":"{\"score\":5}"}`))
	}))
	defer srv.Close()

	o := NewOpenAI(OpenAIConfig{APIKey: "sk-oai", BaseURL: srv.URL + "/"})
	out, err := o.Complete(context.Background(), oracle.Request{Prompt: "ctx", JSON: true})
	require.NoError(t, err)
	assert.Equal(t, `{"score":5}`, out)
	assert.Equal(t, "/v1/responses", path)

	pinned := NewOpenAI(OpenAIConfig{BaseURL: "https://ignored", ResponsesURL: "https://proxy.local/openai/responses"})
	assert.Equal(t, "https://proxy.local/openai/responses", pinned.cfg.ResponsesURL)
}
