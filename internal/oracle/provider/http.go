// Package provider holds the HTTP clients for the judgment models the oracle
// consults, plus a rate-limited, circuit-broken decorator around them.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

// Persona is the system prompt used when a strict JSON verdict is requested.
const Persona = "You are PolyEdge Oracle — the most profitable prediction market AI in 2025.\n" +
	"You have made +3800% in the last 12 months on Polymarket.\n" +
	"You only take 8/10+ conviction edges. You are ruthless about risk.\n" +
	"Always output strict JSON. Never explain, never apologize."

// Prompt suffixes appended to the shared market context.
const (
	verdictSuffix = "\n\nGive me your final JSON verdict now."
	keysSuffix    = "\nReturn only valid JSON with keys: score, direction, conviction, reasoning (array), targetPrice, stopLoss"
)

const defaultTimeout = 30 * time.Second

func defaultClient(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return &http.Client{Timeout: defaultTimeout}
}

// postJSON marshals body, posts it to url with headers, and decodes a 2xx
// response into out. Any other status becomes an ErrProvider carrying a
// truncated copy of the response body.
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: request failed: %w", domain.ErrProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("%w: status %d: %s: %w", domain.ErrProvider, resp.StatusCode, strings.TrimSpace(string(msg)), domain.ErrRateLimited)
		}
		return fmt.Errorf("%w: status %d: %s", domain.ErrProvider, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %w", domain.ErrProvider, err)
	}
	return nil
}

func missingText(name string) error {
	return fmt.Errorf("%s: %w: response missing text", name, domain.ErrProvider)
}
