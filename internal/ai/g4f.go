// g4f.go
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type G4FProvider struct {
	baseURL string
	model   string
	client  *http.Client
	limiter *AdaptiveLimiter
}

func NewG4FProvider(engine string) *G4FProvider {
	// engine examples:
	//   g4f:gpt-oss-120b
	//   g4f:groq/qwen/qwen3-32b
	//   g4f:ollama/gpt-oss:20b
	parts := strings.SplitN(engine, ":", 2)
	if len(parts) != 2 {
		parts = []string{"g4f", "gpt-oss-120b"}
	}
	target := parts[1]

	var base, model string
	switch {
	case strings.HasPrefix(target, "groq/"):
		base = "https://g4f.dev/api/groq"
		model = strings.TrimPrefix(target, "groq/")
	case strings.HasPrefix(target, "ollama/"):
		base = "https://g4f.dev/api/ollama"
		model = strings.TrimPrefix(target, "ollama/")
	default:
		base = "https://g4f.dev/api/gpt-oss-120b"
		model = target
	}

	return &G4FProvider{
		baseURL: base,
		model:   model,
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: DefaultLimiter(),
	}
}

func (p *G4FProvider) Generate(ctx context.Context, messages []Message, params GenParams) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", err
	}

	payload := map[string]interface{}{
		"model":       p.model,
		"messages":    messages,
		"temperature": params.Temperature,
	}
	if params.NumPredict > 0 {
		payload["max_tokens"] = params.NumPredict
	}
	bodyBytes, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		p.limiter.Failure()
		return "", err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			p.limiter.Failure()
		}
		return "", fmt.Errorf("g4f http %d: %s", resp.StatusCode, truncateBody(respBody))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("g4f unmarshal: %w body=%s", err, truncateBody(respBody))
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("g4f empty choices")
	}

	reply := cleanReply(parsed.Choices[0].Message.Content)
	if isGarbageResponse(reply) {
		return "", fmt.Errorf("g4f returned garbage")
	}

	p.limiter.Success()
	return reply, nil
}
