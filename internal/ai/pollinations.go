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

type PollinationsProvider struct {
	client  *http.Client
	limiter *AdaptiveLimiter
}

func NewPollinationsProvider() *PollinationsProvider {
	return &PollinationsProvider{
		client:  &http.Client{Timeout: 25 * time.Second},
		limiter: DefaultLimiter(),
	}
}

func (p *PollinationsProvider) Generate(ctx context.Context, messages []Message, params GenParams) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", err
	}

	payload := map[string]interface{}{
		"model":            "openai",
		"messages":         messages,
		"temperature":      params.Temperature,
		"presence_penalty": params.PresencePenalty,
		"private":          true,
	}
	if params.NumPredict > 0 {
		payload["max_tokens"] = params.NumPredict
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		"https://text.pollinations.ai/openai",
		bytes.NewReader(data),
	)
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

	body, err := io.ReadAll(io.LimitReader(resp.Body, 256*1024))
	if err != nil {
		return "", err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			p.limiter.Failure()
		}
		return "", fmt.Errorf("pollinations http %d: %s", resp.StatusCode, truncateBody(body))
	}

	if strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		return "", fmt.Errorf("pollinations returned html")
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", err
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("pollinations empty choices")
	}

	reply := cleanReply(parsed.Choices[0].Message.Content)
	if isGarbageResponse(reply) {
		return "", fmt.Errorf("pollinations returned garbage")
	}

	p.limiter.Success()
	return reply, nil
}
