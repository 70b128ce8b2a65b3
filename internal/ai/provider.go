// Package ai wraps the text-completion services. The rest of the bot treats
// a provider as opaque: prompt and parameters in, raw text or an error out.
package ai

import (
	"context"
	"fmt"

	"server-slunt/internal/config"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenParams are the tunable generation knobs. Providers map them onto
// whatever their wire format supports and ignore the rest.
type GenParams struct {
	Temperature     float64
	TopK            int
	NumPredict      int
	PresencePenalty float64
}

// DefaultGenParams returns the untuned baseline.
func DefaultGenParams() GenParams {
	return GenParams{
		Temperature:     0.8,
		TopK:            40,
		NumPredict:      150,
		PresencePenalty: 0.6,
	}
}

type Provider interface {
	Generate(ctx context.Context, messages []Message, params GenParams) (string, error)
}

// NewProvider builds the provider named by AI_PROVIDER.
func NewProvider(cfg *config.Config) (Provider, error) {
	switch engine := cfg.AIProvider; {
	case engine == "pollinations" || engine == "":
		return NewPollinationsProvider(), nil
	case engine == "g4f" || len(engine) > 4 && engine[:4] == "g4f:":
		return NewG4FProvider(engine), nil
	default:
		return nil, fmt.Errorf("unsupported AI_PROVIDER: %s", cfg.AIProvider)
	}
}
