package ai

import (
	"fmt"

	"github.com/veloznet/atendebot/pkg/config"
)

// CreateProvider picks an LLM backend from config. OpenAI wins when
// both are configured; it carries the dedicated vision model.
func CreateProvider(cfg *config.Config) (Provider, error) {
	switch {
	case cfg.AI.OpenAI.APIKey != "":
		return NewOpenAIProvider(
			cfg.AI.OpenAI.APIKey,
			cfg.AI.OpenAI.APIBase,
			cfg.AI.Model,
			cfg.AI.VisionModel,
		), nil
	case cfg.AI.Anthropic.APIKey != "":
		return NewAnthropicProvider(
			cfg.AI.Anthropic.APIKey,
			cfg.AI.Anthropic.APIBase,
			cfg.AI.Model,
		), nil
	}
	return nil, fmt.Errorf("no AI provider configured (set openai or anthropic api key)")
}
