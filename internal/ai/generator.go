package ai

import (
	"context"
	"fmt"

	"groundedchat/internal/prompt"
)

// TemplateGenerator renders a named prompt and sends it to the chat model.
type TemplateGenerator struct {
	client   *OpenAICompatibleClient
	cfg      ChatConfig
	registry *prompt.Registry
}

func NewTemplateGenerator(client *OpenAICompatibleClient, cfg ChatConfig, registry *prompt.Registry) *TemplateGenerator {
	return &TemplateGenerator{client: client, cfg: cfg, registry: registry}
}

func (g *TemplateGenerator) Generate(ctx context.Context, templateID string, vars map[string]any) (string, error) {
	rendered, err := g.registry.Render(templateID, vars)
	if err != nil {
		return "", err
	}
	messages := make([]ChatMessage, 0, len(rendered))
	for _, m := range rendered {
		messages = append(messages, ChatMessage{Role: m.Role, Content: m.Content})
	}

	var answer string
	if g.cfg.Stream {
		answer, err = g.client.StreamComplete(ctx, g.cfg, messages, nil)
	} else {
		answer, err = g.client.Complete(ctx, g.cfg, messages)
	}
	if err != nil {
		return "", err
	}
	if answer == "" {
		return "", fmt.Errorf("model returned an empty response for %s", templateID)
	}
	return answer, nil
}
