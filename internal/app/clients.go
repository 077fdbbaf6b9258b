package app

import (
	"fmt"

	"github.com/donbr-claude-code/starting-ragchatbot-codebase/internal/platform/anthropic"
	"github.com/donbr-claude-code/starting-ragchatbot-codebase/internal/platform/logger"
	"github.com/donbr-claude-code/starting-ragchatbot-codebase/internal/platform/openai"
)

type Clients struct {
	Anthropic anthropic.Client
	Openai    openai.Client
}

func wireClients(log *logger.Logger) (Clients, error) {
	log.Info("Wiring clients...")

	anthropicClient, err := anthropic.NewClient(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init anthropic client: %w", err)
	}

	openaiClient, err := openai.NewClient(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init openai client: %w", err)
	}

	return Clients{
		Anthropic: anthropicClient,
		Openai:    openaiClient,
	}, nil
}
