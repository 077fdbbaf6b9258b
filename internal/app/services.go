package app

import (
	"fmt"

	"github.com/donbr-claude-code/starting-ragchatbot-codebase/internal/platform/logger"
	"github.com/donbr-claude-code/starting-ragchatbot-codebase/internal/services"
)

type Services struct {
	Processor   *services.DocumentProcessor
	VectorStore services.CourseVectorStore
	Generator   services.AIGenerator
	Sessions    services.SessionStore
	RAG         services.RAGService
}

func wireServices(log *logger.Logger, cfg Config, clients Clients) (Services, error) {
	log.Info("Wiring services...")

	processor := services.NewDocumentProcessor(cfg.ChunkSize, cfg.ChunkOverlap, log)

	store, err := bootstrapCourseVectorStore(log, cfg, clients.Openai)
	if err != nil {
		return Services{}, err
	}

	generator := services.NewAIGenerator(clients.Anthropic, cfg.MaxToolRounds, log)

	sessions, err := services.NewSessionStore(cfg.MaxHistory, log)
	if err != nil {
		return Services{}, fmt.Errorf("init session store: %w", err)
	}

	rag, err := services.NewRAGService(processor, store, generator, sessions, log)
	if err != nil {
		return Services{}, fmt.Errorf("init rag service: %w", err)
	}

	return Services{
		Processor:   processor,
		VectorStore: store,
		Generator:   generator,
		Sessions:    sessions,
		RAG:         rag,
	}, nil
}
