package app

import (
	"fmt"
	"os"

	"github.com/donbr-claude-code/starting-ragchatbot-codebase/internal/platform/anthropic"
	"github.com/donbr-claude-code/starting-ragchatbot-codebase/internal/platform/logger"
	"github.com/donbr-claude-code/starting-ragchatbot-codebase/internal/platform/openai"
	"github.com/donbr-claude-code/starting-ragchatbot-codebase/internal/services"
)

// Ingest is the slim wiring used by the offline indexing binary. It skips
// the HTTP stack, and Anthropic credentials are optional because ingestion
// never calls the generative path.
type Ingest struct {
	Log *logger.Logger
	Cfg Config
	RAG services.RAGService
}

func NewIngest() (*Ingest, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)

	openaiClient, err := openai.NewClient(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init openai client: %w", err)
	}

	store, err := bootstrapCourseVectorStore(log, cfg, openaiClient)
	if err != nil {
		log.Sync()
		return nil, err
	}

	processor := services.NewDocumentProcessor(cfg.ChunkSize, cfg.ChunkOverlap, log)

	var generator services.AIGenerator
	if anthropicClient, err := anthropic.NewClient(log); err == nil {
		generator = services.NewAIGenerator(anthropicClient, cfg.MaxToolRounds, log)
	} else {
		log.Warn("Anthropic client unavailable, ingest continues without it", "error", err)
	}

	sessions := services.NewMemorySessionStore(cfg.MaxHistory, log)

	rag, err := services.NewRAGService(processor, store, generator, sessions, log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init rag service: %w", err)
	}

	return &Ingest{Log: log, Cfg: cfg, RAG: rag}, nil
}

func (i *Ingest) Close() {
	if i == nil {
		return
	}
	if i.Log != nil {
		i.Log.Sync()
	}
}
