package app

import (
	"github.com/donbr-claude-code/starting-ragchatbot-codebase/internal/platform/envutil"
	"github.com/donbr-claude-code/starting-ragchatbot-codebase/internal/platform/logger"
)

type Config struct {
	QdrantURL               string
	QdrantCatalogCollection string
	QdrantContentCollection string
	QdrantVectorDim         int

	ChunkSize     int
	ChunkOverlap  int
	MaxResults    int
	MaxHistory    int
	MaxToolRounds int

	DocsPath string
	Port     int
}

func LoadConfig(log *logger.Logger) Config {
	return Config{
		QdrantURL:               envutil.GetEnv("QDRANT_URL", "http://localhost:6333", log),
		QdrantCatalogCollection: envutil.GetEnv("QDRANT_CATALOG_COLLECTION", "course_catalog", log),
		QdrantContentCollection: envutil.GetEnv("QDRANT_CONTENT_COLLECTION", "course_content", log),
		QdrantVectorDim:         envutil.GetEnvAsInt("QDRANT_VECTOR_DIM", 1536, log),

		ChunkSize:     envutil.GetEnvAsInt("CHUNK_SIZE", 800, log),
		ChunkOverlap:  envutil.GetEnvAsInt("CHUNK_OVERLAP", 100, log),
		MaxResults:    envutil.GetEnvAsInt("MAX_RESULTS", 5, log),
		MaxHistory:    envutil.GetEnvAsInt("MAX_HISTORY", 2, log),
		MaxToolRounds: envutil.GetEnvAsInt("MAX_TOOL_ROUNDS", 2, log),

		DocsPath: envutil.GetEnv("DOCS_PATH", "./docs", log),
		Port:     envutil.GetEnvAsInt("PORT", 8000, log),
	}
}
