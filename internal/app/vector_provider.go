package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	neturl "net/url"
	"strings"

	"github.com/donbr-claude-code/starting-ragchatbot-codebase/internal/platform/logger"
	"github.com/donbr-claude-code/starting-ragchatbot-codebase/internal/platform/openai"
	"github.com/donbr-claude-code/starting-ragchatbot-codebase/internal/platform/qdrant"
	"github.com/donbr-claude-code/starting-ragchatbot-codebase/internal/services"
)

var newQdrantStore = qdrant.New

type VectorStoreBootstrapErrorCode string

const (
	VectorStoreBootstrapErrorMissingURL        VectorStoreBootstrapErrorCode = "missing_qdrant_url"
	VectorStoreBootstrapErrorInvalidURL        VectorStoreBootstrapErrorCode = "invalid_qdrant_url"
	VectorStoreBootstrapErrorMissingCollection VectorStoreBootstrapErrorCode = "missing_qdrant_collection"
	VectorStoreBootstrapErrorMissingVectorDim  VectorStoreBootstrapErrorCode = "missing_qdrant_vector_dim"
	VectorStoreBootstrapErrorInvalidVectorDim  VectorStoreBootstrapErrorCode = "invalid_qdrant_vector_dim"
	VectorStoreBootstrapErrorConfigFailed      VectorStoreBootstrapErrorCode = "qdrant_config_failed"
	VectorStoreBootstrapErrorConnectFailed     VectorStoreBootstrapErrorCode = "connect_failed"
	VectorStoreBootstrapErrorStoreInitFailed   VectorStoreBootstrapErrorCode = "store_init_failed"
)

type VectorStoreBootstrapError struct {
	Code       VectorStoreBootstrapErrorCode
	Collection string
	Cause      error
}

func (e *VectorStoreBootstrapError) Error() string {
	if e == nil {
		return "vector store bootstrap failed"
	}
	return fmt.Sprintf(
		"vector store bootstrap failed (code=%s collection=%q): %v",
		e.Code,
		e.Collection,
		e.Cause,
	)
}

func (e *VectorStoreBootstrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// bootstrapCourseVectorStore opens the catalog and content collections and
// wraps them in the shared store facade. Collections are created on first
// boot so a fresh deployment can serve queries before any ingest has run.
func bootstrapCourseVectorStore(
	log *logger.Logger,
	cfg Config,
	embedder openai.Client,
) (services.CourseVectorStore, error) {
	url := strings.TrimSpace(cfg.QdrantURL)
	log.Info(
		"Bootstrapping course vector store",
		"qdrant_url", url,
		"catalog_collection", cfg.QdrantCatalogCollection,
		"content_collection", cfg.QdrantContentCollection,
		"vector_dim", cfg.QdrantVectorDim,
	)

	catalog, err := openCollection(log, url, cfg.QdrantCatalogCollection, cfg.QdrantVectorDim)
	if err != nil {
		return nil, err
	}
	content, err := openCollection(log, url, cfg.QdrantContentCollection, cfg.QdrantVectorDim)
	if err != nil {
		return nil, err
	}

	return services.NewCourseVectorStore(catalog, content, embedder, cfg.MaxResults, log), nil
}

func openCollection(log *logger.Logger, url, collection string, vectorDim int) (qdrant.Store, error) {
	store, err := newQdrantStore(log, qdrant.Config{
		URL:        url,
		Collection: strings.TrimSpace(collection),
		VectorDim:  vectorDim,
	})
	if err == nil {
		err = store.EnsureCollection(context.Background())
	}
	if err != nil {
		classified := classifyVectorStoreBootstrapError(collection, err)
		log.Error(
			"Vector store bootstrap failed",
			"collection", collection,
			"error_code", vectorStoreBootstrapErrorCode(classified),
			"error", classified,
		)
		return nil, classified
	}
	return store, nil
}

func classifyVectorStoreBootstrapError(collection string, err error) error {
	var cfgErr *qdrant.ConfigError
	if errors.As(err, &cfgErr) {
		code := VectorStoreBootstrapErrorConfigFailed
		switch cfgErr.Code {
		case qdrant.ConfigErrorMissingURL:
			code = VectorStoreBootstrapErrorMissingURL
		case qdrant.ConfigErrorInvalidURL:
			code = VectorStoreBootstrapErrorInvalidURL
		case qdrant.ConfigErrorMissingCollection:
			code = VectorStoreBootstrapErrorMissingCollection
		case qdrant.ConfigErrorMissingVectorDim:
			code = VectorStoreBootstrapErrorMissingVectorDim
		case qdrant.ConfigErrorInvalidVectorDim:
			code = VectorStoreBootstrapErrorInvalidVectorDim
		}
		return &VectorStoreBootstrapError{
			Code:       code,
			Collection: collection,
			Cause:      err,
		}
	}

	var urlErr *neturl.Error
	if errors.As(err, &urlErr) {
		return &VectorStoreBootstrapError{
			Code:       VectorStoreBootstrapErrorConnectFailed,
			Collection: collection,
			Cause:      err,
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &VectorStoreBootstrapError{
			Code:       VectorStoreBootstrapErrorConnectFailed,
			Collection: collection,
			Cause:      err,
		}
	}

	var opErrTyped *qdrant.OperationError
	if errors.As(err, &opErrTyped) {
		code := VectorStoreBootstrapErrorStoreInitFailed
		if opErrTyped.Code == qdrant.OperationErrorTransportFailed || opErrTyped.Code == qdrant.OperationErrorTimeout {
			code = VectorStoreBootstrapErrorConnectFailed
		}
		return &VectorStoreBootstrapError{
			Code:       code,
			Collection: collection,
			Cause:      err,
		}
	}

	errLower := strings.ToLower(err.Error())
	if strings.Contains(errLower, "ready check") || strings.Contains(errLower, "connection refused") {
		return &VectorStoreBootstrapError{
			Code:       VectorStoreBootstrapErrorConnectFailed,
			Collection: collection,
			Cause:      err,
		}
	}

	return &VectorStoreBootstrapError{
		Code:       VectorStoreBootstrapErrorStoreInitFailed,
		Collection: collection,
		Cause:      err,
	}
}

func vectorStoreBootstrapErrorCode(err error) VectorStoreBootstrapErrorCode {
	var bootstrapErr *VectorStoreBootstrapError
	if errors.As(err, &bootstrapErr) {
		if bootstrapErr.Code != "" {
			return bootstrapErr.Code
		}
	}
	return VectorStoreBootstrapErrorStoreInitFailed
}
