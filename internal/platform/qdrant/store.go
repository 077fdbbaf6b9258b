package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/donbr-claude-code/starting-ragchatbot-codebase/internal/platform/ctxutil"
	"github.com/donbr-claude-code/starting-ragchatbot-codebase/internal/platform/logger"
)

const (
	payloadPointIDKey = "_rag_point_id"
	maxErrorBodyBytes = 1024
	defaultDistance   = "Cosine"
)

var pointIDNamespaceUUID = uuid.MustParse("8b6f5ae2-4c1d-43a9-9f3e-2d7c90a1b5e4")

// Point is one vector with its logical ID and payload.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// Match is one search hit. Score is a similarity where higher is closer
// regardless of the collection's distance metric.
type Match struct {
	ID      string
	Score   float64
	Payload map[string]any
}

// StoredPoint is a point fetched without a query vector.
type StoredPoint struct {
	ID      string
	Payload map[string]any
}

// Store is a collection-scoped Qdrant client.
type Store interface {
	Collection() string
	EnsureCollection(ctx context.Context) error
	DeleteCollection(ctx context.Context) error
	Upsert(ctx context.Context, points []Point) error
	Query(ctx context.Context, vector []float32, topK int, filter map[string]any) ([]Match, error)
	// QueryWithMinScore is Query with a server-side similarity floor; hits
	// scoring below minScore are dropped by the engine. minScore <= 0 disables
	// the floor.
	QueryWithMinScore(ctx context.Context, vector []float32, topK int, filter map[string]any, minScore float64) ([]Match, error)
	Retrieve(ctx context.Context, ids []string) ([]StoredPoint, error)
	Scroll(ctx context.Context, limit int) ([]StoredPoint, error)
	Count(ctx context.Context) (int, error)
}

type store struct {
	log      *logger.Logger
	cfg      Config
	baseURL  string
	distance string
	http     *http.Client
}

type qdrantEnvelope struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
	Time   float64         `json:"time"`
}

type qdrantSearchResultItem struct {
	ID      json.RawMessage `json:"id"`
	Score   float64         `json:"score"`
	Payload map[string]any  `json:"payload"`
}

func New(log *logger.Logger, cfg Config) (Store, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	s := &store{
		log:      log.With("service", "QdrantStore", "collection", cfg.Collection),
		cfg:      cfg,
		baseURL:  strings.TrimRight(cfg.URL, "/"),
		distance: defaultDistance,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	if err := s.verifyReady(context.Background()); err != nil {
		return nil, err
	}

	log.Info(
		"Qdrant store ready",
		"url", s.baseURL,
		"collection", cfg.Collection,
		"vector_dim", cfg.VectorDim,
	)
	return s, nil
}

func (s *store) Collection() string { return s.cfg.Collection }

func (s *store) verifyReady(ctx context.Context) error {
	const op = "bootstrap_verify"

	readyReq, err := http.NewRequestWithContext(ctxutil.Default(ctx), http.MethodGet, s.baseURL+"/readyz", nil)
	if err != nil {
		return opErr(op, OperationErrorTransportFailed, "build ready request failed", err)
	}
	readyResp, err := s.http.Do(readyReq)
	if err != nil {
		return classifyHTTPCallError(op, "qdrant ready check failed", err)
	}
	_ = readyResp.Body.Close()
	if readyResp.StatusCode < 200 || readyResp.StatusCode >= 300 {
		return &OperationError{
			Code:       OperationErrorQueryFailed,
			Operation:  op,
			StatusCode: readyResp.StatusCode,
			Message:    fmt.Sprintf("qdrant ready check returned status=%d", readyResp.StatusCode),
		}
	}
	return nil
}

type collectionInfo struct {
	Config struct {
		Params struct {
			Vectors struct {
				Size     int    `json:"size"`
				Distance string `json:"distance"`
			} `json:"vectors"`
		} `json:"params"`
	} `json:"config"`
}

// EnsureCollection creates the collection when absent and verifies the vector
// dimension when it already exists.
func (s *store) EnsureCollection(ctx context.Context) error {
	const op = "ensure_collection"

	var info collectionInfo
	err := s.doJSON(ctx, op, http.MethodGet, s.collectionPath(""), nil, &info)
	if err == nil {
		size := info.Config.Params.Vectors.Size
		if size != 0 && size != s.cfg.VectorDim {
			return &OperationError{
				Code:      OperationErrorValidation,
				Operation: op,
				Message: fmt.Sprintf(
					"qdrant collection %q vector size mismatch: expected=%d actual=%d",
					s.cfg.Collection,
					s.cfg.VectorDim,
					size,
				),
			}
		}
		if d := strings.TrimSpace(info.Config.Params.Vectors.Distance); d != "" {
			s.distance = d
		}
		return nil
	}
	if !IsNotFound(err) {
		return err
	}

	createReq := map[string]any{
		"vectors": map[string]any{
			"size":     s.cfg.VectorDim,
			"distance": defaultDistance,
		},
	}
	if err := s.doJSON(ctx, op, http.MethodPut, s.collectionPath(""), createReq, nil); err != nil {
		return err
	}
	s.distance = defaultDistance
	s.log.Info("Qdrant collection created", "vector_dim", s.cfg.VectorDim, "distance", s.distance)
	return nil
}

func (s *store) DeleteCollection(ctx context.Context) error {
	const op = "delete_collection"
	err := s.doJSON(ctx, op, http.MethodDelete, s.collectionPath(""), nil, nil)
	if err != nil && !IsNotFound(err) {
		return err
	}
	return nil
}

func (s *store) Upsert(ctx context.Context, points []Point) error {
	const op = "upsert"
	if len(points) == 0 {
		return nil
	}

	wire := make([]map[string]any, 0, len(points))
	for _, p := range points {
		id := strings.TrimSpace(p.ID)
		if id == "" {
			return opErr(op, OperationErrorValidation, "point id is required", nil)
		}
		if len(p.Vector) == 0 {
			return opErr(op, OperationErrorValidation, fmt.Sprintf("point %q has empty vector", id), nil)
		}
		if s.cfg.VectorDim > 0 && len(p.Vector) != s.cfg.VectorDim {
			return opErr(
				op,
				OperationErrorValidation,
				fmt.Sprintf("point %q dimension mismatch: expected=%d got=%d", id, s.cfg.VectorDim, len(p.Vector)),
				nil,
			)
		}
		payload := clonePayload(p.Payload)
		payload[payloadPointIDKey] = id
		wire = append(wire, map[string]any{
			"id":      s.pointID(id),
			"vector":  p.Vector,
			"payload": payload,
		})
	}

	req := map[string]any{"points": wire}
	return s.doJSON(ctx, op, http.MethodPut, s.collectionPath("/points?wait=true"), req, nil)
}

func (s *store) Query(ctx context.Context, vector []float32, topK int, filter map[string]any) ([]Match, error) {
	return s.QueryWithMinScore(ctx, vector, topK, filter, 0)
}

func (s *store) QueryWithMinScore(ctx context.Context, vector []float32, topK int, filter map[string]any, minScore float64) ([]Match, error) {
	const op = "query"
	if len(vector) == 0 {
		return nil, opErr(op, OperationErrorValidation, "query vector required", nil)
	}
	if s.cfg.VectorDim > 0 && len(vector) != s.cfg.VectorDim {
		return nil, opErr(
			op,
			OperationErrorValidation,
			fmt.Sprintf("query vector dimension mismatch: expected=%d got=%d", s.cfg.VectorDim, len(vector)),
			nil,
		)
	}
	if topK <= 0 {
		topK = 10
	}

	qdrantFilter, err := s.translateQueryFilter(filter)
	if err != nil {
		var opErrTyped *OperationError
		if errors.As(err, &opErrTyped) && opErrTyped.Code == OperationErrorUnsupportedFilter {
			s.log.Warn("qdrant query filter unsupported", "error", err)
		}
		return nil, err
	}

	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
		"with_vector":  false,
	}
	if qdrantFilter != nil {
		req["filter"] = qdrantFilter
	}
	if minScore > 0 {
		req["score_threshold"] = minScore
	}

	var rawResults []qdrantSearchResultItem
	if err := s.doJSON(ctx, op, http.MethodPost, s.collectionPath("/points/search"), req, &rawResults); err != nil {
		return nil, err
	}

	out := make([]Match, 0, len(rawResults))
	for _, item := range rawResults {
		id := s.extractPointID(item.ID, item.Payload)
		if id == "" {
			continue
		}
		out = append(out, Match{
			ID:      id,
			Score:   s.normalizeScore(item.Score),
			Payload: item.Payload,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score == out[j].Score {
			return out[i].ID < out[j].ID
		}
		return out[i].Score > out[j].Score
	})
	return out, nil
}

func (s *store) Retrieve(ctx context.Context, ids []string) ([]StoredPoint, error) {
	const op = "retrieve"
	if len(ids) == 0 {
		return []StoredPoint{}, nil
	}

	wireIDs := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		logical := strings.TrimSpace(id)
		if logical == "" {
			continue
		}
		pointID := s.pointID(logical)
		if _, exists := seen[pointID]; exists {
			continue
		}
		seen[pointID] = struct{}{}
		wireIDs = append(wireIDs, pointID)
	}
	if len(wireIDs) == 0 {
		return []StoredPoint{}, nil
	}

	req := map[string]any{
		"ids":          wireIDs,
		"with_payload": true,
		"with_vector":  false,
	}
	var rawResults []qdrantSearchResultItem
	if err := s.doJSON(ctx, op, http.MethodPost, s.collectionPath("/points"), req, &rawResults); err != nil {
		return nil, err
	}

	out := make([]StoredPoint, 0, len(rawResults))
	for _, item := range rawResults {
		id := s.extractPointID(item.ID, item.Payload)
		if id == "" {
			continue
		}
		out = append(out, StoredPoint{ID: id, Payload: item.Payload})
	}
	return out, nil
}

func (s *store) Scroll(ctx context.Context, limit int) ([]StoredPoint, error) {
	const op = "scroll"
	if limit <= 0 {
		limit = 256
	}

	out := []StoredPoint{}
	var offset json.RawMessage
	for {
		req := map[string]any{
			"limit":        limit,
			"with_payload": true,
			"with_vector":  false,
		}
		if len(offset) > 0 && string(offset) != "null" {
			req["offset"] = offset
		}

		var page struct {
			Points         []qdrantSearchResultItem `json:"points"`
			NextPageOffset json.RawMessage          `json:"next_page_offset"`
		}
		if err := s.doJSON(ctx, op, http.MethodPost, s.collectionPath("/points/scroll"), req, &page); err != nil {
			return nil, err
		}

		for _, item := range page.Points {
			id := s.extractPointID(item.ID, item.Payload)
			if id == "" {
				continue
			}
			out = append(out, StoredPoint{ID: id, Payload: item.Payload})
		}

		if len(page.NextPageOffset) == 0 || string(page.NextPageOffset) == "null" || len(page.Points) == 0 {
			return out, nil
		}
		offset = page.NextPageOffset
	}
}

func (s *store) Count(ctx context.Context) (int, error) {
	const op = "count"
	req := map[string]any{"exact": true}
	var result struct {
		Count int `json:"count"`
	}
	if err := s.doJSON(ctx, op, http.MethodPost, s.collectionPath("/points/count"), req, &result); err != nil {
		return 0, err
	}
	return result.Count, nil
}

func (s *store) doJSON(ctx context.Context, op, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(in); err != nil {
			return opErr(op, OperationErrorEncodeFailed, "encode request failed", err)
		}
		body = &buf
	}

	req, err := http.NewRequestWithContext(ctxutil.Default(ctx), method, s.baseURL+path, body)
	if err != nil {
		return opErr(op, OperationErrorTransportFailed, "build request failed", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return classifyHTTPCallError(op, "qdrant request failed", err)
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 10*maxErrorBodyBytes))
	if readErr != nil {
		return opErr(op, OperationErrorDecodeFailed, "read response failed", readErr)
	}
	if resp.StatusCode == http.StatusNotFound {
		return &OperationError{
			Code:       OperationErrorNotFound,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("qdrant http status=%d body=%q", resp.StatusCode, truncateBody(raw)),
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &OperationError{
			Code:       OperationErrorQueryFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("qdrant http status=%d body=%q", resp.StatusCode, truncateBody(raw)),
		}
	}

	var envelope qdrantEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode qdrant envelope failed", err)
	}
	if statusErr := parseEnvelopeStatus(envelope.Status); statusErr != "" {
		return &OperationError{
			Code:       OperationErrorQueryFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    statusErr,
		}
	}

	if out == nil {
		return nil
	}
	if len(envelope.Result) == 0 || string(envelope.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode qdrant result failed", err)
	}
	return nil
}

func classifyHTTPCallError(op, message string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return opErr(op, OperationErrorTimeout, message, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return opErr(op, OperationErrorTimeout, message, err)
	}
	return opErr(op, OperationErrorTransportFailed, message, err)
}

func parseEnvelopeStatus(raw json.RawMessage) string {
	status := strings.TrimSpace(string(raw))
	if status == "" || status == "null" {
		return ""
	}

	var statusString string
	if err := json.Unmarshal(raw, &statusString); err == nil {
		if strings.EqualFold(statusString, "ok") {
			return ""
		}
		return fmt.Sprintf("qdrant status=%q", statusString)
	}

	var statusObject struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &statusObject); err == nil {
		if strings.TrimSpace(statusObject.Error) != "" {
			return strings.TrimSpace(statusObject.Error)
		}
	}

	return fmt.Sprintf("qdrant status=%s", status)
}

func truncateBody(raw []byte) string {
	if len(raw) <= maxErrorBodyBytes {
		return string(raw)
	}
	return string(raw[:maxErrorBodyBytes]) + "..."
}

func clonePayload(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// pointID maps a logical ID to a deterministic UUID so re-ingesting the same
// document overwrites its points instead of duplicating them.
func (s *store) pointID(logicalID string) string {
	deterministic := uuid.NewSHA1(pointIDNamespaceUUID, []byte(s.cfg.Collection+"|"+logicalID))
	return deterministic.String()
}

func (s *store) collectionPath(suffix string) string {
	path := "/collections/" + s.cfg.Collection
	if strings.TrimSpace(suffix) == "" {
		return path
	}
	return path + suffix
}

func (s *store) translateQueryFilter(filter map[string]any) (map[string]any, error) {
	if len(filter) == 0 {
		return nil, nil
	}
	translated, err := translateFilterMap(filter)
	if err != nil {
		return nil, err
	}
	return translated.asMap(), nil
}

// extractPointID recovers the logical ID and removes the bookkeeping key so
// callers never see it in payloads.
func (s *store) extractPointID(rawID json.RawMessage, payload map[string]any) string {
	if payloadID, ok := payload[payloadPointIDKey].(string); ok {
		delete(payload, payloadPointIDKey)
		id := strings.TrimSpace(payloadID)
		if id != "" {
			return id
		}
	}
	// Payload ID should always be present because Upsert writes it; the raw
	// point UUID is only a fallback for points written by other writers.
	return decodePointID(rawID)
}

func decodePointID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var idString string
	if err := json.Unmarshal(raw, &idString); err == nil {
		return strings.TrimSpace(idString)
	}
	var idNumber int64
	if err := json.Unmarshal(raw, &idNumber); err == nil {
		return fmt.Sprintf("%d", idNumber)
	}
	return strings.TrimSpace(string(raw))
}

func (s *store) normalizeScore(score float64) float64 {
	switch strings.ToLower(strings.TrimSpace(s.distance)) {
	case "euclid", "manhattan":
		if score < 0 {
			score = -score
		}
		return 1.0 / (1.0 + score)
	default:
		return score
	}
}
