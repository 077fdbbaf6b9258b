package qdrant

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/donbr-claude-code/starting-ragchatbot-codebase/internal/platform/logger"
)

func TestStoreIntegrationAgainstLocalQdrant(t *testing.T) {
	if !qdrantIntegrationEnabled() {
		t.Skip("set QDRANT_INTEGRATION=1 to run Qdrant integration tests")
	}

	baseURL := qdrantIntegrationURL()
	if err := waitForQdrantReady(baseURL); err != nil {
		t.Fatalf("qdrant not ready: %v", err)
	}

	collection := "rag_it_" + strings.ReplaceAll(uuid.NewString(), "-", "")

	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(func() {
		log.Sync()
	})

	s, err := New(log, Config{
		URL:        baseURL,
		Collection: collection,
		VectorDim:  3,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	if err := s.EnsureCollection(ctx); err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}
	t.Cleanup(func() {
		_ = s.DeleteCollection(context.Background())
	})

	if err := s.Upsert(ctx, []Point{
		{
			ID:     "Intro_to_Go_0",
			Vector: []float32{1, 0, 0},
			Payload: map[string]any{
				"course_title":  "Intro to Go",
				"lesson_number": 1,
				"chunk_index":   0,
			},
		},
		{
			ID:     "Intro_to_Go_1",
			Vector: []float32{0, 1, 0},
			Payload: map[string]any{
				"course_title":  "Intro to Go",
				"lesson_number": 2,
				"chunk_index":   1,
			},
		},
	}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	filter := map[string]any{
		"$and": []any{
			map[string]any{"course_title": "Intro to Go"},
			map[string]any{"lesson_number": 1},
		},
	}
	matches, err := s.Query(ctx, []float32{1, 0, 0}, 5, filter)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("Query filtered: want=1 match got=%d", len(matches))
	}
	if matches[0].ID != "Intro_to_Go_0" {
		t.Fatalf("Query first id: want=%q got=%q", "Intro_to_Go_0", matches[0].ID)
	}

	// The orthogonal point scores ~0 cosine similarity, so the floor drops it.
	floored, err := s.QueryWithMinScore(ctx, []float32{1, 0, 0}, 5, nil, 0.5)
	if err != nil {
		t.Fatalf("QueryWithMinScore: %v", err)
	}
	if len(floored) != 1 || floored[0].ID != "Intro_to_Go_0" {
		t.Fatalf("QueryWithMinScore: want=[Intro_to_Go_0] got=%v", floored)
	}

	points, err := s.Retrieve(ctx, []string{"Intro_to_Go_1"})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(points) != 1 || points[0].ID != "Intro_to_Go_1" {
		t.Fatalf("Retrieve: want=[Intro_to_Go_1] got=%v", points)
	}

	n, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 2 {
		t.Fatalf("Count: want=2 got=%d", n)
	}

	all, err := s.Scroll(ctx, 1)
	if err != nil {
		t.Fatalf("Scroll: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("Scroll: want=2 points got=%d", len(all))
	}

	if err := s.DeleteCollection(ctx); err != nil {
		t.Fatalf("DeleteCollection: %v", err)
	}
	if err := s.EnsureCollection(ctx); err != nil {
		t.Fatalf("EnsureCollection after delete: %v", err)
	}
	n, err = s.Count(ctx)
	if err != nil {
		t.Fatalf("Count after recreate: %v", err)
	}
	if n != 0 {
		t.Fatalf("Count after recreate: want=0 got=%d", n)
	}
}

func qdrantIntegrationEnabled() bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv("QDRANT_INTEGRATION")))
	return raw == "1" || raw == "true" || raw == "yes"
}

func qdrantIntegrationURL() string {
	if url := strings.TrimSpace(os.Getenv("QDRANT_INTEGRATION_URL")); url != "" {
		return strings.TrimRight(url, "/")
	}
	if url := strings.TrimSpace(os.Getenv("QDRANT_URL")); url != "" {
		return strings.TrimRight(url, "/")
	}
	return "http://127.0.0.1:6333"
}

func waitForQdrantReady(baseURL string) error {
	client := &http.Client{Timeout: 2 * time.Second}
	readyURL := baseURL + "/readyz"
	var lastErr error
	for i := 0; i < 20; i++ {
		req, err := http.NewRequest(http.MethodGet, readyURL, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil && resp != nil {
			_ = resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return nil
			}
			lastErr = fmt.Errorf("status=%d", resp.StatusCode)
		} else if err != nil {
			lastErr = err
		}
		time.Sleep(200 * time.Millisecond)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("timeout")
	}
	return fmt.Errorf("ready check failed for %s: %w", readyURL, lastErr)
}
