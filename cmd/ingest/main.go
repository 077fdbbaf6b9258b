package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/donbr-claude-code/starting-ragchatbot-codebase/internal/app"
)

func main() {
	path := flag.String("path", "", "folder of course documents to index (default: DOCS_PATH)")
	clear := flag.Bool("clear", false, "drop existing course data before indexing")
	flag.Parse()

	ingest, err := app.NewIngest()
	if err != nil {
		fmt.Printf("Failed to start ingest: %v\n", err)
		os.Exit(1)
	}

	folder := *path
	if folder == "" {
		folder = ingest.Cfg.DocsPath
	}

	courses, chunks, err := ingest.RAG.AddCourseFolder(context.Background(), folder, *clear)
	if err != nil {
		ingest.Log.Error("Ingest failed", "path", folder, "error", err)
		ingest.Close()
		os.Exit(1)
	}
	ingest.Log.Info("Ingest complete", "path", folder, "courses", courses, "chunks", chunks)
	ingest.Close()
}
