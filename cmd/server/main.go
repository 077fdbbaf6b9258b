package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/donbr-claude-code/starting-ragchatbot-codebase/internal/app"
)

func main() {
	a, err := app.New()
	if err != nil {
		fmt.Printf("Failed to start application: %v\n", err)
		os.Exit(1)
	}

	if _, _, err := a.LoadCourseDocuments(context.Background()); err != nil {
		a.Log.Warn("Startup document load failed", "path", a.Cfg.DocsPath, "error", err)
	}

	addr := ":" + strconv.Itoa(a.Cfg.Port)
	a.Log.Info("Server listening", "addr", addr)
	if err := a.Run(addr); err != nil {
		a.Log.Error("Server failed", "error", err)
		a.Close()
		os.Exit(1)
	}
	a.Close()
}
