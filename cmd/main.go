package main

import (
	"context"
	"fmt"
	"os"

	"github.com/docuchat/backend/internal/app"
)

func main() {
	ctx := context.Background()

	application, err := app.New(ctx)
	if err != nil {
		fmt.Printf("Failed to init app: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	if err := application.Run(); err != nil {
		application.Log.Error("Server exited", "error", err)
		application.Close()
		os.Exit(1)
	}
}
