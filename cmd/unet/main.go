package main

import (
	"context"
	"log/slog"
	"os"
)

func main() {
	if err := NewCLI().ExecuteContext(context.Background()); err != nil {
		slog.Error("unet", "error", err)
		os.Exit(1)
	}
}
