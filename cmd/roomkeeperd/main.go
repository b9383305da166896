package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/hitoshi/roomkeeper/internal/app"
)

func main() {
	// .envはローカル開発用。存在しない場合は環境変数をそのまま使う。
	_ = godotenv.Load()

	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		slog.Error("application exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
