// Command mediacheck verifies that the external binaries the extraction
// pipelines depend on (ffmpeg, soffice) are installed and runnable with
// the current configuration. Run it in the serving image at build or
// deploy time, before traffic does it for you.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/telansky/multigpt/internal/platform/localmedia"
	"github.com/telansky/multigpt/internal/platform/logger"
)

func main() {
	_ = godotenv.Load()

	log, err := logger.New(os.Getenv("LOG_MODE"))
	if err != nil {
		fmt.Printf("failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tools := localmedia.New(localmedia.OptionsFromEnv(), log)
	if err := tools.AssertReady(ctx); err != nil {
		log.Error("media tooling not ready", "error", err)
		os.Exit(1)
	}
	log.Info("media tooling ready")
}
