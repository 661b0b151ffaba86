package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/eioku/eioku-backend/internal/app"
	"github.com/eioku/eioku-backend/internal/utils"
)

func main() {
	_ = godotenv.Load()

	a, err := app.New()
	if err != nil {
		fmt.Printf("Failed to initialize app: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	runServer := utils.GetEnvAsBool("RUN_SERVER", true, a.Log)
	runWorkers := utils.GetEnvAsBool("RUN_WORKERS", true, a.Log)

	// Start background components (worker pools + sweeper + reconciler)
	a.Start(runWorkers)

	if runServer {
		port := utils.GetEnv("PORT", "8080", a.Log)
		fmt.Printf("Server listening on :%s\n", port)
		if err := a.Run(":" + port); err != nil {
			a.Log.Warn("Server failed", "error", err)
		}
		return
	}

	// Worker-only container: keep process alive.
	select {}
}
