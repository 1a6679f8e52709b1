package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/spigell/resume-ranker/cmd"
)

func main() {
	// .env is optional; real environment variables always win.
	_ = godotenv.Load()

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
