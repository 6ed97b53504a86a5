// Package main is the entry point for the inferadb command-line client.
package main

import (
	"github.com/joho/godotenv"

	"github.com/inferadb/cli/internal/cli"
	"github.com/inferadb/cli/internal/logging"
)

func main() {
	// A local .env is optional; ignore a missing file.
	_ = godotenv.Load()

	logging.SetupBaseLogger()
	cli.Execute()
}
