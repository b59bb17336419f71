package main

import (
	"os"

	"github.com/wonny/aegis-longterm/cmd/longterm/commands"
)

// main is the entry point for the long-term recommendation CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/longterm [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
