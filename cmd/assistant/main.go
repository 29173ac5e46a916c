package main

import (
	"os"

	"ai-trading-assistant-go/cmd/assistant/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
