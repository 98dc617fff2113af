package main

import (
	"os"

	"github.com/weni-ai/insights/cmd/insights/cmd"
)

func main() {
	err := cmd.RootCmd().Execute()
	if err != nil {
		os.Exit(1)
	}
}
