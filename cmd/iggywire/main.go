package main

import (
	"fmt"
	"os"

	"github.com/danmuck/iggywire/internal/logging"
)

func main() {
	logging.ConfigureRuntime()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "iggywire: %v\n", err)
		os.Exit(1)
	}
}
