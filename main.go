package main

import (
	"os"

	"github.com/homebatt/homebatt/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
