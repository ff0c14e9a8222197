package main

import (
	"os"

	"github.com/maxkimambo/assetpipe/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		// Execute has already reported the error
		os.Exit(1)
	}
}
