package main

import (
	"os"

	gleanercmder "github.com/gleanerhq/gleaner/cmd/gleaner"
)

func main() {
	cmd := gleanercmder.NewGleanerCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
