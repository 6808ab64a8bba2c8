package main

import (
	"os"

	grovecmder "github.com/papercomputeco/grove/cmd/grove"
)

func main() {
	cmd := grovecmder.NewGroveCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
