package main

import (
	"os"

	"github.com/adalundhe/stargrid/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
