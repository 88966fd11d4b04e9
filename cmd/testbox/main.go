package main

import (
	"os"

	"github.com/rickgorman/testbox/internal/ui"
)

const version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		ui.Fail("%v", err)
		os.Exit(1)
	}
}
