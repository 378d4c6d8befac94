package main

import (
	"fmt"
	"os"
)

// Populated with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "sitecnd:", err)
		os.Exit(1)
	}
}
