// Command sitecnctl talks to a running sitecnd: it sends inbound messages and
// tails the broadcast stream.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "sitecnctl:", err)
		os.Exit(1)
	}
}
