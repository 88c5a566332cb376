// Command rapport is the maintenance CLI for a rapport deployment. It reads
// the same RAPPORT_* environment as the services it supports.
package main

import (
	"fmt"
	"os"
)

func main() {
	Execute()
}

func fatal(msg string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	os.Exit(1)
}
