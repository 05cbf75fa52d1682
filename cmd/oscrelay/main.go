package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(run).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "oscrelay: %v\n", err)
		os.Exit(1)
	}
}
