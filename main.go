// Package main is the entry point for the dnsreflect DNS query reflector.
package main

import (
	"fmt"
	"os"

	"firestige.xyz/dnsreflect/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
