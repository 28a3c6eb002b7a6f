// Package main provides the operator binary: the control plane server and
// its administration CLI.
package main

import (
	"os"

	"blackroad.io/operator/cmd/operator/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
