// Package main is netctl, an operator CLI that drives port allocation for
// an instance directly against the configured network backend.
//
// Import Path: netbinder.io/netbinder/cmd/netctl
package main

import (
	"os"
)

func main() {
	if c, err := newMainCmd(dial).ExecuteC(); err != nil {
		c.PrintErrln("Error:", err)
		os.Exit(1)
	}
}
