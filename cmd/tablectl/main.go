// Package main implements tablectl, an offline tool for table definitions,
// source rows and snapshots.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
