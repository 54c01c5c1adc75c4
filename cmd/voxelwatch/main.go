// Command voxelwatch scans the public internet for Minecraft servers
// over the Server List Ping protocol and persists what it finds.
package main

import (
	"os"

	"github.com/voxelwatch/scanner/internal/apperr"
)

func main() {
	err := newRootCmd().Execute()
	os.Exit(exitCode(err))
}

// exitCode maps a command error to the process exit status spec.md §6
// documents: 0 success, 1 runtime error, 2 configuration error, 130 on
// interrupt.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case err == errInterrupted:
		return 130
	case apperr.Is(err, apperr.Config):
		return 2
	default:
		return 1
	}
}
