// Command kaleido renders the feedback visualiser in a window, or headless on the CPU.
package main

import (
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
