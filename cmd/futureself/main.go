// Command futureself runs agents against the structured-AI API with schema
// planning, self-aware retries and rolling memory.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
