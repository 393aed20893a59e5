package main

import (
	"fmt"
	"os"
	"strings"
)

// Simulates a llama-server that dies during model load with a long
// diagnostic on stderr.
func main() {
	fmt.Fprint(os.Stderr, "OOM: failed to allocate model buffer. "+strings.Repeat("ggml_backend_alloc failed; ", 20))
	os.Exit(1)
}
