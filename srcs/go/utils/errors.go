package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// ExitErr reports err with the location of its caller and exits. It serves
// failures that happen before the logger is configured.
func ExitErr(err error) {
	_, file, line, _ := runtime.Caller(1)
	fmt.Fprintf(os.Stderr, "exit on error: %v at %s:%d\n", err, filepath.Base(file), line)
	os.Exit(1)
}
