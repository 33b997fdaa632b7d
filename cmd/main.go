package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/aonescu/tip/internal/app"
)

func main() {
	if err := app.NewCommand().Execute(); err != nil {
		var exitErr *app.ExitError
		if errors.As(err, &exitErr) {
			// The JSON result already carries the details; the code is the
			// only signal left to emit.
			os.Exit(exitErr.Code)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
