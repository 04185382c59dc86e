// Command xopenapi serves OpenAPI documents: every operation answers with
// the responses its document declares, after request validation.
package main

import (
	"fmt"
	"os"

	"github.com/alexstrat/executable-openapi/cmd/xopenapi/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
