package commands

import (
	"runtime"

	"github.com/spf13/cobra"

	executableopenapi "github.com/alexstrat/executable-openapi"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("xopenapi %s\n", executableopenapi.Version())
			cmd.Printf("  Commit:     %s\n", executableopenapi.Commit())
			cmd.Printf("  Build Time: %s\n", executableopenapi.BuildTime())
			cmd.Printf("  Go Version: %s\n", executableopenapi.GoVersion())
			cmd.Printf("  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}
