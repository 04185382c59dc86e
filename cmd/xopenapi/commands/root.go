// Package commands implements the xopenapi subcommands.
package commands

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/alexstrat/executable-openapi/internal/config"
	"github.com/alexstrat/executable-openapi/parser"
)

// NewRootCommand returns the xopenapi command.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "xopenapi",
		Short: "Serve OpenAPI documents as validating mock servers",
		Long: `xopenapi executes OpenAPI 3 documents: requests are routed to the
operation they target, checked against its security requirements, parameters
and request body, then answered with the responses the operation declares.

Example:
  xopenapi serve openapi.yaml              # Serve over HTTP on :8080
  xopenapi serve openapi.yaml --watch      # Reload the document on change
  xopenapi mcp openapi.yaml                # Expose operations as MCP tools on stdio
  xopenapi routes openapi.yaml             # List operations in matching order`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringP("config", "c", "", "config file (default: xopenapi.yaml)")
	root.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	root.PersistentFlags().String("log-format", "text", "log format: text, json")

	root.AddCommand(newServeCommand())
	root.AddCommand(newMCPCommand())
	root.AddCommand(newRoutesCommand())
	root.AddCommand(newVersionCommand())
	return root
}

// Execute runs the xopenapi command.
func Execute() error {
	return NewRootCommand().Execute()
}

// loadConfig loads the configuration of cmd. The document argument, when
// given, overrides the configured one.
func loadConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return nil, err
	}
	if len(args) > 0 {
		cfg.Document = args[0]
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger returns the logger cfg describes, writing to w.
func newLogger(cfg config.LogConfig, w io.Writer) (*parser.SlogAdapter, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch cfg.Format {
	case "json":
		h = slog.NewJSONHandler(w, opts)
	default:
		h = slog.NewTextHandler(w, opts)
	}
	return parser.NewSlogAdapter(slog.New(h)), nil
}
