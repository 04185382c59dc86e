package commands

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alexstrat/executable-openapi/internal/cliutil"
	"github.com/alexstrat/executable-openapi/parser"
	"github.com/alexstrat/executable-openapi/resolver"
	"github.com/alexstrat/executable-openapi/router"
)

func newRoutesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "routes [document]",
		Short: "List the operations of a document in matching order",
		Long: `List the operations of a document. Paths are listed in the order requests
are matched against them: most concrete first, then in document order.

Example:
  xopenapi routes openapi.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, args)
			if err != nil {
				return err
			}
			doc, err := parser.ParseFile(cfg.Document)
			if err != nil {
				return err
			}
			return printRoutes(cmd.Context(), cmd, doc)
		},
	}
}

func printRoutes(ctx context.Context, cmd *cobra.Command, doc *parser.Document) error {
	set, err := router.NewPathMatcherSet(doc.PathTemplates())
	if err != nil {
		return err
	}
	refs := resolver.NewTyped(resolver.NewLocal(doc))

	table := cliutil.NewTable(cmd.OutOrStdout(), "METHOD", "PATH", "OPERATION", "SUMMARY")
	for _, template := range set.Templates() {
		item, err := refs.PathItem(ctx, doc.Paths[template])
		if err != nil {
			return err
		}
		for _, mo := range item.Operations() {
			table.Row(strings.ToUpper(mo.Method), template, mo.Operation.OperationID, mo.Operation.Summary)
		}
	}
	table.Flush()
	return nil
}
