package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newTaxonomyCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "taxonomy",
		Short: "Print the active category taxonomy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tax, err := a.loadTaxonomy()
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CATEGORY\tSUBCATEGORIES")
			for _, c := range tax.Categories() {
				subs := "-"
				if len(c.Subcategories) > 0 {
					subs = strings.Join(c.Subcategories, ", ")
				}
				fmt.Fprintf(tw, "%s\t%s\n", c.Name, subs)
			}
			return tw.Flush()
		},
	}
}
