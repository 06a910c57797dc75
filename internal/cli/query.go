package cli

import (
	"fmt"

	"github.com/nasasaki/LAPIS/pkg/memdb"
	"github.com/nasasaki/LAPIS/pkg/model"
	"github.com/spf13/cobra"
)

type queryOptions struct {
	Country      string
	PangoLineage string
	Count        bool
}

func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &queryOptions{}

	cmd := &cobra.Command{
		Use:   "query <variant-query>",
		Short: "Print the ids of samples matching a variant query",
		Example: `  lapis query 'B.1.1.7* & !S:501Y'
  lapis query --country Switzerland --count '23403G'`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := model.SampleFilter{Country: opts.Country, PangoLineage: opts.PangoLineage}
			if len(args) == 1 {
				f.VariantQuery = args[0]
			}
			return runQuery(cmd, rootOpts, opts, f)
		},
	}

	cmd.Flags().StringVar(&opts.Country, "country", "", "restrict to a country")
	cmd.Flags().StringVar(&opts.PangoLineage, "pango-lineage", "", "restrict to a lineage, e.g. BA.2*")
	cmd.Flags().BoolVarP(&opts.Count, "count", "c", false, "print only the number of matches")
	return cmd
}

func runQuery(cmd *cobra.Command, rootOpts *RootOptions, opts *queryOptions, f model.SampleFilter) error {
	ldb, err := openDB(rootOpts.Config.DBPath, false)
	if err != nil {
		return err
	}
	defer ldb.Close()

	svc := model.NewSampleService(memdb.NewManager(ldb))
	ids, err := svc.FilterIDs(cmd.Context(), f)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.Count {
		fmt.Fprintln(out, len(ids))
		return nil
	}
	for _, id := range ids {
		fmt.Fprintln(out, id)
	}
	return nil
}
