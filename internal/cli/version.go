package cli

import (
	"errors"
	"fmt"

	"github.com/nasasaki/LAPIS/internal/util"
	"github.com/nasasaki/LAPIS/pkg/db"
	"github.com/spf13/cobra"
)

func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the program and data versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "lapis %s\n", Version)

			path := rootOpts.Config.DBPath
			if !util.FileExists(path) {
				fmt.Fprintln(out, "data version: none")
				return nil
			}
			ldb, err := db.Open(path)
			if err != nil {
				return err
			}
			defer ldb.Close()

			v, err := ldb.CurrentDataVersion(cmd.Context())
			switch {
			case errors.Is(err, db.ErrNoDataVersion):
				fmt.Fprintln(out, "data version: none")
			case err != nil:
				return err
			default:
				fmt.Fprintf(out, "data version: %d\n", v)
			}
			return nil
		},
	}
}
