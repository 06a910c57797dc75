package cli

import (
	"fmt"

	"github.com/nasasaki/LAPIS/internal/util"
	"github.com/nasasaki/LAPIS/logger"
	"github.com/nasasaki/LAPIS/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	var shardSize int

	cmd := &cobra.Command{
		Use:   "seed <dataset.yaml>",
		Short: "Replace the database contents with a YAML dataset",
		Long: `Replace the database contents with a YAML dataset.

Sequences are transposed into per-position columns and compressed against
the reference. The new data version becomes visible to running servers on
their next poll.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if !util.FileExists(path) {
				return fmt.Errorf("dataset %s not found", path)
			}
			ds, err := db.LoadFixture(path)
			if err != nil {
				return err
			}

			ldb, err := openDB(rootOpts.Config.DBPath, true)
			if err != nil {
				return err
			}
			defer ldb.Close()

			if err := ldb.WriteDataset(cmd.Context(), ds, shardSize); err != nil {
				return err
			}
			logger.Info("Seeded database",
				zap.String("db", rootOpts.Config.DBPath),
				zap.Int("samples", len(ds.Samples)),
				zap.Int64("version", ds.Version),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d samples at version %d\n", len(ds.Samples), ds.Version)
			return nil
		},
	}

	cmd.Flags().IntVar(&shardSize, "shard-size", db.DefaultShardSize, "samples per insertion shard")
	return cmd
}
