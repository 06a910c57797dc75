package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/nasasaki/LAPIS/internal/util"
	"github.com/nasasaki/LAPIS/logger"
	"github.com/nasasaki/LAPIS/pkg/config"
	"github.com/nasasaki/LAPIS/pkg/db"
	"github.com/spf13/cobra"
)

const Version = "0.1.0"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	DBPath   string
	LogLevel string

	// Config is filled in before any subcommand runs.
	Config config.Config
}

// NewRootCommand creates the root command for the lapis CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "lapis",
		Short: "LAPIS - Lightweight API for Sequences",
		Long:  "An in-memory query engine over viral genome sequences and their metadata.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			opts.Config = config.Load()
			if opts.DBPath != "" {
				opts.Config.DBPath = opts.DBPath
			}
			if opts.LogLevel != "" {
				opts.Config.LogLevel = opts.LogLevel
			}
			return logger.InitLogger(logger.ParseLevel(opts.Config.LogLevel))
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Sync()
		},
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "sqlite database path (overrides LAPIS_DB)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "debug|info|warn|error (overrides LAPIS_LOG_LEVEL)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewQueryCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewVersionCommand(opts))

	return cmd
}

// openDB opens the configured database, creating its directory when create is set.
func openDB(path string, create bool) (*db.LapisDB, error) {
	dir := filepath.Dir(path)
	if !util.DirExists(dir) {
		if !create {
			return nil, fmt.Errorf("database directory %s does not exist", dir)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return db.Open(path)
}
