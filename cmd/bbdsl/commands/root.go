// Package commands implements the bbdsl CLI.
package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/chrisokchen/bbdsl-platform/internal/repository/sqlite"
	"github.com/chrisokchen/bbdsl-platform/internal/server"
)

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
)

// options are the persistent flags shared by every subcommand.
type options struct {
	dbPath  string
	verbose bool
}

// NewRootCmd builds the command tree. Each call returns a fresh tree, so
// tests can run commands side by side.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "bbdsl",
		Short: "Operator tools for the BBDSL convention registry",
		Long: `bbdsl manages a registry database outside the HTTP server.

Commands:
  migrate   apply pending schema migrations
  seed      publish the bundled convention documents
  pbn2lin   convert a PBN board to BBO's LIN format`,
		Version:       server.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	defaultDB := os.Getenv("DB_PATH")
	if defaultDB == "" {
		defaultDB = "data/bbdsl.db"
	}
	root.PersistentFlags().StringVar(&opts.dbPath, "db", defaultDB, "path of the SQLite database")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log every step")

	root.AddCommand(newMigrateCmd(opts), newSeedCmd(opts), newPBN2LINCmd())
	return root
}

// Execute runs the CLI and prints a failure in red.
func Execute() error {
	root := NewRootCmd()
	err := root.Execute()
	if err != nil {
		red.Fprintf(root.ErrOrStderr(), "Error: %v\n", err)
	}
	return err
}

func (o *options) logger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// openDB opens the database, creating its directory first. Opening applies
// pending migrations.
func (o *options) openDB(logger *slog.Logger) (*sqlite.DB, error) {
	if o.dbPath != sqlite.MemoryPath {
		if err := os.MkdirAll(filepath.Dir(o.dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	return sqlite.New(o.dbPath, logger)
}
