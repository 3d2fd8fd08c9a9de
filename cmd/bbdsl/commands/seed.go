package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/chrisokchen/bbdsl-platform/internal/seed"
)

func newSeedCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "seed [dir]",
		Short: "Publish the bundled convention documents",
		Long: `Publish every *.bbdsl.yaml file in dir (default seed/conventions) as the
BBDSL Bot account. Documents whose namespace and version are already
published are skipped.

Examples:
  bbdsl seed
  bbdsl seed ./conventions --db /var/lib/bbdsl/registry.db`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "seed/conventions"
			if len(args) == 1 {
				dir = args[0]
			}

			logger := opts.logger(cmd.ErrOrStderr())
			db, err := opts.openDB(logger)
			if err != nil {
				return err
			}
			defer db.Close()

			res, err := seed.NewLoader(db, db, logger).Load(cmd.Context(), os.DirFS(dir))
			out := cmd.OutOrStdout()
			if res != nil {
				for _, key := range res.Loaded {
					green.Fprintf(out, "✔ Loaded %s\n", key)
				}
				for _, key := range res.Skipped {
					yellow.Fprintf(out, "• Skipped %s (already published)\n", key)
				}
				if len(res.Loaded)+len(res.Skipped) == 0 {
					yellow.Fprintf(out, "⚠ No %s files found in %s\n", seed.FileSuffix, dir)
				}
			}
			return err
		},
	}
}
