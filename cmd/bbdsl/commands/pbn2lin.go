package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/chrisokchen/bbdsl-platform/internal/pbn"
)

func newPBN2LINCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pbn2lin [file]",
		Short: "Convert a PBN board to a LIN record",
		Long: `Read a PBN board from file, or from stdin when file is omitted or "-",
and print it as a single LIN record.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			raw, err := io.ReadAll(in)
			if err != nil {
				return fmt.Errorf("reading PBN: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), pbn.ToLIN(string(raw)))
			return err
		},
	}
}
