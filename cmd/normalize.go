package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/dropwatch/internal/release"
	"github.com/JakeFAU/dropwatch/internal/titleid"
)

func newNormalizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "normalize <title-id>...",
		Short: "Print the base title ID of each argument",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, arg := range args {
				base, err := titleid.NormalizeString(arg)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", arg, base)
			}
			return nil
		},
	}
}

func newNFOCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "nfo <file>",
		Short: "Decode a CP437 NFO file and print the title ID it declares",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read nfo: %w", err)
			}
			id, ok := titleid.Parse(release.DecodeNFO(raw))
			if !ok {
				return fmt.Errorf("%s: no title id found", args[0])
			}
			base, err := titleid.NormalizeString(id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "title_id=%s base_title_id=%s\n", id, base)
			return nil
		},
	}
}
