package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newInspireCmd() *cobra.Command {
	var in, out string
	cmd := &cobra.Command{
		Use:   "inspire",
		Short: "Expands INSPIRE-HEP author seeds into citation sources",
		Long: `Reads a YAML list of seeds, each carrying an INSPIRE author
identifier in its bai field, and writes one citation source per eligible
paper. Query results are cached for a week.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			seeds, err := readEntries(in)
			if err != nil {
				return err
			}
			sources, summary, err := appInstance.ExpandSeeds(cmd.Context(), seeds)
			if err != nil {
				return fmt.Errorf("expand seeds: %w", err)
			}
			if err := writeEntries(out, sources); err != nil {
				return err
			}
			appInstance.Logger().Info("inspire command finished",
				zap.String("out", out),
				zap.Int("sources", len(sources)),
				zap.Int("failed", summary.Failed),
			)
			return nil
		},
	}
	cmd.Flags().StringVar(&in, "in", "_data/inspire-hep.yaml", "seed list to read")
	cmd.Flags().StringVar(&out, "out", "_data/sources.yaml", "where to write the sources")
	return cmd
}
