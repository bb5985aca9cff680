package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newResolveCmd() *cobra.Command {
	var in, out string
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Adds an image to every citation entry that lacks one",
		Long: `Reads a YAML list of citation entries, resolves an image for each
entry concurrently and writes the list back in the same order. Entries with
skip_image or an existing image are left alone.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if out == "" {
				out = in
			}
			entries, err := readEntries(in)
			if err != nil {
				return err
			}
			resolved, summary := appInstance.ResolveImages(cmd.Context(), entries)
			if err := writeEntries(out, resolved); err != nil {
				return err
			}
			appInstance.Logger().Info("resolve command finished",
				zap.String("out", out),
				zap.Int("images", summary.Images),
				zap.Int("failed", summary.Failed),
			)
			return nil
		},
	}
	cmd.Flags().StringVar(&in, "in", "_data/citations.yaml", "citation list to read")
	cmd.Flags().StringVar(&out, "out", "", "where to write the result (default: overwrite --in)")
	return cmd
}
