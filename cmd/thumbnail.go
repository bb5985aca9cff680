package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newThumbnailCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "thumbnail <arxiv-id>",
		Short: "Renders the first page of an arXiv preprint and prints its path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			path, err := appInstance.Thumbnail(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), path)
			return err
		},
	}
}
