package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/masa061580/pubmed-search-assistant/internal/store"
)

func newTranscriptCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "transcript <object-key>",
		Short: "Print an archived conversation transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.cfg.ArchiveEnabled() {
				return errors.New("MINIO_ENDPOINT is not set")
			}
			archive, err := store.NewMinioStore(cmd.Context(),
				a.cfg.MinioEndpoint, a.cfg.MinioAccessKey,
				a.cfg.MinioSecretKey, a.cfg.MinioBucket, a.cfg.MinioUseSSL)
			if err != nil {
				return err
			}
			t, err := archive.Transcript(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), t)
		},
	}
}
