package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/masa061580/pubmed-search-assistant/internal/pubmed"
)

func newSearchCmd(a *app) *cobra.Command {
	var maxResults int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Convert a free-text query to search terms and run it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			expr := pubmed.Convert(strings.Join(args, " "))
			res, err := a.client(cmd.ErrOrStderr()).Search(cmd.Context(), expr, maxResults)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().IntVarP(&maxResults, "max-results", "n", pubmed.DefaultMaxResults, "papers to fetch in full")
	return cmd
}
