package main

import (
	"github.com/spf13/cobra"

	"github.com/masa061580/pubmed-search-assistant/internal/pubmed"
)

func newRefineCmd(a *app) *cobra.Command {
	var (
		original   string
		previous   string
		direction  string
		criteria   string
		maxResults int
		dryRun     bool
	)
	cmd := &cobra.Command{
		Use:   "refine",
		Short: "Broaden, narrow or keep a previous search expression and run it",
		RunE: func(cmd *cobra.Command, args []string) error {
			expr := pubmed.Refine(original, previous, pubmed.ParseDirection(direction), criteria)
			if dryRun {
				_, err := cmd.OutOrStdout().Write([]byte(expr + "\n"))
				return err
			}
			res, err := a.client(cmd.ErrOrStderr()).Search(cmd.Context(), expr, maxResults)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&original, "original", "", "original free-text query")
	cmd.Flags().StringVar(&previous, "previous", "", "previous search expression")
	cmd.Flags().StringVarP(&direction, "direction", "d", "keep", "increase, decrease or keep")
	cmd.Flags().StringVar(&criteria, "criteria", "", "extra criteria used when narrowing")
	cmd.Flags().IntVarP(&maxResults, "max-results", "n", pubmed.DefaultMaxResults, "papers to fetch in full")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the refined expression without searching")
	cmd.MarkFlagRequired("previous")
	return cmd
}
