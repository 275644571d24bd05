package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/masa061580/pubmed-search-assistant/internal/pubmed"
)

func newConvertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "convert <query>",
		Short: "Print the search expression for a free-text query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), pubmed.Convert(strings.Join(args, " ")))
			return err
		},
	}
}
