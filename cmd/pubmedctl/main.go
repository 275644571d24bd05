// Command pubmedctl runs PubMed searches and refinements from the shell,
// printing the results as JSON. It talks to E-utilities directly and needs no
// language model.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/masa061580/pubmed-search-assistant/internal/config"
	"github.com/masa061580/pubmed-search-assistant/internal/pubmed"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app carries what the subcommands share.
type app struct {
	cfg     *config.Config
	baseURL string
	verbose bool
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:          "pubmedctl",
		Short:        "Search PubMed the way the chat assistant does",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.baseURL, "base-url", "", "E-utilities base URL (default from NCBI_BASE_URL)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log requests to stderr")

	root.AddCommand(
		newSearchCmd(a),
		newRefineCmd(a),
		newConvertCmd(),
		newTranscriptCmd(a),
	)
	return root
}

func (a *app) client(stderr io.Writer) *pubmed.Client {
	level := slog.LevelWarn
	if a.verbose {
		level = slog.LevelDebug
	}
	baseURL := a.cfg.NCBIBaseURL
	if a.baseURL != "" {
		baseURL = a.baseURL
	}
	return pubmed.NewClient(pubmed.Options{
		BaseURL: baseURL,
		WebURL:  a.cfg.PubMedWebURL,
		APIKey:  a.cfg.NCBIAPIKey,
		Delay:   a.cfg.NCBIRequestDelay,
		Timeout: a.cfg.NCBITimeout,
		Logger:  slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})),
	})
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
