package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zjrosen/sleuth/internal/docstore"
)

var fetchOutput string

var fetchCmd = &cobra.Command{
	Use:   "fetch <dashboard|report|widget> <filename>",
	Short: "Download a generated document",
	Example: `  sleuth fetch dashboard sales_2024.html -o sales.html
  sleuth fetch widget revenue_chart.html`,
	Args: cobra.ExactArgs(2),
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().StringVarP(&fetchOutput, "output", "o", "", "write to a file instead of stdout")
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	kind, err := docstore.ParseKind(args[0])
	if err != nil {
		return err
	}

	docs, err := openDocs(cfg, flagsFromConfig())
	if err != nil {
		return err
	}

	body, err := docs.Document(cmd.Context(), kind, args[1])
	if err != nil {
		return fmt.Errorf("fetching %s %s: %w", kind, args[1], err)
	}

	if fetchOutput == "" {
		_, err = fmt.Fprint(cmd.OutOrStdout(), body)
		return err
	}
	if err := os.WriteFile(fetchOutput, []byte(body), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", fetchOutput, err)
	}
	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s (%s)\n", fetchOutput, formatSize(int64(len(body))))
	return nil
}
