package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/zjrosen/sleuth/internal/docstore"
	"github.com/zjrosen/sleuth/internal/ui/styles"
)

var historyJSON bool

var historyCmd = &cobra.Command{
	Use:   "history [dashboards|reports|widgets]",
	Short: "List generated documents",
	Long: `List the dashboards, reports and widgets the agent has generated.
With no argument every kind is listed.`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"dashboards", "reports", "widgets"},
	RunE:      runHistory,
}

func init() {
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	kinds := docstore.Kinds()
	if len(args) == 1 {
		kind, err := docstore.ParseKind(args[0])
		if err != nil {
			return err
		}
		kinds = []docstore.Kind{kind}
	}

	docs, err := openDocs(cfg, flagsFromConfig())
	if err != nil {
		return err
	}

	listing := make(map[docstore.Kind][]docstore.Entry, len(kinds))
	for _, kind := range kinds {
		entries, err := docs.History(cmd.Context(), kind)
		if err != nil {
			return fmt.Errorf("listing %s history: %w", kind, err)
		}
		listing[kind] = entries
	}

	if historyJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(listing)
	}
	return printHistory(cmd.OutOrStdout(), kinds, listing)
}

func printHistory(w io.Writer, kinds []docstore.Kind, listing map[docstore.Kind][]docstore.Entry) error {
	headerStyle := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)

	for i, kind := range kinds {
		if i > 0 {
			_, _ = fmt.Fprintln(w)
		}
		entries := listing[kind]
		_, _ = fmt.Fprintln(w, styles.RoleStyle.Render(string(kind)+"s"))
		if len(entries) == 0 {
			_, _ = fmt.Fprintln(w, styles.MutedStyle.Render("  none"))
			continue
		}

		rows := make([][]string, 0, len(entries))
		for _, e := range entries {
			created := "-"
			if !e.CreatedAt.IsZero() {
				created = e.CreatedAt.Format("2006-01-02 15:04")
			}
			rows = append(rows, []string{e.Filename, created, formatSize(e.Size)})
		}

		t := table.New().
			Border(lipgloss.NormalBorder()).
			BorderStyle(lipgloss.NewStyle().Foreground(styles.BorderDefaultColor)).
			Headers("FILE", "CREATED", "SIZE").
			Rows(rows...).
			StyleFunc(func(row, _ int) lipgloss.Style {
				if row == table.HeaderRow {
					return headerStyle
				}
				return cellStyle
			})
		if _, err := fmt.Fprintln(w, t.Render()); err != nil {
			return err
		}
	}
	return nil
}

func formatSize(n int64) string {
	switch {
	case n >= 1<<20:
		return strconv.FormatFloat(float64(n)/(1<<20), 'f', 1, 64) + " MB"
	case n >= 1<<10:
		return strconv.FormatFloat(float64(n)/(1<<10), 'f', 1, 64) + " KB"
	default:
		return strconv.FormatInt(n, 10) + " B"
	}
}
