package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/zjrosen/sleuth/internal/infrastructure/sqlite"
	"github.com/zjrosen/sleuth/internal/session"
	"github.com/zjrosen/sleuth/internal/ui/styles"
)

var pruneOlderThan time.Duration

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Show the tab identity used for this terminal",
	Long: `Each terminal tab gets its own identity, sent to the agent when the
channel connects so the agent can keep per-tab conversation state.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withTabStore(func(store *sqlite.TabStore) error {
			scope := session.ScopeFromEnv(cfg.Session.TabEnv)
			id, ok, err := store.Load(scope)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(w, "scope:  %s\n", scope)
			if !ok {
				_, _ = fmt.Fprintln(w, "tab id: "+styles.MutedStyle.Render("none yet (created on first connect)"))
				return nil
			}
			_, _ = fmt.Fprintf(w, "tab id: %s\n", id)
			return nil
		})
	},
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every stored tab identity",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withTabStore(func(store *sqlite.TabStore) error {
			tabs, err := store.List()
			if err != nil {
				return err
			}
			return printTabs(cmd.OutOrStdout(), tabs)
		})
	},
}

var sessionResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget this tab's identity so the next run starts fresh",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withTabStore(func(store *sqlite.TabStore) error {
			scope := session.ScopeFromEnv(cfg.Session.TabEnv)
			session.NewIdentity(store, scope).Release()
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Reset identity for %s\n", scope)
			return nil
		})
	},
}

var sessionPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete identities of tabs not seen recently",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withTabStore(func(store *sqlite.TabStore) error {
			n, err := store.Prune(time.Now().Add(-pruneOlderThan))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d tab(s)\n", n)
			return nil
		})
	},
}

func init() {
	sessionPruneCmd.Flags().DurationVar(&pruneOlderThan, "older-than", 30*24*time.Hour, "prune tabs idle longer than this")
	sessionCmd.AddCommand(sessionListCmd, sessionResetCmd, sessionPruneCmd)
	rootCmd.AddCommand(sessionCmd)
}

func withTabStore(fn func(*sqlite.TabStore) error) error {
	db, err := sqlite.NewDB(cfg.Session.DBPath)
	if err != nil {
		return fmt.Errorf("opening session store: %w", err)
	}
	defer func() { _ = db.Close() }()
	return fn(db.TabStore())
}

func printTabs(w io.Writer, tabs []sqlite.TabModel) error {
	if len(tabs) == 0 {
		_, err := fmt.Fprintln(w, styles.MutedStyle.Render("No stored tab identities"))
		return err
	}
	rows := make([][]string, 0, len(tabs))
	for _, t := range tabs {
		rows = append(rows, []string{
			t.Scope,
			t.TabID,
			t.Created().Format("2006-01-02 15:04"),
			t.LastSeen().Format("2006-01-02 15:04"),
		})
	}
	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(styles.BorderDefaultColor)).
		Headers("SCOPE", "TAB ID", "CREATED", "LAST SEEN").
		Rows(rows...)
	_, err := fmt.Fprintln(w, tbl.Render())
	return err
}
