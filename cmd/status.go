package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/zjrosen/sleuth/internal/conversation"
	"github.com/zjrosen/sleuth/internal/docstore"
	"github.com/zjrosen/sleuth/internal/ui/styles"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show agent health, tools and MCP servers",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(statusCmd)
}

type statusReport struct {
	Server  string              `json:"server"`
	Healthy bool                `json:"healthy"`
	Error   string              `json:"error,omitempty"`
	Tools   []conversation.Tool `json:"tools"`
	MCP     *docstore.MCPStatus `json:"mcp,omitempty"`
}

func runStatus(cmd *cobra.Command, _ []string) error {
	docs, err := openDocs(cfg, flagsFromConfig())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	report := statusReport{Server: cfg.Server.URL, Tools: []conversation.Tool{}}

	health, err := docs.Health(ctx)
	if err != nil {
		report.Error = err.Error()
	}
	report.Healthy = health.OK()

	// Tools and MCP status are best-effort; an agent without those routes
	// is still usable.
	if tools, err := docs.Tools(ctx); err == nil {
		report.Tools = tools
	}
	if mcp, err := docs.MCPStatus(ctx); err == nil {
		report.MCP = &mcp
	}

	if statusJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	printStatus(cmd.OutOrStdout(), report)
	return nil
}

func printStatus(w io.Writer, r statusReport) {
	_, _ = fmt.Fprintf(w, "%s  %s\n", styles.ConnectionBadge(r.Healthy), r.Server)
	if r.Error != "" {
		_, _ = fmt.Fprintln(w, styles.ErrorStyle.Render("  "+r.Error))
	}

	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, styles.RoleStyle.Render(fmt.Sprintf("Tools (%d)", len(r.Tools))))
	for _, t := range r.Tools {
		line := "  " + t.Name
		if t.Description != "" {
			line += styles.MutedStyle.Render("  " + styles.TruncateString(t.Description, 60))
		}
		_, _ = fmt.Fprintln(w, line)
	}

	if r.MCP == nil || len(r.MCP.Servers) == 0 {
		return
	}
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, styles.RoleStyle.Render("MCP servers"))
	names := make([]string, 0, len(r.MCP.Servers))
	for name := range r.MCP.Servers {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		srv := r.MCP.Servers[name]
		target := srv.MCPURL
		if target == "" {
			target = srv.MCPCommand
		}
		_, _ = fmt.Fprintf(w, "  %-20s %-12s %s\n", name, srv.Status, styles.MutedStyle.Render(target))
	}
}
