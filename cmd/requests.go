package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/log"
	"github.com/shyim/hellokube/internal/accesslog"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var requestsCmd = &cobra.Command{
	Use:   "requests",
	Short: "List the most recent requests from the access log",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)

		if err != nil {
			return err
		}

		if !cfg.AccessLog.Enabled() {
			return fmt.Errorf("access log is disabled, set access_log.database in %s", configFile)
		}

		store, err := accesslog.Open(cfg.AccessLog.Database)

		if err != nil {
			return err
		}

		defer func() {
			if err := store.Close(); err != nil {
				log.Warnf("Failed to close access log: %s", err)
			}
		}()

		limit, _ := cmd.Flags().GetInt("limit")

		entries, err := store.Recent(cmd.Context(), limit)

		if err != nil {
			return err
		}

		if !isTerminal(cmd.OutOrStdout()) {
			return printEntriesPlain(cmd.OutOrStdout(), entries)
		}

		t := table.New().
			Border(lipgloss.NormalBorder()).
			BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
			Headers("Requested at", "Method", "Path", "Status", "Duration", "Remote")

		for _, entry := range entries {
			t.Row(formatRelativeDate(entry.RequestedAt), entry.Method, entry.Path, strconv.Itoa(entry.Status), entry.Duration.String(), entry.RemoteAddr)
		}

		fmt.Fprintln(cmd.OutOrStdout(), t.Render())

		log.Infof("Showing %d requests", len(entries))

		return nil
	},
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)

	return ok && term.IsTerminal(int(f.Fd()))
}

func printEntriesPlain(out io.Writer, entries []accesslog.Entry) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	for _, entry := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n", entry.RequestedAt.Format(time.RFC3339), entry.Method, entry.Path, entry.Status, entry.Duration, entry.RemoteAddr)
	}

	return w.Flush()
}

func init() {
	rootCmd.AddCommand(requestsCmd)
	requestsCmd.Flags().Int("limit", 20, "Number of requests to show")
}
