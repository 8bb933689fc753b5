package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/quan0715/notion-github-sync/internal/models"
	"github.com/quan0715/notion-github-sync/internal/output"
)

var (
	historyLimit int
	historyPage  string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent sync runs",
	Long:  "List recent webhook sync runs recorded in the local database, newest first.",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := getStore()
		if err != nil {
			return err
		}

		var records []*models.SyncRecord
		if historyPage != "" {
			records, err = s.ListSyncRecordsForPage(cmd.Context(), historyPage, historyLimit)
		} else {
			records, err = s.ListSyncRecords(cmd.Context(), historyLimit)
		}
		if err != nil {
			return fmt.Errorf("list sync records: %w", err)
		}

		if len(records) == 0 {
			ui.Info("No sync runs recorded yet")
			return nil
		}

		table := ui.Table([]string{"TIME", "PAGE", "REPO", "ISSUE", "ACTION", "RESULT", "DURATION"})
		for _, rec := range records {
			issue := "-"
			if rec.IssueNumber > 0 {
				issue = "#" + strconv.Itoa(rec.IssueNumber)
			}
			_ = table.Append([]string{
				rec.CreatedAt.Local().Format("2006-01-02 15:04:05"),
				shortID(rec.PageID),
				rec.Repo,
				issue,
				output.StateColor(string(rec.Action)),
				output.StateColor(string(rec.Result)),
				fmt.Sprintf("%dms", rec.DurationMS),
			})
		}
		return table.Render()
	},
}

// shortID truncates a page UUID for table display.
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum number of runs to show")
	historyCmd.Flags().StringVar(&historyPage, "page", "", "only show runs for this Notion page ID")
}
