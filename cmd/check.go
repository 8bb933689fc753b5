package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quan0715/notion-github-sync/internal/output"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate tokens, database schema, and repository access",
	Long: `Run the pre-flight validation suite: configuration completeness,
Notion and GitHub token reachability, database schema conformance against
the issue template, and push access to every allow-listed repository.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		nc, gc, err := buildClients()
		if err != nil {
			return err
		}

		results := buildChecker(nc, gc).RunAll(cmd.Context())

		table := ui.Table([]string{"CHECK", "STATUS", "MESSAGE"})
		failed := 0
		for _, res := range results {
			if !res.OK {
				failed++
			}
			_ = table.Append([]string{res.Name, output.CheckColor(res.OK), res.Message})
		}
		_ = table.Render()

		if failed > 0 {
			return fmt.Errorf("%d of %d checks failed", failed, len(results))
		}
		ui.Success("All checks passed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
