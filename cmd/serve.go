package cmd

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/quan0715/notion-github-sync/internal/api"
	"github.com/quan0715/notion-github-sync/internal/auditlog"
	"github.com/quan0715/notion-github-sync/internal/issuemap"
	"github.com/quan0715/notion-github-sync/internal/render"
	"github.com/quan0715/notion-github-sync/internal/retry"
	"github.com/quan0715/notion-github-sync/internal/sync"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook server",
	Long: `Start the HTTP server that receives Notion webhooks and syncs pages
to GitHub issues. By default it listens on port 8080. Use --port to change it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if viper.GetString("base_url") == "" {
			return fmt.Errorf("base_url is not configured (set BASE_URL or base_url); proxy links in issue bodies require it")
		}

		nc, gc, err := buildClients()
		if err != nil {
			return err
		}

		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

		history, err := getStore()
		if err != nil {
			// History is an observability feature; a broken database should
			// not keep the webhook from serving.
			logger.Warn("sync history disabled", "error", err)
			history = nil
		}

		fields := fieldsFromConfig()
		orch := &sync.Orchestrator{
			Notion: nc,
			GitHub: gc,
			Logs:   auditlog.NewManager(nc),
			Mapper: &issuemap.Mapper{
				Fields:       fields,
				AllowedRepos: allowedRepos(),
			},
			Renderer: &render.Renderer{
				BaseURL: viper.GetString("base_url"),
				Skip:    auditlog.IsLogBlock,
			},
			Exec: retry.Executor{
				MaxRetries: viper.GetInt("sync.max_retries"),
				Delay:      time.Duration(viper.GetInt("sync.retry_delay_ms")) * time.Millisecond,
			},
			History:     history,
			Logger:      logger,
			StatusField: fields.Status,
		}

		server := api.NewServer(orch, buildChecker(nc, gc), nc, history, logger)

		addr := fmt.Sprintf(":%d", viper.GetInt("port"))
		logger.Info("listening", "addr", addr)
		return http.ListenAndServe(addr, server.Router())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 8080, "port to listen on")
	_ = viper.BindPFlag("port", serveCmd.Flags().Lookup("port"))
}
