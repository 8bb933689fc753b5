package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/quan0715/notion-github-sync/internal/github"
	"github.com/quan0715/notion-github-sync/internal/issuemap"
	"github.com/quan0715/notion-github-sync/internal/models"
	"github.com/quan0715/notion-github-sync/internal/notion"
	"github.com/quan0715/notion-github-sync/internal/output"
	"github.com/quan0715/notion-github-sync/internal/store"
	"github.com/quan0715/notion-github-sync/internal/validate"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui        *output.UI
	dataStore store.Store

	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "ngs",
	Short: "Sync Notion issue pages to GitHub issues",
	Long: `ngs runs the Notion-to-GitHub issue synchronization service.
A Notion webhook triggers the sync: the page's content is rendered to
markdown, the linked GitHub issue is created or updated, and the issue
state and link are written back to the page.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

var (
	buildVersion string
	buildCommit  string
	buildDate    string
)

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/notion-github-sync/config.yaml)")
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}

		configDir := filepath.Join(home, ".config", "notion-github-sync")
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("NGS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// The deployment environment historically used bare variable names; keep
	// honoring them alongside the prefixed forms.
	_ = viper.BindEnv("notion.token", "NGS_NOTION_TOKEN", "NOTION_SECRET")
	_ = viper.BindEnv("notion.database_id", "NGS_NOTION_DATABASE_ID", "NOTION_DATABASE_ID")
	_ = viper.BindEnv("github.token", "NGS_GITHUB_TOKEN", "GITHUB_TOKEN")
	_ = viper.BindEnv("base_url", "NGS_BASE_URL", "BASE_URL")

	home, _ := os.UserHomeDir()
	defaultConfigDir := filepath.Join(home, ".config", "notion-github-sync")

	viper.SetDefault("port", 8080)
	viper.SetDefault("base_url", "")
	viper.SetDefault("db_path", filepath.Join(defaultConfigDir, "sync.db"))
	viper.SetDefault("notion.token", "")
	viper.SetDefault("notion.database_id", "")
	viper.SetDefault("notion.fields.title", "Issue Title")
	viper.SetDefault("notion.fields.tags", "Issue Tag")
	viper.SetDefault("notion.fields.repository", "Repository")
	viper.SetDefault("notion.fields.link", "issue_link")
	viper.SetDefault("notion.fields.status", "Status")
	viper.SetDefault("github.token", "")
	viper.SetDefault("sync.allowed_repos", []string{"quan0715/test_repo", "quan0715/testRepo2"})
	viper.SetDefault("sync.max_retries", 2)
	viper.SetDefault("sync.retry_delay_ms", 500)

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose

	// The store is initialized lazily so config/version commands run
	// without a database.
}

// getStore returns the shared store, initializing it on first call.
func getStore() (store.Store, error) {
	if dataStore != nil {
		return dataStore, nil
	}

	dbPath := viper.GetString("db_path")
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := s.Migrate(rootCmd.Context()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	dataStore = s
	return dataStore, nil
}

// buildClients constructs the shared Notion and GitHub clients. Missing
// credentials are a fatal precondition for any command that syncs.
func buildClients() (*notion.Client, *github.Client, error) {
	notionToken := viper.GetString("notion.token")
	if notionToken == "" {
		return nil, nil, fmt.Errorf("notion token is not configured (set NOTION_SECRET or notion.token)")
	}
	githubToken := viper.GetString("github.token")
	if githubToken == "" {
		return nil, nil, fmt.Errorf("github token is not configured (set GITHUB_TOKEN or github.token)")
	}

	nc := notion.NewClient(notionToken, "", nil)
	gc := github.NewClient(githubToken, "", nil)
	return nc, gc, nil
}

// fieldsFromConfig reads the configurable property names.
func fieldsFromConfig() issuemap.Fields {
	return issuemap.Fields{
		Title:      viper.GetString("notion.fields.title"),
		Tags:       viper.GetString("notion.fields.tags"),
		Repository: viper.GetString("notion.fields.repository"),
		Link:       viper.GetString("notion.fields.link"),
		Status:     viper.GetString("notion.fields.status"),
	}
}

// allowedRepos parses the "owner/name" allow-list entries. Malformed entries
// are skipped with a warning.
func allowedRepos() []models.Repo {
	var repos []models.Repo
	for _, entry := range viper.GetStringSlice("sync.allowed_repos") {
		owner, name, ok := strings.Cut(entry, "/")
		if !ok || owner == "" || name == "" {
			ui.Warning("Skipping malformed allow-list entry: %q", entry)
			continue
		}
		repos = append(repos, models.Repo{Owner: owner, Name: name})
	}
	return repos
}

// databaseID returns the configured database id in canonical hyphenated form.
// Share URLs are accepted; an unparseable value passes through so the checker
// can report it.
func databaseID() string {
	raw := viper.GetString("notion.database_id")
	if raw == "" {
		return ""
	}
	id, err := notion.ParseDatabaseID(raw)
	if err != nil {
		return raw
	}
	return id
}

// buildChecker constructs the validation suite against the live clients.
func buildChecker(nc *notion.Client, gc *github.Client) *validate.Checker {
	return &validate.Checker{
		Notion: nc,
		GitHub: gc,
		Config: validate.Config{
			NotionToken:  viper.GetString("notion.token"),
			GitHubToken:  viper.GetString("github.token"),
			BaseURL:      viper.GetString("base_url"),
			DatabaseID:   databaseID(),
			Fields:       fieldsFromConfig(),
			AllowedRepos: allowedRepos(),
		},
	}
}
