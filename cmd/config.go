package cmd

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"text/template"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configForce bool

// configDirFunc returns the config directory path, replaceable in tests.
var configDirFunc = defaultConfigDir

func defaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "notion-github-sync"), nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or manage configuration",
	Long: `Show or manage ngs configuration.

Running bare 'ngs config' is the same as 'ngs config show'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config file with commented defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configInitRun()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration with sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open config file in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configEditRun()
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite existing config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	rootCmd.AddCommand(configCmd)
}

// configTemplate is the template for generating config.yaml with comments.
const configTemplate = `# notion-github-sync configuration
# See: ngs config show (for effective values and sources)

# HTTP port for the webhook server (default: 8080)
# port: {{ .Port }}

# Public base URL of this deployment, used to build image/file proxy links
# embedded in issue bodies (e.g. https://sync.example.com)
base_url: "{{ .BaseURL }}"

# SQLite database path for sync history (default: ~/.config/notion-github-sync/sync.db)
# db_path: {{ .DBPath }}

# Notion
notion:
  # Integration token (or set NOTION_SECRET)
  token: "{{ .NotionToken }}"

  # Issue database ID or share URL
  database_id: "{{ .NotionDatabaseID }}"

# GitHub
github:
  # Personal access token (or set GITHUB_TOKEN)
  token: "{{ .GitHubToken }}"

# Sync behavior
sync:
  # Repositories pages may target, as owner/name
  allowed_repos:
{{- range .AllowedRepos }}
    - "{{ . }}"
{{- end }}

  # Notion write retries after the first attempt (default: 2)
  max_retries: {{ .MaxRetries }}

  # Delay between retry attempts in milliseconds (default: 500)
  retry_delay_ms: {{ .RetryDelayMS }}
`

type configTemplateData struct {
	Port             int
	BaseURL          string
	DBPath           string
	NotionToken      string
	NotionDatabaseID string
	GitHubToken      string
	AllowedRepos     []string
	MaxRetries       int
	RetryDelayMS     int
}

func configFilePath() (string, error) {
	dir, err := configDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func configInitRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if file already exists
	if _, err := os.Stat(cfgPath); err == nil {
		if !configForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", cfgPath)
		}
		ui.Warning("Overwriting existing config file")
	}

	// Build template data from current viper values
	data := configTemplateData{
		Port:             viper.GetInt("port"),
		BaseURL:          viper.GetString("base_url"),
		DBPath:           viper.GetString("db_path"),
		NotionToken:      viper.GetString("notion.token"),
		NotionDatabaseID: viper.GetString("notion.database_id"),
		GitHubToken:      viper.GetString("github.token"),
		AllowedRepos:     viper.GetStringSlice("sync.allowed_repos"),
		MaxRetries:       viper.GetInt("sync.max_retries"),
		RetryDelayMS:     viper.GetInt("sync.retry_delay_ms"),
	}

	tmpl, err := template.New("config").Parse(configTemplate)
	if err != nil {
		return fmt.Errorf("template parse error: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("template execute error: %w", err)
	}

	// Create config directory
	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(cfgPath, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	ui.Success("Config file created: %s", cfgPath)
	fmt.Fprintln(ui.Out)
	fmt.Fprint(ui.Out, buf.String())
	return nil
}

// configKeyInfo describes a config key for display purposes.
type configKeyInfo struct {
	Key     string
	EnvVars []string
	Secret  bool
}

var configKeys = []configKeyInfo{
	{Key: "port", EnvVars: []string{"NGS_PORT"}},
	{Key: "base_url", EnvVars: []string{"NGS_BASE_URL", "BASE_URL"}},
	{Key: "db_path", EnvVars: []string{"NGS_DB_PATH"}},
	{Key: "notion.token", EnvVars: []string{"NGS_NOTION_TOKEN", "NOTION_SECRET"}, Secret: true},
	{Key: "notion.database_id", EnvVars: []string{"NGS_NOTION_DATABASE_ID", "NOTION_DATABASE_ID"}},
	{Key: "notion.fields.title", EnvVars: []string{"NGS_NOTION_FIELDS_TITLE"}},
	{Key: "notion.fields.tags", EnvVars: []string{"NGS_NOTION_FIELDS_TAGS"}},
	{Key: "notion.fields.repository", EnvVars: []string{"NGS_NOTION_FIELDS_REPOSITORY"}},
	{Key: "notion.fields.link", EnvVars: []string{"NGS_NOTION_FIELDS_LINK"}},
	{Key: "notion.fields.status", EnvVars: []string{"NGS_NOTION_FIELDS_STATUS"}},
	{Key: "github.token", EnvVars: []string{"NGS_GITHUB_TOKEN", "GITHUB_TOKEN"}, Secret: true},
	{Key: "sync.allowed_repos", EnvVars: []string{"NGS_SYNC_ALLOWED_REPOS"}},
	{Key: "sync.max_retries", EnvVars: []string{"NGS_SYNC_MAX_RETRIES"}},
	{Key: "sync.retry_delay_ms", EnvVars: []string{"NGS_SYNC_RETRY_DELAY_MS"}},
}

func configShowRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if config file exists
	if _, err := os.Stat(cfgPath); err == nil {
		ui.Info("Config file: %s", cfgPath)
	} else {
		ui.Info("Config file: (none)")
	}
	fmt.Fprintln(ui.Out)

	// Read config file values to determine file source
	fileValues := readConfigFileValues(cfgPath)

	for _, k := range configKeys {
		val := viper.Get(k.Key)
		if k.Secret && viper.GetString(k.Key) != "" {
			val = redact(viper.GetString(k.Key))
		}
		source := detectSource(k.Key, k.EnvVars, fileValues)
		fmt.Fprintf(ui.Out, "  %-28s %v  %s\n", k.Key, val, source)
	}

	return nil
}

// redact keeps a short prefix of a secret so tokens are distinguishable
// without being usable.
func redact(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + "****"
}

// readConfigFileValues reads the raw YAML file and returns a flat map of keys present in it.
func readConfigFileValues(path string) map[string]bool {
	result := make(map[string]bool)

	data, err := os.ReadFile(path)
	if err != nil {
		return result
	}

	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return result
	}

	// Flatten nested keys with dot notation
	flattenKeys("", parsed, result)
	return result
}

// flattenKeys recursively flattens a nested map to dot-notation keys.
func flattenKeys(prefix string, m map[string]any, result map[string]bool) {
	for key, val := range m {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}
		if nested, ok := val.(map[string]any); ok {
			flattenKeys(fullKey, nested, result)
		} else {
			result[fullKey] = true
		}
	}
}

// detectSource determines where a config value is coming from.
func detectSource(key string, envVars []string, fileValues map[string]bool) string {
	for _, envVar := range envVars {
		if _, ok := os.LookupEnv(envVar); ok {
			return fmt.Sprintf("(env: %s)", envVar)
		}
	}
	if fileValues[key] {
		return "(file)"
	}
	return "(default)"
}

func configEditRun() error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		return fmt.Errorf("$EDITOR is not set — set it to your preferred editor (e.g. export EDITOR=vim)")
	}

	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s (run 'ngs config init' first)", cfgPath)
	}

	editCmd := exec.Command(editor, cfgPath)
	editCmd.Stdin = os.Stdin
	editCmd.Stdout = os.Stdout
	editCmd.Stderr = os.Stderr
	return editCmd.Run()
}
