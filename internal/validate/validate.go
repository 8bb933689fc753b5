// Package validate implements the pre-flight configuration checks: credential
// reachability, database schema conformance, and repository permissions.
package validate

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/quan0715/notion-github-sync/internal/github"
	"github.com/quan0715/notion-github-sync/internal/issuemap"
	"github.com/quan0715/notion-github-sync/internal/models"
	"github.com/quan0715/notion-github-sync/internal/notion"
)

// Result is the outcome of one check.
type Result struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Config holds everything the checker needs to know about the deployment.
type Config struct {
	NotionToken string
	GitHubToken string
	BaseURL     string
	DatabaseID  string

	Fields       issuemap.Fields
	AllowedRepos []models.Repo
}

// Checker runs the validation suite against live APIs.
type Checker struct {
	Notion *notion.Client
	GitHub *github.Client
	Config Config
}

// CheckEnv verifies the required configuration values are present. This check
// never makes a remote call.
func (c *Checker) CheckEnv() Result {
	required := []struct {
		name  string
		value string
	}{
		{"notion token", c.Config.NotionToken},
		{"github token", c.Config.GitHubToken},
		{"base url", c.Config.BaseURL},
		{"notion database id", c.Config.DatabaseID},
	}

	var missing []string
	for _, item := range required {
		if item.value == "" {
			missing = append(missing, item.name)
		}
	}
	if len(missing) > 0 {
		return Result{
			Name:    "environment",
			OK:      false,
			Message: "missing required configuration: " + strings.Join(missing, ", "),
			Details: missing,
		}
	}
	return Result{Name: "environment", OK: true, Message: "all required configuration present"}
}

// CheckNotionToken verifies the Notion credential by fetching the bot user.
func (c *Checker) CheckNotionToken(ctx context.Context) Result {
	user, err := c.Notion.Me(ctx)
	if err != nil {
		return Result{Name: "notion token", OK: false, Message: fmt.Sprintf("token rejected: %v", err)}
	}
	return Result{Name: "notion token", OK: true, Message: "authenticated as " + user.Name}
}

// CheckGitHubToken verifies the GitHub credential.
func (c *Checker) CheckGitHubToken(ctx context.Context) Result {
	user, err := c.GitHub.CurrentUser(ctx)
	if err != nil {
		return Result{Name: "github token", OK: false, Message: fmt.Sprintf("token rejected: %v", err)}
	}
	return Result{Name: "github token", OK: true, Message: "authenticated as " + user.Login}
}

// FieldIssue describes one schema conformance problem.
type FieldIssue struct {
	Field      string `json:"field"`
	Expected   string `json:"expected_type"`
	Actual     string `json:"actual_type,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// CheckDatabase verifies the configured database has the required fields with
// the required kinds. Field names are matched case- and space-insensitively;
// a miss reports the closest existing property name as a suggestion.
func (c *Checker) CheckDatabase(ctx context.Context) Result {
	if c.Config.DatabaseID == "" {
		return Result{Name: "notion database", OK: false, Message: "notion database id not configured"}
	}
	db, err := c.Notion.GetDatabase(ctx, c.Config.DatabaseID)
	if err != nil {
		return Result{Name: "notion database", OK: false, Message: fmt.Sprintf("cannot retrieve database: %v", err)}
	}

	required := requiredFields(c.Config.Fields)
	var issues []FieldIssue
	for _, rf := range required {
		schema, ok := findProperty(db.Properties, rf.name)
		if !ok {
			issues = append(issues, FieldIssue{
				Field:      rf.name,
				Expected:   rf.kind,
				Suggestion: closestName(db.Properties, rf.name),
			})
			continue
		}
		if schema.Type != rf.kind {
			issues = append(issues, FieldIssue{Field: rf.name, Expected: rf.kind, Actual: schema.Type})
		}
	}

	title := notion.PlainString(db.Title)
	if len(issues) > 0 {
		return Result{
			Name:    "notion database",
			OK:      false,
			Message: fmt.Sprintf("database %q does not match the issue template (%d problems)", title, len(issues)),
			Details: issues,
		}
	}
	return Result{Name: "notion database", OK: true, Message: fmt.Sprintf("database %q matches the issue template", title)}
}

// RepoCheck is the per-repository outcome of CheckRepos.
type RepoCheck struct {
	Repo    string `json:"repo"`
	OK      bool   `json:"ok"`
	Push    bool   `json:"push"`
	Message string `json:"message,omitempty"`
}

// CheckRepos verifies every allow-listed repository is reachable and that the
// token can push (issue writes require it).
func (c *Checker) CheckRepos(ctx context.Context) Result {
	if len(c.Config.AllowedRepos) == 0 {
		return Result{Name: "github repos", OK: false, Message: "repository allow-list is empty"}
	}

	checks := make([]RepoCheck, 0, len(c.Config.AllowedRepos))
	ok := true
	for _, repo := range c.Config.AllowedRepos {
		repository, err := c.GitHub.GetRepository(ctx, repo.Owner, repo.Name)
		if err != nil {
			checks = append(checks, RepoCheck{Repo: repo.String(), OK: false, Message: err.Error()})
			ok = false
			continue
		}
		check := RepoCheck{Repo: repo.String(), OK: true, Push: repository.Permissions.Push}
		if !repository.Permissions.Push {
			check.OK = false
			check.Message = "token has no push permission"
			ok = false
		}
		checks = append(checks, check)
	}

	msg := fmt.Sprintf("%d repositories reachable and writable", len(checks))
	if !ok {
		msg = "one or more allow-listed repositories failed"
	}
	return Result{Name: "github repos", OK: ok, Message: msg, Details: checks}
}

// RunAll executes the whole suite in a fixed order. Remote checks are skipped
// when the environment check fails.
func (c *Checker) RunAll(ctx context.Context) []Result {
	env := c.CheckEnv()
	results := []Result{env}
	if !env.OK {
		return results
	}
	results = append(results,
		c.CheckNotionToken(ctx),
		c.CheckDatabase(ctx),
		c.CheckGitHubToken(ctx),
		c.CheckRepos(ctx),
	)
	return results
}

type requiredField struct {
	name string
	kind string
}

func requiredFields(f issuemap.Fields) []requiredField {
	return []requiredField{
		{f.Title, notion.PropTitle},
		{f.Tags, notion.PropMultiSelect},
		{f.Repository, notion.PropSelect},
		{f.Link, notion.PropURL},
		{f.Status, notion.PropStatus},
	}
}

// normalizeName folds case and removes spaces so "Issue Title" matches
// "issue title" and "IssueTitle".
func normalizeName(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), " ", "")
}

func findProperty(props map[string]notion.PropertySchema, name string) (notion.PropertySchema, bool) {
	if schema, ok := props[name]; ok {
		return schema, true
	}
	want := normalizeName(name)
	for key, schema := range props {
		if normalizeName(key) == want {
			return schema, true
		}
	}
	return notion.PropertySchema{}, false
}

// closestName returns the existing property whose name scores highest against
// want, or "" when nothing is even half similar.
func closestName(props map[string]notion.PropertySchema, want string) string {
	names := make([]string, 0, len(props))
	for key := range props {
		names = append(names, key)
	}
	sort.Strings(names)

	best, bestScore := "", 0.5
	for _, name := range names {
		if score := similarity(normalizeName(want), normalizeName(name)); score > bestScore {
			best, bestScore = name, score
		}
	}
	return best
}

// similarity is 1 - normalized Levenshtein distance.
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	la, lb := len(a), len(b)
	if la == 0 || lb == 0 {
		return 0
	}

	prev := make([]int, lb+1)
	curr := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}
	for i := 1; i <= la; i++ {
		curr[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, min(curr[j-1]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}

	longest := la
	if lb > longest {
		longest = lb
	}
	return 1 - float64(prev[lb])/float64(longest)
}
