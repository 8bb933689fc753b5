package validate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quan0715/notion-github-sync/internal/github"
	"github.com/quan0715/notion-github-sync/internal/issuemap"
	"github.com/quan0715/notion-github-sync/internal/models"
	"github.com/quan0715/notion-github-sync/internal/notion"
)

func fullConfig() Config {
	return Config{
		NotionToken: "ntok",
		GitHubToken: "gtok",
		BaseURL:     "https://sync.example.com",
		DatabaseID:  "6c921d3a-8ff4-44f0-b04b-a8ed72a31c0a",
		Fields:      issuemap.DefaultFields(),
		AllowedRepos: []models.Repo{
			{Owner: "quan0715", Name: "test_repo"},
		},
	}
}

func TestCheckEnv_AllPresent(t *testing.T) {
	c := &Checker{Config: fullConfig()}
	res := c.CheckEnv()
	assert.True(t, res.OK)
}

func TestCheckEnv_ReportsEveryMissingValue(t *testing.T) {
	cfg := fullConfig()
	cfg.NotionToken = ""
	cfg.BaseURL = ""
	c := &Checker{Config: cfg}

	res := c.CheckEnv()
	assert.False(t, res.OK)
	assert.Contains(t, res.Message, "notion token")
	assert.Contains(t, res.Message, "base url")
	assert.NotContains(t, res.Message, "github token")
}

func TestCheckNotionToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/users/me" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"object":"user","id":"u1","name":"sync-bot","type":"bot"}`))
	}))
	defer srv.Close()

	c := &Checker{Notion: notion.NewClient("ntok", srv.URL, nil), Config: fullConfig()}
	res := c.CheckNotionToken(context.Background())
	assert.True(t, res.OK)
	assert.Contains(t, res.Message, "sync-bot")
}

func TestCheckNotionToken_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"status":401,"code":"unauthorized","message":"API token is invalid."}`))
	}))
	defer srv.Close()

	c := &Checker{Notion: notion.NewClient("bad", srv.URL, nil), Config: fullConfig()}
	res := c.CheckNotionToken(context.Background())
	assert.False(t, res.OK)
	assert.Contains(t, res.Message, "rejected")
}

func databaseJSON(props string) string {
	return `{
		"object": "database",
		"id": "6c921d3a-8ff4-44f0-b04b-a8ed72a31c0a",
		"title": [{"type":"text","text":{"content":"Issues"}}],
		"properties": ` + props + `
	}`
}

func newDatabaseChecker(t *testing.T, props string) *Checker {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(databaseJSON(props)))
	}))
	t.Cleanup(srv.Close)
	return &Checker{Notion: notion.NewClient("ntok", srv.URL, nil), Config: fullConfig()}
}

func TestCheckDatabase_Conformant(t *testing.T) {
	c := newDatabaseChecker(t, `{
		"Issue Title": {"id":"a","name":"Issue Title","type":"title"},
		"Issue Tag":   {"id":"b","name":"Issue Tag","type":"multi_select"},
		"Repository":  {"id":"c","name":"Repository","type":"select"},
		"issue_link":  {"id":"d","name":"issue_link","type":"url"},
		"Status":      {"id":"e","name":"Status","type":"status"}
	}`)

	res := c.CheckDatabase(context.Background())
	assert.True(t, res.OK)
	assert.Contains(t, res.Message, `"Issues"`)
}

func TestCheckDatabase_NormalizedNameMatch(t *testing.T) {
	// Case and spacing differ from the configured names but still match;
	// "issue-link" differs beyond folding and only earns a suggestion.
	c := newDatabaseChecker(t, `{
		"issue title": {"id":"a","name":"issue title","type":"title"},
		"IssueTag":    {"id":"b","name":"IssueTag","type":"multi_select"},
		"repository":  {"id":"c","name":"repository","type":"select"},
		"issue-link":  {"id":"d","name":"issue-link","type":"url"},
		"status":      {"id":"e","name":"status","type":"status"}
	}`)

	res := c.CheckDatabase(context.Background())
	assert.False(t, res.OK)

	issues := res.Details.([]FieldIssue)
	require.Len(t, issues, 1)
	assert.Equal(t, "issue_link", issues[0].Field)
	assert.Equal(t, "issue-link", issues[0].Suggestion)
}

func TestCheckDatabase_WrongKindAndSuggestion(t *testing.T) {
	c := newDatabaseChecker(t, `{
		"Issue Title": {"id":"a","name":"Issue Title","type":"rich_text"},
		"Issue Tags":  {"id":"b","name":"Issue Tags","type":"multi_select"},
		"Repository":  {"id":"c","name":"Repository","type":"select"},
		"issue_link":  {"id":"d","name":"issue_link","type":"url"},
		"Status":      {"id":"e","name":"Status","type":"status"}
	}`)

	res := c.CheckDatabase(context.Background())
	assert.False(t, res.OK)

	issues := res.Details.([]FieldIssue)
	require.Len(t, issues, 2)

	byField := map[string]FieldIssue{}
	for _, issue := range issues {
		byField[issue.Field] = issue
	}

	title := byField["Issue Title"]
	assert.Equal(t, notion.PropTitle, title.Expected)
	assert.Equal(t, "rich_text", title.Actual)

	tags := byField["Issue Tag"]
	assert.Equal(t, "Issue Tags", tags.Suggestion)
}

func TestCheckDatabase_NotConfigured(t *testing.T) {
	cfg := fullConfig()
	cfg.DatabaseID = ""
	c := &Checker{Config: cfg}

	res := c.CheckDatabase(context.Background())
	assert.False(t, res.OK)
}

func TestCheckGitHubToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/user", r.URL.Path)
		_, _ = w.Write([]byte(`{"login":"quan0715","name":"Quan"}`))
	}))
	defer srv.Close()

	c := &Checker{GitHub: github.NewClient("gtok", srv.URL, nil), Config: fullConfig()}
	res := c.CheckGitHubToken(context.Background())
	assert.True(t, res.OK)
	assert.Contains(t, res.Message, "quan0715")
}

func TestCheckRepos(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/repos/quan0715/test_repo":
			_, _ = w.Write([]byte(`{"name":"test_repo","full_name":"quan0715/test_repo","permissions":{"push":true,"pull":true}}`))
		case "/repos/quan0715/readonly":
			_, _ = w.Write([]byte(`{"name":"readonly","full_name":"quan0715/readonly","permissions":{"push":false,"pull":true}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"Not Found"}`))
		}
	}))
	defer srv.Close()

	cfg := fullConfig()
	cfg.AllowedRepos = []models.Repo{
		{Owner: "quan0715", Name: "test_repo"},
		{Owner: "quan0715", Name: "readonly"},
		{Owner: "quan0715", Name: "missing"},
	}
	c := &Checker{GitHub: github.NewClient("gtok", srv.URL, nil), Config: cfg}

	res := c.CheckRepos(context.Background())
	assert.False(t, res.OK)

	checks := res.Details.([]RepoCheck)
	require.Len(t, checks, 3)
	assert.True(t, checks[0].OK)
	assert.False(t, checks[1].OK)
	assert.Contains(t, checks[1].Message, "push")
	assert.False(t, checks[2].OK)
}

func TestCheckRepos_EmptyAllowList(t *testing.T) {
	cfg := fullConfig()
	cfg.AllowedRepos = nil
	c := &Checker{Config: cfg}

	res := c.CheckRepos(context.Background())
	assert.False(t, res.OK)
}

func TestRunAll_SkipsRemoteChecksOnMissingConfig(t *testing.T) {
	cfg := fullConfig()
	cfg.NotionToken = ""
	c := &Checker{Config: cfg}

	results := c.RunAll(context.Background())
	require.Len(t, results, 1)
	assert.Equal(t, "environment", results[0].Name)
	assert.False(t, results[0].OK)
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, similarity("abc", "abc"))
	assert.Equal(t, 0.0, similarity("", "abc"))
	assert.InDelta(t, 0.8, similarity("issuetag", "issuetags"), 0.12)
	assert.Less(t, similarity("status", "repository"), 0.5)
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "issuetitle", normalizeName("Issue Title"))
	assert.Equal(t, "issuetitle", normalizeName("ISSUE  TITLE"))
}
