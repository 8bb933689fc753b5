// Package issuemap extracts the normalized issue view from a Notion page.
package issuemap

import (
	"strconv"
	"strings"

	"github.com/quan0715/notion-github-sync/internal/models"
	"github.com/quan0715/notion-github-sync/internal/notion"
)

// Fields maps the logical issue fields onto database property names. Names
// are configurable because they live in the user's Notion database.
type Fields struct {
	Title      string
	Tags       string
	Repository string
	Link       string
	Status     string
}

// DefaultFields matches the documented database template.
func DefaultFields() Fields {
	return Fields{
		Title:      "Issue Title",
		Tags:       "Issue Tag",
		Repository: "Repository",
		Link:       "issue_link",
		Status:     "Status",
	}
}

// Mapper builds NormalizedIssues. Only repositories on the allow-list are
// accepted as sync targets; anything else maps to a nil Repo and the
// orchestrator refuses to sync it.
type Mapper struct {
	Fields       Fields
	AllowedRepos []models.Repo
}

// Map extracts the normalized issue from a page. Every field defaults
// independently on absence or kind mismatch; Map itself never fails.
func (m *Mapper) Map(page *notion.Page) models.NormalizedIssue {
	link := page.URLValue(m.Fields.Link)
	return models.NormalizedIssue{
		Title:       page.TitleText(m.Fields.Title),
		Labels:      page.MultiSelectNames(m.Fields.Tags),
		Link:        link,
		IssueNumber: issueNumberFromLink(link),
		Repo:        m.repoFromSelect(page.SelectName(m.Fields.Repository)),
	}
}

// issueNumberFromLink parses the trailing path segment of an issue URL.
// Returns 0 (no existing issue) when the link is empty or malformed.
func issueNumberFromLink(link string) int {
	if link == "" {
		return 0
	}
	parts := strings.Split(link, "/")
	n, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func (m *Mapper) repoFromSelect(value string) *models.Repo {
	owner, name, ok := strings.Cut(value, "/")
	if !ok || owner == "" || name == "" {
		return nil
	}
	for _, allowed := range m.AllowedRepos {
		if allowed.Owner == owner && allowed.Name == name {
			repo := allowed
			return &repo
		}
	}
	return nil
}
