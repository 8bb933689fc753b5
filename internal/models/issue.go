package models

// Repo identifies a GitHub repository by owner and name.
type Repo struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

// String returns the "owner/name" form.
func (r Repo) String() string {
	return r.Owner + "/" + r.Name
}

// NormalizedIssue is the issue view extracted from a Notion page. It is built
// fresh on every webhook invocation and never cached.
type NormalizedIssue struct {
	Title       string   `json:"title"`
	Labels      []string `json:"labels"`
	Link        string   `json:"link"`
	IssueNumber int      `json:"issue_number"` // 0 = no existing GitHub issue
	Repo        *Repo    `json:"repo"`         // nil when absent or not allow-listed
}

// RemoteIssue is a transient read of a GitHub issue.
type RemoteIssue struct {
	Number  int      `json:"number"`
	Title   string   `json:"title"`
	Body    string   `json:"body"`
	Labels  []string `json:"labels"`
	State   string   `json:"state"` // "open" or "closed"
	HTMLURL string   `json:"html_url"`
}
