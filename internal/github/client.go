package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/quan0715/notion-github-sync/internal/models"
)

const (
	defaultBaseURL = "https://api.github.com"
	apiVersion     = "2022-11-28"
)

// HTTPClient is the subset of http.Client the gateway needs.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a thin gateway to the GitHub Issues REST API. Constructed once at
// process start and injected where needed.
type Client struct {
	baseURL    string
	token      string
	httpClient HTTPClient
}

// NewClient creates a GitHub client. An empty baseURL selects api.github.com.
func NewClient(token, baseURL string, httpClient HTTPClient) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: baseURL, token: token, httpClient: httpClient}
}

// APIError is a non-2xx response from the GitHub API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("github: status %d: %s", e.Status, e.Message)
}

type issueResponse struct {
	Number  int    `json:"number"`
	Title   string `json:"title"`
	Body    string `json:"body"`
	State   string `json:"state"`
	HTMLURL string `json:"html_url"`
	Labels  []struct {
		Name string `json:"name"`
	} `json:"labels"`
}

func (r *issueResponse) toModel() *models.RemoteIssue {
	labels := make([]string, 0, len(r.Labels))
	for _, l := range r.Labels {
		labels = append(labels, l.Name)
	}
	return &models.RemoteIssue{
		Number:  r.Number,
		Title:   r.Title,
		Body:    r.Body,
		Labels:  labels,
		State:   r.State,
		HTMLURL: r.HTMLURL,
	}
}

// IssueParams carries the writable fields of an issue.
type IssueParams struct {
	Title  string   `json:"title"`
	Body   string   `json:"body"`
	Labels []string `json:"labels"`
	State  string   `json:"state,omitempty"`
}

// GetIssue fetches an issue by number. A 404 returns (nil, nil).
func (c *Client) GetIssue(ctx context.Context, owner, repo string, number int) (*models.RemoteIssue, error) {
	path := fmt.Sprintf("/repos/%s/%s/issues/%d", owner, repo, number)
	var issue issueResponse
	err := c.doRequest(ctx, http.MethodGet, path, nil, &issue)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get issue %s/%s#%d: %w", owner, repo, number, err)
	}
	return issue.toModel(), nil
}

// CreateIssue opens a new issue.
func (c *Client) CreateIssue(ctx context.Context, owner, repo string, params IssueParams) (*models.RemoteIssue, error) {
	path := fmt.Sprintf("/repos/%s/%s/issues", owner, repo)
	params.State = ""
	var issue issueResponse
	if err := c.doRequest(ctx, http.MethodPost, path, params, &issue); err != nil {
		return nil, fmt.Errorf("create issue in %s/%s: %w", owner, repo, err)
	}
	return issue.toModel(), nil
}

// UpdateIssue rewrites an existing issue's title, body, and labels. The state
// is always forced back to open so edits on a closed issue resurface it.
func (c *Client) UpdateIssue(ctx context.Context, owner, repo string, number int, params IssueParams) (*models.RemoteIssue, error) {
	path := fmt.Sprintf("/repos/%s/%s/issues/%d", owner, repo, number)
	params.State = "open"
	var issue issueResponse
	if err := c.doRequest(ctx, http.MethodPatch, path, params, &issue); err != nil {
		return nil, fmt.Errorf("update issue %s/%s#%d: %w", owner, repo, number, err)
	}
	return issue.toModel(), nil
}

// User is the authenticated GitHub user, for credential validation.
type User struct {
	Login string `json:"login"`
	Name  string `json:"name"`
}

// CurrentUser returns the user behind the token.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	var user User
	if err := c.doRequest(ctx, http.MethodGet, "/user", nil, &user); err != nil {
		return nil, fmt.Errorf("get current user: %w", err)
	}
	return &user, nil
}

// Repository is the repo metadata needed for permission checks.
type Repository struct {
	Name        string `json:"name"`
	FullName    string `json:"full_name"`
	HTMLURL     string `json:"html_url"`
	Private     bool   `json:"private"`
	Permissions struct {
		Admin bool `json:"admin"`
		Push  bool `json:"push"`
		Pull  bool `json:"pull"`
	} `json:"permissions"`
}

// GetRepository fetches repo metadata, including the token's permissions.
func (c *Client) GetRepository(ctx context.Context, owner, repo string) (*Repository, error) {
	path := fmt.Sprintf("/repos/%s/%s", owner, repo)
	var repository Repository
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &repository); err != nil {
		return nil, fmt.Errorf("get repository %s/%s: %w", owner, repo, err)
	}
	return &repository, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body, result any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(resp.Body)
		var parsed struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(data, &parsed)
		if parsed.Message == "" {
			parsed.Message = string(data)
		}
		return &APIError{Status: resp.StatusCode, Message: parsed.Message}
	}

	if result == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
