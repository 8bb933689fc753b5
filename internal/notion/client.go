package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

const (
	defaultBaseURL = "https://api.notion.com"
	apiVersion     = "2022-06-28"
)

// HTTPClient is the subset of http.Client the Notion client needs. It exists
// so tests can substitute a transport.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a thin REST client for the Notion API. One instance is
// constructed at process start and shared for the process lifetime.
type Client struct {
	baseURL    string
	token      string
	httpClient HTTPClient
}

// NewClient creates a Notion client. An empty baseURL selects the public API.
func NewClient(token, baseURL string, httpClient HTTPClient) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: baseURL, token: token, httpClient: httpClient}
}

// GetPage retrieves a page by id.
func (c *Client) GetPage(ctx context.Context, pageID string) (*Page, error) {
	var page Page
	if err := c.doRequest(ctx, http.MethodGet, "/v1/pages/"+pageID, nil, &page); err != nil {
		return nil, fmt.Errorf("get page %s: %w", pageID, err)
	}
	return &page, nil
}

type blockChildrenResponse struct {
	Results    []Block `json:"results"`
	HasMore    bool    `json:"has_more"`
	NextCursor string  `json:"next_cursor"`
}

// ListChildren returns all direct child blocks of a block or page, following
// pagination until exhausted.
func (c *Client) ListChildren(ctx context.Context, blockID string) ([]Block, error) {
	var all []Block
	cursor := ""
	for {
		path := "/v1/blocks/" + blockID + "/children?page_size=100"
		if cursor != "" {
			path += "&start_cursor=" + url.QueryEscape(cursor)
		}
		var resp blockChildrenResponse
		if err := c.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
			return nil, fmt.Errorf("list children of %s: %w", blockID, err)
		}
		all = append(all, resp.Results...)
		if !resp.HasMore || resp.NextCursor == "" {
			return all, nil
		}
		cursor = resp.NextCursor
	}
}

// AppendChildren appends blocks to a container and returns the created blocks.
func (c *Client) AppendChildren(ctx context.Context, blockID string, children []Block) ([]Block, error) {
	body := map[string]any{"children": children}
	var resp blockChildrenResponse
	if err := c.doRequest(ctx, http.MethodPatch, "/v1/blocks/"+blockID+"/children", body, &resp); err != nil {
		return nil, fmt.Errorf("append children to %s: %w", blockID, err)
	}
	return resp.Results, nil
}

// DeleteBlock archives a block by id.
func (c *Client) DeleteBlock(ctx context.Context, blockID string) error {
	if err := c.doRequest(ctx, http.MethodDelete, "/v1/blocks/"+blockID, nil, nil); err != nil {
		return fmt.Errorf("delete block %s: %w", blockID, err)
	}
	return nil
}

// GetBlock retrieves a single block by id.
func (c *Client) GetBlock(ctx context.Context, blockID string) (*Block, error) {
	var block Block
	if err := c.doRequest(ctx, http.MethodGet, "/v1/blocks/"+blockID, nil, &block); err != nil {
		return nil, fmt.Errorf("get block %s: %w", blockID, err)
	}
	return &block, nil
}

// UpdateStatusProperty sets a status property on a page.
func (c *Client) UpdateStatusProperty(ctx context.Context, pageID, field, status string) error {
	props := map[string]any{
		field: map[string]any{
			"type":   PropStatus,
			"status": map[string]any{"name": status},
		},
	}
	return c.updateProperties(ctx, pageID, props)
}

// UpdateURLProperty sets a url property on a page.
func (c *Client) UpdateURLProperty(ctx context.Context, pageID, field, value string) error {
	props := map[string]any{
		field: map[string]any{
			"type": PropURL,
			"url":  value,
		},
	}
	return c.updateProperties(ctx, pageID, props)
}

func (c *Client) updateProperties(ctx context.Context, pageID string, props map[string]any) error {
	body := map[string]any{"properties": props}
	if err := c.doRequest(ctx, http.MethodPatch, "/v1/pages/"+pageID, body, nil); err != nil {
		return fmt.Errorf("update page %s: %w", pageID, err)
	}
	return nil
}

// PropertySchema describes one column of a database.
type PropertySchema struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Select *struct {
		Options []SelectOption `json:"options"`
	} `json:"select,omitempty"`
}

// Database is the schema view of a Notion database.
type Database struct {
	Object     string                    `json:"object"`
	ID         string                    `json:"id"`
	Title      []RichText                `json:"title"`
	URL        string                    `json:"url,omitempty"`
	Properties map[string]PropertySchema `json:"properties"`
}

// GetDatabase retrieves a database schema by id.
func (c *Client) GetDatabase(ctx context.Context, databaseID string) (*Database, error) {
	var db Database
	if err := c.doRequest(ctx, http.MethodGet, "/v1/databases/"+databaseID, nil, &db); err != nil {
		return nil, fmt.Errorf("get database %s: %w", databaseID, err)
	}
	return &db, nil
}

// User is the bot user behind the integration token.
type User struct {
	Object string `json:"object"`
	ID     string `json:"id"`
	Name   string `json:"name"`
	Type   string `json:"type"`
}

// Me returns the user owning the token. Used for credential validation.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var user User
	if err := c.doRequest(ctx, http.MethodGet, "/v1/users/me", nil, &user); err != nil {
		return nil, fmt.Errorf("get current user: %w", err)
	}
	return &user, nil
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
	req.Header.Set("Notion-Version", apiVersion)
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
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.Unmarshal(data, apiErr); err != nil || apiErr.Code == "" {
			apiErr.Code = "unknown"
			apiErr.Message = string(data)
		}
		apiErr.Status = resp.StatusCode
		return apiErr
	}

	if result == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
