package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quan0715/notion-github-sync/internal/auditlog"
	"github.com/quan0715/notion-github-sync/internal/github"
	"github.com/quan0715/notion-github-sync/internal/issuemap"
	"github.com/quan0715/notion-github-sync/internal/models"
	"github.com/quan0715/notion-github-sync/internal/notion"
	"github.com/quan0715/notion-github-sync/internal/render"
	"github.com/quan0715/notion-github-sync/internal/retry"
)

const testPageID = "page-1"

// fakeNotion serves the Notion endpoints the pipeline touches and records
// every write for assertions.
type fakeNotion struct {
	mu           gosync.Mutex
	page         *notion.Page
	pageChildren []notion.Block
	logChildren  map[string][]notion.Block
	deleted      []string
	propOrder    []string // property names in write order
	nextID       int
}

func newFakeNotion(page *notion.Page, content []notion.Block) *fakeNotion {
	return &fakeNotion{
		page:         page,
		pageChildren: content,
		logChildren:  make(map[string][]notion.Block),
	}
}

func (f *fakeNotion) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/pages/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(f.page)
	})

	mux.HandleFunc("PATCH /v1/pages/{id}", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Properties map[string]struct {
				Type   string               `json:"type"`
				URL    string               `json:"url"`
				Status *notion.SelectOption `json:"status"`
			} `json:"properties"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		for name, prop := range body.Properties {
			f.propOrder = append(f.propOrder, name)
			switch prop.Type {
			case notion.PropURL:
				f.page.Properties[name] = notion.Property{Type: notion.PropURL, URL: prop.URL}
			case notion.PropStatus:
				f.page.Properties[name] = notion.Property{Type: notion.PropStatus, Status: prop.Status}
			}
		}
		_, _ = w.Write([]byte(`{}`))
	})

	mux.HandleFunc("GET /v1/blocks/{id}/children", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		id := r.PathValue("id")
		results := f.pageChildren
		if id != testPageID {
			results = f.logChildren[id]
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"results": results, "has_more": false})
	})

	mux.HandleFunc("PATCH /v1/blocks/{id}/children", func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Children []notion.Block `json:"children"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		id := r.PathValue("id")
		created := make([]notion.Block, 0, len(payload.Children))
		for _, child := range payload.Children {
			f.nextID++
			child.ID = fmt.Sprintf("blk-%d", f.nextID)
			if id == testPageID {
				f.pageChildren = append(f.pageChildren, child)
			} else {
				f.logChildren[id] = append(f.logChildren[id], child)
			}
			created = append(created, child)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"results": created})
	})

	mux.HandleFunc("DELETE /v1/blocks/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		id := r.PathValue("id")
		f.deleted = append(f.deleted, id)
		kept := f.pageChildren[:0]
		for _, b := range f.pageChildren {
			if b.ID != id {
				kept = append(kept, b)
			}
		}
		f.pageChildren = kept
		_, _ = w.Write([]byte(`{}`))
	})

	return mux
}

// logMessages flattens all audit entries across containers, in append order.
func (f *fakeNotion) logMessages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var msgs []string
	for _, b := range f.pageChildren {
		if !auditlog.IsLogBlock(b) {
			continue
		}
		for _, entry := range f.logChildren[b.ID] {
			if entry.Paragraph != nil {
				msgs = append(msgs, notion.PlainString(entry.Paragraph.RichText))
			}
		}
	}
	return msgs
}

// fakeGitHub records issue reads and writes.
type fakeGitHub struct {
	mu       gosync.Mutex
	issues   map[int]*github.IssueParams
	requests []string
	created  []github.IssueParams
	updated  []github.IssueParams
}

func newFakeGitHub() *fakeGitHub {
	return &fakeGitHub{issues: make(map[int]*github.IssueParams)}
}

func issueJSON(number int, params github.IssueParams) map[string]any {
	labels := make([]map[string]string, 0, len(params.Labels))
	for _, l := range params.Labels {
		labels = append(labels, map[string]string{"name": l})
	}
	state := params.State
	if state == "" {
		state = "open"
	}
	return map[string]any{
		"number":   number,
		"title":    params.Title,
		"body":     params.Body,
		"state":    state,
		"labels":   labels,
		"html_url": fmt.Sprintf("https://github.com/quan0715/test_repo/issues/%d", number),
	}
}

func (f *fakeGitHub) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /repos/{owner}/{repo}/issues/{num}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.requests = append(f.requests, "GET "+r.URL.Path)
		var num int
		_, _ = fmt.Sscanf(r.PathValue("num"), "%d", &num)
		issue, ok := f.issues[num]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"Not Found"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(issueJSON(num, *issue))
	})

	mux.HandleFunc("POST /repos/{owner}/{repo}/issues", func(w http.ResponseWriter, r *http.Request) {
		var params github.IssueParams
		_ = json.NewDecoder(r.Body).Decode(&params)
		f.mu.Lock()
		defer f.mu.Unlock()
		f.requests = append(f.requests, "POST "+r.URL.Path)
		f.created = append(f.created, params)
		num := 100 + len(f.created)
		f.issues[num] = &params
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(issueJSON(num, params))
	})

	mux.HandleFunc("PATCH /repos/{owner}/{repo}/issues/{num}", func(w http.ResponseWriter, r *http.Request) {
		var params github.IssueParams
		_ = json.NewDecoder(r.Body).Decode(&params)
		f.mu.Lock()
		defer f.mu.Unlock()
		f.requests = append(f.requests, "PATCH "+r.URL.Path)
		f.updated = append(f.updated, params)
		var num int
		_, _ = fmt.Sscanf(r.PathValue("num"), "%d", &num)
		f.issues[num] = &params
		_ = json.NewEncoder(w).Encode(issueJSON(num, params))
	})

	return mux
}

// memStore is an in-memory Store for history assertions.
type memStore struct {
	mu      gosync.Mutex
	records []*models.SyncRecord
}

func (m *memStore) CreateSyncRecord(_ context.Context, rec *models.SyncRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func (m *memStore) ListSyncRecords(context.Context, int) ([]*models.SyncRecord, error) {
	return m.records, nil
}

func (m *memStore) ListSyncRecordsForPage(context.Context, string, int) ([]*models.SyncRecord, error) {
	return m.records, nil
}

func (m *memStore) Migrate(context.Context) error { return nil }
func (m *memStore) Close() error                  { return nil }

func issuePage(repo, link string) *notion.Page {
	return &notion.Page{
		ID: testPageID,
		Properties: map[string]notion.Property{
			"Issue Title": {Type: notion.PropTitle, Title: []notion.RichText{notion.NewText("Crash on startup")}},
			"Issue Tag":   {Type: notion.PropMultiSelect, MultiSelect: []notion.SelectOption{{Name: "bug"}}},
			"Repository":  {Type: notion.PropSelect, Select: &notion.SelectOption{Name: repo}},
			"issue_link":  {Type: notion.PropURL, URL: link},
		},
	}
}

func issueContent() []notion.Block {
	return []notion.Block{
		{ID: "h1", Type: notion.BlockHeading1, Heading1: &notion.RichTextValue{
			RichText: []notion.RichText{notion.NewText("Summary")},
		}},
		{ID: "p1", Type: notion.BlockParagraph, Paragraph: &notion.RichTextValue{
			RichText: []notion.RichText{notion.NewText("It crashes")},
		}},
	}
}

func newTestOrchestrator(t *testing.T, fn *fakeNotion, fg *fakeGitHub, history *memStore) *Orchestrator {
	t.Helper()

	notionSrv := httptest.NewServer(fn.handler())
	t.Cleanup(notionSrv.Close)
	githubSrv := httptest.NewServer(fg.handler())
	t.Cleanup(githubSrv.Close)

	nc := notion.NewClient("ntok", notionSrv.URL, nil)
	gc := github.NewClient("gtok", githubSrv.URL, nil)

	fields := issuemap.DefaultFields()
	return &Orchestrator{
		Notion: nc,
		GitHub: gc,
		Logs:   auditlog.NewManager(nc),
		Mapper: &issuemap.Mapper{
			Fields:       fields,
			AllowedRepos: []models.Repo{{Owner: "quan0715", Name: "test_repo"}},
		},
		Renderer: &render.Renderer{
			BaseURL: "https://sync.example.com",
			Skip:    auditlog.IsLogBlock,
		},
		Exec:        retry.Executor{MaxRetries: 2, Delay: time.Millisecond},
		History:     history,
		StatusField: fields.Status,
	}
}

func TestSync_CreatesIssueWhenLinkEmpty(t *testing.T) {
	fn := newFakeNotion(issuePage("quan0715/test_repo", ""), issueContent())
	fg := newFakeGitHub()
	history := &memStore{}
	o := newTestOrchestrator(t, fn, fg, history)

	require.NoError(t, o.Sync(context.Background(), testPageID))

	require.Len(t, fg.created, 1)
	created := fg.created[0]
	assert.Equal(t, "Crash on startup", created.Title)
	assert.Equal(t, "# Summary\nIt crashes", created.Body)
	assert.Equal(t, []string{"bug"}, created.Labels)
	assert.Empty(t, fg.updated)

	msgs := fn.logMessages()
	require.NotEmpty(t, msgs)
	assert.Contains(t, msgs[0], "log initialized")
	assert.Contains(t, strings.Join(msgs, "\n"), "webhook received")
	assert.Contains(t, strings.Join(msgs, "\n"), "issue not found, creating a new issue")
	assert.Contains(t, strings.Join(msgs, "\n"), "issue created: https://github.com/quan0715/test_repo/issues/101")

	require.Len(t, history.records, 1)
	rec := history.records[0]
	assert.Equal(t, models.SyncActionCreate, rec.Action)
	assert.Equal(t, models.SyncResultDone, rec.Result)
	assert.Equal(t, "quan0715/test_repo", rec.Repo)
	assert.Equal(t, 101, rec.IssueNumber)
}

func TestSync_UpdatesExistingIssue(t *testing.T) {
	fn := newFakeNotion(
		issuePage("quan0715/test_repo", "https://github.com/quan0715/test_repo/issues/7"),
		issueContent(),
	)
	fg := newFakeGitHub()
	fg.issues[7] = &github.IssueParams{Title: "old title", State: "closed"}
	history := &memStore{}
	o := newTestOrchestrator(t, fn, fg, history)

	require.NoError(t, o.Sync(context.Background(), testPageID))

	require.Len(t, fg.updated, 1)
	assert.Equal(t, "Crash on startup", fg.updated[0].Title)
	assert.Equal(t, "open", fg.updated[0].State)
	assert.Empty(t, fg.created)

	joined := strings.Join(fn.logMessages(), "\n")
	assert.Contains(t, joined, "issue #7 exists, updating")
	assert.Contains(t, joined, "issue updated")

	require.Len(t, history.records, 1)
	assert.Equal(t, models.SyncActionUpdate, history.records[0].Action)
}

func TestSync_StatusWrittenBeforeLink(t *testing.T) {
	fn := newFakeNotion(issuePage("quan0715/test_repo", ""), issueContent())
	fg := newFakeGitHub()
	o := newTestOrchestrator(t, fn, fg, &memStore{})

	require.NoError(t, o.Sync(context.Background(), testPageID))

	require.Equal(t, []string{"Status", "issue_link"}, fn.propOrder)
}

func TestSync_NoTargetRepoShortCircuits(t *testing.T) {
	fn := newFakeNotion(issuePage("not-allowed/repo", ""), issueContent())
	fg := newFakeGitHub()
	history := &memStore{}
	o := newTestOrchestrator(t, fn, fg, history)

	err := o.Sync(context.Background(), testPageID)
	require.ErrorIs(t, err, ErrNoTargetRepo)

	assert.Empty(t, fg.requests, "no GitHub calls for an unsyncable page")
	assert.Empty(t, fn.propOrder, "no property writes for an unsyncable page")

	joined := strings.Join(fn.logMessages(), "\n")
	assert.Contains(t, joined, "repository is empty or not allow-listed")
	assert.Contains(t, joined, "sync failed")

	require.Len(t, history.records, 1)
	rec := history.records[0]
	assert.Equal(t, models.SyncResultFailed, rec.Result)
	assert.Equal(t, models.SyncActionNone, rec.Action)
	assert.NotEmpty(t, rec.Error)
}

func TestSync_LookupFailureFallsBackToCreate(t *testing.T) {
	// Link points at an issue the API does not know; GetIssue returns nil and
	// the pipeline takes the create branch.
	fn := newFakeNotion(
		issuePage("quan0715/test_repo", "https://github.com/quan0715/test_repo/issues/999"),
		issueContent(),
	)
	fg := newFakeGitHub()
	o := newTestOrchestrator(t, fn, fg, &memStore{})

	require.NoError(t, o.Sync(context.Background(), testPageID))

	require.Len(t, fg.created, 1)
	assert.Empty(t, fg.updated)
}

func TestSync_SecondRunUpdatesCreatedIssue(t *testing.T) {
	fn := newFakeNotion(issuePage("quan0715/test_repo", ""), issueContent())
	fg := newFakeGitHub()
	o := newTestOrchestrator(t, fn, fg, &memStore{})

	require.NoError(t, o.Sync(context.Background(), testPageID))
	require.Len(t, fg.created, 1)
	assert.Empty(t, fg.updated)

	// The first run wrote the created issue's URL back to the page.
	assert.Equal(t,
		"https://github.com/quan0715/test_repo/issues/101",
		fn.page.Properties["issue_link"].URL)

	// The second run parses that link, finds the issue, and updates it.
	require.NoError(t, o.Sync(context.Background(), testPageID))
	assert.Len(t, fg.created, 1, "second run must not create a duplicate")
	require.Len(t, fg.updated, 1)
	assert.Contains(t, fg.requests, "GET /repos/quan0715/test_repo/issues/101")
	assert.Contains(t, fg.requests, "PATCH /repos/quan0715/test_repo/issues/101")
}

func TestSync_SecondRunReplacesAuditLog(t *testing.T) {
	fn := newFakeNotion(
		issuePage("quan0715/test_repo", "https://github.com/quan0715/test_repo/issues/7"),
		issueContent(),
	)
	fg := newFakeGitHub()
	fg.issues[7] = &github.IssueParams{Title: "old"}
	o := newTestOrchestrator(t, fn, fg, &memStore{})

	require.NoError(t, o.Sync(context.Background(), testPageID))
	require.NoError(t, o.Sync(context.Background(), testPageID))

	// Two updates, but the page carries exactly one log container.
	assert.Len(t, fg.updated, 2)
	containers := 0
	for _, b := range fn.pageChildren {
		if auditlog.IsLogBlock(b) {
			containers++
		}
	}
	assert.Equal(t, 1, containers)
	assert.Len(t, fn.deleted, 1)
}

func TestSync_LogContainerExcludedFromBody(t *testing.T) {
	fn := newFakeNotion(
		issuePage("quan0715/test_repo", "https://github.com/quan0715/test_repo/issues/7"),
		issueContent(),
	)
	fg := newFakeGitHub()
	fg.issues[7] = &github.IssueParams{Title: "old"}
	o := newTestOrchestrator(t, fn, fg, &memStore{})

	// First run leaves a log container on the page; the second run's rendered
	// body must not include it.
	require.NoError(t, o.Sync(context.Background(), testPageID))
	require.NoError(t, o.Sync(context.Background(), testPageID))

	require.Len(t, fg.updated, 2)
	assert.Equal(t, "# Summary\nIt crashes", fg.updated[1].Body)
	assert.NotContains(t, fg.updated[1].Body, "Notion Action Log")
}
