// Package sync implements the webhook-driven create-or-update pipeline
// between a Notion issue page and its GitHub issue.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/quan0715/notion-github-sync/internal/auditlog"
	"github.com/quan0715/notion-github-sync/internal/github"
	"github.com/quan0715/notion-github-sync/internal/issuemap"
	"github.com/quan0715/notion-github-sync/internal/models"
	"github.com/quan0715/notion-github-sync/internal/notion"
	"github.com/quan0715/notion-github-sync/internal/render"
	"github.com/quan0715/notion-github-sync/internal/retry"
	"github.com/quan0715/notion-github-sync/internal/store"
)

// ErrNoTargetRepo aborts a sync whose page names no allow-listed repository.
var ErrNoTargetRepo = errors.New("page has no allow-listed target repository")

// Orchestrator wires the pipeline together. All clients are injected once at
// startup and shared across invocations; per-invocation state lives on the
// stack of Sync.
type Orchestrator struct {
	Notion   *notion.Client
	GitHub   *github.Client
	Logs     *auditlog.Manager
	Mapper   *issuemap.Mapper
	Renderer *render.Renderer
	Exec     retry.Executor
	History  store.Store // optional; nil disables history
	Logger   *slog.Logger

	// StatusField is the page property receiving the issue state.
	StatusField string
}

// Sync runs the full pipeline for one page: map, render, look up the GitHub
// issue, create or update it, then write status and link back to the page
// (status always first). Audit entries are appended at each step; a failure
// anywhere is logged to the page and returned.
func (o *Orchestrator) Sync(ctx context.Context, pageID string) error {
	started := time.Now()

	logHandle, err := o.Logs.Initialize(ctx, pageID)
	if err != nil {
		return fmt.Errorf("initialize audit log: %w", err)
	}
	_ = logHandle.Append(ctx, models.LogInfo, "webhook received")

	rec := &models.SyncRecord{PageID: pageID, Action: models.SyncActionNone}
	err = o.run(ctx, pageID, logHandle, rec)

	rec.DurationMS = time.Since(started).Milliseconds()
	if err != nil {
		rec.Result = models.SyncResultFailed
		rec.Error = err.Error()
		// Logging must never abort the primary sync; append errors are dropped.
		_ = logHandle.Append(ctx, models.LogError, fmt.Sprintf("sync failed: %v", err))
	} else {
		rec.Result = models.SyncResultDone
	}
	o.record(ctx, rec)
	return err
}

func (o *Orchestrator) run(ctx context.Context, pageID string, logHandle *auditlog.Handle, rec *models.SyncRecord) error {
	page, err := o.Notion.GetPage(ctx, pageID)
	if err != nil {
		return err
	}

	issue := o.Mapper.Map(page)
	if issue.Repo == nil {
		_ = logHandle.Append(ctx, models.LogError, "repository is empty or not allow-listed")
		return ErrNoTargetRepo
	}
	rec.Repo = issue.Repo.String()
	_ = logHandle.Append(ctx, models.LogInfo, "target repository: "+issue.Repo.String())

	blocks, err := o.Notion.ListChildren(ctx, pageID)
	if err != nil {
		return err
	}
	body := o.Renderer.Render(blocks)

	// A lookup failure is treated as "issue does not exist", driving the
	// create branch; GitHub transport errors must not block the sync.
	var existing *models.RemoteIssue
	if issue.IssueNumber > 0 {
		existing, err = o.GitHub.GetIssue(ctx, issue.Repo.Owner, issue.Repo.Name, issue.IssueNumber)
		if err != nil {
			o.logger().Warn("issue lookup failed, treating as missing",
				"page", pageID, "issue", issue.IssueNumber, "error", err)
			existing = nil
		}
	}

	if existing != nil {
		return o.updateBranch(ctx, pageID, logHandle, rec, issue, body)
	}
	return o.createBranch(ctx, pageID, logHandle, rec, issue, body)
}

func (o *Orchestrator) createBranch(ctx context.Context, pageID string, logHandle *auditlog.Handle, rec *models.SyncRecord, issue models.NormalizedIssue, body string) error {
	_ = logHandle.Append(ctx, models.LogInfo, "issue not found, creating a new issue")

	created, err := o.GitHub.CreateIssue(ctx, issue.Repo.Owner, issue.Repo.Name, github.IssueParams{
		Title:  issue.Title,
		Body:   body,
		Labels: issue.Labels,
	})
	if err != nil {
		return err
	}
	rec.Action = models.SyncActionCreate
	rec.IssueNumber = created.Number
	_ = logHandle.Append(ctx, models.LogSuccess, "issue created: "+created.HTMLURL)

	return o.writeBack(ctx, logHandle, pageID, created)
}

func (o *Orchestrator) updateBranch(ctx context.Context, pageID string, logHandle *auditlog.Handle, rec *models.SyncRecord, issue models.NormalizedIssue, body string) error {
	_ = logHandle.Append(ctx, models.LogInfo, fmt.Sprintf("issue #%d exists, updating", issue.IssueNumber))

	updated, err := o.GitHub.UpdateIssue(ctx, issue.Repo.Owner, issue.Repo.Name, issue.IssueNumber, github.IssueParams{
		Title:  issue.Title,
		Body:   body,
		Labels: issue.Labels,
	})
	if err != nil {
		return err
	}
	rec.Action = models.SyncActionUpdate
	rec.IssueNumber = updated.Number
	_ = logHandle.Append(ctx, models.LogSuccess, "issue updated")

	return o.writeBack(ctx, logHandle, pageID, updated)
}

// writeBack updates the page's status and link properties, in that order.
// Callers rely on "link present implies status already current".
func (o *Orchestrator) writeBack(ctx context.Context, logHandle *auditlog.Handle, pageID string, issue *models.RemoteIssue) error {
	err := retry.DoVoid(ctx, o.Exec, logHandle,
		"update issue status to "+issue.State,
		func(ctx context.Context) error {
			return o.Notion.UpdateStatusProperty(ctx, pageID, o.StatusField, issue.State)
		})
	if err != nil {
		return fmt.Errorf("write status: %w", err)
	}

	err = retry.DoVoid(ctx, o.Exec, logHandle,
		"update issue link to "+issue.HTMLURL,
		func(ctx context.Context) error {
			return o.Notion.UpdateURLProperty(ctx, pageID, o.Mapper.Fields.Link, issue.HTMLURL)
		})
	if err != nil {
		return fmt.Errorf("write link: %w", err)
	}
	return nil
}

func (o *Orchestrator) record(ctx context.Context, rec *models.SyncRecord) {
	if o.History == nil {
		return
	}
	if err := o.History.CreateSyncRecord(ctx, rec); err != nil {
		o.logger().Warn("record sync history", "page", rec.PageID, "error", err)
	}
}

func (o *Orchestrator) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}
