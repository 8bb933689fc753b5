package models

import "time"

// SyncAction records which branch the orchestrator took.
type SyncAction string

const (
	SyncActionCreate SyncAction = "create"
	SyncActionUpdate SyncAction = "update"
	SyncActionNone   SyncAction = "none"
)

// SyncResult records the terminal state of a webhook invocation.
type SyncResult string

const (
	SyncResultDone   SyncResult = "done"
	SyncResultFailed SyncResult = "failed"
)

// SyncRecord is one persisted webhook invocation, kept for the history view.
type SyncRecord struct {
	ID          string
	PageID      string
	Repo        string
	IssueNumber int
	Action      SyncAction
	Result      SyncResult
	Error       string
	DurationMS  int64
	CreatedAt   time.Time
}
