// Package auditlog maintains the per-page sync action log: a callout block on
// the issue page that accumulates timestamped entries for the most recent
// webhook invocation.
//
// The manager writes through the raw Notion client on purpose. Routing its
// writes through the retry executor would have the executor logging about
// logging; see the executor's contract in internal/retry.
package auditlog

import (
	"context"
	"fmt"
	"time"

	"github.com/quan0715/notion-github-sync/internal/models"
	"github.com/quan0715/notion-github-sync/internal/notion"
)

const (
	containerType  = notion.BlockCallout
	containerTitle = "Notion Action Log"
	containerEmoji = "📋"
	containerColor = "blue_background"

	timestampLayout = "2006/01/02 15:04:05"
)

// IsLogBlock reports whether a block is the audit log container, identified
// by block kind and exact title.
func IsLogBlock(b notion.Block) bool {
	if b.Type != containerType || b.Callout == nil {
		return false
	}
	return notion.PlainString(b.Callout.RichText) == containerTitle
}

// Manager creates and appends to audit log containers.
type Manager struct {
	client *notion.Client
	now    func() time.Time
}

// NewManager returns a Manager writing through the given client.
func NewManager(client *notion.Client) *Manager {
	return &Manager{client: client, now: time.Now}
}

// Handle is an append-only reference to one page's live log container.
type Handle struct {
	m       *Manager
	BlockID string
}

// Initialize enforces the at-most-one-container invariant: any prior log
// container on the page is deleted, a fresh one is created, and an initial
// info entry is appended.
func (m *Manager) Initialize(ctx context.Context, pageID string) (*Handle, error) {
	blocks, err := m.client.ListChildren(ctx, pageID)
	if err != nil {
		return nil, fmt.Errorf("scan page %s for log container: %w", pageID, err)
	}
	for i := len(blocks) - 1; i >= 0; i-- {
		if IsLogBlock(blocks[i]) {
			if err := m.client.DeleteBlock(ctx, blocks[i].ID); err != nil {
				return nil, fmt.Errorf("replace prior log container: %w", err)
			}
		}
	}

	container := notion.Block{
		Type: containerType,
		Callout: &notion.CalloutValue{
			RichText: []notion.RichText{
				notion.NewText(containerTitle).WithAnnotations(notion.Annotations{Bold: true}),
			},
			Icon:  &notion.Icon{Type: "emoji", Emoji: containerEmoji},
			Color: containerColor,
		},
	}
	created, err := m.client.AppendChildren(ctx, pageID, []notion.Block{container})
	if err != nil {
		return nil, fmt.Errorf("create log container: %w", err)
	}
	if len(created) == 0 {
		return nil, fmt.Errorf("create log container: empty append result")
	}

	h := &Handle{m: m, BlockID: created[0].ID}
	if err := h.Append(ctx, models.LogInfo, "log initialized"); err != nil {
		return nil, err
	}
	return h, nil
}

// Append adds one formatted entry: "[icon] message [timestamp]". Severity
// picks the icon and entry color; success has no icon override.
func (h *Handle) Append(ctx context.Context, severity models.LogSeverity, message string) error {
	icon, color := severityStyle(severity)
	timestamp := h.m.now().Format(timestampLayout)

	entry := notion.Block{
		Type: notion.BlockParagraph,
		Paragraph: &notion.RichTextValue{
			RichText: []notion.RichText{
				notion.NewText("[" + icon + "] ").WithAnnotations(notion.Annotations{Color: color}),
				notion.NewText(message).WithAnnotations(notion.Annotations{Color: color, Bold: true}),
				notion.NewText(" [" + timestamp + "]").WithAnnotations(notion.Annotations{Color: "gray"}),
			},
		},
	}
	if _, err := h.m.client.AppendChildren(ctx, h.BlockID, []notion.Block{entry}); err != nil {
		return fmt.Errorf("append log entry: %w", err)
	}
	return nil
}

func severityStyle(severity models.LogSeverity) (icon, color string) {
	switch severity {
	case models.LogError:
		return "❌", "red"
	case models.LogWarning:
		return "⚠️", "yellow"
	case models.LogSuccess:
		return "", "green"
	default:
		return "📝", "blue"
	}
}
