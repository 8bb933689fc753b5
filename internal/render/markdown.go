// Package render converts a page's content blocks into the markdown body of
// a GitHub issue.
package render

import (
	"strings"

	"github.com/quan0715/notion-github-sync/internal/notion"
)

// Renderer turns a block sequence into markdown. BaseURL is the public
// address of this service; image and file links point back at the proxy
// endpoints rather than Notion's storage URLs, which sit behind a third-party
// warning interstitial.
type Renderer struct {
	BaseURL string
	// Skip excludes blocks from output, e.g. the audit log container.
	Skip func(notion.Block) bool
}

// Render produces the markdown for an ordered block sequence. Blocks that
// render to the empty string are dropped; the rest are joined by newlines.
// Rendering is deterministic and never fails: malformed blocks yield "".
func (r *Renderer) Render(blocks []notion.Block) string {
	var lines []string
	for _, b := range blocks {
		if line := r.renderBlock(b); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func (r *Renderer) renderBlock(b notion.Block) string {
	if r.Skip != nil && r.Skip(b) {
		return ""
	}
	switch b.Type {
	case notion.BlockParagraph:
		return Spans(b.Spans())
	case notion.BlockHeading1:
		if b.Heading1 == nil {
			return ""
		}
		return "# " + Spans(b.Heading1.RichText)
	case notion.BlockHeading2:
		if b.Heading2 == nil {
			return ""
		}
		return "## " + Spans(b.Heading2.RichText)
	case notion.BlockHeading3:
		if b.Heading3 == nil {
			return ""
		}
		return "### " + Spans(b.Heading3.RichText)
	case notion.BlockNumberedListItem:
		if b.NumberedListItem == nil {
			return ""
		}
		// Markdown renumbers on display, so every item gets the same prefix.
		return "1. " + Spans(b.NumberedListItem.RichText)
	case notion.BlockBulletedListItem:
		if b.BulletedListItem == nil {
			return ""
		}
		return "- " + Spans(b.BulletedListItem.RichText)
	case notion.BlockToDo:
		if b.ToDo == nil {
			return ""
		}
		box := "- [ ] "
		if b.ToDo.Checked {
			box = "- [x] "
		}
		return box + Spans(b.ToDo.RichText)
	case notion.BlockQuote:
		if b.Quote == nil {
			return ""
		}
		return "> " + Spans(b.Quote.RichText)
	case notion.BlockDivider:
		return "---"
	case notion.BlockCode:
		if b.Code == nil {
			return ""
		}
		// Annotations are not applied inside a fence.
		return "```" + b.Code.Language + "\n" + notion.PlainString(b.Code.RichText) + "\n```"
	case notion.BlockImage:
		return r.renderImage(b)
	case notion.BlockFile:
		return r.renderFile(b)
	case notion.BlockBookmark:
		if b.Bookmark == nil || b.Bookmark.URL == "" {
			return ""
		}
		return "[" + b.Bookmark.URL + "](" + b.Bookmark.URL + ")"
	}
	return ""
}

func (r *Renderer) renderImage(b notion.Block) string {
	if b.Image == nil || b.Image.URL() == "" {
		return ""
	}
	caption := Spans(b.Image.Caption)
	if caption == "" {
		caption = b.ID
	}
	return "![" + caption + "](" + r.proxyURL("image", b.ID) + ")"
}

func (r *Renderer) renderFile(b notion.Block) string {
	if b.File == nil || b.File.URL() == "" {
		return ""
	}
	return "[" + b.File.Name + "](" + r.proxyURL("file", b.ID) + ")"
}

func (r *Renderer) proxyURL(kind, blockID string) string {
	return r.BaseURL + "/api/proxy/" + kind + "?block_id=" + blockID
}

// Spans renders a rich text sequence with markdown emphasis. Markers nest in
// a fixed order: code innermost, then strikethrough, italic, bold, underline,
// with any hyperlink wrapper outermost. Equation spans ignore emphasis and
// render as $$expression$$.
func Spans(spans []notion.RichText) string {
	var sb strings.Builder
	for _, s := range spans {
		sb.WriteString(renderSpan(s))
	}
	return sb.String()
}

func renderSpan(s notion.RichText) string {
	if s.Type == "equation" {
		if s.Equation == nil {
			return ""
		}
		return "$$" + s.Equation.Expression + "$$"
	}
	if s.Text == nil {
		return ""
	}

	out := s.Text.Content
	a := s.Annotations
	if a.Code {
		out = "`" + out + "`"
	}
	if a.Strikethrough {
		out = "~~" + out + "~~"
	}
	if a.Italic {
		out = "_" + out + "_"
	}
	if a.Bold {
		out = "**" + out + "**"
	}
	if a.Underline {
		out = "<u>" + out + "</u>"
	}
	if s.Text.Link != nil && s.Text.Link.URL != "" {
		out = "[" + out + "](" + s.Text.Link.URL + ")"
	}
	return out
}
