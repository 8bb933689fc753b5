package notion

// Annotations carries the emphasis flags on a rich text span.
type Annotations struct {
	Bold          bool   `json:"bold,omitempty"`
	Italic        bool   `json:"italic,omitempty"`
	Strikethrough bool   `json:"strikethrough,omitempty"`
	Underline     bool   `json:"underline,omitempty"`
	Code          bool   `json:"code,omitempty"`
	Color         string `json:"color,omitempty"`
}

// TextLink is the optional hyperlink on a text span.
type TextLink struct {
	URL string `json:"url"`
}

// TextContent is the payload of a "text" rich text span.
type TextContent struct {
	Content string    `json:"content"`
	Link    *TextLink `json:"link,omitempty"`
}

// EquationContent is the payload of an "equation" rich text span.
type EquationContent struct {
	Expression string `json:"expression"`
}

// RichText is one span of a Notion rich text sequence.
type RichText struct {
	Type        string           `json:"type"`
	Text        *TextContent     `json:"text,omitempty"`
	Equation    *EquationContent `json:"equation,omitempty"`
	Annotations Annotations      `json:"annotations,omitempty"`
	PlainText   string           `json:"plain_text,omitempty"`
}

// NewText builds a plain "text" span, for append payloads.
func NewText(content string) RichText {
	return RichText{Type: "text", Text: &TextContent{Content: content}}
}

// WithAnnotations returns a copy of the span with the given annotations set.
func (rt RichText) WithAnnotations(a Annotations) RichText {
	rt.Annotations = a
	return rt
}

// PlainString concatenates the literal text of the spans, ignoring emphasis.
func PlainString(spans []RichText) string {
	out := ""
	for _, s := range spans {
		switch {
		case s.Text != nil:
			out += s.Text.Content
		case s.PlainText != "":
			out += s.PlainText
		}
	}
	return out
}
