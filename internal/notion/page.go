package notion

// SelectOption is one chosen option of a select or multi_select property.
type SelectOption struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// Property is a loosely-typed page property value. Exactly one payload field
// matches Type; readers must go through the typed accessors on Page, which
// fail closed on a kind mismatch instead of guessing.
type Property struct {
	ID          string         `json:"id,omitempty"`
	Type        string         `json:"type"`
	Title       []RichText     `json:"title,omitempty"`
	MultiSelect []SelectOption `json:"multi_select,omitempty"`
	Select      *SelectOption  `json:"select,omitempty"`
	Status      *SelectOption  `json:"status,omitempty"`
	URL         string         `json:"url,omitempty"`
}

// Property kinds used by the issue database.
const (
	PropTitle       = "title"
	PropMultiSelect = "multi_select"
	PropSelect      = "select"
	PropStatus      = "status"
	PropURL         = "url"
)

// Page is a Notion page (one issue record).
type Page struct {
	Object     string              `json:"object"`
	ID         string              `json:"id"`
	URL        string              `json:"url,omitempty"`
	Properties map[string]Property `json:"properties"`
}

// TitleText returns the first text span of a title property, or "" when the
// field is absent or not a title.
func (p *Page) TitleText(field string) string {
	prop, ok := p.Properties[field]
	if !ok || prop.Type != PropTitle || len(prop.Title) == 0 {
		return ""
	}
	first := prop.Title[0]
	if first.Text != nil {
		return first.Text.Content
	}
	return first.PlainText
}

// MultiSelectNames returns the selected option names of a multi_select
// property, or nil when the field is absent or of another kind.
func (p *Page) MultiSelectNames(field string) []string {
	prop, ok := p.Properties[field]
	if !ok || prop.Type != PropMultiSelect {
		return nil
	}
	names := make([]string, 0, len(prop.MultiSelect))
	for _, opt := range prop.MultiSelect {
		names = append(names, opt.Name)
	}
	return names
}

// SelectName returns the chosen option name of a select property, or "" when
// the field is absent, unset, or of another kind.
func (p *Page) SelectName(field string) string {
	prop, ok := p.Properties[field]
	if !ok || prop.Type != PropSelect || prop.Select == nil {
		return ""
	}
	return prop.Select.Name
}

// URLValue returns the value of a url property, or "" when the field is
// absent or of another kind.
func (p *Page) URLValue(field string) string {
	prop, ok := p.Properties[field]
	if !ok || prop.Type != PropURL {
		return ""
	}
	return prop.URL
}
