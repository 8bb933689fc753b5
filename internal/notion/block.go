package notion

// Block kinds the renderer and audit log recognize. Anything else is passed
// through as an unknown kind and renders to nothing.
const (
	BlockParagraph        = "paragraph"
	BlockHeading1         = "heading_1"
	BlockHeading2         = "heading_2"
	BlockHeading3         = "heading_3"
	BlockImage            = "image"
	BlockFile             = "file"
	BlockNumberedListItem = "numbered_list_item"
	BlockBulletedListItem = "bulleted_list_item"
	BlockDivider          = "divider"
	BlockToDo             = "to_do"
	BlockQuote            = "quote"
	BlockCode             = "code"
	BlockBookmark         = "bookmark"
	BlockCallout          = "callout"
)

// RichTextValue is the common payload shape of text-bearing blocks.
type RichTextValue struct {
	RichText []RichText `json:"rich_text"`
	Color    string     `json:"color,omitempty"`
}

// ToDoValue is the payload of a to_do block.
type ToDoValue struct {
	RichText []RichText `json:"rich_text"`
	Checked  bool       `json:"checked"`
}

// CodeValue is the payload of a code block.
type CodeValue struct {
	RichText []RichText `json:"rich_text"`
	Language string     `json:"language"`
}

// Icon is an emoji or external icon on a callout block.
type Icon struct {
	Type  string `json:"type"`
	Emoji string `json:"emoji,omitempty"`
}

// CalloutValue is the payload of a callout block.
type CalloutValue struct {
	RichText []RichText `json:"rich_text"`
	Icon     *Icon      `json:"icon,omitempty"`
	Color    string     `json:"color,omitempty"`
}

// FileRef points at hosted or external file content.
type FileRef struct {
	URL string `json:"url"`
}

// FileValue is the payload of image and file blocks. Name and Caption are only
// present on file and image blocks respectively.
type FileValue struct {
	Type     string     `json:"type"` // "file" or "external"
	File     *FileRef   `json:"file,omitempty"`
	External *FileRef   `json:"external,omitempty"`
	Name     string     `json:"name,omitempty"`
	Caption  []RichText `json:"caption,omitempty"`
}

// URL returns whichever storage URL is populated.
func (f *FileValue) URL() string {
	switch {
	case f == nil:
		return ""
	case f.External != nil:
		return f.External.URL
	case f.File != nil:
		return f.File.URL
	}
	return ""
}

// BookmarkValue is the payload of a bookmark block.
type BookmarkValue struct {
	URL string `json:"url"`
}

// Block is one unit of page content. It doubles as the append payload: only
// the field matching Type is populated.
type Block struct {
	Object           string         `json:"object,omitempty"`
	ID               string         `json:"id,omitempty"`
	Type             string         `json:"type"`
	HasChildren      bool           `json:"has_children,omitempty"`
	Paragraph        *RichTextValue `json:"paragraph,omitempty"`
	Heading1         *RichTextValue `json:"heading_1,omitempty"`
	Heading2         *RichTextValue `json:"heading_2,omitempty"`
	Heading3         *RichTextValue `json:"heading_3,omitempty"`
	Quote            *RichTextValue `json:"quote,omitempty"`
	NumberedListItem *RichTextValue `json:"numbered_list_item,omitempty"`
	BulletedListItem *RichTextValue `json:"bulleted_list_item,omitempty"`
	ToDo             *ToDoValue     `json:"to_do,omitempty"`
	Code             *CodeValue     `json:"code,omitempty"`
	Callout          *CalloutValue  `json:"callout,omitempty"`
	Image            *FileValue     `json:"image,omitempty"`
	File             *FileValue     `json:"file,omitempty"`
	Bookmark         *BookmarkValue `json:"bookmark,omitempty"`
	Divider          *struct{}      `json:"divider,omitempty"`
}

// Spans returns the rich text sequence of a text-bearing block, or nil for
// block kinds without one.
func (b Block) Spans() []RichText {
	switch b.Type {
	case BlockParagraph:
		if b.Paragraph != nil {
			return b.Paragraph.RichText
		}
	case BlockHeading1:
		if b.Heading1 != nil {
			return b.Heading1.RichText
		}
	case BlockHeading2:
		if b.Heading2 != nil {
			return b.Heading2.RichText
		}
	case BlockHeading3:
		if b.Heading3 != nil {
			return b.Heading3.RichText
		}
	case BlockQuote:
		if b.Quote != nil {
			return b.Quote.RichText
		}
	case BlockNumberedListItem:
		if b.NumberedListItem != nil {
			return b.NumberedListItem.RichText
		}
	case BlockBulletedListItem:
		if b.BulletedListItem != nil {
			return b.BulletedListItem.RichText
		}
	case BlockToDo:
		if b.ToDo != nil {
			return b.ToDo.RichText
		}
	case BlockCallout:
		if b.Callout != nil {
			return b.Callout.RichText
		}
	}
	return nil
}
