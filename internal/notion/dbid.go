package notion

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	rawIDPattern    = regexp.MustCompile(`^[a-zA-Z0-9]{32}$`)
	hyphenIDPattern = regexp.MustCompile(`^[a-zA-Z0-9]{8}-[a-zA-Z0-9]{4}-[a-zA-Z0-9]{4}-[a-zA-Z0-9]{4}-[a-zA-Z0-9]{12}$`)
	embeddedPattern = regexp.MustCompile(`([a-zA-Z0-9]{32})`)
)

// ParseDatabaseID extracts a Notion database id from a raw id or a share URL
// and returns it in canonical 8-4-4-4-12 hyphenated form.
func ParseDatabaseID(input string) (string, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return "", fmt.Errorf("empty database id")
	}

	if hyphenIDPattern.MatchString(s) {
		return s, nil
	}
	if rawIDPattern.MatchString(s) {
		return hyphenate(s), nil
	}

	// Share URLs carry the id as the last path segment, possibly prefixed by
	// the page title and followed by a query string.
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	found := ""
	for _, part := range strings.Split(s, "/") {
		if m := embeddedPattern.FindString(part); m != "" {
			found = m
		}
	}
	if found == "" {
		return "", fmt.Errorf("no database id found in %q", input)
	}
	return hyphenate(found), nil
}

func hyphenate(raw string) string {
	return raw[0:8] + "-" + raw[8:12] + "-" + raw[12:16] + "-" + raw[16:20] + "-" + raw[20:]
}
