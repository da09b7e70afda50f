package article

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// FrontMatter is the optional YAML header of an imported markdown file.
type FrontMatter struct {
	Title     string                  `yaml:"title"`
	Tags      []string                `yaml:"tags"`
	Platforms map[string]PlatformMeta `yaml:"platforms"`
}

// PlatformMeta carries per-platform publish settings from front matter.
type PlatformMeta struct {
	Brief     string   `yaml:"brief"`
	Category  string   `yaml:"category"`
	TagIDs    []string `yaml:"tag_ids"`
	Original  *bool    `yaml:"original"`
	SourceURL string   `yaml:"source_url"`
}

// frontMatterClose matches a front matter closing delimiter on its own line.
var frontMatterClose = regexp.MustCompile(`(?m)^(---|\.\.\.)[ \t]*$`)

// splitRaw separates the front matter header text from the body without
// parsing it. ok is false when content has no complete leading block.
func splitRaw(content string) (header, body string, ok bool) {
	rest, found := strings.CutPrefix(content, "---\n")
	if !found {
		rest, found = strings.CutPrefix(content, "---\r\n")
	}
	if !found {
		return "", content, false
	}

	loc := frontMatterClose.FindStringIndex(rest)
	if loc == nil {
		return "", content, false
	}

	body = rest[loc[1]:]
	body = strings.TrimPrefix(body, "\r")
	body = strings.TrimPrefix(body, "\n")
	return rest[:loc[0]], body, true
}

// SplitFrontMatter separates a leading YAML front matter block from the body.
// Returns the parsed front matter (zero value when absent) and the remaining body.
// The block must start at the very first byte with a "---" line.
func SplitFrontMatter(content string) (FrontMatter, string, error) {
	var fm FrontMatter

	if !strings.HasPrefix(content, "---\n") && !strings.HasPrefix(content, "---\r\n") {
		return fm, content, nil
	}

	header, body, ok := splitRaw(content)
	if !ok {
		return fm, content, fmt.Errorf("front matter block is not closed")
	}

	if err := yaml.Unmarshal([]byte(header), &fm); err != nil {
		return FrontMatter{}, content, fmt.Errorf("parse front matter: %w", err)
	}

	return fm, body, nil
}

// CutFrontMatter removes a complete leading front matter block without
// parsing it, so even a malformed header never reaches a platform.
func CutFrontMatter(content string) (string, bool) {
	_, body, ok := splitRaw(content)
	return body, ok
}

// HasFrontMatter reports whether content starts with a well-formed front matter block.
func HasFrontMatter(content string) bool {
	if !strings.HasPrefix(content, "---\n") && !strings.HasPrefix(content, "---\r\n") {
		return false
	}
	_, _, err := SplitFrontMatter(content)
	return err == nil
}
