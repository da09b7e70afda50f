// Package adapt rewrites canonical markdown into a form the target
// platform's renderer can take. Editor-ecosystem extension syntax (custom
// containers, toc directives, highlight marks) renders as literal garbage
// on the platforms, so it is unwrapped or dropped before publishing.
//
// Transforms are deterministic and idempotent, never fail on malformed
// input, and leave fenced code blocks untouched.
package adapt

import (
	"regexp"
	"strings"

	"github.com/zerx-lab/penbridge/internal/article"
)

// Finding reports one construct class the pipeline touched.
type Finding struct {
	Construct   string `json:"construct"`
	Count       int    `json:"count"`
	Description string `json:"description"`
}

// Result is the adapted content plus the report of what changed.
type Result struct {
	Content  string    `json:"content"`
	Findings []Finding `json:"findings,omitempty"`
}

// transforms flags the platform-dependent rewrites. The universal ones
// (front matter, containers, toc, teaser markers) always run.
type transforms struct {
	unwrapHighlight bool
}

// platformTransforms keys off the platform name. TechForum's renderer
// understands ==highlight== marks; the others print the equals signs.
var platformTransforms = map[string]transforms{
	"devcloud":  {unwrapHighlight: true},
	"techforum": {unwrapHighlight: false},
	"quill":     {unwrapHighlight: true},
}

var (
	// tocDirective matches a [[toc]] directive alone on a line.
	tocDirective = regexp.MustCompile(`(?mi)^\[\[toc\]\][ \t]*\n?`)

	// teaserMarker matches the excerpt separator comment.
	teaserMarker = regexp.MustCompile(`(?i)<!--\s*more\s*-->[ \t]*\n?`)

	// highlightMark matches ==highlighted== spans on a single line.
	highlightMark = regexp.MustCompile(`==([^=\n]+)==`)
)

// Adapt transforms content for the named platform. Unknown platforms get
// the full transform set; passing through unsupported syntax is worse
// than over-stripping for a platform we know nothing about.
func Adapt(content, platform string) Result {
	tf, known := platformTransforms[platform]
	if !known {
		tf = transforms{unwrapHighlight: true}
	}

	var findings []Finding
	record := func(construct string, count int, description string) {
		if count > 0 {
			findings = append(findings, Finding{Construct: construct, Count: count, Description: description})
		}
	}

	body, cut := article.CutFrontMatter(content)
	if cut {
		record("front_matter", 1, "removed leading front matter block")
	}

	var n int
	body, n = unwrapContainers(body)
	record("container", n, "unwrapped ::: container blocks")

	body, n = replaceOutsideFences(body, tocDirective, func([]string) string { return "" })
	record("toc", n, "dropped [[toc]] directives")

	if tf.unwrapHighlight {
		body, n = replaceOutsideFences(body, highlightMark, func(groups []string) string { return groups[1] })
		record("highlight", n, "unwrapped ==highlight== marks")
	}

	body, n = replaceOutsideFences(body, teaserMarker, func([]string) string { return "" })
	record("teaser", n, "removed teaser break markers")

	return Result{Content: body, Findings: findings}
}

// unwrapContainers drops ::: marker lines and keeps their content. A
// container title survives as a bold line. Markers inside fenced code
// stay untouched.
func unwrapContainers(text string) (string, int) {
	fences := fencedRanges(text)
	lines := strings.SplitAfter(text, "\n")

	var b strings.Builder
	b.Grow(len(text))
	offset := 0
	depth := 0
	count := 0

	for _, line := range lines {
		start := offset
		offset += len(line)

		trimmed := strings.TrimRight(line, "\r\n")
		if !strings.HasPrefix(trimmed, ":::") || insideFence(start, fences) {
			b.WriteString(line)
			continue
		}

		rest := strings.TrimSpace(strings.TrimLeft(trimmed, ":"))
		if rest == "" {
			if depth == 0 {
				// Stray closer with nothing open; leave it alone.
				b.WriteString(line)
				continue
			}
			depth--
			continue
		}

		depth++
		count++
		if title := containerTitle(rest); title != "" {
			b.WriteString("**" + title + "**\n")
		}
	}
	return b.String(), count
}

// containerTitle returns the optional title after the container type,
// as in "::: tip Remember this".
func containerTitle(rest string) string {
	_, title, found := strings.Cut(rest, " ")
	if !found {
		return ""
	}
	return strings.TrimSpace(title)
}

// replaceOutsideFences applies re across text, rewriting only matches
// that start outside fenced code blocks. repl receives the match groups.
func replaceOutsideFences(text string, re *regexp.Regexp, repl func(groups []string) string) (string, int) {
	matches := re.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text, 0
	}
	fences := fencedRanges(text)

	var b strings.Builder
	b.Grow(len(text))
	last := 0
	count := 0
	for _, m := range matches {
		if insideFence(m[0], fences) {
			continue
		}
		b.WriteString(text[last:m[0]])
		b.WriteString(repl(expandGroups(text, m)))
		last = m[1]
		count++
	}
	if count == 0 {
		return text, 0
	}
	b.WriteString(text[last:])
	return b.String(), count
}

func expandGroups(text string, m []int) []string {
	groups := make([]string, 0, len(m)/2)
	for i := 0; i < len(m); i += 2 {
		if m[i] < 0 {
			groups = append(groups, "")
			continue
		}
		groups = append(groups, text[m[i]:m[i+1]])
	}
	return groups
}
