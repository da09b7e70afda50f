// Package assets migrates article images onto the target platform's own
// asset host. Platforms reject or garbage-collect hotlinked and local
// references, so every foreign image is re-uploaded before publishing.
package assets

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// ImageRefs returns the image references in content, deduplicated:
// markdown image syntax first, from the parsed AST, then src attributes
// of raw <img> tags found in HTML blocks and inline HTML.
func ImageRefs(content string) []string {
	source := []byte(content)
	doc := goldmark.New().Parser().Parse(text.NewReader(source))

	var refs []string
	var htmlChunks []string

	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Image:
			refs = append(refs, string(node.Destination))
		case *ast.HTMLBlock:
			var sb strings.Builder
			for i := 0; i < node.Lines().Len(); i++ {
				seg := node.Lines().At(i)
				sb.Write(seg.Value(source))
			}
			htmlChunks = append(htmlChunks, sb.String())
		case *ast.RawHTML:
			var sb strings.Builder
			for i := 0; i < node.Segments.Len(); i++ {
				seg := node.Segments.At(i)
				sb.Write(seg.Value(source))
			}
			htmlChunks = append(htmlChunks, sb.String())
		}
		return ast.WalkContinue, nil
	})

	for _, chunk := range htmlChunks {
		refs = append(refs, imgSrcs(chunk)...)
	}

	seen := make(map[string]bool, len(refs))
	out := refs[:0]
	for _, ref := range refs {
		if ref == "" || seen[ref] {
			continue
		}
		seen[ref] = true
		out = append(out, ref)
	}
	return out
}

// imgSrcs extracts src attributes from img tags in an HTML fragment.
func imgSrcs(fragment string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return nil
	}
	var srcs []string
	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		if src, ok := sel.Attr("src"); ok {
			srcs = append(srcs, src)
		}
	})
	return srcs
}
