package platform

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/zerx-lab/penbridge/internal/errors"
)

// Rules captures one platform's publish constraints. Zero values mean
// "no constraint" for the numeric fields.
type Rules struct {
	// MinTags and MaxTags bound the number of platform tags.
	MinTags int
	MaxTags int

	// BriefMin and BriefMax bound the brief length in runes.
	BriefMin int
	BriefMax int

	// MinBodyChars is the minimum body length in runes.
	MinBodyChars int

	// RequireCategory demands a category on every publish.
	RequireCategory bool

	// RequireSourceURLForRepost demands a source URL when Original is false.
	RequireSourceURLForRepost bool

	// MarkdownNative is false for platforms that take rendered HTML.
	MarkdownNative bool

	// Moderated means publishing enters a review queue instead of going live.
	Moderated bool

	// AssetHosts lists host suffixes whose images already live on the platform.
	AssetHosts []string
}

// Validate checks a payload against the rules. It runs entirely locally,
// before any network call.
func (r Rules) Validate(platform string, p Payload) error {
	if strings.TrimSpace(p.Title) == "" {
		return errors.NewValidationFailed(platform, "title_required", "title must not be empty")
	}

	if r.MinBodyChars > 0 {
		if n := utf8.RuneCountInString(p.Markdown); n < r.MinBodyChars {
			return errors.NewValidationFailed(platform, "body_min_chars",
				fmt.Sprintf("body must be at least %d characters, have %d", r.MinBodyChars, n))
		}
	}

	if r.MinTags > 0 && len(p.TagIDs) < r.MinTags {
		return errors.NewValidationFailed(platform, "tags_min",
			fmt.Sprintf("select at least %d tags, have %d", r.MinTags, len(p.TagIDs)))
	}
	if r.MaxTags > 0 && len(p.TagIDs) > r.MaxTags {
		return errors.NewValidationFailed(platform, "tags_max",
			fmt.Sprintf("select at most %d tags, have %d", r.MaxTags, len(p.TagIDs)))
	}

	if r.BriefMin > 0 || r.BriefMax > 0 {
		n := utf8.RuneCountInString(p.Brief)
		switch {
		case r.BriefMin > 0 && r.BriefMax > 0 && (n < r.BriefMin || n > r.BriefMax):
			return errors.NewValidationFailed(platform, "brief_length",
				fmt.Sprintf("brief must be %d-%d characters, have %d", r.BriefMin, r.BriefMax, n))
		case r.BriefMin > 0 && r.BriefMax == 0 && n < r.BriefMin:
			return errors.NewValidationFailed(platform, "brief_length",
				fmt.Sprintf("brief must be at least %d characters, have %d", r.BriefMin, n))
		case r.BriefMax > 0 && r.BriefMin == 0 && n > r.BriefMax:
			return errors.NewValidationFailed(platform, "brief_length",
				fmt.Sprintf("brief must be at most %d characters, have %d", r.BriefMax, n))
		}
	}

	if r.RequireCategory && strings.TrimSpace(p.Category) == "" {
		return errors.NewValidationFailed(platform, "category_required", "a category is required")
	}

	if r.RequireSourceURLForRepost && !p.Original && strings.TrimSpace(p.SourceURL) == "" {
		return errors.NewValidationFailed(platform, "source_url_required", "reposted articles require a source url")
	}

	return nil
}
