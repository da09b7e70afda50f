package article

// Summary represents an article's metadata without the full body.
// Used for browse operations to reduce data transfer.
type Summary struct {
	// ID is a ULID that uniquely identifies this article
	ID string `json:"id"`

	// Title is the original title as provided by the user
	Title string `json:"title"`

	// TitleNorm is the normalized title (lowercased, trimmed, collapsed spaces)
	TitleNorm string `json:"title_norm"`

	// BodyChars is the character count (runes, not bytes)
	BodyChars int `json:"body_chars"`

	// Tags is a list of local tags for categorization
	Tags []string `json:"tags,omitempty"`

	// SourcePath is the file the article was imported from (nullable)
	SourcePath *string `json:"source_path,omitempty"`

	// CreatedAt is the Unix timestamp when the article was created
	CreatedAt int64 `json:"created_at"`

	// UpdatedAt is the Unix timestamp when the article was last updated
	UpdatedAt int64 `json:"updated_at"`

	// DeletedAt is the Unix timestamp for soft delete (nullable)
	DeletedAt *int64 `json:"deleted_at,omitempty"`
}

// ToSummary converts an Article to a Summary by stripping the body.
func (a *Article) ToSummary() Summary {
	return Summary{
		ID:         a.ID,
		Title:      a.TitleRaw,
		TitleNorm:  a.TitleNorm,
		BodyChars:  a.BodyChars,
		Tags:       a.Tags,
		SourcePath: a.SourcePath,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
		DeletedAt:  a.DeletedAt,
	}
}
