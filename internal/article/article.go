package article

// Status represents the lifecycle state of an article on one platform.
type Status string

const (
	// StatusDraft means a draft exists on the platform but was never submitted.
	StatusDraft Status = "draft"

	// StatusPending means the article was submitted and is in the platform's moderation queue.
	StatusPending Status = "pending"

	// StatusPublished means the article is publicly visible on the platform.
	StatusPublished Status = "published"

	// StatusRejected means the platform's moderation declined the article.
	StatusRejected Status = "rejected"
)

// Article represents a locally authored markdown document.
// The local copy is the source of truth; platforms only ever receive projections of it.
type Article struct {
	// ID is a ULID that uniquely identifies this article
	ID string

	// TitleRaw is the original title as provided by the user
	TitleRaw string

	// TitleNorm is the normalized title (lowercased, trimmed, collapsed spaces)
	TitleNorm string

	// Body is the canonical markdown content
	Body string

	// BodyChars is the character count (runes, not bytes)
	BodyChars int

	// Tags is a list of local tags for categorization (stored as JSON in DB)
	Tags []string

	// SourcePath is the file the article was imported from (nullable).
	// Relative image references in the body resolve against its directory.
	SourcePath *string

	// CreatedAt is the Unix timestamp when the article was created
	CreatedAt int64

	// UpdatedAt is the Unix timestamp when the article was last updated
	UpdatedAt int64

	// DeletedAt is the Unix timestamp for soft delete (nullable)
	DeletedAt *int64
}

// Publication is the per-platform projection of an article: the publish settings
// the user chose for that platform plus the last known remote state.
type Publication struct {
	// ArticleID references the owning article
	ArticleID string

	// Platform is the platform name ("devcloud", "techforum", "quill")
	Platform string

	// DraftID is the platform-side draft identifier, reused across publish attempts
	DraftID string

	// RemoteID is the platform-side article identifier once published
	RemoteID string

	// RemoteURL is the public URL of the published article
	RemoteURL string

	// Status is the last known remote state; empty until the first draft sync or publish
	Status Status

	// Brief is the platform-facing summary text
	Brief string

	// TagIDs are platform tag identifiers chosen for this article
	TagIDs []string

	// Category is the platform category (required by some platforms)
	Category string

	// Original marks the article as original work rather than a repost
	Original bool

	// SourceURL is the original source link, required by some platforms for reposts
	SourceURL string

	// LastError is the human-readable message of the most recent failed attempt
	LastError string

	// LastSyncedAt is the Unix timestamp of the last successful remote sync (nullable)
	LastSyncedAt *int64

	// UpdatedAt is the Unix timestamp when this projection last changed
	UpdatedAt int64
}

// HasRemoteState reports whether the projection carries any remote fields.
// Reconciliation clears these when the remote article disappears.
func (p *Publication) HasRemoteState() bool {
	return p.RemoteID != "" || p.RemoteURL != "" || p.Status != ""
}
