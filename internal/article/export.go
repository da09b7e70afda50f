package article

// ExportRecord is one line of a JSONL backup: the article plus its
// platform projections. It is also used for parsing backups on import.
type ExportRecord struct {
	// Header detection field, true only on the header line.
	PenbridgeExport bool `json:"_penbridge_export,omitempty"`

	// Header fields, only present on the header line.
	SchemaVersion string `json:"schema_version,omitempty"`
	ExportedAt    int64  `json:"exported_at,omitempty"`

	ID         string   `json:"id"`
	TitleRaw   string   `json:"title_raw"`
	TitleNorm  string   `json:"title_norm"` // IGNORED on import, recomputed
	Body       string   `json:"body"`
	BodyChars  int      `json:"body_chars"` // IGNORED on import, recomputed
	Tags       []string `json:"tags"`
	SourcePath *string  `json:"source_path"`
	CreatedAt  int64    `json:"created_at"`
	UpdatedAt  int64    `json:"updated_at"`
	DeletedAt  *int64   `json:"deleted_at"`

	Publications []ExportPublication `json:"publications,omitempty"`
}

// ExportPublication is the per-platform projection inside a backup record.
type ExportPublication struct {
	Platform     string   `json:"platform"`
	DraftID      string   `json:"draft_id,omitempty"`
	RemoteID     string   `json:"remote_id,omitempty"`
	RemoteURL    string   `json:"remote_url,omitempty"`
	Status       string   `json:"status,omitempty"`
	Brief        string   `json:"brief,omitempty"`
	TagIDs       []string `json:"tag_ids,omitempty"`
	Category     string   `json:"category,omitempty"`
	Original     bool     `json:"original"`
	SourceURL    string   `json:"source_url,omitempty"`
	LastError    string   `json:"last_error,omitempty"`
	LastSyncedAt *int64   `json:"last_synced_at,omitempty"`
}

// ToArticle converts an ExportRecord back to an Article, recomputing
// the derived fields.
func (r *ExportRecord) ToArticle() *Article {
	return &Article{
		ID:         r.ID,
		TitleRaw:   r.TitleRaw,
		TitleNorm:  Normalize(r.TitleRaw),
		Body:       r.Body,
		BodyChars:  CountChars(r.Body),
		Tags:       r.Tags,
		SourcePath: r.SourcePath,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
		DeletedAt:  r.DeletedAt,
	}
}

// ToPublications converts the embedded projections, stamping the article ID.
func (r *ExportRecord) ToPublications() []Publication {
	if len(r.Publications) == 0 {
		return nil
	}
	pubs := make([]Publication, 0, len(r.Publications))
	for _, p := range r.Publications {
		pubs = append(pubs, Publication{
			ArticleID:    r.ID,
			Platform:     p.Platform,
			DraftID:      p.DraftID,
			RemoteID:     p.RemoteID,
			RemoteURL:    p.RemoteURL,
			Status:       Status(p.Status),
			Brief:        p.Brief,
			TagIDs:       p.TagIDs,
			Category:     p.Category,
			Original:     p.Original,
			SourceURL:    p.SourceURL,
			LastError:    p.LastError,
			LastSyncedAt: p.LastSyncedAt,
		})
	}
	return pubs
}

// ToExportRecord converts an article and its projections to a backup record.
func ToExportRecord(a *Article, pubs []Publication) *ExportRecord {
	r := &ExportRecord{
		ID:         a.ID,
		TitleRaw:   a.TitleRaw,
		TitleNorm:  a.TitleNorm,
		Body:       a.Body,
		BodyChars:  a.BodyChars,
		Tags:       a.Tags,
		SourcePath: a.SourcePath,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
		DeletedAt:  a.DeletedAt,
	}
	for _, p := range pubs {
		r.Publications = append(r.Publications, ExportPublication{
			Platform:     p.Platform,
			DraftID:      p.DraftID,
			RemoteID:     p.RemoteID,
			RemoteURL:    p.RemoteURL,
			Status:       string(p.Status),
			Brief:        p.Brief,
			TagIDs:       p.TagIDs,
			Category:     p.Category,
			Original:     p.Original,
			SourceURL:    p.SourceURL,
			LastError:    p.LastError,
			LastSyncedAt: p.LastSyncedAt,
		})
	}
	return r
}
