package ops

import (
	"github.com/zerx-lab/penbridge/internal/article"
	"github.com/zerx-lab/penbridge/internal/db"
)

// ShowArticleInput contains parameters for the ShowArticle operation.
type ShowArticleInput struct {
	ID             string
	Title          string
	IncludeDeleted bool
}

// ArticleView is the full article as returned to callers.
type ArticleView struct {
	article.Summary
	Body string `json:"body"`
}

// PublicationView is the full per-platform projection as returned to callers.
type PublicationView struct {
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

// ShowArticleOutput contains the result of the ShowArticle operation.
type ShowArticleOutput struct {
	Article      ArticleView       `json:"article"`
	Publications []PublicationView `json:"publications,omitempty"`
}

func publicationView(p article.Publication) PublicationView {
	return PublicationView{
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
	}
}

// ShowArticle returns one article with its body and every platform projection.
func ShowArticle(env *Env, input ShowArticleInput) (*ShowArticleOutput, error) {
	addr, err := ValidateAddress(input.ID, input.Title)
	if err != nil {
		return nil, err
	}

	a, err := resolveArticle(env.DB, addr, input.IncludeDeleted)
	if err != nil {
		return nil, err
	}

	pubs, err := db.ListPublicationsForArticle(env.DB, a.ID)
	if err != nil {
		return nil, err
	}

	out := &ShowArticleOutput{
		Article: ArticleView{Summary: a.ToSummary(), Body: a.Body},
	}
	for _, p := range pubs {
		out.Publications = append(out.Publications, publicationView(p))
	}
	return out, nil
}
