package ops

import (
	"github.com/zerx-lab/penbridge/internal/article"
	"github.com/zerx-lab/penbridge/internal/db"
)

// ListArticlesInput contains parameters for the ListArticles operation.
type ListArticlesInput struct {
	Limit          int
	Offset         int
	IncludeDeleted bool
}

// PublicationStatus is the compact per-platform state shown in listings.
type PublicationStatus struct {
	Platform  string `json:"platform"`
	Status    string `json:"status"`
	RemoteURL string `json:"remote_url,omitempty"`
	LastError string `json:"last_error,omitempty"`
}

// ArticleListItem is a listing row: the summary plus where it stands on
// each configured platform.
type ArticleListItem struct {
	article.Summary
	Publications []PublicationStatus `json:"publications,omitempty"`
}

// ListArticlesOutput contains the result of the ListArticles operation.
type ListArticlesOutput struct {
	Articles   []ArticleListItem `json:"articles"`
	Pagination Pagination        `json:"pagination"`
}

// ListArticles returns article summaries ordered by most recently
// updated, each annotated with its publication state per platform.
func ListArticles(env *Env, input ListArticlesInput) (*ListArticlesOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	offset := input.Offset
	if offset < 0 {
		offset = 0
	}

	summaries, total, err := db.ListArticles(env.DB, limit, offset, input.IncludeDeleted)
	if err != nil {
		return nil, err
	}

	items := make([]ArticleListItem, 0, len(summaries))
	for _, s := range summaries {
		pubs, err := db.ListPublicationsForArticle(env.DB, s.ID)
		if err != nil {
			return nil, err
		}
		var statuses []PublicationStatus
		for _, p := range pubs {
			statuses = append(statuses, PublicationStatus{
				Platform:  p.Platform,
				Status:    string(p.Status),
				RemoteURL: p.RemoteURL,
				LastError: p.LastError,
			})
		}
		items = append(items, ArticleListItem{Summary: s, Publications: statuses})
	}

	return &ListArticlesOutput{
		Articles: items,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(items) < total,
			Total:   total,
		},
	}, nil
}
