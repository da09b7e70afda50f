package ops

import (
	"github.com/zerx-lab/penbridge/internal/article"
	"github.com/zerx-lab/penbridge/internal/db"
	"github.com/zerx-lab/penbridge/internal/errors"
)

// SetTargetInput contains parameters for the SetTarget operation.
// Optional fields use pointers; nil means "do not change".
type SetTargetInput struct {
	ID       string
	Title    string
	Platform string

	Brief     *string
	Category  *string
	TagIDs    *[]string
	Original  *bool
	SourceURL *string
}

// SetTargetOutput contains the result of the SetTarget operation.
type SetTargetOutput struct {
	ArticleID   string          `json:"article_id"`
	Publication PublicationView `json:"publication"`
}

// SetTarget configures or updates the publish settings of one article on
// one platform. Remote state (draft id, remote id, url, status) is never
// touched here; only the user-chosen settings change.
func SetTarget(env *Env, input SetTargetInput) (*SetTargetOutput, error) {
	addr, err := ValidateAddress(input.ID, input.Title)
	if err != nil {
		return nil, err
	}
	pid, err := env.parsePlatform(input.Platform)
	if err != nil {
		return nil, err
	}
	if input.Brief == nil && input.Category == nil && input.TagIDs == nil &&
		input.Original == nil && input.SourceURL == nil {
		return nil, errors.NewInvalidRequest("at least one target field must be provided")
	}

	a, err := resolveArticle(env.DB, addr, false)
	if err != nil {
		return nil, err
	}

	pub, err := db.GetPublication(env.DB, a.ID, string(pid))
	if errors.Is(err, errors.ErrNotFound) {
		pub = &article.Publication{ArticleID: a.ID, Platform: string(pid), Original: true}
		err = nil
	}
	if err != nil {
		return nil, err
	}

	if input.Brief != nil {
		pub.Brief = *input.Brief
	}
	if input.Category != nil {
		pub.Category = *input.Category
	}
	if input.TagIDs != nil {
		pub.TagIDs = *input.TagIDs
	}
	if input.Original != nil {
		pub.Original = *input.Original
	}
	if input.SourceURL != nil {
		pub.SourceURL = *input.SourceURL
	}

	if err := db.UpsertPublication(env.DB, pub); err != nil {
		return nil, err
	}

	env.Logger.Info("target configured", "id", a.ID, "platform", pid)

	return &SetTargetOutput{ArticleID: a.ID, Publication: publicationView(*pub)}, nil
}
