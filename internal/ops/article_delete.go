package ops

import (
	"github.com/zerx-lab/penbridge/internal/db"
)

// DeleteArticleInput contains parameters for the DeleteArticle operation.
type DeleteArticleInput struct {
	ID    string
	Title string
}

// DeleteArticleOutput contains the result of the DeleteArticle operation.
type DeleteArticleOutput struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Deleted bool   `json:"deleted"`
}

// DeleteArticle soft-deletes an article. The row and its platform
// projections stay in the database until a purge; nothing is deleted on
// the platforms themselves.
func DeleteArticle(env *Env, input DeleteArticleInput) (*DeleteArticleOutput, error) {
	addr, err := ValidateAddress(input.ID, input.Title)
	if err != nil {
		return nil, err
	}

	a, err := resolveArticle(env.DB, addr, false)
	if err != nil {
		return nil, err
	}

	if err := db.SoftDeleteArticle(env.DB, a.ID); err != nil {
		return nil, err
	}

	env.Logger.Info("article deleted", "id", a.ID, "title", a.TitleRaw)

	return &DeleteArticleOutput{ID: a.ID, Title: a.TitleRaw, Deleted: true}, nil
}
