package ops

import (
	"github.com/zerx-lab/penbridge/internal/db"
	"github.com/zerx-lab/penbridge/internal/errors"
)

// PurgeArticlesInput contains parameters for the PurgeArticles operation.
type PurgeArticlesInput struct {
	OlderThanDays int // 0 purges everything soft-deleted
}

// PurgeArticlesOutput contains the result of the PurgeArticles operation.
type PurgeArticlesOutput struct {
	Purged int `json:"purged"`
}

// PurgeArticles permanently removes soft-deleted articles and their
// platform projections. This cannot be undone.
func PurgeArticles(env *Env, input PurgeArticlesInput) (*PurgeArticlesOutput, error) {
	if input.OlderThanDays < 0 {
		return nil, errors.NewInvalidRequest("older_than_days must not be negative")
	}

	purged, err := db.PurgeDeleted(env.DB, input.OlderThanDays)
	if err != nil {
		return nil, err
	}

	env.Logger.Info("purged deleted articles", "count", purged, "older_than_days", input.OlderThanDays)

	return &PurgeArticlesOutput{Purged: purged}, nil
}
