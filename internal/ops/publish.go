package ops

import (
	"context"

	"github.com/zerx-lab/penbridge/internal/publish"
)

// PublishArticleInput contains parameters for the PublishArticle operation.
type PublishArticleInput struct {
	ID       string
	Title    string
	Platform string
}

// PublishArticle runs the full pipeline for one article on one platform:
// validate, adapt, migrate images, save the draft, submit it. Concurrent
// publishes of the same article to the same platform are serialized.
func PublishArticle(ctx context.Context, env *Env, input PublishArticleInput) (*publish.Outcome, error) {
	addr, err := ValidateAddress(input.ID, input.Title)
	if err != nil {
		return nil, err
	}
	pid, err := env.parsePlatform(input.Platform)
	if err != nil {
		return nil, err
	}
	a, err := resolveArticle(env.DB, addr, false)
	if err != nil {
		return nil, err
	}

	defer env.pubLocks.lock(a.ID + "|" + string(pid))()
	return env.orch.Publish(ctx, a.ID, pid)
}

// SaveDraftInput contains parameters for the SaveDraft operation.
type SaveDraftInput struct {
	ID       string
	Title    string
	Platform string
}

// SaveDraft pushes the article to the platform as a draft without
// submitting it, so it can be previewed in the platform's own editor.
func SaveDraft(ctx context.Context, env *Env, input SaveDraftInput) (*publish.Outcome, error) {
	addr, err := ValidateAddress(input.ID, input.Title)
	if err != nil {
		return nil, err
	}
	pid, err := env.parsePlatform(input.Platform)
	if err != nil {
		return nil, err
	}
	a, err := resolveArticle(env.DB, addr, false)
	if err != nil {
		return nil, err
	}

	defer env.pubLocks.lock(a.ID + "|" + string(pid))()
	return env.orch.SyncDraft(ctx, a.ID, pid)
}
