package ops

import (
	"context"
	"fmt"
	"strings"

	"github.com/zerx-lab/penbridge/internal/errors"
	"github.com/zerx-lab/penbridge/internal/platform"
)

// SearchTagsInput contains parameters for the SearchTags operation.
type SearchTagsInput struct {
	Platform string
	Keyword  string
}

// SearchTagsOutput contains the result of the SearchTags operation.
type SearchTagsOutput struct {
	Platform string               `json:"platform"`
	Tags     []platform.TagOption `json:"tags"`
}

// SearchTags looks up platform tags matching a keyword, for picking the
// tag IDs a target needs.
func SearchTags(ctx context.Context, env *Env, input SearchTagsInput) (*SearchTagsOutput, error) {
	pid, err := env.parsePlatform(input.Platform)
	if err != nil {
		return nil, err
	}
	keyword := strings.TrimSpace(input.Keyword)
	if keyword == "" {
		return nil, errors.NewInvalidRequest("keyword must not be empty")
	}
	entry, err := env.Registry.Entry(pid)
	if err != nil {
		return nil, err
	}
	tags, err := entry.Client.SearchTags(ctx, keyword)
	if err != nil {
		return nil, err
	}
	return &SearchTagsOutput{Platform: string(pid), Tags: tags}, nil
}

// RecommendTagsInput contains parameters for the RecommendTags operation.
type RecommendTagsInput struct {
	ID       string
	Title    string
	Platform string
}

// RecommendTagsOutput contains the result of the RecommendTags operation.
type RecommendTagsOutput struct {
	Platform string               `json:"platform"`
	Tags     []platform.TagOption `json:"tags"`
}

// RecommendTags asks the platform to suggest tags for an article's
// content. Only some platforms offer this.
func RecommendTags(ctx context.Context, env *Env, input RecommendTagsInput) (*RecommendTagsOutput, error) {
	addr, err := ValidateAddress(input.ID, input.Title)
	if err != nil {
		return nil, err
	}
	pid, err := env.parsePlatform(input.Platform)
	if err != nil {
		return nil, err
	}
	entry, err := env.Registry.Entry(pid)
	if err != nil {
		return nil, err
	}
	rec, ok := entry.Client.(platform.TagRecommender)
	if !ok {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("platform %s does not recommend tags", pid))
	}

	a, err := resolveArticle(env.DB, addr, false)
	if err != nil {
		return nil, err
	}

	tags, err := rec.RecommendTags(ctx, a.TitleRaw, a.Body)
	if err != nil {
		return nil, err
	}
	return &RecommendTagsOutput{Platform: string(pid), Tags: tags}, nil
}
