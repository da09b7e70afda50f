package ops

import (
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/zerx-lab/penbridge/internal/article"
	"github.com/zerx-lab/penbridge/internal/db"
	"github.com/zerx-lab/penbridge/internal/errors"
	"github.com/zerx-lab/penbridge/internal/platform"
)

// ImportMode controls collision behavior when a title already exists.
type ImportMode string

const (
	ImportModeError   ImportMode = "error"   // default: fail on title collision
	ImportModeReplace ImportMode = "replace" // update the existing article's content
)

// ImportArticleInput contains parameters for the ImportArticle operation.
// Exactly one of Path and Content must be set.
type ImportArticleInput struct {
	Path    string // markdown file to import
	Content string // inline markdown, alternative to Path
	Title   string // overrides the front matter title
	Tags    []string
	Mode    ImportMode // default: error
}

// ImportArticleOutput contains the result of the ImportArticle operation.
type ImportArticleOutput struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	BodyChars int      `json:"body_chars"`
	Tags      []string `json:"tags,omitempty"`
	Platforms []string `json:"platforms,omitempty"`
	Replaced  bool     `json:"replaced,omitempty"`
}

// ImportArticle creates an article from markdown, reading the optional
// YAML front matter for the title, tags, and per-platform publish
// settings. The stored body is the markdown with the front matter
// stripped; the local copy stays the canonical source.
func ImportArticle(env *Env, input ImportArticleInput) (*ImportArticleOutput, error) {
	if input.Path == "" && input.Content == "" {
		return nil, errors.NewInvalidRequest("either path or content is required")
	}
	if input.Path != "" && input.Content != "" {
		return nil, errors.NewInvalidRequest("path and content are mutually exclusive")
	}
	if input.Mode == "" {
		input.Mode = ImportModeError
	}
	if input.Mode != ImportModeError && input.Mode != ImportModeReplace {
		return nil, errors.NewInvalidRequest("mode must be one of: error, replace")
	}

	content := input.Content
	var sourcePath *string
	if input.Path != "" {
		abs, err := filepath.Abs(input.Path)
		if err != nil {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid path: %v", err))
		}
		data, err := os.ReadFile(abs)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, errors.NewNotFound(input.Path)
			}
			return nil, errors.NewInternal(fmt.Errorf("read import file: %w", err))
		}
		content = string(data)
		sourcePath = &abs
	}

	fm, body, err := article.SplitFrontMatter(content)
	if err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("front matter: %v", err))
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = strings.TrimSpace(fm.Title)
	}
	if title == "" {
		return nil, errors.NewInvalidRequest("title is required (set it in front matter or pass it explicitly)")
	}
	titleNorm := article.Normalize(title)

	tags := input.Tags
	if len(tags) == 0 {
		tags = fm.Tags
	}

	now := time.Now().Unix()
	a := &article.Article{
		TitleRaw:   title,
		TitleNorm:  titleNorm,
		Body:       body,
		BodyChars:  article.CountChars(body),
		Tags:       tags,
		SourcePath: sourcePath,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	replaced := false
	existing, err := db.GetArticleByTitle(env.DB, titleNorm, false)
	switch {
	case err == nil:
		if input.Mode == ImportModeError {
			return nil, errors.NewTitleAlreadyExists(title)
		}
		a.ID = existing.ID
		a.CreatedAt = existing.CreatedAt
		if err := db.UpdateArticleByID(env.DB, a); err != nil {
			return nil, err
		}
		replaced = true
	case errors.Is(err, errors.ErrNotFound):
		a.ID, err = generateULID()
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		if err := db.InsertArticle(env.DB, a); err != nil {
			if err == db.ErrUniqueConstraint {
				return nil, errors.NewTitleAlreadyExists(title)
			}
			return nil, err
		}
	default:
		return nil, err
	}

	platforms, err := applyFrontMatterTargets(env, a.ID, fm.Platforms)
	if err != nil {
		return nil, err
	}

	env.Logger.Info("article imported",
		"id", a.ID, "title", title, "chars", a.BodyChars, "replaced", replaced)

	return &ImportArticleOutput{
		ID:        a.ID,
		Title:     title,
		BodyChars: a.BodyChars,
		Tags:      tags,
		Platforms: platforms,
		Replaced:  replaced,
	}, nil
}

// applyFrontMatterTargets stores the per-platform publish settings from
// front matter, keeping any remote state an existing projection carries.
func applyFrontMatterTargets(env *Env, articleID string, metas map[string]article.PlatformMeta) ([]string, error) {
	if len(metas) == 0 {
		return nil, nil
	}

	names := make([]string, 0, len(metas))
	for name := range metas {
		names = append(names, name)
	}
	sort.Strings(names)

	var configured []string
	for _, name := range names {
		pid, err := platform.Parse(name)
		if err != nil {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("front matter names unknown platform %q", name))
		}
		meta := metas[name]

		pub, err := db.GetPublication(env.DB, articleID, string(pid))
		if errors.Is(err, errors.ErrNotFound) {
			pub = &article.Publication{ArticleID: articleID, Platform: string(pid)}
			err = nil
		}
		if err != nil {
			return nil, err
		}

		pub.Brief = meta.Brief
		pub.Category = meta.Category
		pub.TagIDs = meta.TagIDs
		pub.SourceURL = meta.SourceURL
		pub.Original = true
		if meta.Original != nil {
			pub.Original = *meta.Original
		}

		if err := db.UpsertPublication(env.DB, pub); err != nil {
			return nil, err
		}
		configured = append(configured, string(pid))
	}
	return configured, nil
}

// generateULID generates a new ULID.
func generateULID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
