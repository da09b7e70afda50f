package ops

import (
	"strings"
	"testing"

	"github.com/zerx-lab/penbridge/internal/db"
	"github.com/zerx-lab/penbridge/internal/errors"
)

func TestShowArticle_ByID(t *testing.T) {
	env, _ := newTestEnv(t)
	id := seedArticle(t, env, "Readable")

	out, err := ShowArticle(env, ShowArticleInput{ID: id})
	if err != nil {
		t.Fatalf("ShowArticle failed: %v", err)
	}

	if out.Article.Title != "Readable" {
		t.Errorf("Title = %q, want %q", out.Article.Title, "Readable")
	}
	if !strings.Contains(out.Article.Body, "Body text") {
		t.Errorf("Body = %q, want the imported markdown", out.Article.Body)
	}
	if len(out.Publications) != 0 {
		t.Errorf("Publications count = %d, want 0", len(out.Publications))
	}
}

func TestShowArticle_ByTitle(t *testing.T) {
	env, _ := newTestEnv(t)
	id := seedArticle(t, env, "Find Me By Title")

	out, err := ShowArticle(env, ShowArticleInput{Title: "  find me BY title "})
	if err != nil {
		t.Fatalf("ShowArticle failed: %v", err)
	}
	if out.Article.ID != id {
		t.Errorf("ID = %q, want %q", out.Article.ID, id)
	}
}

func TestShowArticle_IncludesProjections(t *testing.T) {
	env, _ := newTestEnv(t)
	id := seedArticle(t, env, "Projected")

	brief := "short brief"
	if _, err := SetTarget(env, SetTargetInput{ID: id, Platform: "devcloud", Brief: &brief}); err != nil {
		t.Fatalf("SetTarget failed: %v", err)
	}

	out, err := ShowArticle(env, ShowArticleInput{ID: id})
	if err != nil {
		t.Fatalf("ShowArticle failed: %v", err)
	}
	if len(out.Publications) != 1 {
		t.Fatalf("Publications count = %d, want 1", len(out.Publications))
	}
	if out.Publications[0].Platform != "devcloud" {
		t.Errorf("Platform = %q, want devcloud", out.Publications[0].Platform)
	}
	if out.Publications[0].Brief != "short brief" {
		t.Errorf("Brief = %q, want %q", out.Publications[0].Brief, "short brief")
	}
}

func TestShowArticle_NotFound(t *testing.T) {
	env, _ := newTestEnv(t)

	_, err := ShowArticle(env, ShowArticleInput{ID: "nonexistent"})
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("ShowArticle should return ErrNotFound, got: %v", err)
	}
}

func TestShowArticle_DeletedNeedsFlag(t *testing.T) {
	env, _ := newTestEnv(t)
	id := seedArticle(t, env, "Soft Deleted")

	if err := db.SoftDeleteArticle(env.DB, id); err != nil {
		t.Fatalf("SoftDeleteArticle failed: %v", err)
	}

	if _, err := ShowArticle(env, ShowArticleInput{ID: id}); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("ShowArticle without IncludeDeleted should return ErrNotFound, got: %v", err)
	}

	out, err := ShowArticle(env, ShowArticleInput{ID: id, IncludeDeleted: true})
	if err != nil {
		t.Fatalf("ShowArticle with IncludeDeleted failed: %v", err)
	}
	if out.Article.DeletedAt == nil {
		t.Error("DeletedAt = nil, want set")
	}
}
