package db

import (
	"context"
	"testing"

	"github.com/zerx-lab/penbridge/internal/article"
	"github.com/zerx-lab/penbridge/internal/errors"
)

func TestStore_RoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	database, err := Init(tmpDir)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer database.Close()

	store := NewStore(database)
	ctx := context.Background()

	a := newTestArticle("01ABC123", "Store Test", "Body")
	if err := InsertArticle(database, a); err != nil {
		t.Fatalf("InsertArticle failed: %v", err)
	}

	got, err := store.Article(ctx, "01ABC123")
	if err != nil {
		t.Fatalf("Article failed: %v", err)
	}
	if got.TitleRaw != "Store Test" {
		t.Errorf("TitleRaw = %q, want Store Test", got.TitleRaw)
	}

	// Missing projection surfaces NOT_FOUND for callers to treat as fresh
	if _, err := store.Publication(ctx, "01ABC123", "devcloud"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("Publication error = %v, want NOT_FOUND", err)
	}

	p := &article.Publication{ArticleID: "01ABC123", Platform: "devcloud", DraftID: "d-9", Original: true}
	if err := store.SavePublication(ctx, p); err != nil {
		t.Fatalf("SavePublication failed: %v", err)
	}

	saved, err := store.Publication(ctx, "01ABC123", "devcloud")
	if err != nil {
		t.Fatalf("Publication failed: %v", err)
	}
	if saved.DraftID != "d-9" {
		t.Errorf("DraftID = %q, want d-9", saved.DraftID)
	}

	if err := store.SetPublicationError(ctx, "01ABC123", "devcloud", "boom"); err != nil {
		t.Fatalf("SetPublicationError failed: %v", err)
	}
	saved, err = store.Publication(ctx, "01ABC123", "devcloud")
	if err != nil {
		t.Fatalf("Publication failed: %v", err)
	}
	if saved.LastError != "boom" {
		t.Errorf("LastError = %q, want boom", saved.LastError)
	}

	targets, err := store.Targets(ctx, "devcloud")
	if err != nil {
		t.Fatalf("Targets failed: %v", err)
	}
	if len(targets) != 1 || targets[0].Title != "Store Test" {
		t.Errorf("targets = %+v, want one entry for Store Test", targets)
	}
}
