package reconcile

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/zerx-lab/penbridge/internal/article"
	"github.com/zerx-lab/penbridge/internal/db"
	"github.com/zerx-lab/penbridge/internal/errors"
	"github.com/zerx-lab/penbridge/internal/platform"
)

type fakeStore struct {
	targets []db.Target
	saved   []article.Publication
}

func (s *fakeStore) Targets(_ context.Context, _ string) ([]db.Target, error) {
	return s.targets, nil
}

func (s *fakeStore) SavePublication(_ context.Context, p *article.Publication) error {
	s.saved = append(s.saved, *p)
	return nil
}

type fakeListClient struct {
	id    platform.ID
	pages [][]platform.RemoteArticle
	errAt map[int]error
	calls int
}

var _ platform.Client = (*fakeListClient)(nil)

func (c *fakeListClient) Platform() platform.ID { return c.id }

func (c *fakeListClient) SearchTags(context.Context, string) ([]platform.TagOption, error) {
	return nil, nil
}

func (c *fakeListClient) SaveDraft(context.Context, platform.Payload) (string, error) {
	return "", nil
}

func (c *fakeListClient) Publish(context.Context, platform.Payload) (*platform.PublishResult, error) {
	return nil, nil
}

func (c *fakeListClient) ListArticles(_ context.Context, page, _ int) ([]platform.RemoteArticle, error) {
	c.calls++
	if err := c.errAt[page]; err != nil {
		return nil, err
	}
	if page-1 < len(c.pages) {
		return c.pages[page-1], nil
	}
	return nil, nil
}

func (c *fakeListClient) UploadImage(context.Context, string, []byte) (string, error) {
	return "", nil
}

func target(id, title string, pub article.Publication) db.Target {
	pub.ArticleID = id
	pub.Platform = "devcloud"
	return db.Target{Title: title, Publication: pub}
}

func newTestReconciler(t *testing.T, store *fakeStore, client *fakeListClient, pageSize, maxPages int) *Reconciler {
	t.Helper()
	reg := platform.NewRegistry()
	reg.Register(platform.DevCloud, platform.Entry{Client: client})
	return New(Deps{
		Store:    store,
		Registry: reg,
		PageSize: pageSize,
		MaxPages: maxPages,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestReconcile_MatchByID(t *testing.T) {
	store := &fakeStore{targets: []db.Target{
		target("a1", "Hello", article.Publication{RemoteID: "r-1", Status: article.StatusPending}),
	}}
	client := &fakeListClient{id: platform.DevCloud, pages: [][]platform.RemoteArticle{
		{{ID: "r-1", Title: "Hello", URL: "https://devcloud.dev/a/r-1", Status: platform.RemotePublished}},
	}}

	sum, err := newTestReconciler(t, store, client, 20, 5).Reconcile(context.Background(), platform.DevCloud)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	if sum.Matched != 1 || sum.Updated != 1 {
		t.Errorf("Matched/Updated = %d/%d, want 1/1", sum.Matched, sum.Updated)
	}
	upd := sum.Updates[0]
	if upd.MatchedBy != "id" || upd.NewStatus != article.StatusPublished {
		t.Errorf("update = %+v", upd)
	}
	if len(store.saved) != 1 {
		t.Fatalf("saves = %d, want 1", len(store.saved))
	}
	got := store.saved[0]
	if got.Status != article.StatusPublished || got.RemoteURL != "https://devcloud.dev/a/r-1" {
		t.Errorf("saved = %+v", got)
	}
	if got.LastSyncedAt == nil {
		t.Error("LastSyncedAt not set")
	}
}

func TestReconcile_NoChangeNoWrite(t *testing.T) {
	store := &fakeStore{targets: []db.Target{
		target("a1", "Hello", article.Publication{
			RemoteID:  "r-1",
			RemoteURL: "https://devcloud.dev/a/r-1",
			Status:    article.StatusPublished,
		}),
	}}
	client := &fakeListClient{id: platform.DevCloud, pages: [][]platform.RemoteArticle{
		{{ID: "r-1", Title: "Hello", URL: "https://devcloud.dev/a/r-1", Status: platform.RemotePublished}},
	}}

	sum, err := newTestReconciler(t, store, client, 20, 5).Reconcile(context.Background(), platform.DevCloud)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if sum.Matched != 1 || sum.Updated != 0 {
		t.Errorf("Matched/Updated = %d/%d, want 1/0", sum.Matched, sum.Updated)
	}
	if len(store.saved) != 0 {
		t.Errorf("saves = %d, want 0", len(store.saved))
	}
}

func TestReconcile_TitleAdoption(t *testing.T) {
	store := &fakeStore{targets: []db.Target{
		target("a1", "My Post", article.Publication{}),
	}}
	client := &fakeListClient{id: platform.DevCloud, pages: [][]platform.RemoteArticle{
		{{ID: "r-9", Title: "My Post", Status: platform.RemotePending}},
	}}

	sum, err := newTestReconciler(t, store, client, 20, 5).Reconcile(context.Background(), platform.DevCloud)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if sum.Updates[0].MatchedBy != "title" {
		t.Errorf("MatchedBy = %q, want title", sum.Updates[0].MatchedBy)
	}
	if store.saved[0].RemoteID != "r-9" || store.saved[0].Status != article.StatusPending {
		t.Errorf("saved = %+v, want adopted r-9", store.saved[0])
	}
}

func TestReconcile_DuplicateTitleFirstWins(t *testing.T) {
	store := &fakeStore{targets: []db.Target{
		target("a1", "Twice", article.Publication{}),
	}}
	client := &fakeListClient{id: platform.DevCloud, pages: [][]platform.RemoteArticle{
		{
			{ID: "r-1", Title: "Twice", Status: platform.RemotePublished},
			{ID: "r-2", Title: "Twice", Status: platform.RemoteDraft},
		},
	}}

	_, err := newTestReconciler(t, store, client, 20, 5).Reconcile(context.Background(), platform.DevCloud)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if store.saved[0].RemoteID != "r-1" {
		t.Errorf("RemoteID = %q, want first listing entry r-1", store.saved[0].RemoteID)
	}
}

func TestReconcile_ClearsVanishedRemote(t *testing.T) {
	store := &fakeStore{targets: []db.Target{
		target("a1", "Gone", article.Publication{
			DraftID:   "d-1",
			RemoteID:  "r-1",
			RemoteURL: "https://devcloud.dev/a/r-1",
			Status:    article.StatusPublished,
		}),
	}}
	client := &fakeListClient{id: platform.DevCloud}

	sum, err := newTestReconciler(t, store, client, 20, 5).Reconcile(context.Background(), platform.DevCloud)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	if sum.Updated != 1 || !sum.Updates[0].Cleared {
		t.Fatalf("updates = %+v, want one cleared", sum.Updates)
	}
	got := store.saved[0]
	if got.RemoteID != "" || got.RemoteURL != "" || got.Status != "" {
		t.Errorf("remote fields not cleared: %+v", got)
	}
	if got.DraftID != "d-1" {
		t.Errorf("DraftID = %q, want kept d-1", got.DraftID)
	}
}

func TestReconcile_Pagination(t *testing.T) {
	store := &fakeStore{targets: []db.Target{
		target("a1", "One", article.Publication{RemoteID: "r-3"}),
	}}
	client := &fakeListClient{id: platform.DevCloud, pages: [][]platform.RemoteArticle{
		{{ID: "r-1", Title: "X", Status: platform.RemotePublished}, {ID: "r-2", Title: "Y", Status: platform.RemotePublished}},
		{{ID: "r-3", Title: "One", Status: platform.RemotePublished}},
	}}

	sum, err := newTestReconciler(t, store, client, 2, 10).Reconcile(context.Background(), platform.DevCloud)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if client.calls != 2 {
		t.Errorf("list calls = %d, want 2 (short page stops)", client.calls)
	}
	if sum.TotalRemote != 3 || sum.Matched != 1 {
		t.Errorf("TotalRemote/Matched = %d/%d, want 3/1", sum.TotalRemote, sum.Matched)
	}
}

func TestReconcile_MaxPagesCapSkipsResets(t *testing.T) {
	store := &fakeStore{targets: []db.Target{
		target("a1", "Gone", article.Publication{RemoteID: "r-404", Status: article.StatusPublished}),
	}}
	client := &fakeListClient{id: platform.DevCloud, pages: [][]platform.RemoteArticle{
		{{ID: "r-1", Title: "X", Status: platform.RemotePublished}},
		{{ID: "r-2", Title: "Y", Status: platform.RemotePublished}},
		{{ID: "r-3", Title: "Z", Status: platform.RemotePublished}},
	}}

	sum, err := newTestReconciler(t, store, client, 1, 2).Reconcile(context.Background(), platform.DevCloud)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if client.calls != 2 {
		t.Errorf("list calls = %d, want capped at 2", client.calls)
	}
	// Listing was truncated by the cap; an unmatched projection must not
	// be treated as deleted.
	if sum.Updated != 0 || len(store.saved) != 0 {
		t.Errorf("Updated = %d, saves = %d, want 0/0", sum.Updated, len(store.saved))
	}
}

func TestReconcile_LaterPageErrorSkipsResets(t *testing.T) {
	store := &fakeStore{targets: []db.Target{
		target("a1", "Seen", article.Publication{RemoteID: "r-1", Status: article.StatusPending}),
		target("a2", "Gone", article.Publication{RemoteID: "r-404", Status: article.StatusPublished}),
	}}
	client := &fakeListClient{
		id:    platform.DevCloud,
		pages: [][]platform.RemoteArticle{{{ID: "r-1", Title: "Seen", Status: platform.RemotePublished}}},
		errAt: map[int]error{2: errors.NewPlatformError("devcloud", "listing hiccup")},
	}

	sum, err := newTestReconciler(t, store, client, 1, 10).Reconcile(context.Background(), platform.DevCloud)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	if len(sum.PageErrors) != 1 || !strings.Contains(sum.PageErrors[0], "page 2") {
		t.Errorf("PageErrors = %v", sum.PageErrors)
	}
	// r-1 still updated from the page that did arrive.
	if sum.Updated != 1 || store.saved[0].ArticleID != "a1" {
		t.Errorf("Updated = %d, saved = %+v", sum.Updated, store.saved)
	}
	// a2 kept its remote state; the listing was incomplete.
	for _, p := range store.saved {
		if p.ArticleID == "a2" {
			t.Error("vanished projection reset despite incomplete listing")
		}
	}
}

func TestReconcile_FirstPageErrorFails(t *testing.T) {
	store := &fakeStore{targets: []db.Target{
		target("a1", "One", article.Publication{RemoteID: "r-1"}),
	}}
	client := &fakeListClient{
		id:    platform.DevCloud,
		errAt: map[int]error{1: errors.NewAuthRequired("devcloud")},
	}

	_, err := newTestReconciler(t, store, client, 20, 5).Reconcile(context.Background(), platform.DevCloud)
	if !errors.Is(err, errors.ErrAuthRequired) {
		t.Fatalf("err = %v, want AUTH_REQUIRED", err)
	}
}

func TestReconcile_NoTargets(t *testing.T) {
	store := &fakeStore{}
	client := &fakeListClient{id: platform.DevCloud}

	sum, err := newTestReconciler(t, store, client, 20, 5).Reconcile(context.Background(), platform.DevCloud)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if sum.TotalLocal != 0 || client.calls != 0 {
		t.Errorf("TotalLocal = %d, calls = %d, want no listing for no targets", sum.TotalLocal, client.calls)
	}
}
