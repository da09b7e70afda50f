package publish

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/zerx-lab/penbridge/internal/article"
	"github.com/zerx-lab/penbridge/internal/assets"
	"github.com/zerx-lab/penbridge/internal/errors"
	"github.com/zerx-lab/penbridge/internal/platform"
	"github.com/zerx-lab/penbridge/internal/session"
)

type fakeStore struct {
	articles  map[string]*article.Article
	pubs      map[string]*article.Publication
	saved     []article.Publication
	lastError map[string]string
}

func (s *fakeStore) Article(_ context.Context, id string) (*article.Article, error) {
	if a, ok := s.articles[id]; ok {
		return a, nil
	}
	return nil, errors.NewNotFound(id)
}

func (s *fakeStore) Publication(_ context.Context, articleID, pf string) (*article.Publication, error) {
	if p, ok := s.pubs[articleID+"|"+pf]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, errors.NewNotFound(articleID + "/" + pf)
}

func (s *fakeStore) SavePublication(_ context.Context, p *article.Publication) error {
	cp := *p
	s.pubs[p.ArticleID+"|"+p.Platform] = &cp
	s.saved = append(s.saved, cp)
	return nil
}

func (s *fakeStore) SetPublicationError(_ context.Context, articleID, pf, msg string) error {
	s.lastError[articleID+"|"+pf] = msg
	return nil
}

type fakeSessions struct {
	creds   map[string]*session.Credential
	deleted []string
}

func (s *fakeSessions) Credential(_ context.Context, pf string) (*session.Credential, bool, error) {
	c, ok := s.creds[pf]
	return c, ok, nil
}

func (s *fakeSessions) Delete(pf string) error {
	s.deleted = append(s.deleted, pf)
	delete(s.creds, pf)
	return nil
}

type fakeMigrator struct {
	result *assets.Result
	calls  int
}

func (m *fakeMigrator) Migrate(_ context.Context, content string, _ assets.Uploader, _ []string, _ string) (*assets.Result, error) {
	m.calls++
	if m.result != nil {
		res := *m.result
		if res.Content == "" {
			res.Content = content
		}
		return &res, nil
	}
	return &assets.Result{Content: content}, nil
}

type fakeClient struct {
	id           platform.ID
	saveCalls    []platform.Payload
	saveErr      error
	publishErrs  []error
	publishCalls int
}

var _ platform.Client = (*fakeClient)(nil)

func (c *fakeClient) Platform() platform.ID { return c.id }

func (c *fakeClient) SearchTags(context.Context, string) ([]platform.TagOption, error) {
	return nil, nil
}

func (c *fakeClient) SaveDraft(_ context.Context, p platform.Payload) (string, error) {
	c.saveCalls = append(c.saveCalls, p)
	if c.saveErr != nil {
		return "", c.saveErr
	}
	if p.DraftID != "" {
		return p.DraftID, nil
	}
	return "d-1", nil
}

func (c *fakeClient) Publish(context.Context, platform.Payload) (*platform.PublishResult, error) {
	i := c.publishCalls
	c.publishCalls++
	if i < len(c.publishErrs) && c.publishErrs[i] != nil {
		return nil, c.publishErrs[i]
	}
	return &platform.PublishResult{ID: "r-1", URL: "https://devcloud.dev/a/r-1"}, nil
}

func (c *fakeClient) ListArticles(context.Context, int, int) ([]platform.RemoteArticle, error) {
	return nil, nil
}

func (c *fakeClient) UploadImage(context.Context, string, []byte) (string, error) {
	return "", nil
}

type fakeRenderClient struct {
	*fakeClient
	renderErr error
}

func (c *fakeRenderClient) RenderHTML(_ context.Context, markdown string) (string, error) {
	if c.renderErr != nil {
		return "", c.renderErr
	}
	return "<p>" + markdown + "</p>", nil
}

type harness struct {
	orch     *Orchestrator
	store    *fakeStore
	sessions *fakeSessions
	client   *fakeClient
	migrator *fakeMigrator
	delays   []time.Duration
}

const testArticleID = "01J5TESTARTICLE0000000000"

func newHarness(t *testing.T, rules platform.Rules) *harness {
	t.Helper()
	h := &harness{
		store: &fakeStore{
			articles:  make(map[string]*article.Article),
			pubs:      make(map[string]*article.Publication),
			lastError: make(map[string]string),
		},
		sessions: &fakeSessions{creds: map[string]*session.Credential{
			"devcloud": {Platform: "devcloud"},
		}},
		client:   &fakeClient{id: platform.DevCloud},
		migrator: &fakeMigrator{},
	}
	h.store.articles[testArticleID] = &article.Article{
		ID:       testArticleID,
		TitleRaw: "Hello World",
		Body:     "A body with ==key== point and enough text to publish.",
	}

	reg := platform.NewRegistry()
	reg.Register(platform.DevCloud, platform.Entry{
		Client:   h.client,
		Rules:    rules,
		Classify: platform.PassthroughClassifier(platform.DevCloud),
	})

	h.orch = New(Deps{
		Store:    h.store,
		Sessions: h.sessions,
		Registry: reg,
		Migrator: h.migrator,
		Sleep:    func(d time.Duration) { h.delays = append(h.delays, d) },
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return h
}

func TestPublish_Success(t *testing.T) {
	h := newHarness(t, platform.Rules{MarkdownNative: true})

	out, err := h.orch.Publish(context.Background(), testArticleID, platform.DevCloud)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if out.RemoteID != "r-1" || out.URL != "https://devcloud.dev/a/r-1" {
		t.Errorf("outcome = %+v, want remote r-1", out)
	}
	if out.Status != article.StatusPublished {
		t.Errorf("Status = %q, want published", out.Status)
	}
	if out.DraftID != "d-1" {
		t.Errorf("DraftID = %q, want d-1", out.DraftID)
	}

	pub := h.store.pubs[testArticleID+"|devcloud"]
	if pub == nil {
		t.Fatal("publication not persisted")
	}
	if pub.RemoteID != "r-1" || pub.Status != article.StatusPublished || pub.DraftID != "d-1" {
		t.Errorf("persisted publication = %+v", pub)
	}
	if pub.LastSyncedAt == nil {
		t.Error("LastSyncedAt not set")
	}
	if pub.LastError != "" {
		t.Errorf("LastError = %q, want empty", pub.LastError)
	}

	// The adaptation pipeline ran before the draft went out.
	if got := h.client.saveCalls[0].Markdown; !strings.Contains(got, "key point") || strings.Contains(got, "==") {
		t.Errorf("draft markdown not adapted: %q", got)
	}
	if len(out.Adapted) == 0 {
		t.Error("outcome should report adaptation findings")
	}
}

func TestPublish_ModeratedGoesPending(t *testing.T) {
	h := newHarness(t, platform.Rules{MarkdownNative: true, Moderated: true})

	out, err := h.orch.Publish(context.Background(), testArticleID, platform.DevCloud)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if out.Status != article.StatusPending {
		t.Errorf("Status = %q, want pending", out.Status)
	}
}

func TestPublish_ValidationFailsBeforeNetwork(t *testing.T) {
	h := newHarness(t, platform.Rules{MarkdownNative: true, MinTags: 1})

	_, err := h.orch.Publish(context.Background(), testArticleID, platform.DevCloud)
	if !errors.Is(err, errors.ErrValidationFailed) {
		t.Fatalf("err = %v, want VALIDATION_FAILED", err)
	}

	if h.migrator.calls != 0 {
		t.Error("migrator ran despite validation failure")
	}
	if len(h.client.saveCalls) != 0 || h.client.publishCalls != 0 {
		t.Error("platform was called despite validation failure")
	}
	if msg := h.store.lastError[testArticleID+"|devcloud"]; !strings.Contains(msg, "at least 1 tags") {
		t.Errorf("last_error = %q, want tags message", msg)
	}
}

func TestPublish_AuthRequired(t *testing.T) {
	h := newHarness(t, platform.Rules{MarkdownNative: true})
	delete(h.sessions.creds, "devcloud")

	_, err := h.orch.Publish(context.Background(), testArticleID, platform.DevCloud)
	if !errors.Is(err, errors.ErrAuthRequired) {
		t.Fatalf("err = %v, want AUTH_REQUIRED", err)
	}
	if h.migrator.calls != 0 || len(h.client.saveCalls) != 0 {
		t.Error("pipeline ran without a stored session")
	}
	if h.store.lastError[testArticleID+"|devcloud"] == "" {
		t.Error("last_error not recorded")
	}
}

func TestPublish_AssetFailureAborts(t *testing.T) {
	h := newHarness(t, platform.Rules{MarkdownNative: true})
	h.migrator.result = &assets.Result{
		Outcomes: []assets.Outcome{{OriginalRef: "pic.png", Error: "upload rejected"}},
		Failed:   1,
	}

	_, err := h.orch.Publish(context.Background(), testArticleID, platform.DevCloud)
	if !errors.Is(err, errors.ErrAssetMigrationFailed) {
		t.Fatalf("err = %v, want ASSET_MIGRATION_FAILED", err)
	}
	if len(h.client.saveCalls) != 0 {
		t.Error("draft saved despite failed asset migration")
	}
	if msg := h.store.lastError[testArticleID+"|devcloud"]; !strings.Contains(msg, "1 of 1") {
		t.Errorf("last_error = %q, want migration summary", msg)
	}
}

func riskErr() error {
	return errors.Recode(
		errors.NewPlatformError("devcloud", "risk verification required"),
		errors.ErrRiskVerificationRequired, 403)
}

func TestPublish_RiskRetryExhausted(t *testing.T) {
	h := newHarness(t, platform.Rules{MarkdownNative: true})
	h.client.publishErrs = []error{riskErr(), riskErr(), riskErr()}

	_, err := h.orch.Publish(context.Background(), testArticleID, platform.DevCloud)
	if !errors.Is(err, errors.ErrRiskVerificationRequired) {
		t.Fatalf("err = %v, want RISK_VERIFICATION_REQUIRED", err)
	}

	if h.client.publishCalls != 3 {
		t.Errorf("publish attempts = %d, want 3", h.client.publishCalls)
	}
	wantDelays := []time.Duration{time.Second, 2 * time.Second}
	if len(h.delays) != len(wantDelays) {
		t.Fatalf("delays = %v, want %v", h.delays, wantDelays)
	}
	for i, d := range wantDelays {
		if h.delays[i] != d {
			t.Errorf("delay[%d] = %v, want %v", i, h.delays[i], d)
		}
	}

	bErr, _ := errors.AsBridgeError(err)
	if bErr.Details["attempts"] != 3 {
		t.Errorf("attempts detail = %v, want 3", bErr.Details["attempts"])
	}
	if msg := h.store.lastError[testArticleID+"|devcloud"]; !strings.Contains(msg, "after 3 attempts") {
		t.Errorf("last_error = %q, want exhaustion message", msg)
	}
}

func TestPublish_RiskRetrySucceeds(t *testing.T) {
	h := newHarness(t, platform.Rules{MarkdownNative: true})
	h.client.publishErrs = []error{riskErr(), riskErr()}

	out, err := h.orch.Publish(context.Background(), testArticleID, platform.DevCloud)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if h.client.publishCalls != 3 {
		t.Errorf("publish attempts = %d, want 3", h.client.publishCalls)
	}
	wantDelays := []time.Duration{time.Second, 2 * time.Second}
	if len(h.delays) != len(wantDelays) {
		t.Fatalf("delays = %v, want %v", h.delays, wantDelays)
	}
	for i, d := range wantDelays {
		if h.delays[i] != d {
			t.Errorf("delay[%d] = %v, want %v", i, h.delays[i], d)
		}
	}
	if out.RemoteID != "r-1" {
		t.Errorf("RemoteID = %q, want r-1", out.RemoteID)
	}
}

func TestPublish_AuthExpiredDropsSession(t *testing.T) {
	h := newHarness(t, platform.Rules{MarkdownNative: true})
	h.client.saveErr = errors.NewAuthExpired("devcloud")

	_, err := h.orch.Publish(context.Background(), testArticleID, platform.DevCloud)
	if !errors.Is(err, errors.ErrAuthExpired) {
		t.Fatalf("err = %v, want AUTH_EXPIRED", err)
	}
	if len(h.sessions.deleted) != 1 || h.sessions.deleted[0] != "devcloud" {
		t.Errorf("deleted sessions = %v, want [devcloud]", h.sessions.deleted)
	}
}

func TestPublish_ReusesStoredDraftID(t *testing.T) {
	h := newHarness(t, platform.Rules{MarkdownNative: true})
	h.store.pubs[testArticleID+"|devcloud"] = &article.Publication{
		ArticleID: testArticleID,
		Platform:  "devcloud",
		DraftID:   "d-old",
	}

	out, err := h.orch.Publish(context.Background(), testArticleID, platform.DevCloud)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if got := h.client.saveCalls[0].DraftID; got != "d-old" {
		t.Errorf("SaveDraft DraftID = %q, want d-old", got)
	}
	if out.DraftID != "d-old" {
		t.Errorf("outcome DraftID = %q, want d-old", out.DraftID)
	}
	// No extra save for an unchanged draft id, just the final success write.
	if len(h.store.saved) != 1 {
		t.Errorf("SavePublication calls = %d, want 1", len(h.store.saved))
	}
}

func TestPublish_KeepsDraftIDOnPublishFailure(t *testing.T) {
	h := newHarness(t, platform.Rules{MarkdownNative: true})
	h.client.publishErrs = []error{errors.NewPlatformError("devcloud", "the server is on fire")}

	_, err := h.orch.Publish(context.Background(), testArticleID, platform.DevCloud)
	if !errors.Is(err, errors.ErrPlatformError) {
		t.Fatalf("err = %v, want PLATFORM_ERROR", err)
	}

	pub := h.store.pubs[testArticleID+"|devcloud"]
	if pub == nil || pub.DraftID != "d-1" {
		t.Fatalf("draft id not persisted before publish: %+v", pub)
	}
	if msg := h.store.lastError[testArticleID+"|devcloud"]; !strings.Contains(msg, "on fire") {
		t.Errorf("last_error = %q, want platform message", msg)
	}
}

func TestPublish_RendersForHTMLPlatform(t *testing.T) {
	h := newHarness(t, platform.Rules{MarkdownNative: true})
	render := &fakeRenderClient{fakeClient: &fakeClient{id: platform.Quill}}
	reg := platform.NewRegistry()
	reg.Register(platform.Quill, platform.Entry{
		Client:   render,
		Rules:    platform.Rules{MarkdownNative: false},
		Classify: platform.PassthroughClassifier(platform.Quill),
	})
	h.sessions.creds["quill"] = &session.Credential{Platform: "quill"}
	h.orch.registry = reg

	_, err := h.orch.Publish(context.Background(), testArticleID, platform.Quill)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if got := render.saveCalls[0].HTML; !strings.HasPrefix(got, "<p>") {
		t.Errorf("payload.HTML = %q, want rendered html", got)
	}
}

func TestPublish_UnknownArticle(t *testing.T) {
	h := newHarness(t, platform.Rules{MarkdownNative: true})

	_, err := h.orch.Publish(context.Background(), "missing", platform.DevCloud)
	if !errors.Is(err, errors.ErrNotFound) {
		t.Fatalf("err = %v, want NOT_FOUND", err)
	}
	if len(h.store.lastError) != 0 {
		t.Errorf("last_error recorded for unknown article: %v", h.store.lastError)
	}
}

func TestSyncDraft(t *testing.T) {
	h := newHarness(t, platform.Rules{MarkdownNative: true, MinTags: 1})

	out, err := h.orch.SyncDraft(context.Background(), testArticleID, platform.DevCloud)
	if err != nil {
		t.Fatalf("SyncDraft: %v", err)
	}

	// Draft syncs skip publish rules; MinTags above must not block them.
	if h.client.publishCalls != 0 {
		t.Error("draft sync must not publish")
	}
	if out.Status != article.StatusDraft || out.DraftID != "d-1" {
		t.Errorf("outcome = %+v, want draft d-1", out)
	}

	pub := h.store.pubs[testArticleID+"|devcloud"]
	if pub == nil || pub.Status != article.StatusDraft || pub.DraftID != "d-1" {
		t.Fatalf("persisted publication = %+v", pub)
	}
	if pub.LastSyncedAt == nil {
		t.Error("LastSyncedAt not set")
	}
}

func TestSyncDraft_KeepsPublishedStatus(t *testing.T) {
	h := newHarness(t, platform.Rules{MarkdownNative: true})
	h.store.pubs[testArticleID+"|devcloud"] = &article.Publication{
		ArticleID: testArticleID,
		Platform:  "devcloud",
		DraftID:   "d-7",
		RemoteID:  "r-7",
		Status:    article.StatusPublished,
	}

	out, err := h.orch.SyncDraft(context.Background(), testArticleID, platform.DevCloud)
	if err != nil {
		t.Fatalf("SyncDraft: %v", err)
	}
	if out.Status != article.StatusPublished {
		t.Errorf("Status = %q, want published kept", out.Status)
	}
}
