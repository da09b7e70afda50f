// Package publish drives the publish pipeline: validate locally, adapt
// the markdown, migrate images, save a platform draft, then submit it.
// Risk-control rejections are retried with growing delays; auth failures
// drop the stored session so the next attempt asks for a fresh login.
package publish

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/zerx-lab/penbridge/internal/adapt"
	"github.com/zerx-lab/penbridge/internal/article"
	"github.com/zerx-lab/penbridge/internal/assets"
	"github.com/zerx-lab/penbridge/internal/errors"
	"github.com/zerx-lab/penbridge/internal/platform"
	"github.com/zerx-lab/penbridge/internal/session"
)

const (
	riskRetryAttempts = 3
	riskRetryStep     = time.Second
)

// Store is the slice of the database the orchestrator needs.
type Store interface {
	Article(ctx context.Context, id string) (*article.Article, error)
	Publication(ctx context.Context, articleID, platform string) (*article.Publication, error)
	SavePublication(ctx context.Context, p *article.Publication) error
	SetPublicationError(ctx context.Context, articleID, platform, msg string) error
}

// Sessions yields stored credentials and drops them when a platform
// rejects one.
type Sessions interface {
	Credential(ctx context.Context, platform string) (*session.Credential, bool, error)
	Delete(platform string) error
}

// Migrator moves article images onto the platform's asset host.
type Migrator interface {
	Migrate(ctx context.Context, content string, up assets.Uploader, assetHosts []string, baseDir string) (*assets.Result, error)
}

var _ Migrator = (*assets.Migrator)(nil)

// Outcome reports a successful publish or draft sync.
type Outcome struct {
	ArticleID string           `json:"article_id"`
	Platform  string           `json:"platform"`
	Status    article.Status   `json:"status"`
	DraftID   string           `json:"draft_id,omitempty"`
	RemoteID  string           `json:"remote_id,omitempty"`
	URL       string           `json:"url,omitempty"`
	Adapted   []adapt.Finding  `json:"adapted,omitempty"`
	Assets    []assets.Outcome `json:"assets,omitempty"`
}

// Deps wires the orchestrator. Sleep and Logger default to time.Sleep
// and slog.Default when nil.
type Deps struct {
	Store    Store
	Sessions Sessions
	Registry *platform.Registry
	Migrator Migrator
	Sleep    func(time.Duration)
	Logger   *slog.Logger
}

// Orchestrator runs publish and draft-sync attempts against one platform
// at a time and keeps the local projection in step with what happened.
type Orchestrator struct {
	store    Store
	sessions Sessions
	registry *platform.Registry
	migrator Migrator
	sleep    func(time.Duration)
	logger   *slog.Logger
}

func New(d Deps) *Orchestrator {
	if d.Sleep == nil {
		d.Sleep = time.Sleep
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Orchestrator{
		store:    d.Store,
		sessions: d.Sessions,
		registry: d.Registry,
		migrator: d.Migrator,
		sleep:    d.Sleep,
		logger:   d.Logger,
	}
}

// Publish runs the full pipeline for one article on one platform.
// Validation failures never reach the network. Every failure is recorded
// on the projection's last_error before it is returned.
func (o *Orchestrator) Publish(ctx context.Context, articleID string, pid platform.ID) (*Outcome, error) {
	art, err := o.store.Article(ctx, articleID)
	if err != nil {
		return nil, err
	}
	pub, err := o.publication(ctx, articleID, pid)
	if err != nil {
		return nil, err
	}
	entry, err := o.registry.Entry(pid)
	if err != nil {
		return nil, o.fail(ctx, pub, err)
	}

	payload := buildPayload(art, pub)
	if err := entry.Rules.Validate(string(pid), payload); err != nil {
		return nil, o.fail(ctx, pub, err)
	}
	if err := o.checkAuth(ctx, pid); err != nil {
		return nil, o.fail(ctx, pub, err)
	}

	adapted, migrated, err := o.adaptAndMigrate(ctx, art, entry, &payload)
	if err != nil {
		return nil, o.fail(ctx, pub, err)
	}
	if err := o.render(ctx, entry, &payload); err != nil {
		return nil, o.fail(ctx, pub, o.classifyRemote(entry, pid, err))
	}

	draftID, err := entry.Client.SaveDraft(ctx, payload)
	if err != nil {
		return nil, o.fail(ctx, pub, o.classifyRemote(entry, pid, err))
	}
	o.keepDraftID(ctx, pub, draftID)
	payload.DraftID = pub.DraftID

	result, err := o.publishWithRiskRetry(ctx, entry, pid, payload)
	if err != nil {
		return nil, o.fail(ctx, pub, o.classifyRemote(entry, pid, err))
	}

	pub.RemoteID = result.ID
	pub.RemoteURL = result.URL
	pub.Status = article.StatusPublished
	if entry.Rules.Moderated {
		pub.Status = article.StatusPending
	}
	now := time.Now().Unix()
	pub.LastSyncedAt = &now
	pub.LastError = ""
	if err := o.store.SavePublication(ctx, pub); err != nil {
		return nil, err
	}

	o.logger.Info("published",
		"article", art.ID, "platform", pid, "remote_id", result.ID, "status", pub.Status)

	return &Outcome{
		ArticleID: art.ID,
		Platform:  string(pid),
		Status:    pub.Status,
		DraftID:   pub.DraftID,
		RemoteID:  pub.RemoteID,
		URL:       pub.RemoteURL,
		Adapted:   adapted,
		Assets:    migrated,
	}, nil
}

// SyncDraft pushes the article's current content to a platform draft
// without submitting it. Publish rules are not enforced; platforms
// accept incomplete drafts. The projection's status becomes draft only
// when it had no remote state yet, a published article stays published.
func (o *Orchestrator) SyncDraft(ctx context.Context, articleID string, pid platform.ID) (*Outcome, error) {
	art, err := o.store.Article(ctx, articleID)
	if err != nil {
		return nil, err
	}
	pub, err := o.publication(ctx, articleID, pid)
	if err != nil {
		return nil, err
	}
	entry, err := o.registry.Entry(pid)
	if err != nil {
		return nil, o.fail(ctx, pub, err)
	}

	payload := buildPayload(art, pub)
	if strings.TrimSpace(payload.Title) == "" {
		return nil, o.fail(ctx, pub,
			errors.NewValidationFailed(string(pid), "title_required", "title must not be empty"))
	}
	if err := o.checkAuth(ctx, pid); err != nil {
		return nil, o.fail(ctx, pub, err)
	}

	adapted, migrated, err := o.adaptAndMigrate(ctx, art, entry, &payload)
	if err != nil {
		return nil, o.fail(ctx, pub, err)
	}
	if err := o.render(ctx, entry, &payload); err != nil {
		return nil, o.fail(ctx, pub, o.classifyRemote(entry, pid, err))
	}

	draftID, err := entry.Client.SaveDraft(ctx, payload)
	if err != nil {
		return nil, o.fail(ctx, pub, o.classifyRemote(entry, pid, err))
	}

	if draftID != "" {
		pub.DraftID = draftID
	}
	if pub.Status == "" {
		pub.Status = article.StatusDraft
	}
	now := time.Now().Unix()
	pub.LastSyncedAt = &now
	pub.LastError = ""
	if err := o.store.SavePublication(ctx, pub); err != nil {
		return nil, err
	}

	o.logger.Info("draft synced", "article", art.ID, "platform", pid, "draft_id", pub.DraftID)

	return &Outcome{
		ArticleID: art.ID,
		Platform:  string(pid),
		Status:    pub.Status,
		DraftID:   pub.DraftID,
		Adapted:   adapted,
		Assets:    migrated,
	}, nil
}

// publication loads the projection, or starts a fresh one when the user
// never configured this platform for the article.
func (o *Orchestrator) publication(ctx context.Context, articleID string, pid platform.ID) (*article.Publication, error) {
	pub, err := o.store.Publication(ctx, articleID, string(pid))
	if err == nil {
		return pub, nil
	}
	if errors.Is(err, errors.ErrNotFound) {
		return &article.Publication{ArticleID: articleID, Platform: string(pid)}, nil
	}
	return nil, err
}

func (o *Orchestrator) checkAuth(ctx context.Context, pid platform.ID) error {
	_, ok, err := o.sessions.Credential(ctx, string(pid))
	if err != nil {
		return err
	}
	if !ok {
		return errors.NewAuthRequired(string(pid))
	}
	return nil
}

// adaptAndMigrate rewrites the markdown for the target platform and
// moves its images onto the platform host. Any failed image aborts the
// attempt; partial uploads must not reach the platform.
func (o *Orchestrator) adaptAndMigrate(ctx context.Context, art *article.Article, entry platform.Entry, payload *platform.Payload) ([]adapt.Finding, []assets.Outcome, error) {
	pid := entry.Client.Platform()
	result := adapt.Adapt(payload.Markdown, string(pid))
	payload.Markdown = result.Content

	baseDir := ""
	if art.SourcePath != nil {
		baseDir = filepath.Dir(*art.SourcePath)
	}
	migrated, err := o.migrator.Migrate(ctx, payload.Markdown, entry.Client, entry.Rules.AssetHosts, baseDir)
	if err != nil {
		return nil, nil, err
	}
	if migrated.Failed > 0 {
		bErr := errors.NewAssetMigrationFailed(migrated.Failed, len(migrated.Outcomes))
		bErr.Details["assets"] = migrated.Outcomes
		return result.Findings, migrated.Outcomes, bErr
	}
	payload.Markdown = migrated.Content
	return result.Findings, migrated.Outcomes, nil
}

// render fills payload.HTML for platforms that take rendered HTML.
func (o *Orchestrator) render(ctx context.Context, entry platform.Entry, payload *platform.Payload) error {
	if entry.Rules.MarkdownNative {
		return nil
	}
	renderer, ok := entry.Client.(platform.HTMLRenderer)
	if !ok {
		return errors.NewInternal(fmt.Errorf("platform %s takes html but its client has no renderer", entry.Client.Platform()))
	}
	html, err := renderer.RenderHTML(ctx, payload.Markdown)
	if err != nil {
		return err
	}
	payload.HTML = html
	return nil
}

// keepDraftID persists a newly minted draft ID right away so later
// failures in the same attempt still reuse the same platform draft.
func (o *Orchestrator) keepDraftID(ctx context.Context, pub *article.Publication, draftID string) {
	if draftID == "" || draftID == pub.DraftID {
		return
	}
	pub.DraftID = draftID
	if err := o.store.SavePublication(ctx, pub); err != nil {
		o.logger.Warn("could not persist draft id",
			"article", pub.ArticleID, "platform", pub.Platform, "error", err)
	}
}

// publishWithRiskRetry submits the draft, retrying while the platform's
// risk control blocks it. Delays grow by riskRetryStep per attempt.
func (o *Orchestrator) publishWithRiskRetry(ctx context.Context, entry platform.Entry, pid platform.ID, p platform.Payload) (*platform.PublishResult, error) {
	for attempt := 1; ; attempt++ {
		result, err := entry.Client.Publish(ctx, p)
		if err == nil {
			return result, nil
		}
		bErr := classify(entry, err)
		if bErr.Code != errors.ErrRiskVerificationRequired {
			return nil, bErr
		}
		if attempt >= riskRetryAttempts {
			return nil, o.riskExhausted(ctx, entry, pid)
		}
		o.logger.Warn("publish blocked by risk control",
			"platform", pid, "attempt", attempt, "of", riskRetryAttempts)
		o.sleep(time.Duration(attempt) * riskRetryStep)
		if ctx.Err() != nil {
			return nil, errors.NewCancelled("publish cancelled")
		}
	}
}

// riskExhausted builds the final risk error, attaching the platform's
// verification QR code when its client can fetch one.
func (o *Orchestrator) riskExhausted(ctx context.Context, entry platform.Entry, pid platform.ID) *errors.BridgeError {
	bErr := errors.NewRiskVerificationRequired(string(pid), riskRetryAttempts)
	if rc, ok := entry.Client.(platform.RiskChecker); ok {
		if st, err := rc.CheckRisk(ctx); err == nil && st.NeedVerify && st.QRCodeURL != "" {
			bErr.Details["qrcode_url"] = st.QRCodeURL
		}
	}
	return bErr
}

// classifyRemote refines an error from a platform call and drops the
// stored session when the platform rejected it as expired.
func (o *Orchestrator) classifyRemote(entry platform.Entry, pid platform.ID, err error) *errors.BridgeError {
	bErr := classify(entry, err)
	if bErr.Code == errors.ErrAuthExpired {
		if derr := o.sessions.Delete(string(pid)); derr != nil {
			o.logger.Warn("could not drop expired session", "platform", pid, "error", derr)
		} else {
			o.logger.Info("dropped expired session", "platform", pid)
		}
	}
	return bErr
}

// fail records the attempt's error on the projection before returning it.
func (o *Orchestrator) fail(ctx context.Context, pub *article.Publication, err error) error {
	msg := err.Error()
	if bErr, ok := errors.AsBridgeError(err); ok {
		msg = bErr.Message
	}
	if serr := o.store.SetPublicationError(ctx, pub.ArticleID, pub.Platform, msg); serr != nil {
		o.logger.Warn("could not record publish error",
			"article", pub.ArticleID, "platform", pub.Platform, "error", serr)
	}
	return err
}

func classify(entry platform.Entry, err error) *errors.BridgeError {
	if entry.Classify != nil {
		return entry.Classify(err)
	}
	if bErr, ok := errors.AsBridgeError(err); ok {
		return bErr
	}
	return errors.NewInternal(err)
}

func buildPayload(art *article.Article, pub *article.Publication) platform.Payload {
	return platform.Payload{
		Title:     art.TitleRaw,
		Markdown:  art.Body,
		Brief:     pub.Brief,
		TagIDs:    pub.TagIDs,
		Category:  pub.Category,
		DraftID:   pub.DraftID,
		Original:  pub.Original,
		SourceURL: pub.SourceURL,
	}
}
