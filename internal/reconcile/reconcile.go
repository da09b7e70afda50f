// Package reconcile pulls each platform's article listing and folds the
// remote state back into the local projections. Platforms moderate
// asynchronously, so a submitted article's fate only shows up here.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/zerx-lab/penbridge/internal/article"
	"github.com/zerx-lab/penbridge/internal/db"
	"github.com/zerx-lab/penbridge/internal/errors"
	"github.com/zerx-lab/penbridge/internal/platform"
)

// Store is the slice of the database the reconciler needs.
type Store interface {
	Targets(ctx context.Context, platform string) ([]db.Target, error)
	SavePublication(ctx context.Context, p *article.Publication) error
}

// Update describes one projection the reconciler changed.
type Update struct {
	ArticleID string         `json:"article_id"`
	Title     string         `json:"title"`
	MatchedBy string         `json:"matched_by,omitempty"`
	OldStatus article.Status `json:"old_status,omitempty"`
	NewStatus article.Status `json:"new_status,omitempty"`
	Cleared   bool           `json:"cleared,omitempty"`
}

// Summary aggregates one platform's reconcile run.
type Summary struct {
	Platform    string   `json:"platform"`
	TotalLocal  int      `json:"total_local"`
	TotalRemote int      `json:"total_remote"`
	Matched     int      `json:"matched"`
	Updated     int      `json:"updated"`
	Updates     []Update `json:"updates,omitempty"`
	PageErrors  []string `json:"page_errors,omitempty"`
}

// Deps wires the reconciler. PageSize and MaxPages fall back to sane
// defaults; Logger defaults to slog.Default.
type Deps struct {
	Store    Store
	Registry *platform.Registry
	PageSize int
	MaxPages int
	Logger   *slog.Logger
}

// Reconciler matches local projections against one platform's remote
// article listing.
type Reconciler struct {
	store    Store
	registry *platform.Registry
	pageSize int
	maxPages int
	logger   *slog.Logger
}

func New(d Deps) *Reconciler {
	if d.PageSize <= 0 {
		d.PageSize = 20
	}
	if d.MaxPages <= 0 {
		d.MaxPages = 25
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Reconciler{
		store:    d.Store,
		registry: d.Registry,
		pageSize: d.PageSize,
		maxPages: d.MaxPages,
		logger:   d.Logger,
	}
}

// Reconcile lists the platform's articles and updates every local
// projection whose remote state drifted. Matching prefers the stored
// remote ID and falls back to the exact title, which also adopts
// articles published outside the bridge. Remote fields are cleared for
// articles that vanished remotely, but only when the listing was
// complete; a truncated listing must not look like a deletion.
func (r *Reconciler) Reconcile(ctx context.Context, pid platform.ID) (*Summary, error) {
	entry, err := r.registry.Entry(pid)
	if err != nil {
		return nil, err
	}
	targets, err := r.store.Targets(ctx, string(pid))
	if err != nil {
		return nil, err
	}

	sum := &Summary{Platform: string(pid), TotalLocal: len(targets)}
	if len(targets) == 0 {
		return sum, nil
	}

	remote, complete, pageErrs, err := r.listAll(ctx, entry.Client)
	if err != nil {
		return nil, err
	}
	sum.TotalRemote = len(remote)
	sum.PageErrors = pageErrs

	byID := make(map[string]*platform.RemoteArticle, len(remote))
	byTitle := make(map[string]*platform.RemoteArticle, len(remote))
	for i := range remote {
		ra := &remote[i]
		if ra.ID != "" {
			byID[ra.ID] = ra
		}
		if title := strings.TrimSpace(ra.Title); title != "" {
			if _, ok := byTitle[title]; !ok {
				byTitle[title] = ra
			}
		}
	}

	for i := range targets {
		t := &targets[i]
		pub := &t.Publication

		var ra *platform.RemoteArticle
		matchedBy := ""
		if pub.RemoteID != "" {
			if hit, ok := byID[pub.RemoteID]; ok {
				ra, matchedBy = hit, "id"
			}
		}
		if ra == nil {
			if hit, ok := byTitle[strings.TrimSpace(t.Title)]; ok {
				ra, matchedBy = hit, "title"
			}
		}

		if ra == nil {
			if complete && pub.HasRemoteState() {
				if err := r.clearRemote(ctx, pub, t.Title, sum); err != nil {
					return nil, err
				}
			}
			continue
		}

		sum.Matched++
		newStatus := statusFromRemote(ra.Status)
		changed := pub.RemoteID != ra.ID ||
			(ra.URL != "" && pub.RemoteURL != ra.URL) ||
			pub.Status != newStatus
		if !changed {
			continue
		}

		upd := Update{
			ArticleID: pub.ArticleID,
			Title:     t.Title,
			MatchedBy: matchedBy,
			OldStatus: pub.Status,
			NewStatus: newStatus,
		}
		pub.RemoteID = ra.ID
		if ra.URL != "" {
			pub.RemoteURL = ra.URL
		}
		pub.Status = newStatus
		now := time.Now().Unix()
		pub.LastSyncedAt = &now
		if err := r.store.SavePublication(ctx, pub); err != nil {
			return nil, err
		}
		sum.Updated++
		sum.Updates = append(sum.Updates, upd)
	}

	r.logger.Info("reconciled", "platform", pid,
		"local", sum.TotalLocal, "remote", sum.TotalRemote,
		"matched", sum.Matched, "updated", sum.Updated)
	return sum, nil
}

// clearRemote resets a projection whose remote article disappeared.
// The draft ID stays so the next publish reuses the platform draft.
func (r *Reconciler) clearRemote(ctx context.Context, pub *article.Publication, title string, sum *Summary) error {
	upd := Update{
		ArticleID: pub.ArticleID,
		Title:     title,
		OldStatus: pub.Status,
		Cleared:   true,
	}
	pub.RemoteID = ""
	pub.RemoteURL = ""
	pub.Status = ""
	now := time.Now().Unix()
	pub.LastSyncedAt = &now
	if err := r.store.SavePublication(ctx, pub); err != nil {
		return err
	}
	sum.Updated++
	sum.Updates = append(sum.Updates, upd)
	r.logger.Info("remote article vanished, cleared projection",
		"article", pub.ArticleID, "platform", pub.Platform)
	return nil
}

// listAll paginates the platform listing until a short page. A failure
// on the first page aborts; a failure later returns what was collected
// with complete=false, as does hitting the page cap.
func (r *Reconciler) listAll(ctx context.Context, client platform.Client) (remote []platform.RemoteArticle, complete bool, pageErrs []string, err error) {
	for page := 1; page <= r.maxPages; page++ {
		batch, lerr := client.ListArticles(ctx, page, r.pageSize)
		if lerr != nil {
			if page == 1 {
				return nil, false, nil, lerr
			}
			r.logger.Warn("listing page failed, stopping",
				"platform", client.Platform(), "page", page, "error", lerr)
			pageErrs = append(pageErrs, fmt.Sprintf("page %d: %s", page, errText(lerr)))
			return remote, false, pageErrs, nil
		}
		remote = append(remote, batch...)
		if len(batch) < r.pageSize {
			return remote, true, pageErrs, nil
		}
	}
	return remote, false, pageErrs, nil
}

func statusFromRemote(rs platform.RemoteStatus) article.Status {
	switch rs {
	case platform.RemoteDraft:
		return article.StatusDraft
	case platform.RemotePending:
		return article.StatusPending
	case platform.RemotePublished:
		return article.StatusPublished
	case platform.RemoteRejected:
		return article.StatusRejected
	default:
		return article.Status(rs)
	}
}

func errText(err error) string {
	if bErr, ok := errors.AsBridgeError(err); ok {
		return bErr.Message
	}
	return err.Error()
}
