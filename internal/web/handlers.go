package web

import (
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"github.com/zerx-lab/penbridge/internal/errors"
	"github.com/zerx-lab/penbridge/internal/ops"
)

// Handlers contains HTTP route handlers for the dashboard.
type Handlers struct {
	env      *ops.Env
	renderer *Renderer
}

// HandleArticles handles GET /articles: the article list with per-platform status.
func (h *Handlers) HandleArticles(w http.ResponseWriter, r *http.Request) {
	input := ops.ListArticlesInput{
		Limit:          parseIntParam(r, "limit", ops.DefaultListLimit),
		Offset:         parseIntParam(r, "offset", 0),
		IncludeDeleted: parseBoolParam(r, "include_deleted"),
	}

	result, err := ops.ListArticles(h.env, input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, r, "list", ListPageData{
		PageData: PageData{
			Title:   "Articles",
			Version: h.renderer.version,
			Nav:     "articles",
		},
		Articles:   result.Articles,
		Pagination: result.Pagination,
		Deleted:    input.IncludeDeleted,
	})
}

// HandleArticleDetail handles GET /articles/{id}: one article with its
// rendered preview and platform projections.
func (h *Handlers) HandleArticleDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("article ID is required"))
		return
	}

	result, err := ops.ShowArticle(h.env, ops.ShowArticleInput{
		ID:             id,
		IncludeDeleted: parseBoolParam(r, "include_deleted"),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, r, "detail", DetailPageData{
		PageData: PageData{
			Title:   result.Article.Title,
			Version: h.renderer.version,
			Nav:     "articles",
		},
		Article:      result.Article,
		Publications: result.Publications,
		RenderedHTML: renderMarkdown(result.Article.Body),
		Deleted:      result.Article.DeletedAt != nil,
	})
}

// HandleArticleDownload handles GET /articles/{id}/download: the canonical
// markdown as a file.
func (h *Handlers) HandleArticleDownload(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("article ID is required"))
		return
	}

	result, err := ops.ShowArticle(h.env, ops.ShowArticleInput{
		ID:             id,
		IncludeDeleted: parseBoolParam(r, "include_deleted"),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	filename := ops.SanitizeForFilename(result.Article.Title) + ".md"
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	_, _ = w.Write([]byte(result.Article.Body))
}

// HandleArticleDelete handles DELETE /articles/{id}: soft-delete an article.
func (h *Handlers) HandleArticleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("article ID is required"))
		return
	}

	result, err := ops.DeleteArticle(h.env, ops.DeleteArticleInput{ID: id})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	// Htmx request: redirect via HX-Redirect header
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", "/articles")
		w.WriteHeader(http.StatusOK)
		return
	}

	// JSON request
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		renderJSON(w, http.StatusOK, map[string]any{
			"deleted": result.Deleted,
			"id":      result.ID,
		})
		return
	}

	// Default: redirect
	http.Redirect(w, r, "/articles", http.StatusFound)
}

// HandleArticlesPurge handles POST /articles/purge: permanently delete
// soft-deleted articles.
func (h *Handlers) HandleArticlesPurge(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	if r.FormValue("confirm") != "true" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("confirm parameter must be \"true\""))
		return
	}

	input := ops.PurgeArticlesInput{}
	if days := r.FormValue("older_than_days"); days != "" {
		d, err := strconv.Atoi(days)
		if err != nil {
			h.renderer.renderError(w, r, errors.NewInvalidRequest("older_than_days must be an integer"))
			return
		}
		input.OlderThanDays = d
	}

	result, err := ops.PurgeArticles(h.env, input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	message := fmt.Sprintf("Purged %d article(s)", result.Purged)

	// Htmx request: return HTML fragment
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`<div class="purge-result">` + template.HTMLEscapeString(message) + `</div>`))
		return
	}

	// JSON request
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		renderJSON(w, http.StatusOK, map[string]any{
			"purged":  result.Purged,
			"message": message,
		})
		return
	}

	// Default: redirect
	http.Redirect(w, r, "/articles?include_deleted=true", http.StatusFound)
}

// HandleSessions handles GET /sessions: stored sessions, cookie names only.
func (h *Handlers) HandleSessions(w http.ResponseWriter, r *http.Request) {
	result, err := ops.SessionStatus(h.env)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	var platforms []string
	for _, pid := range h.env.Registry.IDs() {
		platforms = append(platforms, string(pid))
	}

	h.renderer.renderPage(w, r, "sessions", SessionsPageData{
		PageData: PageData{
			Title:   "Sessions",
			Version: h.renderer.version,
			Nav:     "sessions",
		},
		Sessions:  result.Sessions,
		Platforms: platforms,
	})
}

// HandleReconcile handles POST /reconcile: pull platform listings and
// refresh local publication status.
func (h *Handlers) HandleReconcile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	result, err := ops.ReconcileStatuses(r.Context(), h.env, ops.ReconcileStatusesInput{
		Platform: r.FormValue("platform"),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	// Htmx request: return HTML fragment
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`<div class="reconcile-result">` + template.HTMLEscapeString(reconcileMessage(result)) + `</div>`))
		return
	}

	// JSON request
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		renderJSON(w, http.StatusOK, result)
		return
	}

	// Default: back to the list with fresh statuses
	http.Redirect(w, r, "/articles", http.StatusFound)
}

// reconcileMessage summarizes reconcile results as one line.
func reconcileMessage(out *ops.ReconcileStatusesOutput) string {
	var parts []string
	for _, res := range out.Results {
		if res.Error != "" {
			parts = append(parts, fmt.Sprintf("%s: %s", res.Platform, res.Error))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %d updated", res.Platform, res.Summary.Updated))
	}
	if len(parts) == 0 {
		return "No platforms configured"
	}
	return strings.Join(parts, "; ")
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// parseBoolParam parses a boolean query parameter.
func parseBoolParam(r *http.Request, name string) bool {
	s := r.URL.Query().Get(name)
	return s == "true" || s == "1"
}
