package quill

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/zerx-lab/penbridge/internal/errors"
	"github.com/zerx-lab/penbridge/internal/platform"
	"github.com/zerx-lab/penbridge/internal/session"
)

// DefaultBaseURL is the production API origin.
const DefaultBaseURL = "https://quillhub.net"

const requestsPerSecond = 5

var (
	_ platform.Client       = (*Client)(nil)
	_ platform.HTMLRenderer = (*Client)(nil)
)

// Client calls the Quill API with captured session cookies.
type Client struct {
	baseURL string
	http    *http.Client
	creds   platform.CredentialSource
	limiter *rate.Limiter
	logger  *slog.Logger
}

func New(baseURL string, timeout time.Duration, creds platform.CredentialSource, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    platform.NewHTTPClient(timeout),
		creds:   creds,
		limiter: rate.NewLimiter(requestsPerSecond, requestsPerSecond),
		logger:  logger,
	}
}

func (c *Client) Platform() platform.ID { return platform.Quill }

// envelope is Quill's uniform response wrapper.
type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

func (c *Client) call(ctx context.Context, method, path string, reqBody, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return errors.NewCancelled("quill request cancelled while rate limited")
	}
	cred, err := c.credential(ctx)
	if err != nil {
		return err
	}

	var env envelope
	if err := platform.DoJSON(ctx, c.http, platform.Quill, method, c.baseURL+path, cred, reqBody, &env); err != nil {
		return err
	}
	return c.unwrap(&env, out)
}

func (c *Client) unwrap(env *envelope, out any) error {
	if env.Status != "ok" {
		msg := env.Message
		if msg == "" {
			msg = "request failed"
		}
		return errors.NewPlatformError(string(platform.Quill), msg)
	}
	if out != nil && len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return errors.NewPlatformError(string(platform.Quill),
				fmt.Sprintf("malformed result payload: %v", err))
		}
	}
	return nil
}

func (c *Client) credential(ctx context.Context) (*session.Credential, error) {
	cred, ok, err := c.creds.Credential(ctx, string(platform.Quill))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.NewAuthRequired(string(platform.Quill))
	}
	return cred, nil
}

// RenderHTML converts markdown through Quill's own renderer, so published
// posts match what Quill's editor would have produced.
func (c *Client) RenderHTML(ctx context.Context, markdown string) (string, error) {
	req := map[string]string{"markdown": markdown}
	var result struct {
		HTML string `json:"html"`
	}
	if err := c.call(ctx, http.MethodPost, "/api/v1/render", req, &result); err != nil {
		return "", err
	}
	return result.HTML, nil
}

// SearchTags looks up Quill tags matching a query.
func (c *Client) SearchTags(ctx context.Context, keyword string) ([]platform.TagOption, error) {
	var result struct {
		Tags []struct {
			Slug  string `json:"slug"`
			Label string `json:"label"`
		} `json:"tags"`
	}
	path := "/api/v1/tags?query=" + url.QueryEscape(keyword)
	if err := c.call(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	tags := make([]platform.TagOption, 0, len(result.Tags))
	for _, t := range result.Tags {
		tags = append(tags, platform.TagOption{ID: t.Slug, Name: t.Label})
	}
	return tags, nil
}

type draftRequest struct {
	DraftID      string   `json:"draft_id,omitempty"`
	Title        string   `json:"title"`
	ContentHTML  string   `json:"content_html"`
	Tags         []string `json:"tags"`
	Original     bool     `json:"original"`
	CanonicalURL string   `json:"canonical_url,omitempty"`
}

// SaveDraft creates or updates a Quill draft and returns its ID. The
// payload must carry rendered HTML; Quill has no markdown endpoint.
func (c *Client) SaveDraft(ctx context.Context, p platform.Payload) (string, error) {
	if p.HTML == "" {
		return "", errors.NewInvalidRequest("quill drafts require rendered html content")
	}
	req := draftRequest{
		DraftID:      p.DraftID,
		Title:        p.Title,
		ContentHTML:  p.HTML,
		Tags:         p.TagIDs,
		Original:     p.Original,
		CanonicalURL: p.SourceURL,
	}
	var result struct {
		DraftID string `json:"draft_id"`
	}
	if err := c.call(ctx, http.MethodPost, "/api/v1/drafts", req, &result); err != nil {
		return "", err
	}
	return result.DraftID, nil
}

// Publish publishes a saved draft. Quill posts go live immediately.
func (c *Client) Publish(ctx context.Context, p platform.Payload) (*platform.PublishResult, error) {
	if p.DraftID == "" {
		return nil, errors.NewInvalidRequest("quill publish requires a saved draft")
	}
	var result struct {
		PostID string `json:"post_id"`
		URL    string `json:"url"`
	}
	path := fmt.Sprintf("/api/v1/drafts/%s/publish", url.PathEscape(p.DraftID))
	if err := c.call(ctx, http.MethodPost, path, struct{}{}, &result); err != nil {
		return nil, err
	}
	return &platform.PublishResult{ID: result.PostID, URL: result.URL}, nil
}

// ListArticles returns one page of the account's posts.
func (c *Client) ListArticles(ctx context.Context, page, pageSize int) ([]platform.RemoteArticle, error) {
	var result struct {
		Posts []struct {
			PostID string `json:"post_id"`
			Title  string `json:"title"`
			URL    string `json:"url"`
			State  string `json:"state"`
		} `json:"posts"`
	}
	path := fmt.Sprintf("/api/v1/me/posts?page=%d&limit=%d", page, pageSize)
	if err := c.call(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	out := make([]platform.RemoteArticle, 0, len(result.Posts))
	for _, p := range result.Posts {
		out = append(out, platform.RemoteArticle{
			ID:     p.PostID,
			Title:  p.Title,
			URL:    p.URL,
			Status: postState(p.State),
		})
	}
	return out, nil
}

// postState maps Quill's post states. Quill has no review queue.
func postState(s string) platform.RemoteStatus {
	switch s {
	case "draft":
		return platform.RemoteDraft
	case "published":
		return platform.RemotePublished
	default:
		return platform.RemotePublished
	}
}

// UploadImage uploads an image and returns its Quill CDN URL.
func (c *Client) UploadImage(ctx context.Context, filename string, data []byte) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", errors.NewCancelled("quill request cancelled while rate limited")
	}
	cred, err := c.credential(ctx)
	if err != nil {
		return "", err
	}

	var env envelope
	if err := platform.DoUpload(ctx, c.http, platform.Quill, c.baseURL+"/api/v1/images",
		cred, "image", filename, data, &env); err != nil {
		return "", err
	}
	var out struct {
		URL string `json:"url"`
	}
	if err := c.unwrap(&env, &out); err != nil {
		return "", err
	}
	return out.URL, nil
}
