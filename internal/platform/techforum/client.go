package techforum

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
const DefaultBaseURL = "https://techforum.io"

const requestsPerSecond = 3

var _ platform.Client = (*Client)(nil)

// Client calls the TechForum topic API with captured session cookies.
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

func (c *Client) Platform() platform.ID { return platform.TechForum }

// envelope is TechForum's uniform response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *apiError       `json:"error"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (c *Client) call(ctx context.Context, method, path string, reqBody, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return errors.NewCancelled("techforum request cancelled while rate limited")
	}
	cred, err := c.credential(ctx)
	if err != nil {
		return err
	}

	var env envelope
	if err := platform.DoJSON(ctx, c.http, platform.TechForum, method, c.baseURL+path, cred, reqBody, &env); err != nil {
		return err
	}
	return c.unwrap(&env, out)
}

func (c *Client) unwrap(env *envelope, out any) error {
	if !env.Success {
		msg := "request failed"
		if env.Error != nil {
			msg = fmt.Sprintf("[%s] %s", env.Error.Code, env.Error.Message)
		}
		return errors.NewPlatformError(string(platform.TechForum), msg)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return errors.NewPlatformError(string(platform.TechForum),
				fmt.Sprintf("malformed data payload: %v", err))
		}
	}
	return nil
}

func (c *Client) credential(ctx context.Context) (*session.Credential, error) {
	cred, ok, err := c.creds.Credential(ctx, string(platform.TechForum))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.NewAuthRequired(string(platform.TechForum))
	}
	return cred, nil
}

// SearchTags looks up TechForum tags matching a keyword.
func (c *Client) SearchTags(ctx context.Context, keyword string) ([]platform.TagOption, error) {
	var data struct {
		Tags []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"tags"`
	}
	path := "/api/tags?q=" + url.QueryEscape(keyword)
	if err := c.call(ctx, http.MethodGet, path, nil, &data); err != nil {
		return nil, err
	}
	tags := make([]platform.TagOption, 0, len(data.Tags))
	for _, t := range data.Tags {
		tags = append(tags, platform.TagOption{ID: t.ID, Name: t.Name})
	}
	return tags, nil
}

type draftRequest struct {
	ID       string   `json:"id,omitempty"`
	Title    string   `json:"title"`
	Raw      string   `json:"raw"`
	Category string   `json:"category"`
	Tags     []string `json:"tags"`
}

// SaveDraft creates or updates a TechForum topic draft and returns its ID.
func (c *Client) SaveDraft(ctx context.Context, p platform.Payload) (string, error) {
	req := draftRequest{
		ID:       p.DraftID,
		Title:    p.Title,
		Raw:      p.Markdown,
		Category: p.Category,
		Tags:     p.TagIDs,
	}
	var data struct {
		ID string `json:"id"`
	}
	if err := c.call(ctx, http.MethodPost, "/api/drafts", req, &data); err != nil {
		return "", err
	}
	return data.ID, nil
}

// Publish submits a draft as a topic. TechForum places new topics in a
// review queue before they go live.
func (c *Client) Publish(ctx context.Context, p platform.Payload) (*platform.PublishResult, error) {
	if p.DraftID == "" {
		return nil, errors.NewInvalidRequest("techforum publish requires a saved draft")
	}
	var data struct {
		TopicID string `json:"topicId"`
		URL     string `json:"url"`
	}
	path := fmt.Sprintf("/api/drafts/%s/submit", url.PathEscape(p.DraftID))
	if err := c.call(ctx, http.MethodPost, path, struct{}{}, &data); err != nil {
		return nil, err
	}
	return &platform.PublishResult{ID: data.TopicID, URL: data.URL}, nil
}

// ListArticles returns one page of the account's topics.
func (c *Client) ListArticles(ctx context.Context, page, pageSize int) ([]platform.RemoteArticle, error) {
	var data struct {
		Topics []struct {
			ID    string `json:"id"`
			Title string `json:"title"`
			URL   string `json:"url"`
			State string `json:"state"`
		} `json:"topics"`
	}
	path := fmt.Sprintf("/api/topics/mine?page=%d&per_page=%d", page, pageSize)
	if err := c.call(ctx, http.MethodGet, path, nil, &data); err != nil {
		return nil, err
	}
	out := make([]platform.RemoteArticle, 0, len(data.Topics))
	for _, tp := range data.Topics {
		out = append(out, platform.RemoteArticle{
			ID:     tp.ID,
			Title:  tp.Title,
			URL:    tp.URL,
			Status: topicState(tp.State),
		})
	}
	return out, nil
}

// topicState maps TechForum's topic states.
func topicState(s string) platform.RemoteStatus {
	switch s {
	case "draft":
		return platform.RemoteDraft
	case "awaiting_review", "pending":
		return platform.RemotePending
	case "live", "published":
		return platform.RemotePublished
	case "rejected":
		return platform.RemoteRejected
	default:
		return platform.RemotePending
	}
}

// UploadImage uploads an attachment and returns its TechForum URL.
func (c *Client) UploadImage(ctx context.Context, filename string, data []byte) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", errors.NewCancelled("techforum request cancelled while rate limited")
	}
	cred, err := c.credential(ctx)
	if err != nil {
		return "", err
	}

	var env envelope
	if err := platform.DoUpload(ctx, c.http, platform.TechForum, c.baseURL+"/api/uploads",
		cred, "file", filename, data, &env); err != nil {
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
