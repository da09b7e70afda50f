package devcloud

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
const DefaultBaseURL = "https://api.devcloud.dev"

// requestsPerSecond caps the call rate; DevCloud's risk control watches
// for bursts from unofficial clients.
const requestsPerSecond = 2

var (
	_ platform.Client         = (*Client)(nil)
	_ platform.TagRecommender = (*Client)(nil)
	_ platform.RiskChecker    = (*Client)(nil)
)

// Client calls the DevCloud writer API with captured session cookies.
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

func (c *Client) Platform() platform.ID { return platform.DevCloud }

// envelope is DevCloud's uniform response wrapper. Code zero means success.
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) call(ctx context.Context, method, path string, reqBody, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return errors.NewCancelled("devcloud request cancelled while rate limited")
	}
	cred, err := c.credential(ctx)
	if err != nil {
		return err
	}

	var env envelope
	if err := platform.DoJSON(ctx, c.http, platform.DevCloud, method, c.baseURL+path, cred, reqBody, &env); err != nil {
		return err
	}
	return c.unwrap(&env, out)
}

// unwrap surfaces envelope-level errors and decodes the data payload.
func (c *Client) unwrap(env *envelope, out any) error {
	if env.Code != 0 {
		return errors.NewPlatformError(string(platform.DevCloud),
			fmt.Sprintf("[%d] %s", env.Code, env.Message))
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return errors.NewPlatformError(string(platform.DevCloud),
				fmt.Sprintf("malformed data payload: %v", err))
		}
	}
	return nil
}

func (c *Client) credential(ctx context.Context) (*session.Credential, error) {
	cred, ok, err := c.creds.Credential(ctx, string(platform.DevCloud))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.NewAuthRequired(string(platform.DevCloud))
	}
	return cred, nil
}

type tagList struct {
	Tags []struct {
		TagID   string `json:"tagId"`
		TagName string `json:"tagName"`
	} `json:"tags"`
}

func (l tagList) options() []platform.TagOption {
	tags := make([]platform.TagOption, 0, len(l.Tags))
	for _, t := range l.Tags {
		tags = append(tags, platform.TagOption{ID: t.TagID, Name: t.TagName})
	}
	return tags
}

// SearchTags looks up DevCloud tags matching a keyword.
func (c *Client) SearchTags(ctx context.Context, keyword string) ([]platform.TagOption, error) {
	var data tagList
	path := "/writer/api/v1/tags/search?keyword=" + url.QueryEscape(keyword)
	if err := c.call(ctx, http.MethodGet, path, nil, &data); err != nil {
		return nil, err
	}
	return data.options(), nil
}

// RecommendTags asks DevCloud to suggest tags for the article content.
func (c *Client) RecommendTags(ctx context.Context, title, body string) ([]platform.TagOption, error) {
	req := map[string]string{"title": title, "content": body}
	var data tagList
	if err := c.call(ctx, http.MethodPost, "/writer/api/v1/tags/recommend", req, &data); err != nil {
		return nil, err
	}
	return data.options(), nil
}

type draftRequest struct {
	DraftID   string   `json:"draftId,omitempty"`
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	Brief     string   `json:"brief"`
	TagIDs    []string `json:"tagIds"`
	Original  bool     `json:"original"`
	SourceURL string   `json:"sourceUrl,omitempty"`
}

// SaveDraft creates or updates a DevCloud draft and returns its ID.
func (c *Client) SaveDraft(ctx context.Context, p platform.Payload) (string, error) {
	req := draftRequest{
		DraftID:   p.DraftID,
		Title:     p.Title,
		Content:   p.Markdown,
		Brief:     p.Brief,
		TagIDs:    p.TagIDs,
		Original:  p.Original,
		SourceURL: p.SourceURL,
	}
	var data struct {
		DraftID string `json:"draftId"`
	}
	if err := c.call(ctx, http.MethodPost, "/writer/api/v1/drafts", req, &data); err != nil {
		return "", err
	}
	return data.DraftID, nil
}

// Publish submits a saved draft for moderation. DevCloud queues the
// article for review rather than publishing it immediately.
func (c *Client) Publish(ctx context.Context, p platform.Payload) (*platform.PublishResult, error) {
	if p.DraftID == "" {
		return nil, errors.NewInvalidRequest("devcloud publish requires a saved draft")
	}
	var data struct {
		ArticleID  string `json:"articleId"`
		ArticleURL string `json:"articleUrl"`
	}
	path := fmt.Sprintf("/writer/api/v1/drafts/%s/publish", url.PathEscape(p.DraftID))
	if err := c.call(ctx, http.MethodPost, path, struct{}{}, &data); err != nil {
		return nil, err
	}
	return &platform.PublishResult{ID: data.ArticleID, URL: data.ArticleURL}, nil
}

// ListArticles returns one page of the account's articles.
func (c *Client) ListArticles(ctx context.Context, page, pageSize int) ([]platform.RemoteArticle, error) {
	var data struct {
		Articles []struct {
			ArticleID   string `json:"articleId"`
			Title       string `json:"title"`
			URL         string `json:"url"`
			AuditStatus int    `json:"auditStatus"`
		} `json:"articles"`
	}
	path := fmt.Sprintf("/writer/api/v1/articles?page=%d&pageSize=%d", page, pageSize)
	if err := c.call(ctx, http.MethodGet, path, nil, &data); err != nil {
		return nil, err
	}
	out := make([]platform.RemoteArticle, 0, len(data.Articles))
	for _, a := range data.Articles {
		out = append(out, platform.RemoteArticle{
			ID:     a.ArticleID,
			Title:  a.Title,
			URL:    a.URL,
			Status: auditStatus(a.AuditStatus),
		})
	}
	return out, nil
}

// auditStatus maps DevCloud's numeric audit states.
func auditStatus(s int) platform.RemoteStatus {
	switch s {
	case 0:
		return platform.RemoteDraft
	case 1:
		return platform.RemotePending
	case 2:
		return platform.RemotePublished
	case 3:
		return platform.RemoteRejected
	default:
		return platform.RemotePending
	}
}

// UploadImage uploads an image and returns its DevCloud CDN URL.
func (c *Client) UploadImage(ctx context.Context, filename string, data []byte) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", errors.NewCancelled("devcloud request cancelled while rate limited")
	}
	cred, err := c.credential(ctx)
	if err != nil {
		return "", err
	}

	var env envelope
	if err := platform.DoUpload(ctx, c.http, platform.DevCloud, c.baseURL+"/writer/api/v1/images",
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

// CheckRisk asks DevCloud whether secondary verification is pending for
// the account.
func (c *Client) CheckRisk(ctx context.Context) (*platform.RiskStatus, error) {
	var data struct {
		NeedVerify bool   `json:"needVerify"`
		QRCodeURL  string `json:"qrcodeUrl"`
	}
	if err := c.call(ctx, http.MethodGet, "/writer/api/v1/risk/status", nil, &data); err != nil {
		return nil, err
	}
	return &platform.RiskStatus{NeedVerify: data.NeedVerify, QRCodeURL: data.QRCodeURL}, nil
}
