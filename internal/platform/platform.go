// Package platform defines the uniform client surface over the publishing
// platforms and the shared request plumbing their adapters use.
package platform

import (
	"context"
	"fmt"
	"strings"

	"github.com/zerx-lab/penbridge/internal/errors"
	"github.com/zerx-lab/penbridge/internal/session"
)

// ID identifies a supported publishing platform.
type ID string

const (
	// DevCloud is a developer blogging platform with async moderation and risk control.
	DevCloud ID = "devcloud"

	// TechForum is a community forum with async moderation and mandatory categories.
	TechForum ID = "techforum"

	// Quill is a publishing platform that takes rendered HTML and publishes immediately.
	Quill ID = "quill"
)

// All returns the supported platform IDs in stable order.
func All() []ID {
	return []ID{DevCloud, TechForum, Quill}
}

// Parse resolves a user-supplied platform name.
func Parse(s string) (ID, error) {
	id := ID(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range All() {
		if id == known {
			return id, nil
		}
	}
	return "", errors.NewInvalidRequest(fmt.Sprintf("unknown platform %q (known: devcloud, techforum, quill)", s))
}

// TagOption is one platform tag a user can attach to an article.
type TagOption struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RemoteStatus is the platform-side state of an article.
type RemoteStatus string

const (
	RemoteDraft     RemoteStatus = "draft"
	RemotePending   RemoteStatus = "pending"
	RemotePublished RemoteStatus = "published"
	RemoteRejected  RemoteStatus = "rejected"
)

// RemoteArticle is one entry of a platform's article listing.
type RemoteArticle struct {
	ID     string       `json:"id"`
	Title  string       `json:"title"`
	URL    string       `json:"url,omitempty"`
	Status RemoteStatus `json:"status"`
}

// Payload carries everything a platform needs to save or publish an article.
type Payload struct {
	Title     string
	Markdown  string
	HTML      string // set for platforms that take rendered HTML
	Brief     string
	TagIDs    []string
	Category  string
	DraftID   string // reuse an existing platform draft when set
	Original  bool
	SourceURL string
}

// PublishResult is the platform's answer to a successful publish call.
type PublishResult struct {
	ID  string
	URL string
}

// RiskStatus reports a platform's anti-automation check.
type RiskStatus struct {
	NeedVerify bool
	QRCodeURL  string
}

// Client is the uniform surface every platform adapter implements.
// All methods attach the stored session cookies and return coded errors.
type Client interface {
	// Platform returns the adapter's platform ID.
	Platform() ID

	// SearchTags looks up platform tags matching a keyword.
	SearchTags(ctx context.Context, keyword string) ([]TagOption, error)

	// SaveDraft creates or updates a platform draft and returns its ID.
	SaveDraft(ctx context.Context, p Payload) (string, error)

	// Publish submits the article for publication.
	Publish(ctx context.Context, p Payload) (*PublishResult, error)

	// ListArticles returns one page of the account's articles.
	ListArticles(ctx context.Context, page, pageSize int) ([]RemoteArticle, error)

	// UploadImage uploads an image and returns its platform URL.
	UploadImage(ctx context.Context, filename string, data []byte) (string, error)
}

// TagRecommender is implemented by platforms that suggest tags from content.
type TagRecommender interface {
	RecommendTags(ctx context.Context, title, body string) ([]TagOption, error)
}

// RiskChecker is implemented by platforms with an explicit risk-control check.
type RiskChecker interface {
	CheckRisk(ctx context.Context) (*RiskStatus, error)
}

// HTMLRenderer is implemented by platforms that publish rendered HTML and
// expose their own markdown renderer for it.
type HTMLRenderer interface {
	RenderHTML(ctx context.Context, markdown string) (string, error)
}

// CredentialSource yields the stored login credential for a platform.
// ok is false when the user has never logged in (or logged out).
type CredentialSource interface {
	Credential(ctx context.Context, platform string) (cred *session.Credential, ok bool, err error)
}
