// Package quill adapts the Quill publishing API. Quill takes rendered HTML
// instead of markdown, publishes immediately without moderation, and
// requires a canonical source URL on reposted work.
package quill

import (
	"strings"

	"github.com/zerx-lab/penbridge/internal/errors"
	"github.com/zerx-lab/penbridge/internal/platform"
	"github.com/zerx-lab/penbridge/internal/session"
)

// Rules returns Quill's publish constraints.
func Rules() platform.Rules {
	return platform.Rules{
		MaxTags:                   5,
		RequireSourceURLForRepost: true,
		MarkdownNative:            false,
		Moderated:                 false,
		AssetHosts:                []string{"cdn.quillhub.net"},
	}
}

// Classify refines Quill error text into coded errors.
func Classify(err error) *errors.BridgeError {
	be := platform.PassthroughClassifier(platform.Quill)(err)
	if be.Code != errors.ErrPlatformError {
		return be
	}
	msg := strings.ToLower(be.Message)
	switch {
	case strings.Contains(msg, "token expired") || strings.Contains(msg, "sign in again"):
		return errors.Recode(be, errors.ErrAuthExpired, 401)
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many"):
		return errors.Recode(be, errors.ErrRateLimited, 429)
	case strings.Contains(msg, "canonical url") || strings.Contains(msg, "invalid html"):
		return errors.Recode(be, errors.ErrValidationFailed, 422)
	}
	return be
}

// LoginSpec describes Quill's interactive login capture.
func LoginSpec() session.LoginSpec {
	return session.LoginSpec{
		Platform:        string(platform.Quill),
		LoginURL:        "https://quillhub.net/signin",
		Partition:       "persist:quill",
		CookieDomains:   []string{"quillhub.net", ".quillhub.net"},
		RequiredCookies: []string{"ql_token", "ql_uid"},
		Profile: func(cookies map[string]string) session.Profile {
			return session.Profile{
				UserID:      cookies["ql_uid"],
				DisplayName: cookies["ql_handle"],
			}
		},
	}
}
