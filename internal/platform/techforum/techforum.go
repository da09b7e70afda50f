// Package techforum adapts the TechForum topic API. TechForum takes
// markdown, files every publish into a moderation queue, and requires a
// category on every topic.
package techforum

import (
	"strings"

	"github.com/zerx-lab/penbridge/internal/errors"
	"github.com/zerx-lab/penbridge/internal/platform"
	"github.com/zerx-lab/penbridge/internal/session"
)

// Rules returns TechForum's publish constraints.
func Rules() platform.Rules {
	return platform.Rules{
		MinTags:         1,
		MaxTags:         3,
		MinBodyChars:    100,
		RequireCategory: true,
		MarkdownNative:  true,
		Moderated:       true,
		AssetHosts:      []string{"files.techforum.io"},
	}
}

// Classify refines TechForum error text into coded errors.
func Classify(err error) *errors.BridgeError {
	be := platform.PassthroughClassifier(platform.TechForum)(err)
	if be.Code != errors.ErrPlatformError {
		return be
	}
	msg := strings.ToLower(be.Message)
	switch {
	case strings.Contains(msg, "session expired") || strings.Contains(msg, "unauthenticated"):
		return errors.Recode(be, errors.ErrAuthExpired, 401)
	case strings.Contains(msg, "too many requests") || strings.Contains(msg, "slow down"):
		return errors.Recode(be, errors.ErrRateLimited, 429)
	case strings.Contains(msg, "is required") || strings.Contains(msg, "too short") || strings.Contains(msg, "invalid category"):
		return errors.Recode(be, errors.ErrValidationFailed, 422)
	}
	return be
}

// LoginSpec describes TechForum's interactive login capture.
func LoginSpec() session.LoginSpec {
	return session.LoginSpec{
		Platform:        string(platform.TechForum),
		LoginURL:        "https://techforum.io/login",
		Partition:       "persist:techforum",
		CookieDomains:   []string{"techforum.io", ".techforum.io"},
		RequiredCookies: []string{"tf_session", "tf_user"},
		Profile: func(cookies map[string]string) session.Profile {
			return session.Profile{
				UserID:      cookies["tf_user"],
				DisplayName: cookies["tf_name"],
			}
		},
	}
}
