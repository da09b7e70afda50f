// Package devcloud adapts the DevCloud writer API. DevCloud takes markdown
// directly, moderates every publish, and runs risk control that can demand
// secondary verification before accepting automated requests.
package devcloud

import (
	"net/url"
	"strings"

	"github.com/zerx-lab/penbridge/internal/errors"
	"github.com/zerx-lab/penbridge/internal/platform"
	"github.com/zerx-lab/penbridge/internal/session"
)

// Rules returns DevCloud's publish constraints.
func Rules() platform.Rules {
	return platform.Rules{
		MinTags:        1,
		MaxTags:        5,
		BriefMin:       50,
		BriefMax:       100,
		MarkdownNative: true,
		Moderated:      true,
		AssetHosts:     []string{"img.devcloud.dev"},
	}
}

// Classify refines DevCloud error text into coded errors.
func Classify(err error) *errors.BridgeError {
	be := platform.PassthroughClassifier(platform.DevCloud)(err)
	if be.Code != errors.ErrPlatformError {
		return be
	}
	msg := strings.ToLower(be.Message)
	switch {
	case strings.Contains(msg, "risk control") || strings.Contains(msg, "secondary verification"):
		return errors.Recode(be, errors.ErrRiskVerificationRequired, 403)
	case strings.Contains(msg, "login expired") || strings.Contains(msg, "not logged in") || strings.Contains(msg, "invalid session"):
		return errors.Recode(be, errors.ErrAuthExpired, 401)
	case strings.Contains(msg, "too frequent") || strings.Contains(msg, "rate limit"):
		return errors.Recode(be, errors.ErrRateLimited, 429)
	case strings.Contains(msg, "sensitive content") || strings.Contains(msg, "content violates"):
		return errors.Recode(be, errors.ErrValidationFailed, 422)
	}
	return be
}

// LoginSpec describes DevCloud's interactive login capture.
func LoginSpec() session.LoginSpec {
	return session.LoginSpec{
		Platform:        string(platform.DevCloud),
		LoginURL:        "https://devcloud.dev/login",
		Partition:       "persist:devcloud",
		CookieDomains:   []string{"devcloud.dev", ".devcloud.dev", "www.devcloud.dev"},
		RequiredCookies: []string{"dc_uid", "dc_skey"},
		Profile:         profileFromCookies,
	}
}

// profileFromCookies derives the user profile from the session cookies.
// DevCloud URL-encodes the display name cookie.
func profileFromCookies(cookies map[string]string) session.Profile {
	name := cookies["dc_nick"]
	if decoded, err := url.QueryUnescape(name); err == nil {
		name = decoded
	}
	return session.Profile{UserID: cookies["dc_uid"], DisplayName: name}
}
