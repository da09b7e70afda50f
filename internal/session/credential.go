// Package session stores and captures platform login credentials.
//
// A credential is the cookie set extracted from an interactive browser
// login plus the lightweight profile derived from it. Platforms only ever
// see the cookies; everything else stays local.
package session

import (
	"fmt"
	"strings"

	"github.com/zerx-lab/penbridge/internal/errors"
)

// Cookie is one browser cookie captured from a login session.
type Cookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain,omitempty"`
}

// Profile is the user identity derived from a captured session.
type Profile struct {
	UserID      string `json:"user_id,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// Credential is a captured platform login.
type Credential struct {
	Platform   string   `json:"platform"`
	Cookies    []Cookie `json:"cookies"`
	Profile    Profile  `json:"profile"`
	CapturedAt int64    `json:"captured_at"`
}

// CookieHeader renders the cookies into a Cookie request header value.
func (c *Credential) CookieHeader() string {
	var b strings.Builder
	for i, ck := range c.Cookies {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(ck.Name)
		b.WriteByte('=')
		b.WriteString(ck.Value)
	}
	return b.String()
}

// Value returns the value of the named cookie.
func (c *Credential) Value(name string) (string, bool) {
	for _, ck := range c.Cookies {
		if ck.Name == name {
			return ck.Value, true
		}
	}
	return "", false
}

// LoginSpec describes how to log in to one platform and which cookies
// constitute a usable session.
type LoginSpec struct {
	// Platform is the platform name this login flow belongs to.
	Platform string

	// LoginURL is the page opened for interactive login.
	LoginURL string

	// Partition is the isolated browser storage partition for this platform.
	Partition string

	// CookieDomains lists the domain variants cookies must be read from.
	CookieDomains []string

	// RequiredCookies names the cookies that must be present after login.
	RequiredCookies []string

	// Profile derives the user profile from the flattened cookie map.
	Profile func(cookies map[string]string) Profile
}

// BuildCredential merges raw cookies into a credential for the platform.
//
// Cookies are deduplicated by (name, domain) with later entries winning.
// Missing required cookies fail the build; the login is incomplete.
func BuildCredential(spec LoginSpec, cookies []Cookie, capturedAt int64) (*Credential, error) {
	type key struct{ name, domain string }
	merged := make(map[key]Cookie)
	var order []key
	for _, ck := range cookies {
		k := key{ck.Name, ck.Domain}
		if _, seen := merged[k]; !seen {
			order = append(order, k)
		}
		merged[k] = ck
	}

	out := make([]Cookie, 0, len(order))
	byName := make(map[string]string)
	for _, k := range order {
		ck := merged[k]
		out = append(out, ck)
		byName[ck.Name] = ck.Value
	}

	var missing []string
	for _, name := range spec.RequiredCookies {
		if byName[name] == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, errors.NewInvalidRequest(fmt.Sprintf(
			"login to %s looks incomplete: missing cookies %s",
			spec.Platform, strings.Join(missing, ", ")))
	}

	var profile Profile
	if spec.Profile != nil {
		profile = spec.Profile(byName)
	}

	return &Credential{
		Platform:   spec.Platform,
		Cookies:    out,
		Profile:    profile,
		CapturedAt: capturedAt,
	}, nil
}
