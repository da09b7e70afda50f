package ops

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/zerx-lab/penbridge/internal/errors"
	"github.com/zerx-lab/penbridge/internal/session"
)

// SessionCaptureInput contains parameters for the SessionCapture operation.
type SessionCaptureInput struct {
	Platform string
}

// SessionCapture opens an interactive login window for the platform and
// blocks until the user extracts a session or gives up. Requires a
// browser surface; headless builds get session import instead.
func SessionCapture(ctx context.Context, env *Env, input SessionCaptureInput) (*session.CaptureResult, error) {
	pid, err := env.parsePlatform(input.Platform)
	if err != nil {
		return nil, err
	}
	if env.Bridge == nil {
		return nil, errors.NewInvalidRequest(
			"interactive login capture needs a browser; use session import to paste cookies instead")
	}
	entry, err := env.Registry.Entry(pid)
	if err != nil {
		return nil, err
	}
	return env.Bridge.OpenLoginWindow(ctx, entry.Login)
}

// SessionView describes one stored session without exposing cookie values.
type SessionView struct {
	Platform    string   `json:"platform"`
	UserID      string   `json:"user_id,omitempty"`
	DisplayName string   `json:"display_name,omitempty"`
	CookieNames []string `json:"cookie_names"`
	CapturedAt  int64    `json:"captured_at"`
	Age         string   `json:"age"`
}

// SessionStatusOutput contains the result of the SessionStatus operation.
type SessionStatusOutput struct {
	Sessions []SessionView `json:"sessions"`
}

// SessionStatus lists the stored sessions. Cookie values never leave the
// database; only names are reported.
func SessionStatus(env *Env) (*SessionStatusOutput, error) {
	creds, err := env.Sessions.List()
	if err != nil {
		return nil, err
	}
	out := &SessionStatusOutput{Sessions: make([]SessionView, 0, len(creds))}
	for _, cred := range creds {
		names := make([]string, 0, len(cred.Cookies))
		for _, ck := range cred.Cookies {
			names = append(names, ck.Name)
		}
		out.Sessions = append(out.Sessions, SessionView{
			Platform:    cred.Platform,
			UserID:      cred.Profile.UserID,
			DisplayName: cred.Profile.DisplayName,
			CookieNames: names,
			CapturedAt:  cred.CapturedAt,
			Age:         formatAge(cred.CapturedAt),
		})
	}
	return out, nil
}

// SessionEndInput contains parameters for the SessionEnd operation.
type SessionEndInput struct {
	Platform string
}

// SessionEndOutput contains the result of the SessionEnd operation.
type SessionEndOutput struct {
	Platform string `json:"platform"`
	Ended    bool   `json:"ended"`
}

// SessionEnd removes the stored session for a platform. It only forgets
// the local cookies; the platform-side login stays valid until it expires.
func SessionEnd(env *Env, input SessionEndInput) (*SessionEndOutput, error) {
	pid, err := env.parsePlatform(input.Platform)
	if err != nil {
		return nil, err
	}
	if err := env.Sessions.Delete(string(pid)); err != nil {
		return nil, err
	}
	env.Logger.Info("session ended", "platform", pid)
	return &SessionEndOutput{Platform: string(pid), Ended: true}, nil
}

// SessionImportInput contains parameters for the SessionImport operation.
type SessionImportInput struct {
	Platform string
	// CookiesJSON is a JSON array of {name, value, domain} objects, as
	// exported by browser devtools or a cookie extension.
	CookiesJSON string
}

// SessionImportOutput contains the result of the SessionImport operation.
type SessionImportOutput struct {
	Platform    string `json:"platform"`
	UserID      string `json:"user_id,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Cookies     int    `json:"cookies"`
}

// SessionImport stores a session from manually supplied cookies. This is
// the capture fallback for headless machines: the user logs in with a
// normal browser and pastes the cookies here.
func SessionImport(env *Env, input SessionImportInput) (*SessionImportOutput, error) {
	pid, err := env.parsePlatform(input.Platform)
	if err != nil {
		return nil, err
	}
	entry, err := env.Registry.Entry(pid)
	if err != nil {
		return nil, err
	}

	var cookies []session.Cookie
	if err := json.Unmarshal([]byte(input.CookiesJSON), &cookies); err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("cookies must be a JSON array of {name, value, domain}: %v", err))
	}
	if len(cookies) == 0 {
		return nil, errors.NewInvalidRequest("cookies must not be empty")
	}

	cred, err := session.BuildCredential(entry.Login, cookies, time.Now().Unix())
	if err != nil {
		return nil, err
	}
	if err := env.Sessions.Put(cred); err != nil {
		return nil, err
	}

	env.Logger.Info("session imported", "platform", pid, "cookies", len(cred.Cookies))

	return &SessionImportOutput{
		Platform:    string(pid),
		UserID:      cred.Profile.UserID,
		DisplayName: cred.Profile.DisplayName,
		Cookies:     len(cred.Cookies),
	}, nil
}

// formatAge renders a captured-at timestamp as a rough human age.
func formatAge(capturedAt int64) string {
	d := time.Since(time.Unix(capturedAt, 0))
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
