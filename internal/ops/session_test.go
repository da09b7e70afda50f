package ops

import (
	"context"
	"testing"

	"github.com/zerx-lab/penbridge/internal/errors"
)

const devcloudCookies = `[
	{"name": "dc_uid", "value": "42", "domain": ".devcloud.dev"},
	{"name": "dc_skey", "value": "secret", "domain": ".devcloud.dev"}
]`

func TestSessionImport_StoresCredential(t *testing.T) {
	env, _ := newTestEnv(t)

	out, err := SessionImport(env, SessionImportInput{Platform: "devcloud", CookiesJSON: devcloudCookies})
	if err != nil {
		t.Fatalf("SessionImport failed: %v", err)
	}
	if out.Cookies != 2 {
		t.Errorf("Cookies = %d, want 2", out.Cookies)
	}

	cred, ok, err := env.Sessions.Credential(context.Background(), "devcloud")
	if err != nil || !ok {
		t.Fatalf("Credential returned ok=%v err=%v", ok, err)
	}
	if v, _ := cred.Value("dc_skey"); v != "secret" {
		t.Errorf("stored dc_skey = %q, want secret", v)
	}
}

func TestSessionImport_MissingRequiredCookie(t *testing.T) {
	env, _ := newTestEnv(t)

	_, err := SessionImport(env, SessionImportInput{
		Platform:    "devcloud",
		CookiesJSON: `[{"name": "dc_uid", "value": "42"}]`,
	})
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("SessionImport should return ErrInvalidRequest, got: %v", err)
	}
}

func TestSessionImport_BadJSON(t *testing.T) {
	env, _ := newTestEnv(t)

	_, err := SessionImport(env, SessionImportInput{Platform: "devcloud", CookiesJSON: "{not json"})
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("SessionImport should return ErrInvalidRequest, got: %v", err)
	}
}

func TestSessionStatus_HidesCookieValues(t *testing.T) {
	env, _ := newTestEnv(t)

	if _, err := SessionImport(env, SessionImportInput{Platform: "devcloud", CookiesJSON: devcloudCookies}); err != nil {
		t.Fatalf("SessionImport failed: %v", err)
	}

	out, err := SessionStatus(env)
	if err != nil {
		t.Fatalf("SessionStatus failed: %v", err)
	}
	if len(out.Sessions) != 1 {
		t.Fatalf("Sessions count = %d, want 1", len(out.Sessions))
	}

	s := out.Sessions[0]
	if s.Platform != "devcloud" {
		t.Errorf("Platform = %q, want devcloud", s.Platform)
	}
	if len(s.CookieNames) != 2 || s.CookieNames[0] != "dc_uid" {
		t.Errorf("CookieNames = %v, want the two names", s.CookieNames)
	}
	if s.Age == "" {
		t.Error("Age empty, want a human form")
	}
}

func TestSessionEnd(t *testing.T) {
	env, _ := newTestEnv(t)

	if _, err := SessionImport(env, SessionImportInput{Platform: "devcloud", CookiesJSON: devcloudCookies}); err != nil {
		t.Fatalf("SessionImport failed: %v", err)
	}

	out, err := SessionEnd(env, SessionEndInput{Platform: "devcloud"})
	if err != nil {
		t.Fatalf("SessionEnd failed: %v", err)
	}
	if !out.Ended {
		t.Error("Ended = false, want true")
	}

	_, ok, err := env.Sessions.Credential(context.Background(), "devcloud")
	if err != nil {
		t.Fatalf("Credential failed: %v", err)
	}
	if ok {
		t.Error("credential still stored after SessionEnd")
	}
}

func TestSessionEnd_NothingStored(t *testing.T) {
	env, _ := newTestEnv(t)

	_, err := SessionEnd(env, SessionEndInput{Platform: "devcloud"})
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("SessionEnd should return ErrNotFound, got: %v", err)
	}
}

func TestSessionCapture_NoBridge(t *testing.T) {
	env, _ := newTestEnv(t)

	// newTestEnv builds the Env without a browser surface.
	_, err := SessionCapture(context.Background(), env, SessionCaptureInput{Platform: "devcloud"})
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("SessionCapture should return ErrInvalidRequest, got: %v", err)
	}
}
