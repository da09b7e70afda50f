package session

import (
	"strings"
	"testing"

	"github.com/zerx-lab/penbridge/internal/errors"
)

func TestCookieHeader(t *testing.T) {
	cred := &Credential{Cookies: []Cookie{
		{Name: "dc_uid", Value: "u-1"},
		{Name: "dc_skey", Value: "abc123"},
	}}

	want := "dc_uid=u-1; dc_skey=abc123"
	if got := cred.CookieHeader(); got != want {
		t.Errorf("CookieHeader() = %q, want %q", got, want)
	}
}

func TestCredentialValue(t *testing.T) {
	cred := &Credential{Cookies: []Cookie{{Name: "tf_session", Value: "s1"}}}

	if v, ok := cred.Value("tf_session"); !ok || v != "s1" {
		t.Errorf("Value(tf_session) = %q, %v; want %q, true", v, ok, "s1")
	}
	if _, ok := cred.Value("missing"); ok {
		t.Error("Value(missing) ok = true, want false")
	}
}

func TestBuildCredential(t *testing.T) {
	spec := LoginSpec{
		Platform:        "devcloud",
		CookieDomains:   []string{"devcloud.dev", ".devcloud.dev"},
		RequiredCookies: []string{"dc_uid", "dc_skey"},
		Profile: func(cookies map[string]string) Profile {
			return Profile{UserID: cookies["dc_uid"], DisplayName: cookies["dc_nick"]}
		},
	}

	cookies := []Cookie{
		{Name: "dc_uid", Value: "u-1", Domain: "devcloud.dev"},
		{Name: "dc_skey", Value: "stale", Domain: ".devcloud.dev"},
		{Name: "dc_skey", Value: "fresh", Domain: ".devcloud.dev"},
		{Name: "dc_nick", Value: "ada", Domain: "devcloud.dev"},
	}

	cred, err := BuildCredential(spec, cookies, 1700000000)
	if err != nil {
		t.Fatalf("BuildCredential() error = %v", err)
	}

	if cred.Platform != "devcloud" {
		t.Errorf("Platform = %q, want %q", cred.Platform, "devcloud")
	}
	if cred.CapturedAt != 1700000000 {
		t.Errorf("CapturedAt = %d, want 1700000000", cred.CapturedAt)
	}
	if len(cred.Cookies) != 3 {
		t.Errorf("len(Cookies) = %d, want 3 after dedupe", len(cred.Cookies))
	}
	if v, _ := cred.Value("dc_skey"); v != "fresh" {
		t.Errorf("Value(dc_skey) = %q, want %q (later capture wins)", v, "fresh")
	}
	if cred.Profile.UserID != "u-1" {
		t.Errorf("Profile.UserID = %q, want %q", cred.Profile.UserID, "u-1")
	}
	if cred.Profile.DisplayName != "ada" {
		t.Errorf("Profile.DisplayName = %q, want %q", cred.Profile.DisplayName, "ada")
	}
}

func TestBuildCredential_SameNameAcrossDomains(t *testing.T) {
	spec := LoginSpec{Platform: "quill", RequiredCookies: []string{"ql_token"}}

	cookies := []Cookie{
		{Name: "ql_token", Value: "root", Domain: "quillhub.net"},
		{Name: "ql_token", Value: "wild", Domain: ".quillhub.net"},
	}

	cred, err := BuildCredential(spec, cookies, 1)
	if err != nil {
		t.Fatalf("BuildCredential() error = %v", err)
	}
	if len(cred.Cookies) != 2 {
		t.Errorf("len(Cookies) = %d, want 2 (distinct domains kept)", len(cred.Cookies))
	}
}

func TestBuildCredential_MissingRequired(t *testing.T) {
	spec := LoginSpec{
		Platform:        "techforum",
		RequiredCookies: []string{"tf_session", "tf_user"},
	}

	cookies := []Cookie{
		{Name: "tf_session", Value: "s1", Domain: "techforum.io"},
		{Name: "tf_user", Value: "", Domain: "techforum.io"},
	}

	_, err := BuildCredential(spec, cookies, 1)
	if err == nil {
		t.Fatal("BuildCredential() error = nil, want error for missing cookie")
	}
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("error code = %v, want INVALID_REQUEST", errors.Code(err))
	}
	if !strings.Contains(err.Error(), "tf_user") {
		t.Errorf("error %q should name the missing cookie", err.Error())
	}
}
