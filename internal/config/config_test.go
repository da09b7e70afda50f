package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_DefaultWhenMissing(t *testing.T) {
	tmpDir := t.TempDir()

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HTTPTimeoutSecs != DefaultConfig().HTTPTimeoutSecs {
		t.Fatalf("HTTPTimeoutSecs = %d, want %d", cfg.HTTPTimeoutSecs, DefaultConfig().HTTPTimeoutSecs)
	}
	if cfg.ListPageSize != DefaultConfig().ListPageSize {
		t.Fatalf("ListPageSize = %d, want %d", cfg.ListPageSize, DefaultConfig().ListPageSize)
	}
}

func TestLoad_OverridesFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	if err := os.WriteFile(configPath, []byte(`{"http_timeout_secs": 5, "max_list_pages": 3}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HTTPTimeoutSecs != 5 {
		t.Fatalf("HTTPTimeoutSecs = %d, want %d", cfg.HTTPTimeoutSecs, 5)
	}
	if cfg.MaxListPages != 3 {
		t.Fatalf("MaxListPages = %d, want %d", cfg.MaxListPages, 3)
	}
	// Unset scalar keeps default
	if cfg.ListPageSize != DefaultConfig().ListPageSize {
		t.Fatalf("ListPageSize = %d, want %d", cfg.ListPageSize, DefaultConfig().ListPageSize)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	if err := os.WriteFile(configPath, []byte(`{not json}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := Load(tmpDir); err == nil {
		t.Fatalf("Load() expected error, got nil")
	}
}

func TestLoad_PlatformBaseURLs(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	if err := os.WriteFile(configPath, []byte(`{"platform_base_urls": {"devcloud": "http://localhost:9001/"}}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if got := cfg.BaseURL("devcloud", "https://api.devcloud.dev"); got != "http://localhost:9001" {
		t.Errorf("BaseURL(devcloud) = %q, want %q (trailing slash trimmed)", got, "http://localhost:9001")
	}
	if got := cfg.BaseURL("quill", "https://api.quillhub.net"); got != "https://api.quillhub.net" {
		t.Errorf("BaseURL(quill) = %q, want fallback", got)
	}
}

func TestHTTPTimeout(t *testing.T) {
	cfg := &Config{HTTPTimeoutSecs: 7}
	if got := cfg.HTTPTimeout(); got != 7*time.Second {
		t.Errorf("HTTPTimeout() = %v, want %v", got, 7*time.Second)
	}
}

func TestLoadWithRepo_BothPresent(t *testing.T) {
	globalDir := t.TempDir()
	repoRoot := t.TempDir()

	// Global config
	globalConfig := `{"http_timeout_secs": 30, "disabled_tools": ["article_purge"]}`
	if err := os.WriteFile(filepath.Join(globalDir, "config.json"), []byte(globalConfig), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	// Repo config at repoRoot/.penbridge/config.json
	repoDir := filepath.Join(repoRoot, ".penbridge")
	if err := os.MkdirAll(repoDir, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	repoConfig := `{"http_timeout_secs": 5, "disabled_tools": ["article_delete"]}`
	if err := os.WriteFile(filepath.Join(repoDir, "config.json"), []byte(repoConfig), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := LoadWithRepo(globalDir, repoRoot)
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}

	// Repo overrides scalar
	if cfg.HTTPTimeoutSecs != 5 {
		t.Errorf("HTTPTimeoutSecs = %d, want 5 (repo override)", cfg.HTTPTimeoutSecs)
	}

	// Arrays merged
	if len(cfg.DisabledTools) != 2 {
		t.Errorf("DisabledTools length = %d, want 2", len(cfg.DisabledTools))
	}
}

func TestLoadWithRepo_OnlyGlobal(t *testing.T) {
	globalDir := t.TempDir()
	repoDir := t.TempDir() // No config file

	globalConfig := `{"list_page_size": 50, "disabled_tools": ["article_purge"]}`
	if err := os.WriteFile(filepath.Join(globalDir, "config.json"), []byte(globalConfig), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := LoadWithRepo(globalDir, repoDir)
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}

	if cfg.ListPageSize != 50 {
		t.Errorf("ListPageSize = %d, want 50", cfg.ListPageSize)
	}
	if len(cfg.DisabledTools) != 1 || cfg.DisabledTools[0] != "article_purge" {
		t.Errorf("DisabledTools = %v, want [article_purge]", cfg.DisabledTools)
	}
}

func TestLoadWithRepo_NeitherPresent(t *testing.T) {
	globalDir := t.TempDir()
	repoDir := t.TempDir()

	cfg, err := LoadWithRepo(globalDir, repoDir)
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}

	// All defaults
	if cfg.HTTPTimeoutSecs != 15 {
		t.Errorf("HTTPTimeoutSecs = %d, want 15", cfg.HTTPTimeoutSecs)
	}
	if len(cfg.DisabledTools) != 0 {
		t.Errorf("DisabledTools = %v, want empty", cfg.DisabledTools)
	}
}

func TestMerge_ScalarOverride(t *testing.T) {
	base := &Config{HTTPTimeoutSecs: 15, DBMaxOpenConns: 5}
	overlay := &Config{HTTPTimeoutSecs: 5} // DBMaxOpenConns is 0 (zero value)

	result := Merge(base, overlay)

	if result.HTTPTimeoutSecs != 5 {
		t.Errorf("HTTPTimeoutSecs = %d, want 5 (overlay)", result.HTTPTimeoutSecs)
	}
	if result.DBMaxOpenConns != 5 {
		t.Errorf("DBMaxOpenConns = %d, want 5 (base, overlay is zero)", result.DBMaxOpenConns)
	}
}

func TestMerge_BooleanOr(t *testing.T) {
	base := &Config{AllowUnsafePaths: true}
	overlay := &Config{AllowUnsafePaths: false}

	result := Merge(base, overlay)

	if !result.AllowUnsafePaths {
		t.Error("AllowUnsafePaths should be true (base OR overlay)")
	}
}

func TestMerge_MapOverlayWins(t *testing.T) {
	base := &Config{PlatformBaseURLs: map[string]string{
		"devcloud":  "http://a",
		"techforum": "http://b",
	}}
	overlay := &Config{PlatformBaseURLs: map[string]string{
		"devcloud": "http://c",
	}}

	result := Merge(base, overlay)

	if result.PlatformBaseURLs["devcloud"] != "http://c" {
		t.Errorf("PlatformBaseURLs[devcloud] = %q, want %q", result.PlatformBaseURLs["devcloud"], "http://c")
	}
	if result.PlatformBaseURLs["techforum"] != "http://b" {
		t.Errorf("PlatformBaseURLs[techforum] = %q, want %q", result.PlatformBaseURLs["techforum"], "http://b")
	}
}

func TestMerge_ArrayMergeDedup(t *testing.T) {
	base := &Config{DisabledTools: []string{"article_purge", "article_delete"}}
	overlay := &Config{DisabledTools: []string{"article_delete", "session_end"}}

	result := Merge(base, overlay)

	if len(result.DisabledTools) != 3 {
		t.Errorf("DisabledTools length = %d, want 3 (merged, deduped)", len(result.DisabledTools))
	}

	// Check all three are present
	has := make(map[string]bool)
	for _, s := range result.DisabledTools {
		has[s] = true
	}
	for _, want := range []string{"article_purge", "article_delete", "session_end"} {
		if !has[want] {
			t.Errorf("DisabledTools missing %q", want)
		}
	}
}

func TestFindRepoConfig_InParentDir(t *testing.T) {
	// Create: tmpDir/.penbridge/config.json
	//         tmpDir/subdir/deeper/
	tmpDir := t.TempDir()
	repoDir := filepath.Join(tmpDir, ".penbridge")
	if err := os.MkdirAll(repoDir, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	configPath := filepath.Join(repoDir, "config.json")
	if err := os.WriteFile(configPath, []byte(`{}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	subdir := filepath.Join(tmpDir, "subdir", "deeper")
	if err := os.MkdirAll(subdir, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}

	// Start from subdir, should find config in parent
	found := FindRepoConfig(subdir)
	if found != configPath {
		t.Errorf("FindRepoConfig() = %q, want %q", found, configPath)
	}
}

func TestFindRepoConfig_NotFound(t *testing.T) {
	tmpDir := t.TempDir()
	// No .penbridge directory

	found := FindRepoConfig(tmpDir)
	if found != "" {
		t.Errorf("FindRepoConfig() = %q, want empty string", found)
	}
}
