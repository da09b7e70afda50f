package assets

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/zerx-lab/penbridge/internal/errors"
)

// Uploader uploads one image to the target platform and returns its
// hosted URL.
type Uploader interface {
	UploadImage(ctx context.Context, filename string, data []byte) (string, error)
}

// Outcome records one image's migration attempt.
type Outcome struct {
	OriginalRef string `json:"original_ref"`
	Success     bool   `json:"success"`
	NewRef      string `json:"new_ref,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Result is the rewritten content plus per-image outcomes.
type Result struct {
	Content  string
	Outcomes []Outcome
	Failed   int
}

// Migrator fetches local and foreign images and re-uploads them through
// a platform client.
type Migrator struct {
	fetch    *http.Client
	maxBytes int64
	logger   *slog.Logger
}

func NewMigrator(timeout time.Duration, maxBytes int64, logger *slog.Logger) *Migrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Migrator{
		fetch:    &http.Client{Timeout: timeout},
		maxBytes: maxBytes,
		logger:   logger,
	}
}

// HasWork reports whether content references any image that is not
// already hosted on one of the platform's asset hosts.
func (m *Migrator) HasWork(content string, assetHosts []string) bool {
	for _, ref := range ImageRefs(content) {
		if needsMigration(ref, assetHosts) {
			return true
		}
	}
	return false
}

// Migrate uploads every image that needs moving and rewrites its
// references in the content. Images are attempted independently: one
// failure does not stop the rest, it is reported in the outcomes and
// counted in Failed. Only successfully uploaded refs are rewritten.
// baseDir resolves relative local refs, usually the article's source
// directory.
func (m *Migrator) Migrate(ctx context.Context, content string, up Uploader, assetHosts []string, baseDir string) (*Result, error) {
	res := &Result{Content: content}
	for _, ref := range ImageRefs(content) {
		if !needsMigration(ref, assetHosts) {
			continue
		}
		if ctx.Err() != nil {
			return nil, errors.NewCancelled("asset migration cancelled")
		}
		outcome := Outcome{OriginalRef: ref}
		newRef, err := m.migrateOne(ctx, ref, up, baseDir)
		if err != nil {
			outcome.Error = err.Error()
			res.Failed++
			m.logger.Warn("image migration failed", "ref", ref, "error", err)
		} else {
			outcome.Success = true
			outcome.NewRef = newRef
			m.logger.Debug("image migrated", "ref", ref, "new_ref", newRef)
		}
		res.Outcomes = append(res.Outcomes, outcome)
	}
	for _, o := range res.Outcomes {
		if o.Success && o.NewRef != o.OriginalRef {
			res.Content = strings.ReplaceAll(res.Content, o.OriginalRef, o.NewRef)
		}
	}
	return res, nil
}

func (m *Migrator) migrateOne(ctx context.Context, ref string, up Uploader, baseDir string) (string, error) {
	data, filename, err := m.load(ctx, ref, baseDir)
	if err != nil {
		return "", err
	}
	newRef, err := up.UploadImage(ctx, filename, data)
	if err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	return newRef, nil
}

func (m *Migrator) load(ctx context.Context, ref, baseDir string) ([]byte, string, error) {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return m.download(ctx, ref)
	}
	return m.readLocal(ref, baseDir)
}

func (m *Migrator) download(ctx context.Context, ref string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}
	resp, err := m.fetch.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("fetch: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, m.maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > m.maxBytes {
		return nil, "", fmt.Errorf("image exceeds %d bytes", m.maxBytes)
	}
	return data, remoteFilename(ref, data), nil
}

func (m *Migrator) readLocal(ref, baseDir string) ([]byte, string, error) {
	p := strings.TrimPrefix(ref, "file://")
	if !filepath.IsAbs(p) {
		if baseDir == "" {
			return nil, "", fmt.Errorf("relative image ref %q with no source directory", ref)
		}
		p = filepath.Join(baseDir, p)
	}
	info, err := os.Stat(p)
	if err != nil {
		return nil, "", fmt.Errorf("stat: %w", err)
	}
	if info.Size() > m.maxBytes {
		return nil, "", fmt.Errorf("image exceeds %d bytes", m.maxBytes)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, "", fmt.Errorf("read: %w", err)
	}
	return data, filepath.Base(p), nil
}

// needsMigration reports whether ref must move to the platform host.
// Embedded data URIs stay as they are, http(s) URLs already on one of
// the platform's asset hosts stay, and everything else, foreign URLs
// and local paths alike, migrates.
func needsMigration(ref string, assetHosts []string) bool {
	if ref == "" || strings.HasPrefix(ref, "#") || strings.HasPrefix(ref, "data:") {
		return false
	}
	u, err := url.Parse(ref)
	if err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		host := u.Hostname()
		for _, h := range assetHosts {
			if host == h || strings.HasSuffix(host, "."+h) {
				return false
			}
		}
		return true
	}
	if err == nil && u.Scheme != "" && u.Scheme != "file" {
		return false
	}
	return true
}

// remoteFilename derives an upload filename for a fetched URL, falling
// back to a content-hash name when the URL has no usable basename.
func remoteFilename(ref string, data []byte) string {
	if u, err := url.Parse(ref); err == nil {
		if base := path.Base(u.Path); base != "" && base != "." && base != "/" && strings.Contains(base, ".") {
			return base
		}
	}
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x%s", sum[:6], extFromContent(data))
}

// extFromContent sniffs an extension from the image bytes.
func extFromContent(data []byte) string {
	switch http.DetectContentType(data) {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".bin"
	}
}
