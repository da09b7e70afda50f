package ops

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/zerx-lab/penbridge/internal/article"
	"github.com/zerx-lab/penbridge/internal/db"
	"github.com/zerx-lab/penbridge/internal/errors"
)

// ExportBackupInput contains parameters for the ExportBackup operation.
type ExportBackupInput struct {
	Path           string // optional, default: ~/.penbridge/exports/articles-<timestamp>.jsonl
	IncludeDeleted bool
}

// ExportBackupOutput contains the result of the ExportBackup operation.
type ExportBackupOutput struct {
	Path       string `json:"path"`
	Count      int    `json:"count"`
	ExportedAt int64  `json:"exported_at"`
}

// ExportHeader is the first line of a JSONL backup file.
type ExportHeader struct {
	PenbridgeExport bool   `json:"_penbridge_export"`
	SchemaVersion   string `json:"schema_version"`
	ExportedAt      int64  `json:"exported_at"`
}

// ExportBackup writes every article and its platform projections to a
// JSONL backup file. The write goes to a temp file first and is renamed
// into place, so a failed export never clobbers an existing backup.
func ExportBackup(ctx context.Context, env *Env, input ExportBackupInput) (*ExportBackupOutput, error) {
	now := time.Now()
	exportedAt := now.Unix()

	exportPath := input.Path
	if exportPath == "" {
		var err error
		exportPath, err = defaultExportPath(now)
		if err != nil {
			return nil, err
		}
	}

	// Default paths go through the same validation as user-provided ones.
	if err := ValidatePath(exportPath, PathCheckWrite, env.Cfg); err != nil {
		return nil, err
	}

	dir := filepath.Dir(exportPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export directory: %w", err))
	}

	// Collect articles first so the row stream is closed before the
	// per-article publication queries run; a nested query would deadlock
	// a single-connection pool.
	rows, err := db.StreamForExport(ctx, env.DB, input.IncludeDeleted)
	if err != nil {
		return nil, err
	}
	var articles []*article.Article
	for rows.Next() {
		select {
		case <-ctx.Done():
			rows.Close()
			return nil, errors.NewCancelled("export")
		default:
		}
		a, err := db.ScanArticleFromRows(rows)
		if err != nil {
			rows.Close()
			return nil, errors.NewInternal(err)
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, errors.NewInternal(err)
	}
	rows.Close()

	// Write to a temp file, then atomically rename into place.
	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := exportPath + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := openFileNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export file: %w", err))
	}

	// Clean up the temp file on failure; the original file is untouched.
	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	header := ExportHeader{
		PenbridgeExport: true,
		SchemaVersion:   "1.0",
		ExportedAt:      exportedAt,
	}
	if err := writeJSONLine(file, header); err != nil {
		return nil, err
	}

	count := 0
	for _, a := range articles {
		select {
		case <-ctx.Done():
			return nil, errors.NewCancelled("export")
		default:
		}

		pubs, err := db.ListPublicationsForArticle(env.DB, a.ID)
		if err != nil {
			return nil, err
		}
		if err := writeJSONLine(file, article.ToExportRecord(a, pubs)); err != nil {
			return nil, err
		}
		count++
	}

	if err := file.Sync(); err != nil {
		return nil, errors.NewInternal(err)
	}

	// Close before the rename; Windows requires it, elsewhere it is harmless.
	if err := file.Close(); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to close export file: %w", err))
	}
	file = nil

	// os.Rename would follow a symlink destination.
	if info, err := os.Lstat(exportPath); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return nil, errors.NewInternal(fmt.Errorf("export path is a symlink"))
	}

	// On Windows os.Rename fails when the destination exists. Failing
	// here preserves the existing file instead of risking it with a
	// non-atomic delete+rename.
	if err := os.Rename(tempPath, exportPath); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(exportPath); statErr == nil {
				return nil, errors.NewInvalidRequest("export destination already exists; overwriting is not supported on Windows yet (choose a new path or delete the existing file)")
			}
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to finalize export: %w", err))
	}

	success = true
	env.Logger.Info("backup exported", "path", exportPath, "count", count)

	return &ExportBackupOutput{
		Path:       exportPath,
		Count:      count,
		ExportedAt: exportedAt,
	}, nil
}

func writeJSONLine(file *os.File, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.NewInternal(err)
	}
	if _, err := file.Write(data); err != nil {
		return errors.NewInternal(err)
	}
	if _, err := file.Write([]byte("\n")); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// defaultExportPath generates the default export path,
// ~/.penbridge/exports/articles-<timestamp>.jsonl.
func defaultExportPath(now time.Time) (string, error) {
	dir, err := DefaultExportsDir()
	if err != nil {
		return "", err
	}
	filename := fmt.Sprintf("articles-%s.jsonl", now.Format("2006-01-02T150405"))
	return filepath.Join(dir, filename), nil
}
