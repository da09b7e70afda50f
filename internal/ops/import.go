package ops

import (
	"bufio"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/zerx-lab/penbridge/internal/article"
	"github.com/zerx-lab/penbridge/internal/db"
	"github.com/zerx-lab/penbridge/internal/errors"
)

// maxBackupLine caps one JSONL line when restoring. Articles carry whole
// markdown bodies, so the bufio default of 64K is not enough.
const maxBackupLine = 16 * 1024 * 1024

// ImportBackupInput contains parameters for the ImportBackup operation.
type ImportBackupInput struct {
	Path string     // required
	Mode ImportMode // default: error
}

// ImportBackupOutput contains the result of the ImportBackup operation.
type ImportBackupOutput struct {
	Imported int           `json:"imported"`
	Skipped  int           `json:"skipped"`
	Errors   []ImportError `json:"errors"`
}

// ImportError describes one record that could not be restored.
type ImportError struct {
	Line    int    `json:"line,omitempty"`
	ID      string `json:"id,omitempty"`
	Title   string `json:"title,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ImportBackup restores articles and their platform projections from a
// JSONL backup file. Mode error restores atomically and aborts on the
// first collision; mode replace overwrites colliding articles in place.
func ImportBackup(env *Env, input ImportBackupInput) (*ImportBackupOutput, error) {
	if input.Path == "" {
		return nil, errors.NewInvalidRequest("path is required")
	}
	if input.Mode == "" {
		input.Mode = ImportModeError
	}
	if input.Mode != ImportModeError && input.Mode != ImportModeReplace {
		return nil, errors.NewInvalidRequest("mode must be one of: error, replace")
	}

	if err := ValidatePath(input.Path, PathCheckRead, env.Cfg); err != nil {
		return nil, err
	}

	file, err := openFileNoFollowRead(input.Path)
	if err != nil {
		if _, ok := errors.AsBridgeError(err); ok {
			return nil, err
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to open backup file: %w", err))
	}
	defer file.Close()

	records, parseErrors := parseBackupFile(file)

	if input.Mode == ImportModeError && len(parseErrors) > 0 {
		return &ImportBackupOutput{Errors: parseErrors}, nil
	}

	var out *ImportBackupOutput
	if input.Mode == ImportModeError {
		out, err = restoreAtomic(env.DB, records)
	} else {
		out, err = restoreReplace(env.DB, records, parseErrors)
	}
	if err != nil {
		return nil, err
	}

	env.Logger.Info("backup imported",
		"path", input.Path, "mode", input.Mode,
		"imported", out.Imported, "skipped", out.Skipped)
	return out, nil
}

// parseBackupFile parses a JSONL backup into records, skipping the header.
func parseBackupFile(file *os.File) ([]article.ExportRecord, []ImportError) {
	var records []article.ExportRecord
	var parseErrors []ImportError

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), maxBackupLine)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()

		var record article.ExportRecord
		if err := json.Unmarshal(line, &record); err != nil {
			parseErrors = append(parseErrors, ImportError{
				Line:    lineNum,
				Code:    "PARSE_ERROR",
				Message: fmt.Sprintf("invalid JSON: %v", err),
			})
			continue
		}

		if record.PenbridgeExport {
			continue
		}

		if record.ID == "" {
			parseErrors = append(parseErrors, ImportError{
				Line:    lineNum,
				Code:    "INVALID_RECORD",
				Message: "missing id field",
			})
			continue
		}
		if record.TitleRaw == "" {
			parseErrors = append(parseErrors, ImportError{
				Line:    lineNum,
				ID:      record.ID,
				Code:    "INVALID_RECORD",
				Message: "missing title_raw field",
			})
			continue
		}

		records = append(records, record)
	}

	if err := scanner.Err(); err != nil {
		parseErrors = append(parseErrors, ImportError{
			Line:    lineNum,
			Code:    "READ_ERROR",
			Message: fmt.Sprintf("failed to read file: %v", err),
		})
	}

	return records, parseErrors
}

// restoreAtomic restores all records in one transaction, aborting on the
// first collision so a conflicting backup leaves the database untouched.
func restoreAtomic(database *sql.DB, records []article.ExportRecord) (*ImportBackupOutput, error) {
	tx, err := database.Begin()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer tx.Rollback()

	imported := 0
	for _, record := range records {
		existing, err := db.GetArticleByID(database, record.ID, true)
		if err != nil && !errors.Is(err, errors.ErrNotFound) {
			return nil, err
		}
		if existing != nil {
			return &ImportBackupOutput{
				Errors: []ImportError{{
					ID:      record.ID,
					Code:    "ID_COLLISION",
					Message: fmt.Sprintf("article with id %q already exists", record.ID),
				}},
			}, nil
		}

		a := record.ToArticle()
		if a.DeletedAt == nil {
			exists, err := db.CheckTitleExists(database, a.TitleNorm)
			if err != nil {
				return nil, err
			}
			if exists {
				return &ImportBackupOutput{
					Errors: []ImportError{{
						ID:      record.ID,
						Title:   record.TitleRaw,
						Code:    "TITLE_COLLISION",
						Message: fmt.Sprintf("article with title %q already exists", record.TitleRaw),
					}},
				}, nil
			}
		}

		if err := insertArticleTx(tx, a); err != nil {
			return nil, err
		}
		for _, p := range record.ToPublications() {
			if err := insertPublicationTx(tx, &p); err != nil {
				return nil, err
			}
		}
		imported++
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.NewInternal(err)
	}

	return &ImportBackupOutput{Imported: imported}, nil
}

// restoreReplace restores records one by one, overwriting on collision.
// An ID match wins; a bare title match adopts the existing article's ID.
func restoreReplace(database *sql.DB, records []article.ExportRecord, parseErrors []ImportError) (*ImportBackupOutput, error) {
	imported := 0
	skipped := len(parseErrors)
	importErrors := append([]ImportError{}, parseErrors...)

	for _, record := range records {
		a := record.ToArticle()

		byID, err := db.GetArticleByID(database, record.ID, true)
		if err != nil && !errors.Is(err, errors.ErrNotFound) {
			return nil, err
		}
		byTitle, err := db.GetArticleByTitle(database, a.TitleNorm, true)
		if err != nil && !errors.Is(err, errors.ErrNotFound) {
			return nil, err
		}

		// ID matches one row, title a different one: no safe overwrite.
		if byID != nil && byTitle != nil && byID.ID != byTitle.ID {
			importErrors = append(importErrors, ImportError{
				ID:      record.ID,
				Title:   record.TitleRaw,
				Code:    "AMBIGUOUS_COLLISION",
				Message: fmt.Sprintf("id %q matches one article but title %q matches another", record.ID, record.TitleRaw),
			})
			skipped++
			continue
		}

		switch {
		case byID != nil:
			err = db.UpdateArticleFull(database, a)
		case byTitle != nil:
			a.ID = byTitle.ID
			err = db.UpdateArticleFull(database, a)
		default:
			err = db.InsertArticle(database, a)
		}
		if err != nil {
			importErrors = append(importErrors, ImportError{
				ID:      a.ID,
				Title:   record.TitleRaw,
				Code:    "RESTORE_FAILED",
				Message: fmt.Sprintf("failed to restore: %v", err),
			})
			skipped++
			continue
		}

		pubs := record.ToPublications()
		for i := range pubs {
			pubs[i].ArticleID = a.ID
			if err := db.UpsertPublication(database, &pubs[i]); err != nil {
				return nil, err
			}
		}
		imported++
	}

	return &ImportBackupOutput{
		Imported: imported,
		Skipped:  skipped,
		Errors:   importErrors,
	}, nil
}

// insertArticleTx inserts an article within a transaction.
func insertArticleTx(tx *sql.Tx, a *article.Article) error {
	var tagsJSON sql.NullString
	if len(a.Tags) > 0 {
		data, err := json.Marshal(a.Tags)
		if err != nil {
			return errors.NewInternal(err)
		}
		tagsJSON = sql.NullString{String: string(data), Valid: true}
	}
	var sourcePath sql.NullString
	if a.SourcePath != nil {
		sourcePath = sql.NullString{String: *a.SourcePath, Valid: true}
	}
	var deletedAt sql.NullInt64
	if a.DeletedAt != nil {
		deletedAt = sql.NullInt64{Int64: *a.DeletedAt, Valid: true}
	}

	query := `
		INSERT INTO articles (
			id, title_raw, title_norm, body, body_chars,
			tags_json, source_path, created_at, updated_at, deleted_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := tx.Exec(query,
		a.ID, a.TitleRaw, a.TitleNorm, a.Body, a.BodyChars,
		tagsJSON, sourcePath, a.CreatedAt, a.UpdatedAt, deletedAt,
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// insertPublicationTx inserts a publication row within a transaction.
// Backup records carry no updated_at, so the row is stamped with now.
func insertPublicationTx(tx *sql.Tx, p *article.Publication) error {
	var tagIDsJSON sql.NullString
	if len(p.TagIDs) > 0 {
		data, err := json.Marshal(p.TagIDs)
		if err != nil {
			return errors.NewInternal(err)
		}
		tagIDsJSON = sql.NullString{String: string(data), Valid: true}
	}
	var lastSyncedAt sql.NullInt64
	if p.LastSyncedAt != nil {
		lastSyncedAt = sql.NullInt64{Int64: *p.LastSyncedAt, Valid: true}
	}
	original := 0
	if p.Original {
		original = 1
	}

	query := `
		INSERT INTO publications (
			article_id, platform, draft_id, remote_id, remote_url, status,
			brief, tag_ids_json, category, original, source_url,
			last_error, last_synced_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := tx.Exec(query,
		p.ArticleID, p.Platform, p.DraftID, p.RemoteID, p.RemoteURL, string(p.Status),
		p.Brief, tagIDsJSON, p.Category, original, p.SourceURL,
		p.LastError, lastSyncedAt, time.Now().Unix(),
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}
