package db

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/zerx-lab/penbridge/internal/article"
	"github.com/zerx-lab/penbridge/internal/errors"
)

// UpsertPublication stores a publication projection, replacing any existing
// row for the same (article, platform) pair. Sets updated_at.
func UpsertPublication(db *sql.DB, p *article.Publication) error {
	tagIDsJSON, err := tagsToJSON(p.TagIDs)
	if err != nil {
		return err
	}

	now := time.Now().Unix()
	lastSynced := sql.NullInt64{}
	if p.LastSyncedAt != nil {
		lastSynced = sql.NullInt64{Int64: *p.LastSyncedAt, Valid: true}
	}

	query := `
		INSERT INTO publications (
			article_id, platform, draft_id, remote_id, remote_url, status,
			brief, tag_ids_json, category, original, source_url,
			last_error, last_synced_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(article_id, platform) DO UPDATE SET
			draft_id = excluded.draft_id,
			remote_id = excluded.remote_id,
			remote_url = excluded.remote_url,
			status = excluded.status,
			brief = excluded.brief,
			tag_ids_json = excluded.tag_ids_json,
			category = excluded.category,
			original = excluded.original,
			source_url = excluded.source_url,
			last_error = excluded.last_error,
			last_synced_at = excluded.last_synced_at,
			updated_at = excluded.updated_at
	`

	_, err = db.Exec(query,
		p.ArticleID, p.Platform, p.DraftID, p.RemoteID, p.RemoteURL, string(p.Status),
		p.Brief, tagIDsJSON, p.Category, boolToInt(p.Original), p.SourceURL,
		p.LastError, lastSynced, now,
	)
	if err != nil {
		return errors.NewInternal(err)
	}

	p.UpdatedAt = now
	return nil
}

// GetPublication retrieves the projection for one (article, platform) pair.
func GetPublication(db *sql.DB, articleID, platform string) (*article.Publication, error) {
	query := `
		SELECT article_id, platform, draft_id, remote_id, remote_url, status,
			brief, tag_ids_json, category, original, source_url,
			last_error, last_synced_at, updated_at
		FROM publications
		WHERE article_id = ? AND platform = ?
	`

	row := db.QueryRow(query, articleID, platform)
	p, err := scanPublicationRow(row.Scan)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(articleID + "/" + platform)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	return p, nil
}

// ListPublicationsForArticle returns all projections of one article.
func ListPublicationsForArticle(db *sql.DB, articleID string) ([]article.Publication, error) {
	query := `
		SELECT article_id, platform, draft_id, remote_id, remote_url, status,
			brief, tag_ids_json, category, original, source_url,
			last_error, last_synced_at, updated_at
		FROM publications
		WHERE article_id = ?
		ORDER BY platform ASC
	`

	rows, err := db.Query(query, articleID)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var pubs []article.Publication
	for rows.Next() {
		p, err := scanPublicationRow(rows.Scan)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		pubs = append(pubs, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}

	return pubs, nil
}

// Target pairs an active article's title with its projection for one platform.
// Used by status reconciliation.
type Target struct {
	Title       string
	Publication article.Publication
}

// ListTargets returns all active articles that have a projection for the given platform.
func ListTargets(db *sql.DB, platform string) ([]Target, error) {
	query := `
		SELECT a.title_raw,
			p.article_id, p.platform, p.draft_id, p.remote_id, p.remote_url, p.status,
			p.brief, p.tag_ids_json, p.category, p.original, p.source_url,
			p.last_error, p.last_synced_at, p.updated_at
		FROM publications p
		JOIN articles a ON a.id = p.article_id
		WHERE p.platform = ? AND a.deleted_at IS NULL
		ORDER BY p.updated_at DESC
	`

	rows, err := db.Query(query, platform)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var targets []Target
	for rows.Next() {
		var t Target
		p, err := scanPublicationRow(func(dest ...any) error {
			return rows.Scan(append([]any{&t.Title}, dest...)...)
		})
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		t.Publication = *p
		targets = append(targets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}

	return targets, nil
}

// SetPublicationError records the error message of a failed attempt, creating
// the projection row if it does not exist yet.
func SetPublicationError(db *sql.DB, articleID, platform, msg string) error {
	now := time.Now().Unix()

	query := `
		INSERT INTO publications (article_id, platform, last_error, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(article_id, platform) DO UPDATE SET
			last_error = excluded.last_error,
			updated_at = excluded.updated_at
	`

	if _, err := db.Exec(query, articleID, platform, msg, now); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// scanPublicationRow scans one publication row via the provided scan function.
func scanPublicationRow(scan func(dest ...any) error) (*article.Publication, error) {
	var (
		p          article.Publication
		status     string
		tagIDsJSON sql.NullString
		original   int
		lastSynced sql.NullInt64
	)

	err := scan(
		&p.ArticleID, &p.Platform, &p.DraftID, &p.RemoteID, &p.RemoteURL, &status,
		&p.Brief, &tagIDsJSON, &p.Category, &original, &p.SourceURL,
		&p.LastError, &lastSynced, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Status = article.Status(status)
	p.Original = original != 0
	if lastSynced.Valid {
		p.LastSyncedAt = &lastSynced.Int64
	}
	if tagIDsJSON.Valid && tagIDsJSON.String != "" {
		if err := json.Unmarshal([]byte(tagIDsJSON.String), &p.TagIDs); err != nil {
			return nil, err
		}
	}

	return &p, nil
}

// boolToInt converts a bool to its SQLite integer form.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
