package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/zerx-lab/penbridge/internal/article"
	"github.com/zerx-lab/penbridge/internal/errors"
)

// ErrUniqueConstraint is returned when an insert violates a UNIQUE constraint.
var ErrUniqueConstraint = &errors.BridgeError{
	Code:    "UNIQUE_CONSTRAINT",
	Status:  409,
	Message: "unique constraint violation",
}

// InsertArticle stores a new article in the database.
func InsertArticle(db *sql.DB, a *article.Article) error {
	tagsJSON, err := tagsToJSON(a.Tags)
	if err != nil {
		return err
	}
	sourcePath := toNullString(a.SourcePath)

	query := `
		INSERT INTO articles (
			id, title_raw, title_norm, body, body_chars,
			tags_json, source_path, created_at, updated_at, deleted_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)
	`

	_, err = db.Exec(query,
		a.ID, a.TitleRaw, a.TitleNorm, a.Body, a.BodyChars,
		tagsJSON, sourcePath, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}

	return nil
}

// isUniqueConstraintError checks if the error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	// SQLite returns "UNIQUE constraint failed: ..." for unique violations
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// GetArticleByID retrieves an article by its ULID.
// If includeDeleted is false, soft-deleted articles are excluded.
func GetArticleByID(db *sql.DB, id string, includeDeleted bool) (*article.Article, error) {
	query := `
		SELECT id, title_raw, title_norm, body, body_chars,
			tags_json, source_path, created_at, updated_at, deleted_at
		FROM articles
		WHERE id = ?
	`
	if !includeDeleted {
		query += " AND deleted_at IS NULL"
	}

	row := db.QueryRow(query, id)
	a, err := scanArticle(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	return a, nil
}

// GetArticleByTitle retrieves an article by its normalized title.
// If includeDeleted is false, soft-deleted articles are excluded.
func GetArticleByTitle(db *sql.DB, titleNorm string, includeDeleted bool) (*article.Article, error) {
	query := `
		SELECT id, title_raw, title_norm, body, body_chars,
			tags_json, source_path, created_at, updated_at, deleted_at
		FROM articles
		WHERE title_norm = ?
	`
	if !includeDeleted {
		query += " AND deleted_at IS NULL"
	} else {
		// If both active and soft-deleted articles exist for the same title, prefer the active one.
		// If no active article exists, return the most recently updated deleted article.
		query += " ORDER BY (deleted_at IS NULL) DESC, updated_at DESC LIMIT 1"
	}

	row := db.QueryRow(query, titleNorm)
	a, err := scanArticle(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(titleNorm)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	return a, nil
}

// CheckTitleExists checks if an active article with the given title exists.
func CheckTitleExists(db *sql.DB, titleNorm string) (bool, error) {
	query := `
		SELECT 1 FROM articles
		WHERE title_norm = ? AND deleted_at IS NULL
		LIMIT 1
	`

	var exists int
	err := db.QueryRow(query, titleNorm).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.NewInternal(err)
	}

	return true, nil
}

// UpdateArticleByID updates mutable fields of an existing article.
// Sets updated_at to current timestamp.
// Does NOT change: id, title
func UpdateArticleByID(db *sql.DB, a *article.Article) error {
	tagsJSON, err := tagsToJSON(a.Tags)
	if err != nil {
		return err
	}
	sourcePath := toNullString(a.SourcePath)

	now := time.Now().Unix()

	query := `
		UPDATE articles
		SET body = ?, body_chars = ?, tags_json = ?, source_path = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := db.Exec(query,
		a.Body, a.BodyChars, tagsJSON, sourcePath, now,
		a.ID,
	)
	if err != nil {
		return errors.NewInternal(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound(a.ID)
	}

	// Update the struct's UpdatedAt field
	a.UpdatedAt = now

	return nil
}

// UpdateArticleFull replaces every column of an existing article row.
// Used by backup restore; timestamps come from the record, not the clock.
func UpdateArticleFull(db *sql.DB, a *article.Article) error {
	tagsJSON, err := tagsToJSON(a.Tags)
	if err != nil {
		return err
	}
	sourcePath := toNullString(a.SourcePath)
	var deletedAt sql.NullInt64
	if a.DeletedAt != nil {
		deletedAt = sql.NullInt64{Int64: *a.DeletedAt, Valid: true}
	}

	query := `
		UPDATE articles
		SET title_raw = ?, title_norm = ?, body = ?, body_chars = ?,
			tags_json = ?, source_path = ?, created_at = ?, updated_at = ?, deleted_at = ?
		WHERE id = ?
	`

	result, err := db.Exec(query,
		a.TitleRaw, a.TitleNorm, a.Body, a.BodyChars,
		tagsJSON, sourcePath, a.CreatedAt, a.UpdatedAt, deletedAt,
		a.ID,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound(a.ID)
	}

	return nil
}

// SoftDeleteArticle marks an article as deleted by setting deleted_at.
func SoftDeleteArticle(db *sql.DB, id string) error {
	now := time.Now().Unix()

	query := `
		UPDATE articles
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := db.Exec(query, now, id)
	if err != nil {
		return errors.NewInternal(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound(id)
	}

	return nil
}

// ListArticles returns article summaries ordered by most recently updated,
// plus the total count matching the filter.
func ListArticles(db *sql.DB, limit, offset int, includeDeleted bool) ([]article.Summary, int, error) {
	where := "WHERE deleted_at IS NULL"
	if includeDeleted {
		where = ""
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM articles " + where
	if err := db.QueryRow(countQuery).Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	query := `
		SELECT id, title_raw, title_norm, body_chars,
			tags_json, source_path, created_at, updated_at, deleted_at
		FROM articles ` + where + `
		ORDER BY updated_at DESC
		LIMIT ? OFFSET ?
	`

	rows, err := db.Query(query, limit, offset)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer rows.Close()

	var summaries []article.Summary
	for rows.Next() {
		var (
			s          article.Summary
			tagsJSON   sql.NullString
			sourcePath sql.NullString
			deletedAt  sql.NullInt64
		)
		if err := rows.Scan(
			&s.ID, &s.Title, &s.TitleNorm, &s.BodyChars,
			&tagsJSON, &sourcePath, &s.CreatedAt, &s.UpdatedAt, &deletedAt,
		); err != nil {
			return nil, 0, errors.NewInternal(err)
		}
		s.SourcePath = fromNullString(sourcePath)
		if deletedAt.Valid {
			s.DeletedAt = &deletedAt.Int64
		}
		if tagsJSON.Valid && tagsJSON.String != "" {
			if err := json.Unmarshal([]byte(tagsJSON.String), &s.Tags); err != nil {
				return nil, 0, errors.NewInternal(err)
			}
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	return summaries, total, nil
}

// PurgeDeleted permanently removes soft-deleted articles older than the cutoff,
// along with their publication rows. olderThanDays 0 purges all soft-deleted articles.
// Returns the number of articles removed.
func PurgeDeleted(db *sql.DB, olderThanDays int) (int, error) {
	cutoff := time.Now().Unix() - int64(olderThanDays)*86400

	tx, err := db.Begin()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		DELETE FROM publications
		WHERE article_id IN (
			SELECT id FROM articles WHERE deleted_at IS NOT NULL AND deleted_at <= ?
		)
	`, cutoff); err != nil {
		return 0, errors.NewInternal(err)
	}

	result, err := tx.Exec(`
		DELETE FROM articles
		WHERE deleted_at IS NOT NULL AND deleted_at <= ?
	`, cutoff)
	if err != nil {
		return 0, errors.NewInternal(err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewInternal(err)
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.NewInternal(err)
	}

	return int(count), nil
}

// StreamForExport returns rows over full articles for export, ordered by creation time.
// Callers must Close the rows and should check ctx between iterations.
func StreamForExport(ctx context.Context, db *sql.DB, includeDeleted bool) (*sql.Rows, error) {
	query := `
		SELECT id, title_raw, title_norm, body, body_chars,
			tags_json, source_path, created_at, updated_at, deleted_at
		FROM articles
	`
	if !includeDeleted {
		query += " WHERE deleted_at IS NULL"
	}
	query += " ORDER BY created_at ASC"

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return rows, nil
}

// ScanArticleFromRows scans the current row of a StreamForExport result set.
func ScanArticleFromRows(rows *sql.Rows) (*article.Article, error) {
	var (
		a          article.Article
		tagsJSON   sql.NullString
		sourcePath sql.NullString
		deletedAt  sql.NullInt64
	)

	err := rows.Scan(
		&a.ID, &a.TitleRaw, &a.TitleNorm, &a.Body, &a.BodyChars,
		&tagsJSON, &sourcePath, &a.CreatedAt, &a.UpdatedAt, &deletedAt,
	)
	if err != nil {
		return nil, err
	}

	a.SourcePath = fromNullString(sourcePath)
	if deletedAt.Valid {
		a.DeletedAt = &deletedAt.Int64
	}
	if tagsJSON.Valid && tagsJSON.String != "" {
		if err := json.Unmarshal([]byte(tagsJSON.String), &a.Tags); err != nil {
			return nil, err
		}
	}

	return &a, nil
}

// scanArticle scans a single row into an Article struct.
func scanArticle(row *sql.Row) (*article.Article, error) {
	var (
		a          article.Article
		tagsJSON   sql.NullString
		sourcePath sql.NullString
		deletedAt  sql.NullInt64
	)

	err := row.Scan(
		&a.ID, &a.TitleRaw, &a.TitleNorm, &a.Body, &a.BodyChars,
		&tagsJSON, &sourcePath, &a.CreatedAt, &a.UpdatedAt, &deletedAt,
	)
	if err != nil {
		return nil, err
	}

	a.SourcePath = fromNullString(sourcePath)
	if deletedAt.Valid {
		a.DeletedAt = &deletedAt.Int64
	}
	if tagsJSON.Valid && tagsJSON.String != "" {
		if err := json.Unmarshal([]byte(tagsJSON.String), &a.Tags); err != nil {
			return nil, err
		}
	}

	return &a, nil
}

// tagsToJSON marshals a tag list to a nullable JSON column value.
func tagsToJSON(tags []string) (sql.NullString, error) {
	if len(tags) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return sql.NullString{}, errors.NewInternal(err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// toNullString converts a *string to sql.NullString.
func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// fromNullString converts a sql.NullString to *string.
func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}
