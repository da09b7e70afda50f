package db

import (
	"database/sql"

	"github.com/zerx-lab/penbridge/internal/errors"
)

// SessionRow is the raw stored form of a platform session.
// Cookie and profile payloads stay opaque JSON at this layer.
type SessionRow struct {
	Platform    string
	CookiesJSON string
	ProfileJSON string
	CapturedAt  int64
}

// PutSession stores a session, replacing any existing one for the platform.
func PutSession(db *sql.DB, row *SessionRow) error {
	query := `
		INSERT OR REPLACE INTO sessions (platform, cookies_json, profile_json, captured_at)
		VALUES (?, ?, ?, ?)
	`

	if _, err := db.Exec(query, row.Platform, row.CookiesJSON, row.ProfileJSON, row.CapturedAt); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// GetSession retrieves the stored session for a platform.
func GetSession(db *sql.DB, platform string) (*SessionRow, error) {
	query := `
		SELECT platform, cookies_json, profile_json, captured_at
		FROM sessions
		WHERE platform = ?
	`

	var row SessionRow
	err := db.QueryRow(query, platform).Scan(&row.Platform, &row.CookiesJSON, &row.ProfileJSON, &row.CapturedAt)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(platform)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	return &row, nil
}

// DeleteSession removes the stored session for a platform.
func DeleteSession(db *sql.DB, platform string) error {
	result, err := db.Exec("DELETE FROM sessions WHERE platform = ?", platform)
	if err != nil {
		return errors.NewInternal(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound(platform)
	}

	return nil
}

// ListSessions returns all stored sessions ordered by platform name.
func ListSessions(db *sql.DB) ([]SessionRow, error) {
	rows, err := db.Query(`
		SELECT platform, cookies_json, profile_json, captured_at
		FROM sessions
		ORDER BY platform ASC
	`)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var sessions []SessionRow
	for rows.Next() {
		var row SessionRow
		if err := rows.Scan(&row.Platform, &row.CookiesJSON, &row.ProfileJSON, &row.CapturedAt); err != nil {
			return nil, errors.NewInternal(err)
		}
		sessions = append(sessions, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}

	return sessions, nil
}
