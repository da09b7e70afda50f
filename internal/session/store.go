package session

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/zerx-lab/penbridge/internal/db"
	"github.com/zerx-lab/penbridge/internal/errors"
)

// Store persists credentials in the local database.
type Store struct {
	db *sql.DB
}

func NewStore(database *sql.DB) *Store {
	return &Store{db: database}
}

// Put stores a credential, replacing any previous session for the platform.
func (s *Store) Put(cred *Credential) error {
	cookies, err := json.Marshal(cred.Cookies)
	if err != nil {
		return errors.NewInternal(err)
	}
	profile, err := json.Marshal(cred.Profile)
	if err != nil {
		return errors.NewInternal(err)
	}
	return db.PutSession(s.db, &db.SessionRow{
		Platform:    cred.Platform,
		CookiesJSON: string(cookies),
		ProfileJSON: string(profile),
		CapturedAt:  cred.CapturedAt,
	})
}

// Credential returns the stored credential for a platform. The second
// return is false when no session is stored.
func (s *Store) Credential(ctx context.Context, platform string) (*Credential, bool, error) {
	row, err := db.GetSession(s.db, platform)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	cred, err := credentialFromRow(row)
	if err != nil {
		return nil, false, err
	}
	return cred, true, nil
}

// Delete removes the stored session for a platform. Used on logout and
// when a platform reports the session expired.
func (s *Store) Delete(platform string) error {
	return db.DeleteSession(s.db, platform)
}

// List returns all stored credentials ordered by platform.
func (s *Store) List() ([]*Credential, error) {
	rows, err := db.ListSessions(s.db)
	if err != nil {
		return nil, err
	}
	creds := make([]*Credential, 0, len(rows))
	for i := range rows {
		cred, err := credentialFromRow(&rows[i])
		if err != nil {
			return nil, err
		}
		creds = append(creds, cred)
	}
	return creds, nil
}

func credentialFromRow(row *db.SessionRow) (*Credential, error) {
	cred := &Credential{Platform: row.Platform, CapturedAt: row.CapturedAt}
	if err := json.Unmarshal([]byte(row.CookiesJSON), &cred.Cookies); err != nil {
		return nil, errors.NewInternal(err)
	}
	if row.ProfileJSON != "" {
		if err := json.Unmarshal([]byte(row.ProfileJSON), &cred.Profile); err != nil {
			return nil, errors.NewInternal(err)
		}
	}
	return cred, nil
}
