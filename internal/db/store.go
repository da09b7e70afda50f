package db

import (
	"context"
	"database/sql"

	"github.com/zerx-lab/penbridge/internal/article"
)

// Store adapts the database to the narrow interfaces the publish and
// reconcile packages consume.
type Store struct {
	db *sql.DB
}

// NewStore wraps an initialized database handle.
func NewStore(database *sql.DB) *Store {
	return &Store{db: database}
}

// Article returns an active article by ID.
func (s *Store) Article(_ context.Context, id string) (*article.Article, error) {
	return GetArticleByID(s.db, id, false)
}

// Publication returns the projection for one (article, platform) pair.
func (s *Store) Publication(_ context.Context, articleID, platform string) (*article.Publication, error) {
	return GetPublication(s.db, articleID, platform)
}

// SavePublication persists a projection wholesale.
func (s *Store) SavePublication(_ context.Context, p *article.Publication) error {
	return UpsertPublication(s.db, p)
}

// SetPublicationError records a failed attempt's message on the projection.
func (s *Store) SetPublicationError(_ context.Context, articleID, platform, msg string) error {
	return SetPublicationError(s.db, articleID, platform, msg)
}

// Targets returns the active articles projected onto a platform.
func (s *Store) Targets(_ context.Context, platform string) ([]Target, error) {
	return ListTargets(s.db, platform)
}
