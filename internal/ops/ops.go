// Package ops exports the operations the CLI, MCP server, and web
// dashboard share. Each operation takes an Env plus an input struct and
// returns an output struct, so every surface speaks the same contract.
package ops

import (
	"database/sql"
	"log/slog"
	"strings"
	"sync"

	"github.com/zerx-lab/penbridge/internal/article"
	"github.com/zerx-lab/penbridge/internal/assets"
	"github.com/zerx-lab/penbridge/internal/config"
	"github.com/zerx-lab/penbridge/internal/db"
	"github.com/zerx-lab/penbridge/internal/errors"
	"github.com/zerx-lab/penbridge/internal/platform"
	"github.com/zerx-lab/penbridge/internal/publish"
	"github.com/zerx-lab/penbridge/internal/reconcile"
	"github.com/zerx-lab/penbridge/internal/session"
)

// Pagination limits
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// Env bundles everything the exported operations need. The cmd layer
// builds one Env and hands it to the CLI, the MCP server, and the web
// dashboard alike.
type Env struct {
	DB       *sql.DB
	Cfg      *config.Config
	Registry *platform.Registry
	Sessions *session.Store
	Bridge   *session.CaptureBridge
	Logger   *slog.Logger

	store    *db.Store
	orch     *publish.Orchestrator
	recon    *reconcile.Reconciler
	pubLocks keyedMutex
}

// NewEnv wires the orchestrator and reconciler over the shared database
// and platform registry. Bridge may be nil when no browser surface is
// available; session capture then reports that and session import stays
// usable.
func NewEnv(database *sql.DB, cfg *config.Config, registry *platform.Registry, sessions *session.Store, bridge *session.CaptureBridge, logger *slog.Logger) *Env {
	if logger == nil {
		logger = slog.Default()
	}
	store := db.NewStore(database)
	migrator := assets.NewMigrator(cfg.HTTPTimeout(), cfg.AssetMaxBytes, logger)
	return &Env{
		DB:       database,
		Cfg:      cfg,
		Registry: registry,
		Sessions: sessions,
		Bridge:   bridge,
		Logger:   logger,
		store:    store,
		orch: publish.New(publish.Deps{
			Store:    store,
			Sessions: sessions,
			Registry: registry,
			Migrator: migrator,
			Logger:   logger,
		}),
		recon: reconcile.New(reconcile.Deps{
			Store:    store,
			Registry: registry,
			PageSize: cfg.ListPageSize,
			MaxPages: cfg.MaxListPages,
			Logger:   logger,
		}),
	}
}

// Address selects an article by exactly one addressing mode.
type Address struct {
	ByID  bool
	ID    string
	Title string // normalized
}

// ValidateAddress validates addressing parameters and returns a
// normalized Address. Exactly one of id and title must be set; both at
// once is ambiguous, neither is invalid.
func ValidateAddress(id, title string) (*Address, error) {
	id = strings.TrimSpace(id)
	title = strings.TrimSpace(title)

	hasID := id != ""
	hasTitle := title != ""

	if hasID && hasTitle {
		return nil, errors.NewAmbiguousAddressing()
	}
	if !hasID && !hasTitle {
		return nil, errors.NewInvalidRequest("must specify either id or title")
	}

	if hasID {
		return &Address{ByID: true, ID: id}, nil
	}

	norm := article.Normalize(title)
	if norm == "" {
		return nil, errors.NewInvalidRequest("title must not be empty")
	}
	return &Address{Title: norm}, nil
}

// resolveArticle loads the addressed article.
func resolveArticle(database *sql.DB, addr *Address, includeDeleted bool) (*article.Article, error) {
	if addr.ByID {
		return db.GetArticleByID(database, addr.ID, includeDeleted)
	}
	return db.GetArticleByTitle(database, addr.Title, includeDeleted)
}

// parsePlatform resolves a platform argument against the registry.
func (env *Env) parsePlatform(name string) (platform.ID, error) {
	pid, err := platform.Parse(name)
	if err != nil {
		return "", err
	}
	if _, err := env.Registry.Entry(pid); err != nil {
		return "", err
	}
	return pid, nil
}

// keyedMutex serializes publish and draft-sync attempts per
// (article, platform) pair. Entries are never freed; the key space is
// bounded by articles times platforms.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()
	m.Lock()
	return m.Unlock
}
