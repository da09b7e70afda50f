package platform

import (
	"fmt"

	"github.com/zerx-lab/penbridge/internal/errors"
	"github.com/zerx-lab/penbridge/internal/session"
)

// Classifier refines an error from a platform call into a coded bridge error.
// Implementations pattern-match the platform's human-readable error text.
type Classifier func(err error) *errors.BridgeError

// Entry binds one platform's client, rules, classifier, and login flow.
type Entry struct {
	Client   Client
	Rules    Rules
	Classify Classifier
	Login    session.LoginSpec
}

// Registry holds the configured platform entries.
type Registry struct {
	entries map[ID]Entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[ID]Entry)}
}

// Register adds or replaces a platform entry.
func (r *Registry) Register(id ID, e Entry) {
	r.entries[id] = e
}

// Entry returns the configured entry for a platform.
func (r *Registry) Entry(id ID) (Entry, error) {
	e, ok := r.entries[id]
	if !ok {
		return Entry{}, errors.NewInvalidRequest(fmt.Sprintf("platform %s is not configured", id))
	}
	return e, nil
}

// IDs returns the registered platform IDs in stable order.
func (r *Registry) IDs() []ID {
	var ids []ID
	for _, id := range All() {
		if _, ok := r.entries[id]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// PassthroughClassifier keeps already-coded errors and wraps anything else
// as a platform error. Adapters layer their message patterns on top of it.
func PassthroughClassifier(id ID) Classifier {
	return func(err error) *errors.BridgeError {
		if bErr, ok := err.(*errors.BridgeError); ok {
			return bErr
		}
		return errors.NewPlatformError(string(id), err.Error())
	}
}
