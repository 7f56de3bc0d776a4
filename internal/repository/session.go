// Package repository persists domain records on top of a storage.Store.
package repository

import (
	"context"
	"errors"

	"github.com/and161185/immob/internal/model"
	"github.com/and161185/immob/internal/storage"
)

// SessionKey is the storage key of the persisted session record.
const SessionKey = "auth-storage"

// sessionVersion is written with every record for future migrations.
const sessionVersion = 0

type persistedState struct {
	User            *model.User `json:"user"`
	IsAuthenticated bool        `json:"isAuthenticated"`
}

type sessionRecord struct {
	State   persistedState `json:"state"`
	Version int            `json:"version"`
}

// SessionRepository persists the signed-in user across restarts. Only the
// user and the authenticated flag are stored.
type SessionRepository interface {
	// Load returns the persisted user, or nil when no session is stored.
	Load(ctx context.Context) (*model.User, error)
	// Save writes the record for u (nil means anonymous).
	Save(ctx context.Context, u *model.User) error
	// Clear erases the record.
	Clear(ctx context.Context) error
}

// SessionRepo implements SessionRepository on a storage.Store.
type SessionRepo struct{ store storage.Store }

var _ SessionRepository = (*SessionRepo)(nil)

// NewSessionRepo constructs a session repository.
func NewSessionRepo(store storage.Store) *SessionRepo { return &SessionRepo{store: store} }

// Load decodes the record. A record whose flag disagrees with its user is
// normalized so that authenticated == (user != nil).
func (r *SessionRepo) Load(ctx context.Context) (*model.User, error) {
	var rec sessionRecord
	found, err := storage.GetJSON(ctx, r.store, SessionKey, &rec)
	if err != nil || !found {
		return nil, err
	}
	if !rec.State.IsAuthenticated || rec.State.User == nil {
		return nil, nil
	}
	if !rec.State.User.Role.Valid() {
		return nil, errors.Join(storage.ErrCorrupt, errors.New("unknown role "+string(rec.State.User.Role)))
	}
	return rec.State.User, nil
}

// Save writes the record.
func (r *SessionRepo) Save(ctx context.Context, u *model.User) error {
	rec := sessionRecord{
		State:   persistedState{User: u, IsAuthenticated: u != nil},
		Version: sessionVersion,
	}
	return storage.SetJSON(ctx, r.store, SessionKey, rec)
}

// Clear removes the record entirely.
func (r *SessionRepo) Clear(ctx context.Context) error {
	return r.store.Remove(ctx, SessionKey)
}
