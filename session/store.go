// Package session holds the application's single source of truth for the
// signed-in user. One store instance exists per application; it owns the
// provider subscription and every mutation of the local session.
package session

import (
	"context"
	"sync"

	"go.pilab.hu/onenote/domain"
	apperrors "go.pilab.hu/onenote/errors"
	"go.pilab.hu/onenote/internal/idp"
	"go.pilab.hu/onenote/log"
)

// Store tracks the current session and a resolution flag that stays set
// until the provider has reported its initial state. Consumers must not
// treat "no session" as signed-out while the flag is set.
type Store struct {
	provider idp.Provider
	notes    domain.NoteRepository
	logger   log.Logger

	mu        sync.Mutex
	current   *domain.Session
	resolving bool
	closed    bool
	watchers  map[int]chan struct{}
	nextID    int
}

// NewStore creates a session store. The note repository seeds the note
// counter whenever the provider reports a principal.
func NewStore(provider idp.Provider, notes domain.NoteRepository, logger log.Logger) *Store {
	return &Store{
		provider:  provider,
		notes:     notes,
		logger:    logger,
		resolving: true,
		watchers:  make(map[int]chan struct{}),
	}
}

// Subscribe registers the store with the identity provider. It must be
// called once, before the provider is started, so no protected route can
// observe an unresolved state as signed-out. The returned handle releases
// the provider subscription.
func (s *Store) Subscribe(ctx context.Context) (unsubscribe func()) {
	providerUnsub := s.provider.AuthStateChanges(func(principal *domain.Principal) {
		s.onAuthStateChange(ctx, principal)
	})

	return func() {
		providerUnsub()
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
	}
}

// onAuthStateChange is the provider listener. Provider notifications are
// authoritative and overwrite local state.
func (s *Store) onAuthStateChange(ctx context.Context, principal *domain.Principal) {
	var sess *domain.Session
	if principal != nil {
		sess = &domain.Session{
			Email:       principal.Email,
			DisplayName: principal.DisplayName,
			UserID:      principal.UserID,
		}
		if sess.DisplayName == "" {
			sess.DisplayName = domain.LocalPart(principal.Email)
		}
		sess.NoteCount = s.noteCountFor(ctx, principal.UserID)
	}

	s.mu.Lock()
	if s.closed {
		// Late completion after teardown; nothing may be mutated.
		s.mu.Unlock()
		return
	}
	s.current = sess
	s.resolving = false
	s.mu.Unlock()

	s.notifyWatchers()
}

func (s *Store) noteCountFor(ctx context.Context, userID string) int {
	if s.notes == nil || userID == "" {
		return 0
	}
	count, err := s.notes.CountByUser(ctx, userID)
	if err != nil {
		s.logger.Warn(ctx, "failed to load note count, starting at zero",
			map[string]interface{}{"user_id": userID, "error": err.Error()})
		return 0
	}
	return int(count)
}

// Snapshot returns the current session (nil when signed out) and whether
// the initial provider state is still being resolved.
func (s *Store) Snapshot() (*domain.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copySession(s.current), s.resolving
}

// Current returns the current session, or nil.
func (s *Store) Current() *domain.Session {
	sess, _ := s.Snapshot()
	return sess
}

// SetSession overrides the current session. It is used right after a
// successful sign-up or sign-in so the UI does not have to wait for the
// provider's own notification; the provider echo of the same state is a
// no-op.
func (s *Store) SetSession(sess *domain.Session) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.current = copySession(sess)
	s.resolving = false
	s.mu.Unlock()

	s.notifyWatchers()
}

// UpdateDisplayName asks the provider to change the display name and, on
// success, applies the same change locally. On provider failure the local
// session is left untouched and the error is returned.
func (s *Store) UpdateDisplayName(ctx context.Context, name string) error {
	principal := s.provider.CurrentPrincipal()
	if principal == nil {
		return apperrors.ErrNotAuthenticated
	}

	if err := s.provider.UpdateDisplayName(ctx, principal, name); err != nil {
		return err
	}

	s.mu.Lock()
	if !s.closed && s.current != nil {
		s.current.DisplayName = name
	}
	s.mu.Unlock()

	s.notifyWatchers()
	return nil
}

// IncrementNoteCount bumps the local-only note counter. Calling it with
// no session is a no-op; it never fails.
func (s *Store) IncrementNoteCount() {
	s.mu.Lock()
	if s.closed || s.current == nil {
		s.mu.Unlock()
		return
	}
	s.current.NoteCount++
	s.mu.Unlock()

	s.notifyWatchers()
}

// Watch returns a channel that receives a signal after every published
// change, plus a handle to release it. Signals are coalesced; readers
// re-read Snapshot.
func (s *Store) Watch() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = ch
	s.mu.Unlock()

	return ch, func() {
		s.mu.Lock()
		delete(s.watchers, id)
		s.mu.Unlock()
	}
}

func (s *Store) notifyWatchers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func copySession(sess *domain.Session) *domain.Session {
	if sess == nil {
		return nil
	}
	cp := *sess
	return &cp
}
