// Package storage provides the in-memory note archive used when no
// MongoDB URI is configured. Records live for the life of the process.
package storage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"go.pilab.hu/onenote/domain"
)

// MemoryNoteRepository implements domain.NoteRepository in memory.
type MemoryNoteRepository struct {
	mu    sync.RWMutex
	notes map[string][]*domain.NoteRecord // keyed by user ID, newest first
}

// NewMemoryNoteRepository creates an empty repository.
func NewMemoryNoteRepository() *MemoryNoteRepository {
	return &MemoryNoteRepository{notes: make(map[string][]*domain.NoteRecord)}
}

// Save implements domain.NoteRepository.Save.
func (r *MemoryNoteRepository) Save(_ context.Context, note *domain.NoteRecord) error {
	if note.ID == "" {
		note.ID = uuid.NewString()
	}
	if note.CreatedAt.IsZero() {
		note.CreatedAt = time.Now()
	}

	cp := *note

	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes[note.UserID] = append([]*domain.NoteRecord{&cp}, r.notes[note.UserID]...)
	return nil
}

// ListByUser implements domain.NoteRepository.ListByUser.
func (r *MemoryNoteRepository) ListByUser(_ context.Context, userID string, limit int) ([]*domain.NoteRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := r.notes[userID]
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}

	out := make([]*domain.NoteRecord, len(records))
	for i, rec := range records {
		cp := *rec
		out[i] = &cp
	}
	return out, nil
}

// CountByUser implements domain.NoteRepository.CountByUser.
func (r *MemoryNoteRepository) CountByUser(_ context.Context, userID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.notes[userID])), nil
}

var _ domain.NoteRepository = (*MemoryNoteRepository)(nil)
