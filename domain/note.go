package domain

import (
	"context"
	"time"
)

// NoteRecord is an archived note-generation result.
type NoteRecord struct {
	ID         string    `bson:"_id,omitempty" json:"id"`
	UserID     string    `bson:"user_id" json:"user_id"`
	Topic      string    `bson:"topic" json:"topic"`
	Preference string    `bson:"preference" json:"preference"` // "short" or "long"
	PDFPath    string    `bson:"pdf_path" json:"pdf_path"`
	CreatedAt  time.Time `bson:"created_at" json:"created_at"`
}

// NoteRepository stores generated-note records. CountByUser seeds the
// session's note counter when a provider notification arrives.
type NoteRepository interface {
	Save(ctx context.Context, note *NoteRecord) error
	ListByUser(ctx context.Context, userID string, limit int) ([]*NoteRecord, error)
	CountByUser(ctx context.Context, userID string) (int64, error)
}
