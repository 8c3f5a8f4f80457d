package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"go.pilab.hu/onenote/domain"
)

// NoteRepositoryMongo implements domain.NoteRepository on MongoDB.
type NoteRepositoryMongo struct {
	coll *mongo.Collection
}

// NewNoteRepository creates the repository and ensures the per-user
// lookup index exists.
func NewNoteRepository(ctx context.Context, db *mongo.Database) (*NoteRepositoryMongo, error) {
	coll := db.Collection(NotesCollection)

	indexModel := mongo.IndexModel{
		Keys: bson.D{
			{Key: "user_id", Value: 1},
			{Key: "created_at", Value: -1},
		},
	}
	if _, err := coll.Indexes().CreateOne(ctx, indexModel); err != nil {
		return nil, fmt.Errorf("failed to create notes index: %w", err)
	}

	return &NoteRepositoryMongo{coll: coll}, nil
}

// Save implements domain.NoteRepository.Save.
func (r *NoteRepositoryMongo) Save(ctx context.Context, note *domain.NoteRecord) error {
	if note.ID == "" {
		note.ID = uuid.NewString()
	}
	if note.CreatedAt.IsZero() {
		note.CreatedAt = time.Now()
	}

	if _, err := r.coll.InsertOne(ctx, note); err != nil {
		return fmt.Errorf("failed to insert note record: %w", err)
	}
	return nil
}

// ListByUser implements domain.NoteRepository.ListByUser. Records come
// back newest first.
func (r *NoteRepositoryMongo) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.NoteRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts = opts.SetLimit(int64(limit))
	}

	cursor, err := r.coll.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list note records: %w", err)
	}
	defer cursor.Close(ctx)

	var notes []*domain.NoteRecord
	if err := cursor.All(ctx, &notes); err != nil {
		return nil, fmt.Errorf("failed to decode note records: %w", err)
	}
	return notes, nil
}

// CountByUser implements domain.NoteRepository.CountByUser.
func (r *NoteRepositoryMongo) CountByUser(ctx context.Context, userID string) (int64, error) {
	count, err := r.coll.CountDocuments(ctx, bson.M{"user_id": userID})
	if err != nil {
		return 0, fmt.Errorf("failed to count note records: %w", err)
	}
	return count, nil
}

var _ domain.NoteRepository = (*NoteRepositoryMongo)(nil)
