package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	appoutbox "github.com/CypherNinjaa/social-media-sub000/internal/app/outbox"
	"github.com/CypherNinjaa/social-media-sub000/internal/infra/outbox"
)

// OutboxStore is the durable relay queue. Sent events expire after a day.
type OutboxStore struct {
	col *mongo.Collection
}

func NewOutboxStore(ctx context.Context, db *mongo.Database) (*OutboxStore, error) {
	col := db.Collection("messaging_outbox")
	_, err := col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "next_attempt_at", Value: 1}, {Key: "occurred_at", Value: 1}}},
		{
			Keys:    bson.D{{Key: "sent_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32((24 * time.Hour).Seconds())),
		},
	})
	if err != nil {
		return nil, err
	}
	return &OutboxStore{col: col}, nil
}

func (s *OutboxStore) Enqueue(ctx context.Context, records []appoutbox.EventRecord) error {
	if len(records) == 0 {
		return nil
	}
	docs := make([]any, 0, len(records))
	for _, rec := range records {
		docs = append(docs, outbox.NewDocument(rec))
	}
	_, err := s.col.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return err
	}
	return nil
}

func (s *OutboxStore) Claim(ctx context.Context, workerID string) (*outbox.EventDocument, error) {
	now := time.Now().UTC()
	filter := bson.M{
		"status":          bson.M{"$in": bson.A{outbox.StatusPending, outbox.StatusProcessing}},
		"next_attempt_at": bson.M{"$lte": now},
	}
	update := bson.M{"$set": bson.M{
		"status":          outbox.StatusProcessing,
		"claimed_by":      workerID,
		"next_attempt_at": now.Add(outbox.ClaimLease),
	}}
	opts := options.FindOneAndUpdate().
		SetSort(bson.D{{Key: "occurred_at", Value: 1}, {Key: "_id", Value: 1}}).
		SetReturnDocument(options.After)
	var doc outbox.EventDocument
	if err := s.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &doc, nil
}

func (s *OutboxStore) MarkSent(ctx context.Context, id string) error {
	_, err := s.col.UpdateByID(ctx, id, bson.M{
		"$set":   bson.M{"status": outbox.StatusSent, "sent_at": time.Now().UTC()},
		"$unset": bson.M{"claimed_by": ""},
	})
	return err
}

func (s *OutboxStore) MarkFailed(ctx context.Context, id string, retryAt time.Time, reason string) error {
	set := bson.M{"last_error": reason, "status": outbox.StatusPending, "next_attempt_at": retryAt.UTC()}
	if retryAt.IsZero() {
		set = bson.M{"last_error": reason, "status": outbox.StatusDead}
	}
	_, err := s.col.UpdateByID(ctx, id, bson.M{
		"$set":   set,
		"$inc":   bson.M{"attempts": 1},
		"$unset": bson.M{"claimed_by": ""},
	})
	return err
}

var _ outbox.Store = (*OutboxStore)(nil)
