package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/masa061580/pubmed-search-assistant/internal/models"
)

// MongoConversations stores one document per conversation in the
// "conversations" collection. A TTL index on updated_at lets the server reap
// idle conversations; Get also ignores documents past their TTL because the
// reaper only runs once a minute.
type MongoConversations struct {
	col  *mongo.Collection
	opts Options
}

type conversationDoc struct {
	ID        string           `bson:"_id"`
	Messages  []models.Message `bson:"messages"`
	UpdatedAt time.Time        `bson:"updated_at"`
}

func NewMongoConversations(db *mongo.Database, opts Options) *MongoConversations {
	return &MongoConversations{col: db.Collection("conversations"), opts: opts}
}

// EnsureIndexes creates the TTL index used for expiry.
func (s *MongoConversations) EnsureIndexes(ctx context.Context) error {
	if s.opts.TTL <= 0 {
		return nil
	}
	_, err := s.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "updated_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(int32(s.opts.TTL / time.Second)),
	})
	if err != nil {
		return fmt.Errorf("mongo ttl index: %w", err)
	}
	return nil
}

func (s *MongoConversations) Get(ctx context.Context, id string) ([]models.Message, error) {
	var doc conversationDoc
	err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mongo find: %w", err)
	}
	if s.opts.TTL > 0 && time.Since(doc.UpdatedAt) > s.opts.TTL {
		return nil, nil
	}
	return doc.Messages, nil
}

func (s *MongoConversations) Append(ctx context.Context, id string, msgs ...models.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	now := time.Now()
	if s.opts.TTL > 0 {
		// an expired document that the reaper has not removed yet starts over
		_, err := s.col.DeleteOne(ctx, bson.M{"_id": id, "updated_at": bson.M{"$lt": now.Add(-s.opts.TTL)}})
		if err != nil {
			return fmt.Errorf("mongo expire: %w", err)
		}
	}

	push := bson.M{"$each": stamp(msgs, now)}
	if s.opts.MaxMessages > 0 {
		push["$slice"] = -s.opts.MaxMessages
	}
	_, err := s.col.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{
			"$push": bson.M{"messages": push},
			"$set":  bson.M{"updated_at": now},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("mongo append: %w", err)
	}
	return nil
}

func (s *MongoConversations) Evict(ctx context.Context, id string) error {
	_, err := s.col.DeleteOne(ctx, bson.M{"_id": id})
	return err
}
