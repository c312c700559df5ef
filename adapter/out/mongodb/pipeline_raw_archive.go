// Package mongodb implements MongoDB adapters for the application.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"pipeline_server/core/domain"
)

// =============================================================================
// Raw Email Archive Adapter
// =============================================================================

const collectionRawEmails = "raw_emails"

// RawArchiveAdapter implements out.RawArchive using MongoDB. It keeps
// inbound emails exactly as they arrived from the parser, before the
// pipeline touched them. Writes are best-effort; the caller decides
// whether an archive failure matters.
type RawArchiveAdapter struct {
	db         *mongo.Database
	collection *mongo.Collection
}

// NewRawArchiveAdapter creates a new raw archive adapter.
func NewRawArchiveAdapter(db *mongo.Database) *RawArchiveAdapter {
	return &RawArchiveAdapter{
		db:         db,
		collection: db.Collection(collectionRawEmails),
	}
}

// EnsureIndexes creates necessary indexes for the collection.
func (a *RawArchiveAdapter) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "account_id", Value: 1},
				{Key: "message_id", Value: 1},
			},
		},
		{
			Keys: bson.D{{Key: "archived_at", Value: 1}},
		},
	}
	_, err := a.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

// rawEmailDoc is the stored document model.
type rawEmailDoc struct {
	AccountID   string    `bson:"account_id"`
	MessageID   string    `bson:"message_id"`
	Subject     string    `bson:"subject"`
	FromEmail   string    `bson:"from_email"`
	SentAt      time.Time `bson:"sent_at,omitempty"`
	BodyText    string    `bson:"body_text"`
	BodyHTML    string    `bson:"body_html,omitempty"`
	Attachments []string  `bson:"attachments,omitempty"`
	ArchivedAt  time.Time `bson:"archived_at"`
}

// Archive upserts the raw email. Replays overwrite the prior copy so
// the archive holds one document per (account_id, message_id).
func (a *RawArchiveAdapter) Archive(ctx context.Context, in *domain.InboundEmail) error {
	doc := rawEmailDoc{
		AccountID:   in.AccountID,
		MessageID:   in.MessageID,
		Subject:     in.Subject,
		FromEmail:   in.FromEmail,
		SentAt:      in.SentAt,
		BodyText:    in.BodyText,
		BodyHTML:    in.BodyHTML,
		Attachments: in.Attachments,
		ArchivedAt:  time.Now().UTC(),
	}

	filter := bson.M{"account_id": in.AccountID, "message_id": in.MessageID}
	update := bson.M{"$set": doc}
	opts := options.Update().SetUpsert(true)

	if _, err := a.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to archive raw email: %w", err)
	}
	return nil
}
