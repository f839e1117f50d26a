package database

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	Name                          = "scoutloot_db"
	CollectionWatches             = "watches"
	CollectionUsers               = "users"
	CollectionNotificationHistory = "notification_history"
	CollectionFireDedup           = "fire_dedup"
	CollectionResetTokens         = "reset_tokens"
)

type Database struct {
	*mongo.Database
}

var (
	ErrNoDocumentsModified = errors.New("no documents modified")
	ErrNotFound            = errors.New("not found")
	ErrInvalidResetToken   = errors.New("invalid reset token")
)

// ConnectDB connects and ensures the indexes the stores depend on.
// suppressionWindow sets the TTL on the fire dedup collection: the
// unique (watch_id, fingerprint) constraint there is what closes the
// concurrent-duplicate race, and the TTL is what bounds it in time.
func ConnectDB(ctx context.Context, dbURI string, suppressionWindow time.Duration) (*mongo.Client, error) {
	c, err := mongo.Connect(ctx, options.Client().ApplyURI(dbURI))
	if err != nil {
		return nil, err
	}

	_, err = c.Database(Name).Collection(CollectionWatches).Indexes().CreateMany(
		ctx,
		[]mongo.IndexModel{
			{
				Keys: bson.D{
					{Key: "item_type", Value: 1},
					{Key: "item_id", Value: 1},
					{Key: "status", Value: 1},
				},
			},
			{
				Keys: bson.D{
					{Key: "user_id", Value: 1},
					{Key: "status", Value: 1},
				},
			},
		},
	)
	if err != nil {
		return nil, err
	}

	_, err = c.Database(Name).Collection(CollectionUsers).Indexes().CreateMany(
		ctx,
		[]mongo.IndexModel{
			{
				Keys:    bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{
				Keys:    bson.D{{Key: "devices.fcm_token", Value: 1}},
				Options: options.Index().SetUnique(true).SetSparse(true),
			},
		},
	)
	if err != nil {
		return nil, err
	}

	_, err = c.Database(Name).Collection(CollectionNotificationHistory).Indexes().CreateMany(
		ctx,
		[]mongo.IndexModel{
			{
				Keys: bson.D{
					{Key: "user_id", Value: 1},
					{Key: "kind", Value: 1},
					{Key: "sent_at", Value: -1},
				},
			},
			{
				Keys: bson.D{
					{Key: "watch_id", Value: 1},
					{Key: "kind", Value: 1},
					{Key: "sent_at", Value: -1},
				},
			},
			{
				Keys: bson.D{{Key: "sent_at", Value: 1}},
			},
		},
	)
	if err != nil {
		return nil, err
	}

	_, err = c.Database(Name).Collection(CollectionFireDedup).Indexes().CreateMany(
		ctx,
		[]mongo.IndexModel{
			{
				Keys: bson.D{
					{Key: "watch_id", Value: 1},
					{Key: "fingerprint", Value: 1},
				},
				Options: options.Index().SetUnique(true),
			},
			{
				Keys:    bson.D{{Key: "created_at", Value: 1}},
				Options: options.Index().SetExpireAfterSeconds(int32(suppressionWindow.Seconds())),
			},
		},
	)
	if err != nil {
		return nil, err
	}

	_, err = c.Database(Name).Collection(CollectionResetTokens).Indexes().CreateMany(
		ctx,
		[]mongo.IndexModel{
			{
				Keys:    bson.D{{Key: "token_hash", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{
				Keys: bson.D{
					{Key: "user_id", Value: 1},
					{Key: "consumed", Value: 1},
					{Key: "superseded", Value: 1},
				},
			},
		},
	)
	if err != nil {
		return nil, err
	}

	return c, nil
}
