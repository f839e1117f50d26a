package database

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"scoutloot/internal/model"
)

type fireDedup struct {
	WatchID     primitive.ObjectID `bson:"watch_id"`
	Fingerprint string             `bson:"fingerprint"`
	CreatedAt   primitive.DateTime `bson:"created_at"`
}

// FireDedupClaim inserts the (watch, fingerprint) claim that guards a
// fire intent. Returns (false, nil) when another insert already holds
// the claim within the suppression window: the TTL index on created_at
// expires claims, so an identical listing fires again after the window.
// Claiming before emitting is what makes two concurrent identical
// listings produce exactly one intent.
func (db Database) FireDedupClaim(ctx context.Context, watchID primitive.ObjectID, fingerprint string) (bool, error) {
	_, err := db.Collection(CollectionFireDedup).InsertOne(ctx, fireDedup{
		WatchID:     watchID,
		Fingerprint: fingerprint,
		CreatedAt:   primitive.NewDateTimeFromTime(time.Now()),
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, errors.Wrapf(err, "error claiming fire dedup for WatchID: %s, fingerprint: %s",
			watchID.Hex(), fingerprint)
	}
	return true, nil
}

func (db Database) NotificationHistoryInsert(ctx context.Context, e model.NotificationHistoryEntry) error {
	_, err := db.Collection(CollectionNotificationHistory).InsertOne(ctx, e)
	return errors.Wrapf(err, "error inserting NotificationHistoryEntry: %+v", e)
}

// NotificationHistoryMarkSeen advances last_seen_at on the most recent
// fire entry for the fingerprint. Called when a suppressed duplicate
// arrives, this is what the still-available sweep reads as
// "re-observed".
func (db Database) NotificationHistoryMarkSeen(ctx context.Context, watchID primitive.ObjectID, fingerprint string, seenAt time.Time) error {
	opts := options.FindOneAndUpdate().SetSort(bson.M{"sent_at": -1})
	err := db.Collection(CollectionNotificationHistory).FindOneAndUpdate(
		ctx,
		bson.M{
			"watch_id":    watchID,
			"fingerprint": fingerprint,
			"kind":        model.NotificationKindFire,
		},
		bson.M{"$set": bson.M{"last_seen_at": primitive.NewDateTimeFromTime(seenAt)}},
		opts,
	).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		// Dedup claim can outlive a pruned history entry, nothing to mark.
		return nil
	}
	return errors.Wrapf(err, "error marking NotificationHistoryEntry seen for WatchID: %s, fingerprint: %s",
		watchID.Hex(), fingerprint)
}

// NotificationHistoryFindReminderCandidates returns fire entries old
// enough for a still-available reminder that carry a reference price.
// The per-entry gates (re-observation, discount, user flag, no prior
// reminder) are checked by the sweeper.
func (db Database) NotificationHistoryFindReminderCandidates(ctx context.Context, oldest time.Time, firedBefore time.Time) ([]model.NotificationHistoryEntry, error) {
	var es []model.NotificationHistoryEntry
	cur, err := db.Collection(CollectionNotificationHistory).Find(ctx, bson.M{
		"kind": model.NotificationKindFire,
		"sent_at": bson.M{
			"$gte": primitive.NewDateTimeFromTime(oldest),
			"$lte": primitive.NewDateTimeFromTime(firedBefore),
		},
		"reference_price": bson.M{"$gt": 0},
	})
	if err != nil {
		return nil, errors.Wrapf(err, "error getting cursor to find reminder candidates fired before: %s",
			firedBefore.Format(time.RFC3339))
	}
	if err = cur.All(ctx, &es); err != nil {
		return nil, errors.Wrapf(err, "error getting reminder candidates from cursor fired before: %s",
			firedBefore.Format(time.RFC3339))
	}
	return es, nil
}

func (db Database) NotificationHistoryReminderExists(ctx context.Context, watchID primitive.ObjectID, since time.Time) (bool, error) {
	err := db.Collection(CollectionNotificationHistory).FindOne(ctx, bson.M{
		"watch_id": watchID,
		"kind":     model.NotificationKindStillAvailable,
		"sent_at":  bson.M{"$gte": primitive.NewDateTimeFromTime(since)},
	}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "error checking for existing reminder for WatchID: %s", watchID.Hex())
	}
	return true, nil
}

func (db Database) NotificationHistoryFindFiresByUser(
	ctx context.Context, userID primitive.ObjectID, start time.Time, end time.Time,
) ([]model.NotificationHistoryEntry, error) {
	var es []model.NotificationHistoryEntry
	opts := options.Find().SetSort(bson.M{"sent_at": -1})
	cur, err := db.Collection(CollectionNotificationHistory).Find(ctx, bson.M{
		"user_id": userID,
		"kind":    model.NotificationKindFire,
		"sent_at": bson.M{
			"$gte": primitive.NewDateTimeFromTime(start),
			"$lte": primitive.NewDateTimeFromTime(end),
		},
	}, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "error getting cursor to find fires for UserID: %s, start: %s, end: %s",
			userID.Hex(), start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	if err = cur.All(ctx, &es); err != nil {
		return nil, errors.Wrapf(err, "error getting fires from cursor for UserID: %s, start: %s, end: %s",
			userID.Hex(), start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return es, nil
}

// NotificationHistoryPrune removes entries older than the retention
// window. Dedup correctness only needs the suppression window, digest
// needs 7 days, both are far inside retention.
func (db Database) NotificationHistoryPrune(ctx context.Context, before time.Time) (int64, error) {
	res, err := db.Collection(CollectionNotificationHistory).DeleteMany(ctx, bson.M{
		"sent_at": bson.M{"$lt": primitive.NewDateTimeFromTime(before)},
	})
	if err != nil {
		return 0, errors.Wrapf(err, "error pruning NotificationHistory before: %s", before.Format(time.RFC3339))
	}
	return res.DeletedCount, nil
}
