package database

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"scoutloot/internal/model"
)

func (db Database) WatchInsert(ctx context.Context, w model.Watch) (id string, err error) {
	if err := w.Validate(); err != nil {
		return "", err
	}
	w.Status = model.WatchStatusActive
	w.CreatedAt = primitive.NewDateTimeFromTime(time.Now())
	w.UpdatedAt = primitive.NewDateTimeFromTime(time.Now())

	r, err := db.Collection(CollectionWatches).InsertOne(ctx, w)
	if err != nil {
		return "", errors.Wrapf(err, "error inserting Watch for UserID: %s, item: %s %s",
			w.UserID.Hex(), w.ItemType, w.ItemID)
	}
	return r.InsertedID.(primitive.ObjectID).Hex(), nil
}

func (db Database) WatchFindOne(ctx context.Context, watchID string) (model.Watch, error) {
	var w model.Watch
	objID, err := primitive.ObjectIDFromHex(watchID)
	if err != nil {
		return w, errors.Wrapf(ErrNotFound, "invalid WatchID: %s", watchID)
	}
	err = db.Collection(CollectionWatches).FindOne(ctx, bson.M{
		"_id":    objID,
		"status": bson.M{"$ne": model.WatchStatusDeleted},
	}).Decode(&w)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return w, errors.Wrapf(ErrNotFound, "no Watch with ID: %s", watchID)
	}
	return w, errors.Wrapf(err, "error finding Watch with ID: %s", watchID)
}

// WatchUpdate applies a partial update. The combined price bounds are
// validated against the stored document, so lowering target_price below
// an existing min_price is rejected the same as on create.
func (db Database) WatchUpdate(ctx context.Context, watchID string, u model.WatchUpdate) (model.Watch, error) {
	if err := u.Validate(); err != nil {
		return model.Watch{}, err
	}
	w, err := db.WatchFindOne(ctx, watchID)
	if err != nil {
		return w, err
	}

	set := bson.M{"updated_at": primitive.NewDateTimeFromTime(time.Now())}
	if u.TargetPrice != nil {
		w.TargetPrice = *u.TargetPrice
		set["target_price"] = *u.TargetPrice
	}
	if u.MinPrice != nil {
		w.MinPrice = *u.MinPrice
		set["min_price"] = *u.MinPrice
	}
	if u.Condition != nil {
		w.Condition = *u.Condition
		set["condition"] = *u.Condition
	}
	if u.Status != nil {
		w.Status = *u.Status
		set["status"] = *u.Status
	}
	if err := w.Validate(); err != nil {
		return model.Watch{}, err
	}

	res, err := db.Collection(CollectionWatches).UpdateOne(
		ctx,
		bson.M{"_id": w.ID, "status": bson.M{"$ne": model.WatchStatusDeleted}},
		bson.M{"$set": set},
	)
	if err != nil {
		return model.Watch{}, errors.Wrapf(err, "error updating Watch with ID: %s", watchID)
	}
	if res.MatchedCount == 0 {
		return model.Watch{}, errors.Wrapf(ErrNotFound, "no Watch with ID: %s", watchID)
	}
	w.UpdatedAt = set["updated_at"].(primitive.DateTime)
	return w, nil
}

// bulkConditionFilter matches the active watches of the user not
// already at the requested condition. Excluding already-equal watches
// is what makes a repeated bulk call report 0 instead of re-counting.
func bulkConditionFilter(userID primitive.ObjectID, c model.Condition) bson.M {
	return bson.M{
		"user_id":   userID,
		"status":    model.WatchStatusActive,
		"condition": bson.M{"$ne": c},
	}
}

// WatchBulkSetCondition sets the condition on every active watch owned
// by the user in a single UpdateMany.
func (db Database) WatchBulkSetCondition(ctx context.Context, userID string, c model.Condition) (int64, error) {
	if !c.Valid() {
		return 0, errors.Wrapf(model.ErrValidation, "invalid condition: %s", c)
	}
	objID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return 0, errors.Wrapf(ErrNotFound, "invalid UserID: %s", userID)
	}

	res, err := db.Collection(CollectionWatches).UpdateMany(
		ctx,
		bulkConditionFilter(objID, c),
		bson.M{"$set": bson.M{
			"condition":  c,
			"updated_at": primitive.NewDateTimeFromTime(time.Now()),
		}},
	)
	if err != nil {
		return 0, errors.Wrapf(err, "error bulk setting condition to %s for UserID: %s", c, userID)
	}
	return res.ModifiedCount, nil
}

// WatchesFindActiveByItem returns the active watches for one item as a
// single cursor read, which is the evaluation snapshot.
func (db Database) WatchesFindActiveByItem(ctx context.Context, itemType model.ItemType, itemID string) ([]model.Watch, error) {
	var ws []model.Watch
	cur, err := db.Collection(CollectionWatches).Find(ctx, bson.M{
		"item_type": itemType,
		"item_id":   itemID,
		"status":    model.WatchStatusActive,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "error getting cursor to find active Watches for item: %s %s", itemType, itemID)
	}
	if err = cur.All(ctx, &ws); err != nil {
		return nil, errors.Wrapf(err, "error getting active Watches from cursor for item: %s %s", itemType, itemID)
	}
	return ws, nil
}

func (db Database) WatchesFindByUser(ctx context.Context, userID string) ([]model.Watch, error) {
	objID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, errors.Wrapf(ErrNotFound, "invalid UserID: %s", userID)
	}
	var ws []model.Watch
	cur, err := db.Collection(CollectionWatches).Find(ctx, bson.M{
		"user_id": objID,
		"status":  bson.M{"$ne": model.WatchStatusDeleted},
	})
	if err != nil {
		return nil, errors.Wrapf(err, "error getting cursor to find Watches for UserID: %s", userID)
	}
	if err = cur.All(ctx, &ws); err != nil {
		return nil, errors.Wrapf(err, "error getting Watches from cursor for UserID: %s", userID)
	}
	return ws, nil
}

// WatchSoftDelete marks the watch deleted. Documents are never removed,
// notification history keeps referring to them.
func (db Database) WatchSoftDelete(ctx context.Context, watchID string) error {
	objID, err := primitive.ObjectIDFromHex(watchID)
	if err != nil {
		return errors.Wrapf(ErrNotFound, "invalid WatchID: %s", watchID)
	}
	res, err := db.Collection(CollectionWatches).UpdateOne(
		ctx,
		bson.M{"_id": objID, "status": bson.M{"$ne": model.WatchStatusDeleted}},
		bson.M{"$set": bson.M{
			"status":     model.WatchStatusDeleted,
			"updated_at": primitive.NewDateTimeFromTime(time.Now()),
		}},
	)
	if err != nil {
		return errors.Wrapf(err, "error soft deleting Watch with ID: %s", watchID)
	}
	if res.MatchedCount == 0 {
		return errors.Wrapf(ErrNotFound, "no Watch with ID: %s", watchID)
	}
	return nil
}
