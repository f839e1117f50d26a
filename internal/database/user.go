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

func (db Database) UserInsert(ctx context.Context, u model.User) (id string, err error) {
	if u.Devices == nil {
		u.Devices = []model.Device{}
	}
	// Digest is opt-out, reminders are opt-in.
	u.WeeklyDigestEnabled = true
	u.StillAvailableReminders = false
	u.CreatedAt = primitive.NewDateTimeFromTime(time.Now())
	u.UpdatedAt = primitive.NewDateTimeFromTime(time.Now())

	r, err := db.Collection(CollectionUsers).InsertOne(ctx, u)
	if err != nil {
		return "", errors.Wrapf(err, "error inserting User with email: %s", u.Email)
	}
	return r.InsertedID.(primitive.ObjectID).Hex(), nil
}

func (db Database) UserFindByEmail(ctx context.Context, email string) (model.User, error) {
	var u model.User
	err := db.Collection(CollectionUsers).FindOne(ctx, bson.M{"email": email}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return u, errors.Wrapf(ErrNotFound, "no User with email: %s", email)
	}
	return u, errors.Wrapf(err, "error finding User with email: %s", email)
}

func (db Database) UserFindByID(ctx context.Context, id string) (model.User, error) {
	var u model.User
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return u, errors.Wrapf(ErrNotFound, "invalid UserID: %s", id)
	}
	err = db.Collection(CollectionUsers).FindOne(ctx, bson.M{"_id": objID}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return u, errors.Wrapf(ErrNotFound, "no User with ID: %s", id)
	}
	return u, errors.Wrapf(err, "error finding User with ID: %s", id)
}

func (db Database) UsersFindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]model.User, error) {
	var us []model.User
	cur, err := db.Collection(CollectionUsers).Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, errors.Wrapf(err, "error getting cursor to find Users, IDs: %v", ids)
	}
	if err = cur.All(ctx, &us); err != nil {
		return nil, errors.Wrapf(err, "error getting Users from cursor, IDs: %v", ids)
	}
	return us, nil
}

func (db Database) UsersFindDigestEnabled(ctx context.Context) ([]model.User, error) {
	var us []model.User
	cur, err := db.Collection(CollectionUsers).Find(ctx, bson.M{"weekly_digest_enabled": true})
	if err != nil {
		return nil, errors.Wrap(err, "error getting cursor to find digest-enabled Users")
	}
	if err = cur.All(ctx, &us); err != nil {
		return nil, errors.Wrap(err, "error getting digest-enabled Users from cursor")
	}
	return us, nil
}

func (db Database) UserSettingsUpdate(ctx context.Context, userID string, su model.UserSettingsUpdate) error {
	objID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return errors.Wrapf(ErrNotFound, "invalid UserID: %s", userID)
	}

	set := bson.M{"updated_at": primitive.NewDateTimeFromTime(time.Now())}
	if su.ShipToCountry != nil {
		set["ship_to_country"] = *su.ShipToCountry
	}
	if su.Timezone != nil {
		set["timezone"] = *su.Timezone
	}
	if su.WeeklyDigestEnabled != nil {
		set["weekly_digest_enabled"] = *su.WeeklyDigestEnabled
	}
	if su.StillAvailableReminders != nil {
		set["still_available_reminders"] = *su.StillAvailableReminders
	}
	if len(set) == 1 {
		return errors.Wrap(model.ErrValidation, "no settings to update")
	}

	res, err := db.Collection(CollectionUsers).UpdateOne(ctx, bson.M{"_id": objID}, bson.M{"$set": set})
	if err != nil {
		return errors.Wrapf(err, "error updating settings for UserID: %s", userID)
	}
	if res.MatchedCount == 0 {
		return errors.Wrapf(ErrNotFound, "no User with ID: %s", userID)
	}
	return nil
}

func (db Database) UserDeviceAdd(ctx context.Context, userID string, d model.Device) error {
	objID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return errors.Wrapf(ErrNotFound, "invalid UserID: %s", userID)
	}
	d.CreatedAt = primitive.NewDateTimeFromTime(time.Now())
	d.LastSeen = primitive.NewDateTimeFromTime(time.Now())

	res, err := db.Collection(CollectionUsers).UpdateOne(
		ctx,
		bson.M{"_id": objID},
		bson.M{"$push": bson.M{"devices": d}},
	)
	if err != nil {
		return errors.Wrapf(err, "error adding Device to User with ID: %s", userID)
	}
	if res.ModifiedCount == 0 {
		return errors.Wrapf(ErrNoDocumentsModified, "adding Device to User with ID: %s", userID)
	}
	return nil
}

func (db Database) UserDeviceUpdate(ctx context.Context, userID string, d model.Device) error {
	objID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return errors.Wrapf(ErrNotFound, "invalid UserID: %s", userID)
	}

	res, err := db.Collection(CollectionUsers).UpdateOne(
		ctx,
		bson.M{"_id": objID, "devices.device_id": d.DeviceID},
		bson.M{"$set": bson.M{"devices.$": d}},
	)
	if err != nil {
		return errors.Wrapf(err, "error updating Device on User with ID: %s, DeviceID: %s", userID, d.DeviceID)
	}
	if res.MatchedCount == 0 {
		return errors.Wrapf(ErrNotFound, "no Device on User with ID: %s, DeviceID: %s", userID, d.DeviceID)
	}
	return nil
}

func (db Database) UserDeviceTokensRemove(ctx context.Context, userID string, deviceID string) error {
	objID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return errors.Wrapf(ErrNotFound, "invalid UserID: %s", userID)
	}

	res, err := db.Collection(CollectionUsers).UpdateOne(
		ctx,
		bson.M{"_id": objID},
		bson.M{"$pull": bson.M{"devices": bson.M{"device_id": deviceID}}},
	)
	if err != nil {
		return errors.Wrapf(err, "error removing Device from User with ID: %s, DeviceID: %s", userID, deviceID)
	}
	if res.ModifiedCount == 0 {
		return errors.Wrapf(ErrNoDocumentsModified, "removing Device from User with ID: %s, DeviceID: %s", userID, deviceID)
	}
	return nil
}

func (db Database) UserDeviceLastSeenUpdate(ctx context.Context, userID string, deviceID string) error {
	objID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return errors.Wrapf(ErrNotFound, "invalid UserID: %s", userID)
	}

	_, err = db.Collection(CollectionUsers).UpdateOne(
		ctx,
		bson.M{"_id": objID, "devices.device_id": deviceID},
		bson.M{"$set": bson.M{"devices.$.last_seen": primitive.NewDateTimeFromTime(time.Now())}},
	)
	return errors.Wrapf(err, "error updating Device LastSeen on User with ID: %s, DeviceID: %s", userID, deviceID)
}
