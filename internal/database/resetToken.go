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

// ResetTokenIssue marks every outstanding token of the user superseded
// and inserts the new one in a single transaction, so two concurrent
// issues can never both leave a usable token behind.
func (db Database) ResetTokenIssue(ctx context.Context, t model.ResetToken) error {
	session, err := db.Client().StartSession()
	if err != nil {
		return errors.Wrapf(err, "error starting session to issue ResetToken for UserID: %s", t.UserID.Hex())
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		_, err := db.Collection(CollectionResetTokens).UpdateMany(
			sc,
			bson.M{
				"user_id":    t.UserID,
				"consumed":   false,
				"superseded": false,
			},
			bson.M{"$set": bson.M{"superseded": true}},
		)
		if err != nil {
			return nil, err
		}
		_, err = db.Collection(CollectionResetTokens).InsertOne(sc, t)
		return nil, err
	})
	return errors.Wrapf(err, "error issuing ResetToken for UserID: %s", t.UserID.Hex())
}

func usableTokenFilter(tokenHash []byte, now time.Time) bson.M {
	return bson.M{
		"token_hash": tokenHash,
		"consumed":   false,
		"superseded": false,
		"expires_at": bson.M{"$gt": primitive.NewDateTimeFromTime(now)},
	}
}

// ResetTokenFindUsable is the read-only verify: it never consumes.
// Expired, consumed, superseded and unknown tokens are all reported as
// the same ErrInvalidResetToken so callers cannot distinguish them.
func (db Database) ResetTokenFindUsable(ctx context.Context, tokenHash []byte) (model.ResetToken, error) {
	var t model.ResetToken
	err := db.Collection(CollectionResetTokens).FindOne(ctx, usableTokenFilter(tokenHash, time.Now())).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return t, ErrInvalidResetToken
	}
	return t, errors.Wrap(err, "error finding usable ResetToken")
}

// ResetTokenConsume re-checks validity inside the update filter, so a
// token that expired or was superseded after a verify call fails here
// instead of being trusted. The password change rides in the same
// transaction, and every device session of the user is dropped.
func (db Database) ResetTokenConsume(ctx context.Context, tokenHash []byte, newPasswordHash []byte) (model.User, error) {
	var u model.User
	session, err := db.Client().StartSession()
	if err != nil {
		return u, errors.Wrap(err, "error starting session to consume ResetToken")
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		var t model.ResetToken
		err := db.Collection(CollectionResetTokens).FindOneAndUpdate(
			sc,
			usableTokenFilter(tokenHash, time.Now()),
			bson.M{"$set": bson.M{"consumed": true}},
		).Decode(&t)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrInvalidResetToken
		}
		if err != nil {
			return nil, err
		}

		err = db.Collection(CollectionUsers).FindOneAndUpdate(
			sc,
			bson.M{"_id": t.UserID},
			bson.M{"$set": bson.M{
				"password":   newPasswordHash,
				"devices":    []model.Device{},
				"updated_at": primitive.NewDateTimeFromTime(time.Now()),
			}},
		).Decode(&u)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.Wrapf(ErrNotFound, "no User with ID: %s for consumed ResetToken", t.UserID.Hex())
		}
		return nil, err
	})
	if err != nil {
		if errors.Is(err, ErrInvalidResetToken) || errors.Is(err, ErrNotFound) {
			return u, err
		}
		return u, errors.Wrap(err, "error consuming ResetToken")
	}
	return u, nil
}
