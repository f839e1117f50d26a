package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ResetToken is a single-use, time-limited password reset token.
// The raw token value is only ever held by the user, the stored
// document carries its SHA-256 hash.
type ResetToken struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	UserID     primitive.ObjectID `bson:"user_id"`
	Email      string             `bson:"email"`
	TokenHash  []byte             `bson:"token_hash"`
	IssuedAt   primitive.DateTime `bson:"issued_at"`
	ExpiresAt  primitive.DateTime `bson:"expires_at"`
	Consumed   bool               `bson:"consumed"`
	Superseded bool               `bson:"superseded"`
}

// UsableAt reports whether the token could still be consumed at now.
// Consumed and superseded are both terminal.
func (t ResetToken) UsableAt(now time.Time) bool {
	return !t.Consumed && !t.Superseded && now.Before(t.ExpiresAt.Time())
}
