package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestResetTokenUsableAt(t *testing.T) {
	now := time.Now()
	fresh := ResetToken{
		IssuedAt:  primitive.NewDateTimeFromTime(now),
		ExpiresAt: primitive.NewDateTimeFromTime(now.Add(1 * time.Hour)),
	}

	assert.True(t, fresh.UsableAt(now))
	assert.False(t, fresh.UsableAt(now.Add(1*time.Hour)), "exactly at expiry is expired")
	assert.False(t, fresh.UsableAt(now.Add(2*time.Hour)))

	consumed := fresh
	consumed.Consumed = true
	assert.False(t, consumed.UsableAt(now))

	superseded := fresh
	superseded.Superseded = true
	assert.False(t, superseded.UsableAt(now))
}
