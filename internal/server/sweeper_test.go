package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"scoutloot/internal/model"
)

func TestReminderDue(t *testing.T) {
	const delay = 72 * time.Hour
	const threshold = 0.20
	now := time.Now()
	optedIn := model.User{StillAvailableReminders: true}

	entry := func(firedAgo time.Duration, seenAgo time.Duration, price, reference float64) model.NotificationHistoryEntry {
		return model.NotificationHistoryEntry{
			Kind:           model.NotificationKindFire,
			Price:          price,
			ReferencePrice: reference,
			SentAt:         primitive.NewDateTimeFromTime(now.Add(-firedAgo)),
			LastSeenAt:     primitive.NewDateTimeFromTime(now.Add(-seenAgo)),
		}
	}

	t.Run("due", func(t *testing.T) {
		e := entry(96*time.Hour, 1*time.Hour, 70, 100)
		assert.True(t, reminderDue(e, optedIn, delay, threshold, now))
	})

	t.Run("opted out", func(t *testing.T) {
		// Everything else holds, the flag alone suppresses.
		e := entry(96*time.Hour, 1*time.Hour, 70, 100)
		assert.False(t, reminderDue(e, model.User{}, delay, threshold, now))
	})

	t.Run("fired too recently", func(t *testing.T) {
		e := entry(48*time.Hour, 1*time.Hour, 70, 100)
		assert.False(t, reminderDue(e, optedIn, delay, threshold, now))
	})

	t.Run("not re-observed after delay", func(t *testing.T) {
		// Last seen an hour after the fire, nothing since.
		e := entry(96*time.Hour, 95*time.Hour, 70, 100)
		assert.False(t, reminderDue(e, optedIn, delay, threshold, now))
	})

	t.Run("discount too small", func(t *testing.T) {
		e := entry(96*time.Hour, 1*time.Hour, 85, 100)
		assert.False(t, reminderDue(e, optedIn, delay, threshold, now))
	})

	t.Run("discount exactly at threshold", func(t *testing.T) {
		e := entry(96*time.Hour, 1*time.Hour, 80, 100)
		assert.False(t, reminderDue(e, optedIn, delay, threshold, now))
	})

	t.Run("no reference price", func(t *testing.T) {
		e := entry(96*time.Hour, 1*time.Hour, 70, 0)
		assert.False(t, reminderDue(e, optedIn, delay, threshold, now))
	})
}
