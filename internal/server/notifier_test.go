package server

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"scoutloot/internal/client"
	"scoutloot/internal/matcher"
	"scoutloot/internal/model"
)

type nopServerLogger struct{}

func (nopServerLogger) Trace(v ...any)                 {}
func (nopServerLogger) Debug(v ...any)                 {}
func (nopServerLogger) Info(v ...any)                  {}
func (nopServerLogger) Warn(v ...any)                  {}
func (nopServerLogger) Error(v ...any)                 {}
func (nopServerLogger) Tracef(format string, v ...any) {}
func (nopServerLogger) Debugf(format string, v ...any) {}
func (nopServerLogger) Infof(format string, v ...any)  {}
func (nopServerLogger) Warnf(format string, v ...any)  {}
func (nopServerLogger) Errorf(format string, v ...any) {}

type stubFireStore struct {
	claimErr  error
	insertErr error

	claims   map[string]bool
	inserted []model.NotificationHistoryEntry
	seen     []string
}

func newStubFireStore() *stubFireStore {
	return &stubFireStore{claims: map[string]bool{}}
}

func (st *stubFireStore) FireDedupClaim(ctx context.Context, watchID primitive.ObjectID, fingerprint string) (bool, error) {
	if st.claimErr != nil {
		return false, st.claimErr
	}
	if st.claims[fingerprint] {
		return false, nil
	}
	st.claims[fingerprint] = true
	return true, nil
}

func (st *stubFireStore) NotificationHistoryInsert(ctx context.Context, e model.NotificationHistoryEntry) error {
	if st.insertErr != nil {
		return st.insertErr
	}
	st.inserted = append(st.inserted, e)
	return nil
}

func (st *stubFireStore) NotificationHistoryMarkSeen(ctx context.Context, watchID primitive.ObjectID, fingerprint string, seenAt time.Time) error {
	st.seen = append(st.seen, fingerprint)
	return nil
}

type stubIntentSender struct {
	sent []model.NotificationIntent
}

func (st *stubIntentSender) TransportSendIntent(intent model.NotificationIntent) (client.TransportSendResponse, error) {
	st.sent = append(st.sent, intent)
	return client.TransportSendResponse{Accepted: true}, nil
}

func fireCandidate() (model.ListingEvent, matcher.Candidate) {
	listing := model.ListingEvent{
		ItemType:     model.ItemTypeSet,
		ItemID:       "75192",
		Condition:    model.ConditionNew,
		TotalPrice:   24.99,
		CurrencyCode: "USD",
		SourceID:     "bricklink",
		ObservedAt:   time.Now(),
	}
	c := matcher.Candidate{
		Watch: model.Watch{
			ID:          primitive.NewObjectID(),
			UserID:      primitive.NewObjectID(),
			ItemType:    listing.ItemType,
			ItemID:      listing.ItemID,
			TargetPrice: 25,
			Condition:   model.ConditionNew,
			Status:      model.WatchStatusActive,
		},
		Owner:           model.User{ID: primitive.NewObjectID()},
		NormalizedPrice: 24.99,
		CurrencyCode:    "USD",
		Symbol:          "$",
	}
	return listing, c
}

func TestNotifyFiresSuppressesDuplicate(t *testing.T) {
	s := Server{Logger: nopServerLogger{}}
	store := newStubFireStore()
	sender := &stubIntentSender{}
	listing, c := fireCandidate()

	fired, suppressed, failed := s.notifyFires(context.Background(), store, sender, listing, []matcher.Candidate{c})
	assert.Equal(t, 1, fired)
	assert.Equal(t, 0, suppressed)
	assert.Equal(t, 0, failed)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, model.NotificationKindFire, sender.sent[0].Kind)
	require.Len(t, store.inserted, 1)
	assert.Equal(t, c.Watch.ID, store.inserted[0].WatchID)

	// The identical listing again: exactly one intent total, and the
	// duplicate advances last_seen_at on the recorded fire.
	fired, suppressed, failed = s.notifyFires(context.Background(), store, sender, listing, []matcher.Candidate{c})
	assert.Equal(t, 0, fired)
	assert.Equal(t, 1, suppressed)
	assert.Equal(t, 0, failed)
	assert.Len(t, sender.sent, 1)
	assert.Len(t, store.inserted, 1)
	require.Len(t, store.seen, 1)
	assert.Equal(t, store.inserted[0].Fingerprint, store.seen[0])
}

func TestNotifyFiresFailsClosedOnClaimError(t *testing.T) {
	s := Server{Logger: nopServerLogger{}}
	store := newStubFireStore()
	store.claimErr = errors.New("connection reset")
	sender := &stubIntentSender{}
	listing, c := fireCandidate()

	fired, suppressed, failed := s.notifyFires(context.Background(), store, sender, listing, []matcher.Candidate{c})
	assert.Equal(t, 0, fired)
	assert.Equal(t, 0, suppressed)
	assert.Equal(t, 1, failed)
	assert.Empty(t, sender.sent, "no intent may go out without a recorded claim")
	assert.Empty(t, store.inserted)
}

func TestNotifyFiresFailsClosedOnHistoryError(t *testing.T) {
	s := Server{Logger: nopServerLogger{}}
	store := newStubFireStore()
	store.insertErr = errors.New("server selection timeout")
	sender := &stubIntentSender{}
	listing, c := fireCandidate()

	fired, suppressed, failed := s.notifyFires(context.Background(), store, sender, listing, []matcher.Candidate{c})
	assert.Equal(t, 0, fired)
	assert.Equal(t, 0, suppressed)
	assert.Equal(t, 1, failed)
	assert.Empty(t, sender.sent, "no intent may go out without a history record")
}

func TestFireFingerprint(t *testing.T) {
	watchID := primitive.NewObjectID()
	listing := model.ListingEvent{
		ItemType:  model.ItemTypeSet,
		ItemID:    "75192",
		Condition: model.ConditionNew,
		SourceID:  "bricklink",
	}

	base := fireFingerprint(watchID, listing, 24.99)

	t.Run("stable under cent jitter", func(t *testing.T) {
		assert.Equal(t, base, fireFingerprint(watchID, listing, 25.01))
		assert.Equal(t, base, fireFingerprint(watchID, listing, 24.50))
	})

	t.Run("changes on whole unit move", func(t *testing.T) {
		assert.NotEqual(t, base, fireFingerprint(watchID, listing, 23.99))
	})

	t.Run("changes per watch", func(t *testing.T) {
		assert.NotEqual(t, base, fireFingerprint(primitive.NewObjectID(), listing, 24.99))
	})

	t.Run("changes per source", func(t *testing.T) {
		other := listing
		other.SourceID = "brickowl"
		assert.NotEqual(t, base, fireFingerprint(watchID, other, 24.99))
	})

	t.Run("changes per condition", func(t *testing.T) {
		other := listing
		other.Condition = model.ConditionUsed
		assert.NotEqual(t, base, fireFingerprint(watchID, other, 24.99))
	})
}

func TestDiscountExceeds(t *testing.T) {
	assert.True(t, discountExceeds(79, 100, 0.20), "21% off")
	assert.False(t, discountExceeds(80, 100, 0.20), "exactly 20% off is not enough")
	assert.False(t, discountExceeds(95, 100, 0.20))
	assert.False(t, discountExceeds(79, 0, 0.20), "no reference price")
	assert.False(t, discountExceeds(79, -1, 0.20))
}
