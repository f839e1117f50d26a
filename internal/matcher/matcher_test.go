package matcher

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"scoutloot/internal/model"
)

type nopLogger struct{}

func (nopLogger) Debugf(format string, v ...any) {}
func (nopLogger) Warnf(format string, v ...any)  {}

func identityRate(ctx context.Context, from string, to string) (float64, error) {
	if from == to {
		return 1, nil
	}
	return 0, errors.Errorf("no rate from %s to %s", from, to)
}

func newWatch(userID primitive.ObjectID, cond model.Condition, target float64, min float64) model.Watch {
	return model.Watch{
		ID:          primitive.NewObjectID(),
		UserID:      userID,
		ItemType:    model.ItemTypeMinifig,
		ItemID:      "sw0001",
		TargetPrice: target,
		MinPrice:    min,
		Condition:   cond,
		Status:      model.WatchStatusActive,
	}
}

func newListing(cond model.Condition, price float64) model.ListingEvent {
	return model.ListingEvent{
		ItemType:     model.ItemTypeMinifig,
		ItemID:       "sw0001",
		Condition:    cond,
		TotalPrice:   price,
		CurrencyCode: "USD",
		SourceID:     "bricklink-123",
		ObservedAt:   time.Now(),
	}
}

func evaluatorAndOwner(t *testing.T) (Evaluator, model.User, map[primitive.ObjectID]model.User) {
	t.Helper()
	owner := model.User{ID: primitive.NewObjectID(), ShipToCountry: "US"}
	owners := map[primitive.ObjectID]model.User{owner.ID: owner}
	return Evaluator{Rate: identityRate, Logger: nopLogger{}}, owner, owners
}

func TestEvaluatePriceBoundary(t *testing.T) {
	e, owner, owners := evaluatorAndOwner(t)
	w := newWatch(owner.ID, model.ConditionNew, 25, 5)

	// Exactly at target fires.
	cs := e.Evaluate(context.Background(), newListing(model.ConditionNew, 25), []model.Watch{w}, owners)
	require.Len(t, cs, 1)
	assert.Equal(t, w.ID, cs[0].Watch.ID)
	assert.InDelta(t, 25, cs[0].NormalizedPrice, 0.001)
	assert.Equal(t, "USD", cs[0].CurrencyCode)
	assert.Equal(t, "$", cs[0].Symbol)

	// One cent above does not.
	cs = e.Evaluate(context.Background(), newListing(model.ConditionNew, 25.01), []model.Watch{w}, owners)
	assert.Empty(t, cs)
}

func TestEvaluateMinPriceFloor(t *testing.T) {
	e, owner, owners := evaluatorAndOwner(t)
	w := newWatch(owner.ID, model.ConditionNew, 25, 5)

	cs := e.Evaluate(context.Background(), newListing(model.ConditionNew, 4.99), []model.Watch{w}, owners)
	assert.Empty(t, cs, "below the floor is suspicious, no fire")

	cs = e.Evaluate(context.Background(), newListing(model.ConditionNew, 5), []model.Watch{w}, owners)
	assert.Len(t, cs, 1, "exactly at the floor fires")

	noFloor := newWatch(owner.ID, model.ConditionNew, 25, 0)
	cs = e.Evaluate(context.Background(), newListing(model.ConditionNew, 0.01), []model.Watch{noFloor}, owners)
	assert.Len(t, cs, 1, "zero min means no floor check")
}

func TestEvaluateConditionMatrix(t *testing.T) {
	e, owner, owners := evaluatorAndOwner(t)

	tests := []struct {
		watchCond   model.Condition
		listingCond model.Condition
		fires       bool
	}{
		{model.ConditionAny, model.ConditionNew, true},
		{model.ConditionAny, model.ConditionUsed, true},
		{model.ConditionNew, model.ConditionNew, true},
		{model.ConditionNew, model.ConditionUsed, false},
		{model.ConditionUsed, model.ConditionUsed, true},
		{model.ConditionUsed, model.ConditionNew, false},
	}
	for _, tt := range tests {
		w := newWatch(owner.ID, tt.watchCond, 25, 0)
		cs := e.Evaluate(context.Background(), newListing(tt.listingCond, 20), []model.Watch{w}, owners)
		if tt.fires {
			assert.Len(t, cs, 1, "watch %s listing %s", tt.watchCond, tt.listingCond)
		} else {
			assert.Empty(t, cs, "watch %s listing %s", tt.watchCond, tt.listingCond)
		}
	}
}

func TestEvaluateSkipsOnMissingRate(t *testing.T) {
	owner := model.User{ID: primitive.NewObjectID(), ShipToCountry: "GB"}
	owners := map[primitive.ObjectID]model.User{owner.ID: owner}
	e := Evaluator{Rate: identityRate, Logger: nopLogger{}}

	// USD listing, GBP owner, rate source has no answer: skip, never
	// fire on an unconverted comparison.
	w := newWatch(owner.ID, model.ConditionAny, 1000, 0)
	cs := e.Evaluate(context.Background(), newListing(model.ConditionNew, 1), []model.Watch{w}, owners)
	assert.Empty(t, cs)
}

func TestEvaluateConvertsIntoOwnerCurrency(t *testing.T) {
	owner := model.User{ID: primitive.NewObjectID(), ShipToCountry: "DE"}
	owners := map[primitive.ObjectID]model.User{owner.ID: owner}
	e := Evaluator{
		Rate: func(ctx context.Context, from, to string) (float64, error) {
			require.Equal(t, "USD", from)
			require.Equal(t, "EUR", to)
			return 0.9, nil
		},
		Logger: nopLogger{},
	}

	w := newWatch(owner.ID, model.ConditionNew, 23, 0)
	cs := e.Evaluate(context.Background(), newListing(model.ConditionNew, 25), []model.Watch{w}, owners)
	require.Len(t, cs, 1)
	assert.InDelta(t, 22.5, cs[0].NormalizedPrice, 0.001)
	assert.Equal(t, "EUR", cs[0].CurrencyCode)
	assert.Equal(t, "€", cs[0].Symbol)
}

func TestEvaluateDropsMalformedListing(t *testing.T) {
	e, owner, owners := evaluatorAndOwner(t)
	w := newWatch(owner.ID, model.ConditionAny, 25, 0)

	cs := e.Evaluate(context.Background(), newListing(model.ConditionNew, 0), []model.Watch{w}, owners)
	assert.Empty(t, cs)
	cs = e.Evaluate(context.Background(), newListing(model.ConditionNew, -3), []model.Watch{w}, owners)
	assert.Empty(t, cs)
}

func TestEvaluateIgnoresInactiveAndUnknownOwner(t *testing.T) {
	e, owner, owners := evaluatorAndOwner(t)

	paused := newWatch(owner.ID, model.ConditionAny, 25, 0)
	paused.Status = model.WatchStatusPaused
	orphan := newWatch(primitive.NewObjectID(), model.ConditionAny, 25, 0)

	cs := e.Evaluate(context.Background(), newListing(model.ConditionNew, 20), []model.Watch{paused, orphan}, owners)
	assert.Empty(t, cs)
}

// The worked scenario: user in the US watches minifig sw0001, new, target
// $25 with a $5 floor. A $24.99 new listing fires, a $20 used one does not.
func TestEvaluateScenario(t *testing.T) {
	e, owner, owners := evaluatorAndOwner(t)
	w := newWatch(owner.ID, model.ConditionNew, 25, 5)

	cs := e.Evaluate(context.Background(), newListing(model.ConditionNew, 24.99), []model.Watch{w}, owners)
	require.Len(t, cs, 1)

	cs = e.Evaluate(context.Background(), newListing(model.ConditionUsed, 20), []model.Watch{w}, owners)
	assert.Empty(t, cs)
}
