package model

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func validWatch() Watch {
	return Watch{
		ItemType:    ItemTypeSet,
		ItemID:      "sw0001",
		TargetPrice: 25,
		MinPrice:    5,
		Condition:   ConditionAny,
	}
}

func TestWatchValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Watch)
		wantErr bool
	}{
		{"valid", func(w *Watch) {}, false},
		{"no min price", func(w *Watch) { w.MinPrice = 0 }, false},
		{"minifig item", func(w *Watch) { w.ItemType = ItemTypeMinifig }, false},
		{"min equals target", func(w *Watch) { w.MinPrice = w.TargetPrice }, false},
		{"invalid item type", func(w *Watch) { w.ItemType = "boat" }, true},
		{"empty item id", func(w *Watch) { w.ItemID = "" }, true},
		{"zero target price", func(w *Watch) { w.TargetPrice = 0 }, true},
		{"negative target price", func(w *Watch) { w.TargetPrice = -1 }, true},
		{"negative min price", func(w *Watch) { w.MinPrice = -0.01 }, true},
		{"min above target", func(w *Watch) { w.MinPrice = w.TargetPrice + 1 }, true},
		{"invalid condition", func(w *Watch) { w.Condition = "mint" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := validWatch()
			tt.mutate(&w)
			err := w.Validate()
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrValidation), "expected ErrValidation, got: %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWatchUpdateValidate(t *testing.T) {
	price := func(f float64) *float64 { return &f }
	cond := func(c Condition) *Condition { return &c }
	status := func(s WatchStatus) *WatchStatus { return &s }

	tests := []struct {
		name    string
		u       WatchUpdate
		wantErr bool
	}{
		{"empty update", WatchUpdate{}, true},
		{"target only", WatchUpdate{TargetPrice: price(30)}, false},
		{"zero target", WatchUpdate{TargetPrice: price(0)}, true},
		{"negative min", WatchUpdate{MinPrice: price(-1)}, true},
		{"min above target", WatchUpdate{TargetPrice: price(10), MinPrice: price(20)}, true},
		{"pause", WatchUpdate{Status: status(WatchStatusPaused)}, false},
		{"reactivate", WatchUpdate{Status: status(WatchStatusActive)}, false},
		{"delete through update", WatchUpdate{Status: status(WatchStatusDeleted)}, true},
		{"condition any", WatchUpdate{Condition: cond(ConditionAny)}, false},
		{"bad condition", WatchUpdate{Condition: cond("mint")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.u.Validate()
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrValidation), "expected ErrValidation, got: %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConditionMatches(t *testing.T) {
	assert.True(t, ConditionAny.Matches(ConditionNew))
	assert.True(t, ConditionAny.Matches(ConditionUsed))
	assert.True(t, ConditionNew.Matches(ConditionNew))
	assert.False(t, ConditionNew.Matches(ConditionUsed))
	assert.True(t, ConditionUsed.Matches(ConditionUsed))
	assert.False(t, ConditionUsed.Matches(ConditionNew))
}
