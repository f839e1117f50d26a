package model

import (
	"time"

	"github.com/pkg/errors"
)

// ListingEvent is a single marketplace observation produced by the
// external scraper. It is never persisted, only the notification
// history derived from it is.
type ListingEvent struct {
	ItemType       ItemType  `json:"item_type"`
	ItemID         string    `json:"item_id"`
	Condition      Condition `json:"condition"`
	TotalPrice     float64   `json:"total_price"`
	CurrencyCode   string    `json:"currency_code"`
	SourceID       string    `json:"source_id"`
	ObservedAt     time.Time `json:"observed_at"`
	ReferencePrice float64   `json:"reference_price,omitempty"`
}

func (e ListingEvent) Validate() error {
	if !e.ItemType.Valid() {
		return errors.Wrapf(ErrValidation, "invalid item type: %s", e.ItemType)
	}
	if e.ItemID == "" {
		return errors.Wrap(ErrValidation, "item id is empty")
	}
	if e.Condition != ConditionNew && e.Condition != ConditionUsed {
		return errors.Wrapf(ErrValidation, "invalid listing condition: %s", e.Condition)
	}
	if e.TotalPrice <= 0 {
		return errors.Wrapf(ErrValidation, "total price must be positive, got: %v", e.TotalPrice)
	}
	if len(e.CurrencyCode) != 3 {
		return errors.Wrapf(ErrValidation, "invalid currency code: %s", e.CurrencyCode)
	}
	if e.SourceID == "" {
		return errors.Wrap(ErrValidation, "source id is empty")
	}
	return nil
}
