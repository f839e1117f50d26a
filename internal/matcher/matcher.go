package matcher

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"scoutloot/internal/currency"
	"scoutloot/internal/model"
)

// RateFunc converts between currencies. The production implementation
// is client.Client.Rate, tests substitute a fixed table.
type RateFunc func(ctx context.Context, from string, to string) (float64, error)

type logger interface {
	Debugf(format string, v ...any)
	Warnf(format string, v ...any)
}

// Candidate is one watch that a listing fired, with the listing price
// normalized into the watch owner's display currency.
type Candidate struct {
	Watch           model.Watch
	Owner           model.User
	NormalizedPrice float64
	CurrencyCode    string
	Symbol          string
	Reason          string
}

type Evaluator struct {
	Rate   RateFunc
	Logger logger
}

// Evaluate decides which of the active watches for a listing's item
// fire. Watches whose owner is missing from owners or whose display
// currency cannot be converted to are skipped with a log line, never
// fired on an unconverted comparison. Non-matches are silently
// excluded. No ordering is guaranteed.
func (e Evaluator) Evaluate(
	ctx context.Context,
	listing model.ListingEvent,
	watches []model.Watch,
	owners map[primitive.ObjectID]model.User,
) []Candidate {
	if listing.TotalPrice <= 0 {
		e.Logger.Warnf("Evaluate: Dropping listing with non-positive price: %+v", listing)
		return nil
	}

	var candidates []Candidate
	for _, w := range watches {
		if w.Status != model.WatchStatusActive {
			continue
		}
		owner, ok := owners[w.UserID]
		if !ok {
			e.Logger.Warnf("Evaluate: Skipping WatchID: %s, owner UserID: %s not loaded", w.ID.Hex(), w.UserID.Hex())
			continue
		}

		code, symbol := currency.Resolve(owner.ShipToCountry)
		rate, err := e.Rate(ctx, listing.CurrencyCode, code)
		if err != nil {
			e.Logger.Warnf("Evaluate: Skipping WatchID: %s, no rate from %s to %s, err: %v",
				w.ID.Hex(), listing.CurrencyCode, code, err)
			continue
		}
		normalized := listing.TotalPrice * rate

		if !w.Condition.Matches(listing.Condition) {
			continue
		}
		if !priceMatches(normalized, w.TargetPrice, w.MinPrice) {
			continue
		}

		e.Logger.Debugf("Evaluate: WatchID: %s fired on item: %s %s, normalized price: %.2f %s",
			w.ID.Hex(), listing.ItemType, listing.ItemID, normalized, code)
		candidates = append(candidates, Candidate{
			Watch:           w,
			Owner:           owner,
			NormalizedPrice: normalized,
			CurrencyCode:    code,
			Symbol:          symbol,
			Reason:          "price at or below target",
		})
	}
	return candidates
}

// priceMatches is boundary inclusive on the target and, when a floor
// is set, on the floor: a listing exactly at the target fires, a
// listing below a non-zero min is treated as suspicious and excluded.
func priceMatches(normalized float64, target float64, min float64) bool {
	if normalized > target {
		return false
	}
	if min > 0 && normalized < min {
		return false
	}
	return true
}
