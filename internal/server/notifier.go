package server

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"scoutloot/internal/client"
	"scoutloot/internal/matcher"
	"scoutloot/internal/misc"
	"scoutloot/internal/model"
)

// fireStore is the slice of the database the fire pipeline touches.
type fireStore interface {
	FireDedupClaim(ctx context.Context, watchID primitive.ObjectID, fingerprint string) (bool, error)
	NotificationHistoryInsert(ctx context.Context, e model.NotificationHistoryEntry) error
	NotificationHistoryMarkSeen(ctx context.Context, watchID primitive.ObjectID, fingerprint string, seenAt time.Time) error
}

type intentSender interface {
	TransportSendIntent(intent model.NotificationIntent) (client.TransportSendResponse, error)
}

// fireFingerprint identifies a fire for suppression purposes. The price
// goes in rounded to whole currency units so cent-level jitter on an
// otherwise identical listing does not re-alert within the window.
func fireFingerprint(watchID primitive.ObjectID, listing model.ListingEvent, price float64) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s|%s|%s|%d",
		watchID.Hex(), listing.ItemType, listing.ItemID, listing.Condition, listing.SourceID, misc.RoundUnit(price))))
	return hex.EncodeToString(h[:])
}

// notifyFires runs the fire pipeline for each candidate: claim the
// fingerprint, record history, then hand the intent to the transport.
// The history insert gates the send. A candidate that cannot be
// recorded is not sent, so the transport can never deliver an alert
// the suppression window does not know about; such candidates count as
// failed and the caller signals the producer to retry. A retry is safe:
// surviving claims suppress the re-send. A transport error after a
// successful record is only logged, the claim stands either way.
func (s Server) notifyFires(
	ctx context.Context, store fireStore, sender intentSender,
	listing model.ListingEvent, candidates []matcher.Candidate,
) (fired int, suppressed int, failed int) {
	now := time.Now()
	for _, c := range candidates {
		fp := fireFingerprint(c.Watch.ID, listing, c.NormalizedPrice)

		claimed, err := store.FireDedupClaim(ctx, c.Watch.ID, fp)
		if err != nil {
			s.Logger.Errorf("notifyFires: Error claiming fingerprint for WatchID: %s, err: %v", c.Watch.ID.Hex(), err)
			failed++
			continue
		}
		if !claimed {
			suppressed++
			// A suppressed duplicate still proves the listing is live.
			if err := store.NotificationHistoryMarkSeen(ctx, c.Watch.ID, fp, now); err != nil {
				s.Logger.Errorf("notifyFires: Error marking fire seen for WatchID: %s, err: %v", c.Watch.ID.Hex(), err)
			}
			continue
		}

		entry := model.NotificationHistoryEntry{
			UserID:         c.Owner.ID,
			WatchID:        c.Watch.ID,
			Kind:           model.NotificationKindFire,
			Fingerprint:    fp,
			ItemType:       listing.ItemType,
			ItemID:         listing.ItemID,
			Condition:      listing.Condition,
			Price:          c.NormalizedPrice,
			CurrencyCode:   c.CurrencyCode,
			ReferencePrice: listing.ReferencePrice,
			SourceID:       listing.SourceID,
			SentAt:         primitive.NewDateTimeFromTime(now),
			LastSeenAt:     primitive.NewDateTimeFromTime(now),
		}
		if err := store.NotificationHistoryInsert(ctx, entry); err != nil {
			s.Logger.Errorf("notifyFires: Error inserting history for WatchID: %s, not sending, err: %v", c.Watch.ID.Hex(), err)
			failed++
			continue
		}
		fired++

		intent := model.NotificationIntent{
			UserID: c.Owner.ID.Hex(),
			Kind:   model.NotificationKindFire,
			Payload: model.FirePayload{
				WatchID:      c.Watch.ID.Hex(),
				ItemType:     listing.ItemType,
				ItemID:       listing.ItemID,
				Condition:    listing.Condition,
				Price:        c.NormalizedPrice,
				CurrencyCode: c.CurrencyCode,
				Symbol:       c.Symbol,
				TargetPrice:  c.Watch.TargetPrice,
				SourceID:     listing.SourceID,
			},
		}
		if _, err := sender.TransportSendIntent(intent); err != nil {
			s.Logger.Errorf("notifyFires: Error sending fire intent for WatchID: %s, err: %v", c.Watch.ID.Hex(), err)
		}
	}
	return fired, suppressed, failed
}

// discountExceeds reports whether price is discounted from reference by
// strictly more than threshold. A zero or unknown reference never
// qualifies.
func discountExceeds(price float64, reference float64, threshold float64) bool {
	if reference <= 0 {
		return false
	}
	return (reference-price)/reference > threshold
}
