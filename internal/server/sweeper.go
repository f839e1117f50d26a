package server

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"scoutloot/internal/database"
	"scoutloot/internal/model"
)

// reminderDue holds the per-entry gate for a still-available reminder:
// the owner must have opted in, the fire must be old enough, the
// listing must have been re-observed after the delay elapsed, and the
// fired price must undercut the reference by more than threshold.
func reminderDue(e model.NotificationHistoryEntry, owner model.User, delay time.Duration, threshold float64, now time.Time) bool {
	if !owner.StillAvailableReminders {
		return false
	}
	firedAt := e.SentAt.Time()
	if now.Sub(firedAt) < delay {
		return false
	}
	if e.LastSeenAt.Time().Before(firedAt.Add(delay)) {
		return false
	}
	return discountExceeds(e.Price, e.ReferencePrice, threshold)
}

// StillAvailableSweep sends one reminder per fire that is still listed
// after the reminder delay at a steep discount, for users who opted in.
// Runs from cron, a run that errors midway just leaves entries for the
// next run.
func (s Server) StillAvailableSweep(ctx context.Context) {
	now := time.Now()
	entries, err := s.DB.NotificationHistoryFindReminderCandidates(ctx, now.Add(-s.PruneRetention), now.Add(-s.ReminderDelay))
	if err != nil {
		s.Logger.Errorf("StillAvailableSweep: Error finding reminder candidates, err: %v", err)
		return
	}

	users := map[primitive.ObjectID]model.User{}
	sent := 0
	for _, e := range entries {
		u, ok := users[e.UserID]
		if !ok {
			u, err = s.DB.UserFindByID(ctx, e.UserID.Hex())
			if err != nil {
				if !errors.Is(err, database.ErrNotFound) {
					s.Logger.Errorf("StillAvailableSweep: Error finding UserID: %s, err: %v", e.UserID.Hex(), err)
				}
				continue
			}
			users[e.UserID] = u
		}
		if !reminderDue(e, u, s.ReminderDelay, s.ReminderDiscountThreshold, now) {
			continue
		}

		w, err := s.DB.WatchFindOne(ctx, e.WatchID.Hex())
		if err != nil || w.Status != model.WatchStatusActive {
			continue
		}

		exists, err := s.DB.NotificationHistoryReminderExists(ctx, e.WatchID, e.SentAt.Time())
		if err != nil {
			s.Logger.Errorf("StillAvailableSweep: Error checking existing reminder for WatchID: %s, err: %v", e.WatchID.Hex(), err)
			continue
		}
		if exists {
			continue
		}

		reminder := model.NotificationHistoryEntry{
			UserID:       e.UserID,
			WatchID:      e.WatchID,
			Kind:         model.NotificationKindStillAvailable,
			ItemType:     e.ItemType,
			ItemID:       e.ItemID,
			Condition:    e.Condition,
			Price:        e.Price,
			CurrencyCode: e.CurrencyCode,
			SourceID:     e.SourceID,
			SentAt:       primitive.NewDateTimeFromTime(now),
		}
		if err := s.DB.NotificationHistoryInsert(ctx, reminder); err != nil {
			s.Logger.Errorf("StillAvailableSweep: Error inserting reminder history for WatchID: %s, not sending, err: %v",
				e.WatchID.Hex(), err)
			continue
		}
		sent++

		intent := model.NotificationIntent{
			UserID: e.UserID.Hex(),
			Kind:   model.NotificationKindStillAvailable,
			Payload: model.StillAvailablePayload{
				WatchID:      e.WatchID.Hex(),
				ItemType:     e.ItemType,
				ItemID:       e.ItemID,
				Condition:    e.Condition,
				Price:        e.Price,
				CurrencyCode: e.CurrencyCode,
				FiredAt:      e.SentAt.Time().Format(time.RFC3339),
				SourceID:     e.SourceID,
			},
		}
		if _, err := s.Client.TransportSendIntent(intent); err != nil {
			s.Logger.Errorf("StillAvailableSweep: Error sending reminder intent for WatchID: %s, err: %v", e.WatchID.Hex(), err)
		}
	}
	s.Logger.Infof("StillAvailableSweep: Checked %d candidates, sent %d reminders", len(entries), sent)
}

// DigestSweep emits the weekly digest for every opted-in user covering
// the past 7 days of fires. Users with no fires get nothing.
func (s Server) DigestSweep(ctx context.Context) {
	now := time.Now()
	start := now.AddDate(0, 0, -7)

	users, err := s.DB.UsersFindDigestEnabled(ctx)
	if err != nil {
		s.Logger.Errorf("DigestSweep: Error finding digest-enabled Users, err: %v", err)
		return
	}

	sent := 0
	for _, u := range users {
		fires, err := s.DB.NotificationHistoryFindFiresByUser(ctx, u.ID, start, now)
		if err != nil {
			s.Logger.Errorf("DigestSweep: Error finding fires for UserID: %s, err: %v", u.ID.Hex(), err)
			continue
		}
		if len(fires) == 0 {
			continue
		}

		summaries := make([]model.FireSummary, 0, len(fires))
		for _, f := range fires {
			summaries = append(summaries, model.FireSummary{
				ItemType:     f.ItemType,
				ItemID:       f.ItemID,
				Condition:    f.Condition,
				Price:        f.Price,
				CurrencyCode: f.CurrencyCode,
				SourceID:     f.SourceID,
				FiredAt:      f.SentAt.Time().Format(time.RFC3339),
			})
		}

		entry := model.NotificationHistoryEntry{
			UserID: u.ID,
			Kind:   model.NotificationKindDigest,
			SentAt: primitive.NewDateTimeFromTime(now),
		}
		if err := s.DB.NotificationHistoryInsert(ctx, entry); err != nil {
			s.Logger.Errorf("DigestSweep: Error inserting digest history for UserID: %s, not sending, err: %v", u.ID.Hex(), err)
			continue
		}
		sent++

		intent := model.NotificationIntent{
			UserID: u.ID.Hex(),
			Kind:   model.NotificationKindDigest,
			Payload: model.DigestPayload{
				WeekStart: start.Format(time.RFC3339),
				WeekEnd:   now.Format(time.RFC3339),
				Fires:     summaries,
			},
		}
		if _, err := s.Client.TransportSendIntent(intent); err != nil {
			s.Logger.Errorf("DigestSweep: Error sending digest intent for UserID: %s, err: %v", u.ID.Hex(), err)
		}
	}
	s.Logger.Infof("DigestSweep: Sent %d digests to %d digest-enabled users", sent, len(users))
}

// PruneSweep drops notification history past retention.
func (s Server) PruneSweep(ctx context.Context) {
	n, err := s.DB.NotificationHistoryPrune(ctx, time.Now().Add(-s.PruneRetention))
	if err != nil {
		s.Logger.Errorf("PruneSweep: Error pruning notification history, err: %v", err)
		return
	}
	s.Logger.Infof("PruneSweep: Pruned %d notification history entries", n)
}
