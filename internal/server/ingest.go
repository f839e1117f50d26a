package server

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"scoutloot/internal/model"
)

func (s Server) ingestListing() http.HandlerFunc {
	type response struct {
		Candidates int `json:"candidates"`
		Fired      int `json:"fired"`
		Suppressed int `json:"suppressed"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		listing := model.ListingEvent{}
		if err := json.NewDecoder(r.Body).Decode(&listing); err != nil {
			s.Logger.Debugf("ingestListing: Error decoding JSON, err: %v", err)
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		if err := listing.Validate(); err != nil {
			if errors.Is(err, model.ErrValidation) {
				// Malformed events are dropped, collectors are not
				// trusted to always send clean data.
				s.Logger.Warnf("ingestListing: Dropping malformed listing: %+v, err: %v", listing, err)
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			s.Logger.Errorf("ingestListing: Error validating listing, err: %v", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		watches, err := s.DB.WatchesFindActiveByItem(r.Context(), listing.ItemType, listing.ItemID)
		if err != nil {
			s.Logger.Errorf("ingestListing: Error finding Watches for item: %s %s, err: %v",
				listing.ItemType, listing.ItemID, err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		if len(watches) == 0 {
			s.writeJsonResponse(w, response{}, http.StatusOK)
			return
		}

		ownerIDs := make([]primitive.ObjectID, 0, len(watches))
		seen := map[primitive.ObjectID]bool{}
		for _, wt := range watches {
			if !seen[wt.UserID] {
				seen[wt.UserID] = true
				ownerIDs = append(ownerIDs, wt.UserID)
			}
		}
		users, err := s.DB.UsersFindByIDs(r.Context(), ownerIDs)
		if err != nil {
			s.Logger.Errorf("ingestListing: Error finding Users for Watches, err: %v", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		owners := make(map[primitive.ObjectID]model.User, len(users))
		for _, u := range users {
			owners[u.ID] = u
		}

		candidates := s.Evaluator.Evaluate(r.Context(), listing, watches, owners)
		fired, suppressed, failed := s.notifyFires(r.Context(), s.DB, s.Client, listing, candidates)
		if failed > 0 {
			// Fail closed and tell the producer to resend: claims that
			// did stick suppress the re-send, so a retry cannot storm.
			s.Logger.Errorf("ingestListing: %d of %d candidates hit a store failure for item: %s %s, requesting retry",
				failed, len(candidates), listing.ItemType, listing.ItemID)
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
			return
		}
		s.Logger.Infof("ingestListing: Listing for item: %s %s evaluated %d watches, candidates: %d, fired: %d, suppressed: %d",
			listing.ItemType, listing.ItemID, len(watches), len(candidates), fired, suppressed)
		s.writeJsonResponse(w, response{
			Candidates: len(candidates),
			Fired:      fired,
			Suppressed: suppressed,
		}, http.StatusOK)
	}
}
