package server

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"scoutloot/internal/database"
	"scoutloot/internal/model"
)

func (s Server) watchAdd() http.HandlerFunc {
	type request struct {
		ItemType    model.ItemType  `json:"item_type"`
		ItemID      string          `json:"item_id"`
		TargetPrice float64         `json:"target_price"`
		MinPrice    float64         `json:"min_price"`
		Condition   model.Condition `json:"condition"`
	}
	type response struct {
		WatchID string `json:"watch_id"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		uc, err := getUserContext(r.Context())
		if err != nil {
			s.Logger.Errorf("watchAdd: Error getting userContext, err: %v", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		req := request{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.Logger.Debugf("watchAdd: Error decoding JSON, err: %v", err)
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}

		watch := model.Watch{
			UserID:      uc.user.ID,
			ItemType:    req.ItemType,
			ItemID:      req.ItemID,
			TargetPrice: req.TargetPrice,
			MinPrice:    req.MinPrice,
			Condition:   req.Condition,
		}
		id, err := s.DB.WatchInsert(r.Context(), watch)
		if err != nil {
			if errors.Is(err, model.ErrValidation) {
				s.Logger.Debugf("watchAdd: Invalid Watch for UserID: %s, err: %v", uc.user.ID.Hex(), err)
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			s.Logger.Errorf("watchAdd: Error inserting Watch, err: %v", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		s.writeJsonResponse(w, response{WatchID: id}, http.StatusCreated)
	}
}

func (s Server) watchUpdate() http.HandlerFunc {
	type request struct {
		WatchID string `json:"watch_id"`
		model.WatchUpdate
	}
	type response struct {
		Watch model.Watch `json:"watch"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		uc, err := getUserContext(r.Context())
		if err != nil {
			s.Logger.Errorf("watchUpdate: Error getting userContext, err: %v", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		req := request{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.Logger.Debugf("watchUpdate: Error decoding JSON, err: %v", err)
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}

		if !s.watchOwnedBy(r, req.WatchID, uc.user.ID) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}

		watch, err := s.DB.WatchUpdate(r.Context(), req.WatchID, req.WatchUpdate)
		if err != nil {
			if errors.Is(err, model.ErrValidation) {
				s.Logger.Debugf("watchUpdate: Invalid update for WatchID: %s, err: %v", req.WatchID, err)
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if errors.Is(err, database.ErrNotFound) {
				s.Logger.Debugf("watchUpdate: Watch not found, WatchID: %s, err: %v", req.WatchID, err)
				http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
				return
			}
			s.Logger.Errorf("watchUpdate: Error updating Watch, err: %v", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		s.writeJsonResponse(w, response{Watch: watch}, http.StatusOK)
	}
}

func (s Server) watchRemove() http.HandlerFunc {
	type request struct {
		WatchID string `json:"watch_id"`
	}
	type response struct {
		Success bool `json:"success"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		uc, err := getUserContext(r.Context())
		if err != nil {
			s.Logger.Errorf("watchRemove: Error getting userContext, err: %v", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		req := request{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.Logger.Debugf("watchRemove: Error decoding JSON, err: %v", err)
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}

		if !s.watchOwnedBy(r, req.WatchID, uc.user.ID) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}

		if err := s.DB.WatchSoftDelete(r.Context(), req.WatchID); err != nil {
			if errors.Is(err, database.ErrNotFound) {
				s.Logger.Debugf("watchRemove: Watch not found, WatchID: %s, err: %v", req.WatchID, err)
				http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
				return
			}
			s.Logger.Errorf("watchRemove: Error soft deleting Watch, err: %v", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		s.writeJsonResponse(w, response{Success: true}, http.StatusOK)
	}
}

func (s Server) watchBulkCondition() http.HandlerFunc {
	type request struct {
		Condition model.Condition `json:"condition"`
	}
	type response struct {
		Success bool  `json:"success"`
		Updated int64 `json:"updated"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		uc, err := getUserContext(r.Context())
		if err != nil {
			s.Logger.Errorf("watchBulkCondition: Error getting userContext, err: %v", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		req := request{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.Logger.Debugf("watchBulkCondition: Error decoding JSON, err: %v", err)
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}

		count, err := s.DB.WatchBulkSetCondition(r.Context(), uc.user.ID.Hex(), req.Condition)
		if err != nil {
			if errors.Is(err, model.ErrValidation) {
				s.Logger.Debugf("watchBulkCondition: Invalid condition: %s, err: %v", req.Condition, err)
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			s.Logger.Errorf("watchBulkCondition: Error bulk setting condition, err: %v", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		// A user with no active watches gets updated: 0, not an error.
		s.writeJsonResponse(w, response{Success: true, Updated: count}, http.StatusOK)
	}
}

func (s Server) watchList() http.HandlerFunc {
	type response struct {
		Watches []model.Watch `json:"watches"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		uc, err := getUserContext(r.Context())
		if err != nil {
			s.Logger.Errorf("watchList: Error getting userContext, err: %v", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		ws, err := s.DB.WatchesFindByUser(r.Context(), uc.user.ID.Hex())
		if err != nil {
			s.Logger.Errorf("watchList: Error finding Watches for UserID: %s, err: %v", uc.user.ID.Hex(), err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		if ws == nil {
			ws = []model.Watch{}
		}
		s.writeJsonResponse(w, response{Watches: ws}, http.StatusOK)
	}
}

// watchOwnedBy hides other users' watches behind the same 404 an
// unknown id gets.
func (s Server) watchOwnedBy(r *http.Request, watchID string, userID primitive.ObjectID) bool {
	watch, err := s.DB.WatchFindOne(r.Context(), watchID)
	if err != nil {
		s.Logger.Debugf("watchOwnedBy: Error finding Watch with ID: %s, err: %v", watchID, err)
		return false
	}
	if watch.UserID != userID {
		s.Logger.Debugf("watchOwnedBy: WatchID: %s not owned by UserID: %s", watchID, userID.Hex())
		return false
	}
	return true
}
