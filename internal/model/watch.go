package model

import (
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var ErrValidation = errors.New("validation error")

type ItemType string

const (
	ItemTypeSet     ItemType = "set"
	ItemTypeMinifig ItemType = "minifig"
)

func (t ItemType) Valid() bool {
	return t == ItemTypeSet || t == ItemTypeMinifig
}

type Condition string

const (
	ConditionNew  Condition = "new"
	ConditionUsed Condition = "used"
	ConditionAny  Condition = "any"
)

func (c Condition) Valid() bool {
	return c == ConditionNew || c == ConditionUsed || c == ConditionAny
}

// Matches reports whether a watch with condition c accepts a listing
// with condition lc. Listings only ever carry "new" or "used".
func (c Condition) Matches(lc Condition) bool {
	return c == ConditionAny || c == lc
}

type WatchStatus string

const (
	WatchStatusActive  WatchStatus = "active"
	WatchStatusPaused  WatchStatus = "paused"
	WatchStatusDeleted WatchStatus = "deleted"
)

type Watch struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID      primitive.ObjectID `bson:"user_id" json:"-"`
	ItemType    ItemType           `bson:"item_type" json:"item_type"`
	ItemID      string             `bson:"item_id" json:"item_id"`
	TargetPrice float64            `bson:"target_price" json:"target_price"`
	MinPrice    float64            `bson:"min_price" json:"min_price"`
	Condition   Condition          `bson:"condition" json:"condition"`
	Status      WatchStatus        `bson:"status" json:"status"`
	CreatedAt   primitive.DateTime `bson:"created_at" json:"-"`
	UpdatedAt   primitive.DateTime `bson:"updated_at" json:"-"`
}

func (w Watch) Validate() error {
	if !w.ItemType.Valid() {
		return errors.Wrapf(ErrValidation, "invalid item type: %s", w.ItemType)
	}
	if w.ItemID == "" {
		return errors.Wrap(ErrValidation, "item id is empty")
	}
	if w.TargetPrice <= 0 {
		return errors.Wrapf(ErrValidation, "target price must be positive, got: %v", w.TargetPrice)
	}
	if w.MinPrice < 0 {
		return errors.Wrapf(ErrValidation, "min price must not be negative, got: %v", w.MinPrice)
	}
	if w.MinPrice > w.TargetPrice {
		return errors.Wrapf(ErrValidation, "min price (%v) exceeds target price (%v)", w.MinPrice, w.TargetPrice)
	}
	if !w.Condition.Valid() {
		return errors.Wrapf(ErrValidation, "invalid condition: %s", w.Condition)
	}
	return nil
}

// WatchUpdate carries a partial update, nil fields are left unchanged.
type WatchUpdate struct {
	TargetPrice *float64     `json:"target_price"`
	MinPrice    *float64     `json:"min_price"`
	Condition   *Condition   `json:"condition"`
	Status      *WatchStatus `json:"status"`
}

func (u WatchUpdate) Validate() error {
	if u.TargetPrice == nil && u.MinPrice == nil && u.Condition == nil && u.Status == nil {
		return errors.Wrap(ErrValidation, "no fields to update")
	}
	if u.TargetPrice != nil && *u.TargetPrice <= 0 {
		return errors.Wrapf(ErrValidation, "target price must be positive, got: %v", *u.TargetPrice)
	}
	if u.MinPrice != nil && *u.MinPrice < 0 {
		return errors.Wrapf(ErrValidation, "min price must not be negative, got: %v", *u.MinPrice)
	}
	if u.TargetPrice != nil && u.MinPrice != nil && *u.MinPrice > *u.TargetPrice {
		return errors.Wrapf(ErrValidation, "min price (%v) exceeds target price (%v)", *u.MinPrice, *u.TargetPrice)
	}
	if u.Condition != nil && !u.Condition.Valid() {
		return errors.Wrapf(ErrValidation, "invalid condition: %s", *u.Condition)
	}
	if u.Status != nil && *u.Status != WatchStatusActive && *u.Status != WatchStatusPaused {
		return errors.Wrapf(ErrValidation, "invalid status: %s", *u.Status)
	}
	return nil
}
