package model

import "go.mongodb.org/mongo-driver/bson/primitive"

type NotificationKind string

const (
	NotificationKindFire           NotificationKind = "fire"
	NotificationKindStillAvailable NotificationKind = "still_available"
	NotificationKindDigest         NotificationKind = "digest"
	NotificationKindPasswordReset  NotificationKind = "password_reset"
)

// NotificationHistoryEntry records an emitted notification intent.
// Entries are append-only except for last_seen_at on fire entries,
// which is advanced when the same listing fingerprint is re-observed
// within the suppression window.
type NotificationHistoryEntry struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	UserID         primitive.ObjectID `bson:"user_id"`
	WatchID        primitive.ObjectID `bson:"watch_id,omitempty"`
	Kind           NotificationKind   `bson:"kind"`
	Fingerprint    string             `bson:"fingerprint,omitempty"`
	ItemType       ItemType           `bson:"item_type,omitempty"`
	ItemID         string             `bson:"item_id,omitempty"`
	Condition      Condition          `bson:"condition,omitempty"`
	Price          float64            `bson:"price,omitempty"`
	CurrencyCode   string             `bson:"currency_code,omitempty"`
	ReferencePrice float64            `bson:"reference_price,omitempty"`
	SourceID       string             `bson:"source_id,omitempty"`
	SentAt         primitive.DateTime `bson:"sent_at"`
	LastSeenAt     primitive.DateTime `bson:"last_seen_at,omitempty"`
}

// NotificationIntent is the outbound shape pushed to the external
// transport gateway. Delivery is the gateway's concern, intents are
// fire-and-forget from this side.
type NotificationIntent struct {
	UserID  string           `json:"user_id"`
	Kind    NotificationKind `json:"kind"`
	Payload any              `json:"payload"`
}

type FirePayload struct {
	WatchID      string    `json:"watch_id"`
	ItemType     ItemType  `json:"item_type"`
	ItemID       string    `json:"item_id"`
	Condition    Condition `json:"condition"`
	Price        float64   `json:"price"`
	CurrencyCode string    `json:"currency_code"`
	Symbol       string    `json:"symbol"`
	TargetPrice  float64   `json:"target_price"`
	SourceID     string    `json:"source_id"`
}

type StillAvailablePayload struct {
	WatchID      string    `json:"watch_id"`
	ItemType     ItemType  `json:"item_type"`
	ItemID       string    `json:"item_id"`
	Condition    Condition `json:"condition"`
	Price        float64   `json:"price"`
	CurrencyCode string    `json:"currency_code"`
	FiredAt      string    `json:"fired_at"`
	SourceID     string    `json:"source_id"`
}

type DigestPayload struct {
	WeekStart string        `json:"week_start"`
	WeekEnd   string        `json:"week_end"`
	Fires     []FireSummary `json:"fires"`
}

type FireSummary struct {
	ItemType     ItemType  `json:"item_type"`
	ItemID       string    `json:"item_id"`
	Condition    Condition `json:"condition"`
	Price        float64   `json:"price"`
	CurrencyCode string    `json:"currency_code"`
	SourceID     string    `json:"source_id"`
	FiredAt      string    `json:"fired_at"`
}
