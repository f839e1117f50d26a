package model

import "go.mongodb.org/mongo-driver/bson/primitive"

type User struct {
	ID                      primitive.ObjectID `bson:"_id,omitempty"`
	Name                    string             `bson:"name"`
	Email                   string             `bson:"email"`
	Password                []byte             `bson:"password"`
	ShipToCountry           string             `bson:"ship_to_country"`
	Timezone                string             `bson:"timezone"`
	WeeklyDigestEnabled     bool               `bson:"weekly_digest_enabled"`
	StillAvailableReminders bool               `bson:"still_available_reminders"`
	Devices                 []Device           `bson:"devices"`
	CreatedAt               primitive.DateTime `bson:"created_at"`
	UpdatedAt               primitive.DateTime `bson:"updated_at"`
}

type Device struct {
	DeviceID   string             `bson:"device_id"`
	LoginToken LoginToken         `bson:"login_token"`
	FCMToken   string             `bson:"fcm_token"`
	LastSeen   primitive.DateTime `bson:"last_seen"`
	CreatedAt  primitive.DateTime `bson:"created_at"`
}

type LoginToken struct {
	Token      []byte             `bson:"token"`
	Expiration primitive.DateTime `bson:"expiration"`
	CreatedAt  primitive.DateTime `bson:"created_at"`
}

// UserSettingsUpdate carries a partial settings update, nil fields are
// left unchanged.
type UserSettingsUpdate struct {
	ShipToCountry           *string `json:"ship_to_country"`
	Timezone                *string `json:"timezone"`
	WeeklyDigestEnabled     *bool   `json:"weekly_digest_enabled"`
	StillAvailableReminders *bool   `json:"still_available_reminders"`
}
