package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"scoutloot/internal/model"
)

func TestBulkConditionFilter(t *testing.T) {
	userID := primitive.NewObjectID()
	f := bulkConditionFilter(userID, model.ConditionUsed)

	assert.Equal(t, userID, f["user_id"], "scoped to the owner")
	assert.Equal(t, model.WatchStatusActive, f["status"], "paused and deleted watches are untouched")
	assert.Equal(t, bson.M{"$ne": model.ConditionUsed}, f["condition"],
		"watches already at the condition are excluded, so a second identical call matches nothing")
}
