package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/broxiva/subscriptions/pkg/types"
)

// SubscriptionLog records changes to subscriptions.
// Use case: troubleshooting.
type SubscriptionLog struct {
	ID             string                         `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	SubscriptionID string                         `gorm:"column:subscription_id;type:uuid;not null;index" json:"subscription_id"`
	UserID         string                         `gorm:"column:user_id;type:varchar(64);not null;index" json:"user_id"`
	Reason         types.SubscriptionChangeReason `gorm:"column:reason;type:varchar(32);not null" json:"reason"`
	// Before is nil for a newly created subscription.
	Before datatypes.JSONType[*Subscription] `gorm:"column:before;type:jsonb;default:'null'" json:"before"`
	After  datatypes.JSONType[*Subscription] `gorm:"column:after;type:jsonb;default:'null'" json:"after"`
	// Extra stores additional context such as the trigger source.
	Extra     datatypes.JSONMap `gorm:"column:extra;type:jsonb;default:'{}'" json:"extra"`
	CreatedAt time.Time         `json:"created_at"`
}

func (SubscriptionLog) TableName() string {
	return "subscription_log"
}
