package models

import (
	"time"

	"gorm.io/datatypes"
)

type PaymentConfirmationLogStatus string

const (
	PaymentConfirmationLogStatusReceived     PaymentConfirmationLogStatus = "received"
	PaymentConfirmationLogStatusHandled      PaymentConfirmationLogStatus = "handled"
	PaymentConfirmationLogStatusHandleFailed PaymentConfirmationLogStatus = "handle_failed"
)

// PaymentConfirmationLog keeps every payment confirmation received from the
// payment side together with how it was handled.
type PaymentConfirmationLog struct {
	ID          string                       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	InvoiceID   string                       `gorm:"column:invoice_id;type:varchar(64);not null;index" json:"invoice_id"`
	ExternalRef string                       `gorm:"column:external_ref;type:varchar(128)" json:"external_ref"`
	TraceID     string                       `gorm:"column:trace_id;type:varchar(128)" json:"trace_id"`
	Data        datatypes.JSON               `gorm:"column:data;type:jsonb" json:"data"`
	Result      *datatypes.JSON              `gorm:"column:result;type:jsonb" json:"result"`
	Status      PaymentConfirmationLogStatus `gorm:"column:status;type:varchar(32);not null" json:"status"`
	CreatedAt   time.Time                    `json:"created_at"`
	UpdatedAt   time.Time                    `json:"updated_at"`
}

func (PaymentConfirmationLog) TableName() string { return "payment_confirmation_log" }
