package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/bikerent-backend/pkg/enums"
)

// Mandate mirrors a PhonePe subscription: a standing authorization to debit a
// customer's UPI address weekly up to WeeklyAmount.
type Mandate struct {
	ID                     uuid.UUID           `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	MerchantSubscriptionID string              `gorm:"column:merchant_subscription_id;not null;uniqueIndex:ux_mandates_subscription" json:"merchantSubscriptionId"`
	CustomerID             uuid.UUID           `gorm:"column:customer_id;type:uuid;not null;index" json:"customerId"`
	MerchantOrderID        string              `gorm:"column:merchant_order_id;not null" json:"merchantOrderId"`
	PhonePeOrderID         *string             `gorm:"column:phonepe_order_id" json:"phonepeOrderId,omitempty"`
	WeeklyAmount           decimal.Decimal     `gorm:"column:weekly_amount;type:numeric(12,2);not null" json:"weeklyAmount"`
	Frequency              string              `gorm:"column:frequency;not null;default:'WEEKLY'" json:"frequency"`
	Status                 enums.MandateStatus `gorm:"column:status;not null;index" json:"status"`
	MandateURL             *string             `gorm:"column:mandate_url" json:"mandateUrl,omitempty"`
	LastDebitDate          *time.Time          `gorm:"column:last_debit_date" json:"lastDebitDate"`
	NextDebitDate          *time.Time          `gorm:"column:next_debit_date" json:"nextDebitDate"`
	ActivatedAt            *time.Time          `gorm:"column:activated_at" json:"activatedAt,omitempty"`
	CancelledAt            *time.Time          `gorm:"column:cancelled_at" json:"cancelledAt,omitempty"`
	LastWebhookAt          *time.Time          `gorm:"column:last_webhook_at" json:"lastWebhookAt,omitempty"`
	LastChecked            *time.Time          `gorm:"column:last_checked" json:"lastChecked,omitempty"`
	ScheduledForDebit      bool                `gorm:"column:scheduled_for_debit;not null;default:false" json:"scheduledForDebit"`
	CreatedAt              time.Time           `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt              time.Time           `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`

	Customer *Customer `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
}

func (Mandate) TableName() string { return "mandates" }

func (m *Mandate) BeforeCreate(*gorm.DB) error {
	assignID(&m.ID)
	return nil
}
