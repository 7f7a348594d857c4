package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/bikerent-backend/pkg/enums"
)

// PaymentDebitWindowIndex guards against two live payments for one mandate in the same week.
const PaymentDebitWindowIndex = "ux_payments_mandate_window"

// Payment is one weekly debit. MerchantOrderID is the idempotency key shared
// with the processor; DebitWindow is the Monday of the week it was triggered
// and is cleared once the payment fails.
type Payment struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	MerchantOrderID   string              `gorm:"column:merchant_order_id;not null;uniqueIndex:ux_payments_merchant_order" json:"merchantOrderId"`
	MandateID         uuid.UUID           `gorm:"column:mandate_id;type:uuid;not null;uniqueIndex:ux_payments_mandate_window,priority:1;index" json:"mandateId"`
	CustomerID        uuid.UUID           `gorm:"column:customer_id;type:uuid;not null" json:"customerId"`
	CustomerName      string              `gorm:"column:customer_name;not null" json:"customerName"`
	Amount            decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null" json:"amount"`
	Status            enums.PaymentStatus `gorm:"column:status;not null" json:"status"`
	TransactionID     *string             `gorm:"column:transaction_id" json:"transactionId,omitempty"`
	Type              enums.PaymentType   `gorm:"column:type;not null" json:"type"`
	DebitWindow       *time.Time          `gorm:"column:debit_window;type:date;uniqueIndex:ux_payments_mandate_window,priority:2" json:"debitWindow,omitempty"`
	WebhookReceivedAt *time.Time          `gorm:"column:webhook_received_at" json:"webhookReceivedAt,omitempty"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`

	Mandate *Mandate `gorm:"foreignKey:MandateID" json:"mandate,omitempty"`
}

func (Payment) TableName() string { return "payments" }

func (p *Payment) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}
