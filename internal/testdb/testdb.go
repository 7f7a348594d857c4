// Package testdb opens throwaway sqlite databases carrying the full schema.
package testdb

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"

	"github.com/angelmondragon/bikerent-backend/pkg/db"
	"github.com/angelmondragon/bikerent-backend/pkg/db/models"
	"github.com/angelmondragon/bikerent-backend/pkg/enums"
)

// New returns a client over a private in-memory database. The pool is pinned
// to one connection because every sqlite :memory: connection is its own database.
func New(t testing.TB) *db.Client {
	t.Helper()

	conn, err := db.Open(sqlite.Open(":memory:"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := conn.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db.NewFromConn(conn)
}

// Customer inserts a customer with a unique UPI id.
func Customer(t testing.TB, client *db.Client, name string) *models.Customer {
	t.Helper()
	c := &models.Customer{
		Name:  name,
		UPIID: uuid.NewString()[:8] + "@upi",
		Email: name + "@example.com",
	}
	if err := client.DB().Create(c).Error; err != nil {
		t.Fatalf("seed customer: %v", err)
	}
	return c
}

// MandateOption mutates a seeded mandate before insert.
type MandateOption func(*models.Mandate)

func WithStatus(status enums.MandateStatus) MandateOption {
	return func(m *models.Mandate) { m.Status = status }
}

func WithLastDebit(at time.Time) MandateOption {
	return func(m *models.Mandate) {
		ts := at.UTC()
		m.LastDebitDate = &ts
	}
}

// Mandate inserts an ACTIVE weekly mandate of 500.00 for the customer unless options say otherwise.
func Mandate(t testing.TB, client *db.Client, customer *models.Customer, opts ...MandateOption) *models.Mandate {
	t.Helper()
	m := &models.Mandate{
		MerchantSubscriptionID: "MS_" + uuid.NewString(),
		CustomerID:             customer.ID,
		MerchantOrderID:        "MO_" + uuid.NewString(),
		WeeklyAmount:           decimal.NewFromInt(500),
		Frequency:              "WEEKLY",
		Status:                 enums.MandateStatusActive,
		ScheduledForDebit:      true,
	}
	for _, opt := range opts {
		opt(m)
	}
	if err := client.DB().Create(m).Error; err != nil {
		t.Fatalf("seed mandate: %v", err)
	}
	return m
}

// Payment inserts a payment row for the mandate created at createdAt.
func Payment(t testing.TB, client *db.Client, mandate *models.Mandate, status enums.PaymentStatus, createdAt time.Time) *models.Payment {
	t.Helper()
	p := &models.Payment{
		MerchantOrderID: "MO_" + uuid.NewString(),
		MandateID:       mandate.ID,
		CustomerID:      mandate.CustomerID,
		CustomerName:    "seeded",
		Amount:          mandate.WeeklyAmount,
		Status:          status,
		Type:            enums.PaymentTypeAutomatedWeeklyDebit,
		CreatedAt:       createdAt.UTC(),
	}
	if err := client.DB().Create(p).Error; err != nil {
		t.Fatalf("seed payment: %v", err)
	}
	return p
}
