package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/bikerent-backend/internal/testdb"
	"github.com/angelmondragon/bikerent-backend/pkg/db/models"
	"github.com/angelmondragon/bikerent-backend/pkg/enums"
)

var ist = time.FixedZone("IST", 5*3600+1800)

func TestStats(t *testing.T) {
	client := testdb.New(t)
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, ist) // Wednesday
	customer := testdb.Customer(t, client, "asha")

	// debited this week: active, not pending, not overdue
	fresh := testdb.Mandate(t, client, customer, testdb.WithLastDebit(time.Date(2026, 3, 2, 10, 0, 0, 0, ist)))
	// never debited: pending, not overdue
	testdb.Mandate(t, client, customer)
	// last debit 15 days ago: pending and two weeks overdue
	stale := testdb.Mandate(t, client, customer, testdb.WithLastDebit(now.Add(-15*24*time.Hour)))
	// not active: ignored everywhere
	testdb.Mandate(t, client, customer, testdb.WithStatus(enums.MandateStatusPaused), testdb.WithLastDebit(now.Add(-30*24*time.Hour)))

	testdb.Payment(t, client, fresh, enums.PaymentStatusSuccess, time.Date(2026, 3, 2, 10, 0, 0, 0, ist))
	testdb.Payment(t, client, stale, enums.PaymentStatusSuccess, time.Date(2026, 3, 1, 0, 30, 0, 0, ist))
	testdb.Payment(t, client, stale, enums.PaymentStatusFailed, time.Date(2026, 3, 3, 10, 0, 0, 0, ist))
	testdb.Payment(t, client, stale, enums.PaymentStatusSuccess, time.Date(2026, 2, 28, 23, 0, 0, 0, ist))

	svc, err := NewService(ServiceParams{
		Repo:     NewRepository(client.DB()),
		Location: ist,
		Now:      func() time.Time { return now },
	})
	require.NoError(t, err)

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)

	assert.EqualValues(t, 3, stats.ActiveMandates)
	assert.EqualValues(t, 2, stats.PendingThisWeek)
	require.Equal(t, 1, stats.OverdueCount)
	assert.Equal(t, stale.ID, stats.OverdueSubscriptions[0].ID)
	assert.Equal(t, 2, stats.OverdueSubscriptions[0].WeeksOverdue)
	require.NotNil(t, stats.OverdueSubscriptions[0].Customer)
	assert.True(t, decimal.NewFromInt(1000).Equal(stats.MonthlyCollection), "got %s", stats.MonthlyCollection)
}

func TestStatsEmpty(t *testing.T) {
	svc, err := NewService(ServiceParams{Repo: NewRepository(testdb.New(t).DB())})
	require.NoError(t, err)

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.ActiveMandates)
	assert.NotNil(t, stats.OverdueSubscriptions)
	assert.True(t, stats.MonthlyCollection.IsZero())
}

func TestWeeksSinceFallsBackToCreatedAt(t *testing.T) {
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	m := models.Mandate{CreatedAt: now.Add(-22 * 24 * time.Hour)}
	assert.Equal(t, 3, weeksSince(m, now))
}
