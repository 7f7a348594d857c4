package payments

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/bikerent-backend/internal/mandates"
	"github.com/angelmondragon/bikerent-backend/internal/phonepetest"
	"github.com/angelmondragon/bikerent-backend/internal/testdb"
	"github.com/angelmondragon/bikerent-backend/pkg/db"
	"github.com/angelmondragon/bikerent-backend/pkg/db/models"
	"github.com/angelmondragon/bikerent-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bikerent-backend/pkg/errors"
	"github.com/angelmondragon/bikerent-backend/pkg/logger"
	pkgpagination "github.com/angelmondragon/bikerent-backend/pkg/pagination"
)

var ist = time.FixedZone("IST", 5*3600+1800)

type fixture struct {
	client    *db.Client
	svc       Service
	processor *phonepetest.Processor
	now       *time.Time
}

func newFixture(t *testing.T, processor *phonepetest.Processor) *fixture {
	t.Helper()
	client := testdb.New(t)
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, ist)
	f := &fixture{client: client, processor: processor, now: &now}
	svc, err := NewService(ServiceParams{
		Repo:      NewRepository(client.DB()),
		Mandates:  mandates.NewRepository(client.DB()),
		Processor: processor,
		Tokens:    phonepetest.StaticToken("tok"),
		Tx:        client,
		Logger:    logger.Nop(),
		Location:  ist,
		Now:       func() time.Time { return *f.now },
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) payments(t *testing.T, mandateID uuid.UUID) []models.Payment {
	t.Helper()
	var out []models.Payment
	require.NoError(t, f.client.DB().Where("mandate_id = ?", mandateID).Order("created_at").Find(&out).Error)
	return out
}

func (f *fixture) mandate(t *testing.T, id uuid.UUID) *models.Mandate {
	t.Helper()
	m, err := mandates.NewRepository(f.client.DB()).FindByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, m)
	return m
}

func TestTriggerRejectsInactiveMandate(t *testing.T) {
	for _, status := range []enums.MandateStatus{
		enums.MandateStatusPending,
		enums.MandateStatusPaused,
		enums.MandateStatusCancelled,
		enums.MandateStatusFailed,
		"CREATED",
	} {
		t.Run(string(status), func(t *testing.T) {
			processor := &phonepetest.Processor{}
			f := newFixture(t, processor)
			mandate := testdb.Mandate(t, f.client, testdb.Customer(t, f.client, "ravi"), testdb.WithStatus(status))

			_, err := f.svc.TriggerWeeklyNotification(context.Background(), mandate.ID, "MO_1")
			assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodePreconditionFailed), "got %v", err)
			assert.Empty(t, f.payments(t, mandate.ID))
			assert.Zero(t, processor.NotifyCount())
		})
	}
}

func TestTriggerUnknownMandate(t *testing.T) {
	f := newFixture(t, &phonepetest.Processor{})
	_, err := f.svc.TriggerWeeklyNotification(context.Background(), uuid.New(), "MO_1")
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound), "got %v", err)
}

func TestTriggerWritesPendingPayment(t *testing.T) {
	processor := &phonepetest.Processor{}
	f := newFixture(t, processor)
	customer := testdb.Customer(t, f.client, "ravi")
	mandate := testdb.Mandate(t, f.client, customer)

	result, err := f.svc.TriggerWeeklyNotification(context.Background(), mandate.ID, "MO_weekly_1")
	require.NoError(t, err)
	assert.NotEmpty(t, result.ExternalResponse)

	require.Len(t, processor.Notifies, 1)
	notify := processor.Notifies[0]
	assert.Equal(t, int64(50000), notify.Amount)
	assert.Equal(t, f.now.Add(48*time.Hour).UnixMilli(), notify.ExpireAt)
	assert.True(t, notify.PaymentFlow.AutoDebit)
	assert.Equal(t, mandate.MerchantSubscriptionID, notify.PaymentFlow.MerchantSubscriptionID)

	stored := f.payments(t, mandate.ID)
	require.Len(t, stored, 1)
	assert.Equal(t, enums.PaymentStatusPending, stored[0].Status)
	assert.Equal(t, enums.PaymentTypeAutomatedWeeklyDebit, stored[0].Type)
	assert.Equal(t, "MO_weekly_1", stored[0].MerchantOrderID)
	assert.Equal(t, "ravi", stored[0].CustomerName)
	require.NotNil(t, stored[0].DebitWindow)
	assert.Equal(t, "2026-03-02", stored[0].DebitWindow.UTC().Format("2006-01-02"))

	updated := f.mandate(t, mandate.ID)
	assert.Nil(t, updated.LastDebitDate)
	require.NotNil(t, updated.NextDebitDate)
	assert.True(t, updated.NextDebitDate.Equal(time.Date(2026, 3, 9, 9, 0, 0, 0, ist)))
}

func TestTriggerRemoteFailureWritesNothing(t *testing.T) {
	f := newFixture(t, phonepetest.Failing(map[string]string{"code": "INVALID"}))
	mandate := testdb.Mandate(t, f.client, testdb.Customer(t, f.client, "ravi"))

	_, err := f.svc.TriggerWeeklyNotification(context.Background(), mandate.ID, "MO_1")
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeRemoteAPI), "got %v", err)
	assert.Empty(t, f.payments(t, mandate.ID))
	assert.Nil(t, f.mandate(t, mandate.ID).NextDebitDate)
}

func TestTriggerTwiceInOneWeekHitsWindowIndex(t *testing.T) {
	f := newFixture(t, &phonepetest.Processor{})
	mandate := testdb.Mandate(t, f.client, testdb.Customer(t, f.client, "ravi"))

	_, err := f.svc.TriggerWeeklyNotification(context.Background(), mandate.ID, "MO_1")
	require.NoError(t, err)

	later := f.now.Add(3 * 24 * time.Hour)
	f.now = &later
	_, err = f.svc.TriggerWeeklyNotification(context.Background(), mandate.ID, "MO_2")
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodePreconditionFailed), "got %v", err)
	assert.Len(t, f.payments(t, mandate.ID), 1)
	assert.Equal(t, 1, f.processor.NotifyCount(), "second trigger must not reach the processor")
}

func TestConcurrentTriggersNotifyOnce(t *testing.T) {
	f := newFixture(t, &phonepetest.Processor{})
	mandate := testdb.Mandate(t, f.client, testdb.Customer(t, f.client, "ravi"))

	const callers = 4
	errs := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.TriggerWeeklyNotification(context.Background(), mandate.ID, fmt.Sprintf("MO_%d", i))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodePreconditionFailed), "got %v", err)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, f.processor.NotifyCount())
	assert.Len(t, f.payments(t, mandate.ID), 1)
}

func TestFailedPaymentFreesItsWeek(t *testing.T) {
	f := newFixture(t, &phonepetest.Processor{})
	mandate := testdb.Mandate(t, f.client, testdb.Customer(t, f.client, "ravi"))

	first, err := f.svc.TriggerWeeklyNotification(context.Background(), mandate.ID, "MO_1")
	require.NoError(t, err)
	require.NoError(t, f.client.DB().Model(&models.Payment{}).Where("id = ?", first.Payment.ID).
		Updates(map[string]any{"status": enums.PaymentStatusFailed, "debit_window": nil}).Error)

	_, err = f.svc.TriggerWeeklyNotification(context.Background(), mandate.ID, "MO_2")
	require.NoError(t, err)
	assert.Len(t, f.payments(t, mandate.ID), 2)
}

func TestHasRecentPaymentBoundary(t *testing.T) {
	f := newFixture(t, &phonepetest.Processor{})
	customer := testdb.Customer(t, f.client, "ravi")

	exact := testdb.Mandate(t, f.client, customer)
	testdb.Payment(t, f.client, exact, enums.PaymentStatusSuccess, f.now.Add(-6*24*time.Hour))
	_, blocked, err := f.svc.HasRecentPayment(context.Background(), exact.ID, RecencyWindow)
	require.NoError(t, err)
	assert.False(t, blocked, "a payment exactly six days old no longer blocks")

	inside := testdb.Mandate(t, f.client, customer)
	testdb.Payment(t, f.client, inside, enums.PaymentStatusSuccess, f.now.Add(-(5*24+23)*time.Hour))
	recent, blocked, err := f.svc.HasRecentPayment(context.Background(), inside.ID, RecencyWindow)
	require.NoError(t, err)
	assert.True(t, blocked)
	assert.Equal(t, 5, recent.DaysSince())

	failed := testdb.Mandate(t, f.client, customer)
	testdb.Payment(t, f.client, failed, enums.PaymentStatusFailed, f.now.Add(-time.Hour))
	_, blocked, err = f.svc.HasRecentPayment(context.Background(), failed.ID, RecencyWindow)
	require.NoError(t, err)
	assert.False(t, blocked, "failed payments never block")
}

func TestExecuteRedemption(t *testing.T) {
	processor := &phonepetest.Processor{}
	f := newFixture(t, processor)
	mandate := testdb.Mandate(t, f.client, testdb.Customer(t, f.client, "ravi"))
	payment := testdb.Payment(t, f.client, mandate, enums.PaymentStatusPending, f.now.Add(-time.Hour))

	_, err := f.svc.ExecuteRedemption(context.Background(), "MO_missing")
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound), "got %v", err)

	raw, err := f.svc.ExecuteRedemption(context.Background(), payment.MerchantOrderID)
	require.NoError(t, err)
	assert.NotEmpty(t, raw)
	assert.Equal(t, []string{payment.MerchantOrderID}, processor.Redeems)

	var stored models.Payment
	require.NoError(t, f.client.DB().First(&stored, "id = ?", payment.ID).Error)
	assert.Equal(t, enums.PaymentStatusPending, stored.Status)
}

func TestListPaginatesNewestFirst(t *testing.T) {
	f := newFixture(t, &phonepetest.Processor{})
	mandate := testdb.Mandate(t, f.client, testdb.Customer(t, f.client, "ravi"))
	for i := 0; i < 3; i++ {
		testdb.Payment(t, f.client, mandate, enums.PaymentStatusSuccess, f.now.Add(-time.Duration(i+1)*7*24*time.Hour))
	}

	page, err := f.svc.List(context.Background(), ListQuery{Params: pkgpagination.Params{Limit: 2}})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.NotEmpty(t, page.NextCursor)
	assert.True(t, page.Items[0].CreatedAt.After(page.Items[1].CreatedAt))
	require.NotNil(t, page.Items[0].Mandate)
	require.NotNil(t, page.Items[0].Mandate.Customer)

	next, err := f.svc.List(context.Background(), ListQuery{Params: pkgpagination.Params{Limit: 2, Cursor: page.NextCursor}})
	require.NoError(t, err)
	require.Len(t, next.Items, 1)
	assert.Empty(t, next.NextCursor)

	_, err = f.svc.List(context.Background(), ListQuery{Params: pkgpagination.Params{Cursor: "%%%"}})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), "got %v", err)
}

func TestTriggerStoreFailureIsInternalAndSkipsProcessor(t *testing.T) {
	f := newFixture(t, &phonepetest.Processor{})
	mandate := testdb.Mandate(t, f.client, testdb.Customer(t, f.client, "ravi"))
	require.NoError(t, f.client.DB().Migrator().DropTable(&models.Payment{}))

	_, err := f.svc.TriggerWeeklyNotification(context.Background(), mandate.ID, "MO_1")
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInternal), "got %v", err)
	assert.Equal(t, 0, f.processor.NotifyCount())
	assert.Nil(t, f.mandate(t, mandate.ID).NextDebitDate)
}
