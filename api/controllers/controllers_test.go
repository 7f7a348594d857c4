package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/bikerent-backend/internal/payments"
	"github.com/angelmondragon/bikerent-backend/internal/schedulers/weekly"
	"github.com/angelmondragon/bikerent-backend/pkg/config"
	"github.com/angelmondragon/bikerent-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/bikerent-backend/pkg/errors"
	"github.com/angelmondragon/bikerent-backend/pkg/logger"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return env
}

type fakeTrigger struct {
	calls   []string
	sources []string
	result  *payments.TriggerResult
	err     error
}

func (f *fakeTrigger) TriggerIfDue(_ context.Context, _ uuid.UUID, orderID, source string) (*payments.TriggerResult, error) {
	f.calls = append(f.calls, orderID)
	f.sources = append(f.sources, source)
	return f.result, f.err
}

func weeklyDebitRouter(trigger PaymentTrigger) http.Handler {
	r := chi.NewRouter()
	now := func() time.Time { return time.Date(2026, 3, 2, 4, 0, 0, 0, time.UTC) }
	r.Post("/payments/weekly-debit/{mandateId}", PaymentsWeeklyDebit(trigger, now, logger.Nop()))
	return r
}

func TestPaymentsWeeklyDebitSuccess(t *testing.T) {
	payment := &models.Payment{MerchantOrderID: "MO_1"}
	trigger := &fakeTrigger{result: &payments.TriggerResult{Payment: payment, ExternalResponse: json.RawMessage(`{"state":"NOTIFIED"}`)}}

	rec := httptest.NewRecorder()
	weeklyDebitRouter(trigger).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/payments/weekly-debit/"+uuid.NewString(), nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body weeklyDebitResponse
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &body))
	assert.Equal(t, weeklyDebitMessage, body.Message)
	assert.JSONEq(t, `{"state":"NOTIFIED"}`, string(body.ExternalResponse))
	require.Len(t, trigger.calls, 1)
	assert.True(t, strings.HasPrefix(trigger.calls[0], "MO_"))
	assert.Equal(t, payments.SourceManual, trigger.sources[0])
}

func TestPaymentsWeeklyDebitBlocked(t *testing.T) {
	created := time.Date(2026, 2, 28, 10, 0, 0, 0, time.UTC)
	trigger := &fakeTrigger{err: payments.RecentPaymentError(&payments.RecentPayment{CreatedAt: created, Age: 50 * time.Hour})}

	rec := httptest.NewRecorder()
	weeklyDebitRouter(trigger).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/payments/weekly-debit/"+uuid.NewString(), nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	env := decode(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, string(pkgerrors.CodePreconditionFailed), env.Error.Code)
	assert.Equal(t, float64(2), env.Error.Details["daysSinceLastPayment"])
	assert.Equal(t, "2026-02-28T10:00:00Z", env.Error.Details["lastPaymentDate"])
}

func TestPaymentsWeeklyDebitRejectsBadID(t *testing.T) {
	trigger := &fakeTrigger{}
	rec := httptest.NewRecorder()
	weeklyDebitRouter(trigger).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/payments/weekly-debit/not-a-uuid", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, trigger.calls)
}

type fakeRunner struct {
	forced bool
	report *weekly.RunReport
	err    error
}

func (f *fakeRunner) ProcessWeeklyRun(context.Context) (*weekly.RunReport, error) {
	return f.report, f.err
}

func (f *fakeRunner) ProcessWeeklyRunForce(context.Context) (*weekly.RunReport, error) {
	f.forced = true
	return f.report, f.err
}

func TestCronWeeklyPayments(t *testing.T) {
	runner := &fakeRunner{report: &weekly.RunReport{Skipped: true, Message: weekly.NotMondayMessage, Results: []weekly.Result{}}}

	rec := httptest.NewRecorder()
	CronWeeklyPayments(runner, logger.Nop()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cron/weekly-payments", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, runner.forced)

	var report weekly.RunReport
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &report))
	assert.True(t, report.Skipped)
	assert.Equal(t, weekly.NotMondayMessage, report.Message)

	rec = httptest.NewRecorder()
	CronTestWeeklyPayments(runner, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cron/test-weekly-payments", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, runner.forced)
}

func TestCronWeeklyPaymentsError(t *testing.T) {
	runner := &fakeRunner{err: pkgerrors.Wrap(pkgerrors.CodeInternal, errors.New("no such table: mandates"), "load eligible mandates")}
	rec := httptest.NewRecorder()
	CronWeeklyPayments(runner, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "no such table")
}

type pingFunc func(context.Context) error

func (p pingFunc) Ping(ctx context.Context) error { return p(ctx) }

func TestHealthReady(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "dev"}}
	ok := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("dial tcp: refused") })

	rec := httptest.NewRecorder()
	HealthReady(cfg, nil, map[string]Pinger{"db": ok, "redis": ok}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	HealthReady(cfg, nil, map[string]Pinger{"db": ok, "redis": down}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	HealthLive(cfg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "dev", rec.Header().Get("X-Bikerent-Env"))
}

func TestNormalizePhone(t *testing.T) {
	assert.Nil(t, normalizePhone(nil))
	got := normalizePhone(strPtr("+91 98765-43210"))
	require.NotNil(t, got)
	assert.Equal(t, "+919876543210", *got)
}

func strPtr(s string) *string { return &s }
