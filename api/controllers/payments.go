package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/bikerent-backend/api/responses"
	"github.com/angelmondragon/bikerent-backend/api/validators"
	"github.com/angelmondragon/bikerent-backend/internal/mandates"
	"github.com/angelmondragon/bikerent-backend/internal/payments"
	"github.com/angelmondragon/bikerent-backend/pkg/db/models"
	"github.com/angelmondragon/bikerent-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bikerent-backend/pkg/errors"
	"github.com/angelmondragon/bikerent-backend/pkg/logger"
)

const weeklyDebitMessage = "Payment notification sent successfully. PhonePe will execute the payment automatically after 24 hours."

// PaymentTrigger is the guarded notify entry point shared with the scheduler.
type PaymentTrigger interface {
	TriggerIfDue(ctx context.Context, mandateID uuid.UUID, merchantOrderID, source string) (*payments.TriggerResult, error)
}

type weeklyDebitResponse struct {
	Payment          *models.Payment `json:"payment"`
	ExternalResponse json.RawMessage `json:"externalResponse"`
	Message          string          `json:"message"`
}

type executeResponse struct {
	MerchantOrderID  string          `json:"merchantOrderId"`
	ExternalResponse json.RawMessage `json:"externalResponse"`
}

// PaymentsWeeklyDebit lets an operator notify a single mandate outside the Monday run.
func PaymentsWeeklyDebit(guard PaymentTrigger, now func() time.Time, logg *logger.Logger) http.HandlerFunc {
	if now == nil {
		now = time.Now
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if guard == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		mandateID, err := uuid.Parse(chi.URLParam(r, "mandateId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid mandate id"))
			return
		}

		result, err := guard.TriggerIfDue(r.Context(), mandateID, mandates.NewOrderID(now()), payments.SourceManual)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, weeklyDebitResponse{
			Payment:          result.Payment,
			ExternalResponse: result.ExternalResponse,
			Message:          weeklyDebitMessage,
		})
	}
}

func PaymentsExecute(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}
		orderID := strings.TrimSpace(chi.URLParam(r, "merchantOrderId"))
		if orderID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "merchantOrderId is required"))
			return
		}

		external, err := svc.ExecuteRedemption(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, executeResponse{MerchantOrderID: orderID, ExternalResponse: external})
	}
}

// PaymentsList pages through payments newest first; status and mandateId filter.
func PaymentsList(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		params, err := validators.ParsePage(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		mandateID, err := validators.ParseQueryUUID(r, "mandateId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		query := payments.ListQuery{Params: params, MandateID: mandateID}

		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParsePaymentStatus(strings.ToUpper(raw))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status").WithDetails(map[string]any{"field": "status"}))
				return
			}
			query.Status = &status
		}

		page, err := svc.List(r.Context(), query)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}
