package controllers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/bikerent-backend/api/responses"
	"github.com/angelmondragon/bikerent-backend/api/validators"
	"github.com/angelmondragon/bikerent-backend/internal/mandates"
	"github.com/angelmondragon/bikerent-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/bikerent-backend/pkg/errors"
	"github.com/angelmondragon/bikerent-backend/pkg/logger"
)

type mandateCreateRequest struct {
	CustomerID   string          `json:"customerId" validate:"required,uuid"`
	WeeklyAmount decimal.Decimal `json:"weeklyAmount"`
	Frequency    string          `json:"frequency,omitempty"`
}

type mandateCreateResponse struct {
	Subscription     *models.Mandate `json:"subscription"`
	ExternalResponse json.RawMessage `json:"externalResponse"`
}

type mandateCancelResponse struct {
	SubscriptionID   string          `json:"subscriptionId"`
	ExternalResponse json.RawMessage `json:"externalResponse"`
}

// MandatesCreate starts a UPI autopay setup for a customer.
func MandatesCreate(svc mandates.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "mandate service unavailable"))
			return
		}

		var body mandateCreateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		customerID, err := uuid.Parse(body.CustomerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid customerId"))
			return
		}

		mandate, external, err := svc.Create(r.Context(), mandates.CreateInput{
			CustomerID:   customerID,
			WeeklyAmount: body.WeeklyAmount,
			Frequency:    strings.ToUpper(strings.TrimSpace(body.Frequency)),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, mandateCreateResponse{
			Subscription:     mandate,
			ExternalResponse: external,
		})
	}
}

func MandatesList(svc mandates.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "mandate service unavailable"))
			return
		}
		list, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// MandatesStatus refreshes local state from the processor and returns both.
func MandatesStatus(svc mandates.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "mandate service unavailable"))
			return
		}
		subscriptionID, err := subscriptionParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.CheckStatus(r.Context(), subscriptionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func MandatesCancel(svc mandates.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "mandate service unavailable"))
			return
		}
		subscriptionID, err := subscriptionParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		external, err := svc.Cancel(r.Context(), subscriptionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, mandateCancelResponse{SubscriptionID: subscriptionID, ExternalResponse: external})
	}
}

func subscriptionParam(r *http.Request) (string, error) {
	id := strings.TrimSpace(chi.URLParam(r, "subscriptionId"))
	if id == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "subscriptionId is required")
	}
	return id, nil
}
