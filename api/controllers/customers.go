package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/bikerent-backend/api/responses"
	"github.com/angelmondragon/bikerent-backend/api/validators"
	"github.com/angelmondragon/bikerent-backend/internal/customers"
	pkgerrors "github.com/angelmondragon/bikerent-backend/pkg/errors"
	"github.com/angelmondragon/bikerent-backend/pkg/logger"
)

const (
	maxNameLength  = 120
	maxPhoneLength = 20
)

type customerCreateRequest struct {
	Name  string  `json:"name" validate:"required,max=120"`
	UPIID string  `json:"upiId" validate:"required,upi"`
	Email string  `json:"email" validate:"required,email"`
	Phone *string `json:"phone,omitempty"`
}

type customerPatchRequest struct {
	Email *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone *string `json:"phone,omitempty"`
}

func CustomersList(svc customers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "customer service unavailable"))
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

func CustomersCreate(svc customers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "customer service unavailable"))
			return
		}

		var body customerCreateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		customer, err := svc.Create(r.Context(), customers.CreateInput{
			Name:  validators.SanitizeString(body.Name, maxNameLength),
			UPIID: strings.TrimSpace(body.UPIID),
			Email: strings.TrimSpace(body.Email),
			Phone: normalizePhone(body.Phone),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, customer)
	}
}

// CustomersPatch updates a rider's e-mail and/or phone.
func CustomersPatch(svc customers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "customer service unavailable"))
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid customer id"))
			return
		}

		var body customerPatchRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		customer, err := svc.UpdateContact(r.Context(), id, customers.UpdateContactInput{
			Email: body.Email,
			Phone: normalizePhone(body.Phone),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, customer)
	}
}

func normalizePhone(raw *string) *string {
	if raw == nil {
		return nil
	}
	phone := validators.SanitizeString(validators.NormalizePhone(*raw), maxPhoneLength)
	return &phone
}
