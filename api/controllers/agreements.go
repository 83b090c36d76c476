package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/residency-backend/api/responses"
	"github.com/angelmondragon/residency-backend/api/validators"
	"github.com/angelmondragon/residency-backend/internal/agreements"
	"github.com/angelmondragon/residency-backend/pkg/db/models"
	"github.com/angelmondragon/residency-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/residency-backend/pkg/errors"
	"github.com/angelmondragon/residency-backend/pkg/identity"
	"github.com/angelmondragon/residency-backend/pkg/logger"
)

// AgreementsService is the slice of the agreement workflow the HTTP layer needs.
type AgreementsService interface {
	SubmitRequest(ctx context.Context, tenant identity.Identity, apartmentID uuid.UUID) (*models.Agreement, error)
	Decide(ctx context.Context, admin identity.Identity, agreementID uuid.UUID, accept bool) (*agreements.DecisionResult, error)
	List(ctx context.Context, status *enums.AgreementStatus) ([]models.Agreement, error)
	ListForTenant(ctx context.Context, tenantEmail string) ([]models.Agreement, error)
}

type agreementSubmitRequest struct {
	ApartmentID string `json:"apartment_id" validate:"required,uuid"`
}

type agreementDecisionRequest struct {
	Accept *bool `json:"accept" validate:"required"`
}

// AgreementSubmit files a pending agreement request for the caller.
func AgreementSubmit(svc AgreementsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, err := callerIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload agreementSubmitRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		apartmentID, err := uuid.Parse(payload.ApartmentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid apartment_id"))
			return
		}

		agreement, err := svc.SubmitRequest(r.Context(), *tenant, apartmentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, agreements.FromModel(agreement))
	}
}

// AgreementsMine lists the caller's agreements so the SPA can show which
// apartments were already requested.
func AgreementsMine(svc AgreementsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, err := callerIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListForTenant(r.Context(), tenant.Email)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, agreements.FromModels(list))
	}
}

// AdminAgreementsList defaults to pending requests; status=all lists every
// agreement.
func AdminAgreementsList(svc AgreementsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var status *enums.AgreementStatus
		raw := strings.TrimSpace(r.URL.Query().Get("status"))
		switch raw {
		case "":
			pending := enums.AgreementStatusPending
			status = &pending
		case "all":
		default:
			parsed, err := enums.ParseAgreementStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			status = &parsed
		}

		list, err := svc.List(r.Context(), status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, agreements.FromModels(list))
	}
}

// AdminAgreementDecide accepts or rejects a pending request.
func AdminAgreementDecide(svc AgreementsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		admin, err := callerIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		agreementID, err := uuidParam(r, "agreementId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload agreementDecisionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Decide(r.Context(), *admin, agreementID, *payload.Accept)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, agreements.FromDecision(result))
	}
}
