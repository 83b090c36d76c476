package controllers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/residency-backend/api/responses"
	"github.com/angelmondragon/residency-backend/api/validators"
	"github.com/angelmondragon/residency-backend/internal/apartments"
	"github.com/angelmondragon/residency-backend/pkg/logger"
)

// ApartmentsList serves the public listing with optional rent range and
// availability filters.
func ApartmentsList(svc apartments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		minRent, err := validators.ParseQueryDecimal(r, "min_rent")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		maxRent, err := validators.ParseQueryDecimal(r, "max_rent")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		availableOnly, err := validators.ParseQueryBool(r, "available", false)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.List(r.Context(), apartments.ListInput{
			Filters: apartments.ListFilters{
				MinRent:       minRent,
				MaxRent:       maxRent,
				AvailableOnly: availableOnly,
			},
			Pagination: page,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func ApartmentDetail(svc apartments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "apartmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		apartment, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, apartments.FromModel(apartment))
	}
}

type apartmentCreateRequest struct {
	BuildingName string          `json:"building_name" validate:"required,max=120"`
	ApartmentNo  string          `json:"apartment_no" validate:"required,max=32"`
	FloorNo      int             `json:"floor_no" validate:"min=0"`
	BlockName    string          `json:"block_name" validate:"required,max=32"`
	Rent         decimal.Decimal `json:"rent"`
	ImageURL     *string         `json:"image_url,omitempty" validate:"omitempty,url"`
}

type apartmentUpdateRequest struct {
	BuildingName *string          `json:"building_name,omitempty" validate:"omitempty,min=1,max=120"`
	ApartmentNo  *string          `json:"apartment_no,omitempty" validate:"omitempty,min=1,max=32"`
	FloorNo      *int             `json:"floor_no,omitempty" validate:"omitempty,min=0"`
	BlockName    *string          `json:"block_name,omitempty" validate:"omitempty,min=1,max=32"`
	Rent         *decimal.Decimal `json:"rent,omitempty"`
	ImageURL     *string          `json:"image_url,omitempty" validate:"omitempty,url"`
}

type availabilityRequest struct {
	Available *bool `json:"available" validate:"required"`
}

func AdminApartmentCreate(svc apartments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		admin, err := callerIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload apartmentCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		apartment, err := svc.Create(r.Context(), admin.Email, apartments.CreateInput{
			BuildingName: payload.BuildingName,
			ApartmentNo:  payload.ApartmentNo,
			FloorNo:      payload.FloorNo,
			BlockName:    payload.BlockName,
			Rent:         payload.Rent,
			ImageURL:     payload.ImageURL,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, apartments.FromModel(apartment))
	}
}

func AdminApartmentUpdate(svc apartments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "apartmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload apartmentUpdateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		apartment, err := svc.Update(r.Context(), id, apartments.UpdateInput{
			BuildingName: payload.BuildingName,
			ApartmentNo:  payload.ApartmentNo,
			FloorNo:      payload.FloorNo,
			BlockName:    payload.BlockName,
			Rent:         payload.Rent,
			ImageURL:     payload.ImageURL,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, apartments.FromModel(apartment))
	}
}

func AdminApartmentAvailability(svc apartments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "apartmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload availabilityRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		apartment, err := svc.SetAvailability(r.Context(), id, *payload.Available)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, apartments.FromModel(apartment))
	}
}

func AdminApartmentDelete(svc apartments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "apartmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
