package controllers

import (
	"net/http"

	"github.com/angelmondragon/residency-backend/api/responses"
	"github.com/angelmondragon/residency-backend/api/validators"
	"github.com/angelmondragon/residency-backend/internal/announcements"
	"github.com/angelmondragon/residency-backend/pkg/logger"
)

type announcementRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"required"`
}

func AnnouncementsList(svc announcements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.List(r.Context(), page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func AdminAnnouncementCreate(svc announcements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		admin, err := callerIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload announcementRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		announcement, err := svc.Create(r.Context(), admin.Email,
			validators.SanitizeString(payload.Title, 200),
			validators.SanitizeString(payload.Description, 0))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, announcement)
	}
}
