package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/residency-backend/api/responses"
	"github.com/angelmondragon/residency-backend/internal/dashboard"
	"github.com/angelmondragon/residency-backend/pkg/logger"
)

// OverviewProvider computes the profile page statistics.
type OverviewProvider interface {
	AdminOverview(ctx context.Context) (*dashboard.AdminOverview, error)
}

// Overview backs both the admin and the super admin profile pages.
func Overview(svc OverviewProvider, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		overview, err := svc.AdminOverview(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, overview)
	}
}
