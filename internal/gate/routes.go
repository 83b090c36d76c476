package gate

import (
	"fmt"
	"strings"

	"github.com/angelmondragon/residency-backend/pkg/enums"
)

// Route identifies a dashboard route or API action guarded by the gate.
type Route string

const (
	RouteMyProfile         Route = "my-profile"
	RouteAnnouncements     Route = "announcements"
	RouteMakePayment       Route = "make-payment"
	RoutePaymentHistory    Route = "payment-history"
	RouteAdminProfile      Route = "admin-profile"
	RouteManageMembers     Route = "manage-members"
	RouteMakeAnnouncement  Route = "make-announcement"
	RouteAgreementRequests Route = "agreement-requests"
	RouteManageCoupons     Route = "manage-coupons"
	RouteManageProperties  Route = "manage-properties"
	RouteSuperAdminProfile Route = "super-admin-profile"
	RouteManageUsers       Route = "manage-users"
	RouteManageRoles       Route = "manage-roles"
)

var allRoutes = []Route{
	RouteMyProfile,
	RouteAnnouncements,
	RouteMakePayment,
	RoutePaymentHistory,
	RouteAdminProfile,
	RouteManageMembers,
	RouteMakeAnnouncement,
	RouteAgreementRequests,
	RouteManageCoupons,
	RouteManageProperties,
	RouteSuperAdminProfile,
	RouteManageUsers,
	RouteManageRoles,
}

// allowLists are role-exact: a role reaches only the routes listed for it,
// with no inheritance from lesser roles.
var allowLists = map[enums.Role][]Route{
	enums.RoleUser: {
		RouteMyProfile,
		RouteAnnouncements,
	},
	enums.RoleMember: {
		RouteMyProfile,
		RouteMakePayment,
		RoutePaymentHistory,
		RouteAnnouncements,
	},
	enums.RoleAdmin: {
		RouteAdminProfile,
		RouteManageMembers,
		RouteMakeAnnouncement,
		RouteAgreementRequests,
		RouteManageCoupons,
		RouteManageProperties,
	},
	enums.RoleSuperAdmin: {
		RouteSuperAdminProfile,
		RouteManageUsers,
		RouteManageRoles,
	},
}

func (r Route) String() string {
	return string(r)
}

func (r Route) IsValid() bool {
	for _, candidate := range allRoutes {
		if candidate == r {
			return true
		}
	}
	return false
}

// Routes returns every known route.
func Routes() []Route {
	out := make([]Route, len(allRoutes))
	copy(out, allRoutes)
	return out
}

// AllowList returns the routes role may reach. Unknown roles get none.
func AllowList(role enums.Role) []Route {
	list := allowLists[role]
	out := make([]Route, len(list))
	copy(out, list)
	return out
}

func ParseRoute(value string) (Route, error) {
	trimmed := Route(strings.ToLower(strings.TrimSpace(value)))
	if trimmed.IsValid() {
		return trimmed, nil
	}
	return "", fmt.Errorf("unknown route %q", value)
}

func allowed(role enums.Role, route Route) bool {
	for _, candidate := range allowLists[role] {
		if candidate == route {
			return true
		}
	}
	return false
}
