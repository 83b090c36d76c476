package gate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/residency-backend/pkg/enums"
	"github.com/angelmondragon/residency-backend/pkg/identity"
)

// RoleUnresolved marks a role whose lookup has not completed yet.
const RoleUnresolved enums.Role = ""

type Outcome string

const (
	OutcomeAllow     Outcome = "allow"
	OutcomePending   Outcome = "pending"
	OutcomeLogin     Outcome = "login"
	OutcomeForbidden Outcome = "forbidden"
)

// Decision is the gate's verdict. ReturnTo is set only for OutcomeLogin so
// the caller can resume the requested route after signing in.
type Decision struct {
	Outcome  Outcome `json:"outcome"`
	ReturnTo Route   `json:"return_to,omitempty"`
}

func (d Decision) Allowed() bool {
	return d.Outcome == OutcomeAllow
}

// Authorize decides access without side effects. An unresolved role yields
// Pending so callers suspend instead of flashing allowed or denied content.
func Authorize(identityPresent bool, role enums.Role, route Route) Decision {
	if !identityPresent {
		return Decision{Outcome: OutcomeLogin, ReturnTo: route}
	}
	if role == RoleUnresolved {
		return Decision{Outcome: OutcomePending}
	}
	if allowed(role, route) {
		return Decision{Outcome: OutcomeAllow}
	}
	return Decision{Outcome: OutcomeForbidden}
}

type roleResolver interface {
	ResolveRole(ctx context.Context, email string) (enums.Role, error)
}

// Gate resolves the caller's role and applies Authorize.
type Gate struct {
	roles roleResolver
}

func New(roles roleResolver) (*Gate, error) {
	if roles == nil {
		return nil, fmt.Errorf("role resolver required")
	}
	return &Gate{roles: roles}, nil
}

// Check returns the decision for id on route together with the resolved role.
func (g *Gate) Check(ctx context.Context, id *identity.Identity, route Route) (Decision, enums.Role, error) {
	if id == nil || id.Email == "" {
		return Authorize(false, RoleUnresolved, route), RoleUnresolved, nil
	}
	role, err := g.roles.ResolveRole(ctx, id.Email)
	if err != nil {
		return Decision{}, RoleUnresolved, err
	}
	return Authorize(true, role, route), role, nil
}
