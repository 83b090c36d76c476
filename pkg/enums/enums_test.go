package enums

import "testing"

func TestParseRoleIsCaseInsensitive(t *testing.T) {
	role, err := ParseRole("superadmin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if role != RoleSuperAdmin {
		t.Fatalf("expected superAdmin got %s", role)
	}
	if _, err := ParseRole("owner"); err == nil {
		t.Fatalf("expected unknown role to fail")
	}
}

func TestRolesIsACopy(t *testing.T) {
	roles := Roles()
	roles[0] = "tampered"
	if Roles()[0] != RoleUser {
		t.Fatalf("Roles must not expose the backing slice")
	}
}

func TestAgreementStatusClassification(t *testing.T) {
	cases := map[AgreementStatus]struct{ active, terminal bool }{
		AgreementStatusPending:  {active: true, terminal: false},
		AgreementStatusAccepted: {active: true, terminal: true},
		AgreementStatusRejected: {active: false, terminal: true},
	}
	for status, want := range cases {
		if status.IsActive() != want.active {
			t.Fatalf("%s active expected %v", status, want.active)
		}
		if status.IsTerminal() != want.terminal {
			t.Fatalf("%s terminal expected %v", status, want.terminal)
		}
	}
	if _, err := ParseAgreementStatus("cancelled"); err == nil {
		t.Fatalf("expected unknown status to fail")
	}
}
