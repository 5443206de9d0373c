package permission

import "testing"

func TestHas(t *testing.T) {
	tests := []struct {
		name     string
		granted  Permission
		required Permission
		want     bool
	}{
		{
			name:     "Exact match",
			granted:  ViewBookings,
			required: ViewBookings,
			want:     true,
		},
		{
			name:     "Superset holds required",
			granted:  ViewBookings | CreateBookings,
			required: ViewBookings,
			want:     true,
		},
		{
			name:     "Missing one required bit",
			granted:  ViewBookings | CreateBookings,
			required: ViewBookings | CancelBookings,
			want:     false,
		},
		{
			name:     "Empty granted",
			granted:  None,
			required: ViewBookings,
			want:     false,
		},
		{
			name:     "Empty required always passes",
			granted:  None,
			required: None,
			want:     true,
		},
		{
			name:     "All covers everything",
			granted:  All,
			required: ViewAuditLogs | ManageSettings | ProcessRefunds,
			want:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Has(tt.granted, tt.required); got != tt.want {
				t.Errorf("Has(%b, %b) = %v, want %v", tt.granted, tt.required, got, tt.want)
			}
		})
	}
}

func TestDefaultsFor(t *testing.T) {
	if got := DefaultsFor(RoleAdmin); got != All {
		t.Errorf("Admin defaults = %b, want all bits set", got)
	}

	// Staff must be a strict subset of Operator, Operator of Coworker.
	staff := DefaultsFor(RoleStaff)
	operator := DefaultsFor(RoleOperator)
	coworker := DefaultsFor(RoleCoworker)

	if !Has(operator, staff) {
		t.Errorf("Operator defaults should contain Staff defaults")
	}
	if Has(staff, operator) {
		t.Errorf("Staff defaults should not contain Operator defaults")
	}
	if !Has(coworker, ViewRevenue) {
		t.Errorf("Coworker should hold ViewRevenue by default")
	}
	if Has(operator, DeleteSubUsers) {
		t.Errorf("Operator should not hold DeleteSubUsers by default")
	}

	if got := DefaultsFor(Role("Unknown")); got != None {
		t.Errorf("Unknown role defaults = %b, want none", got)
	}
}

func TestGrantRevoke(t *testing.T) {
	p := DefaultsFor(RoleStaff)

	p = Grant(p, ProcessRefunds)
	if !Has(p, ProcessRefunds) {
		t.Errorf("Grant did not add ProcessRefunds")
	}

	p = Revoke(p, ProcessRefunds|ViewBookings)
	if Has(p, ProcessRefunds) || Has(p, ViewBookings) {
		t.Errorf("Revoke did not clear bits: %b", p)
	}
	if !Has(p, ViewVenueDetails) {
		t.Errorf("Revoke cleared an unrelated bit")
	}
}

func TestRoleValid(t *testing.T) {
	for _, r := range []Role{RoleAdmin, RoleCoworker, RoleOperator, RoleStaff} {
		if !r.Valid() {
			t.Errorf("%s should be valid", r)
		}
	}
	if Role("Manager").Valid() {
		t.Errorf("Manager should not be valid")
	}
}
