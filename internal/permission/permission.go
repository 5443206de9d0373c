package permission

// Permission is a bitmask over independently-grantable venue capabilities.
// A sub-user's effective rights are the bitwise OR of the granted flags;
// role defaults only seed the mask, the mask itself is authoritative.
type Permission uint32

const (
	ViewVenueDetails Permission = 1 << iota
	EditVenueDetails
	ManagePhotos
	ManagePricing
	ManageAvailability
	ViewBookings
	CreateBookings
	EditBookings
	CancelBookings
	CheckInGuests
	ViewCustomers
	ManageCustomers
	ViewRevenue
	ViewReports
	ProcessPayments
	ProcessRefunds
	ManageDiscounts
	CreateSubUsers
	EditSubUsers
	DeleteSubUsers
	ManageRoles
	ViewAuditLogs
	ManageSettings
)

// None is the empty permission set.
const None Permission = 0

// All is every defined capability.
const All Permission = 1<<23 - 1

// Role is advisory only: it selects a default permission set at creation
// time and has no runtime authority of its own.
type Role string

const (
	RoleAdmin    Role = "Admin"
	RoleCoworker Role = "Coworker"
	RoleOperator Role = "Operator"
	RoleStaff    Role = "Staff"
)

// defaults maps each role to its default permission set. Loaded once and
// never mutated; callers receive copies via DefaultsFor.
var defaults = map[Role]Permission{
	RoleAdmin: All,
	RoleCoworker: ViewVenueDetails | EditVenueDetails | ManagePhotos | ManagePricing |
		ManageAvailability | ViewBookings | CreateBookings | EditBookings |
		CancelBookings | CheckInGuests | ViewCustomers | ManageCustomers |
		ViewRevenue | ViewReports | ManageDiscounts | CreateSubUsers | EditSubUsers,
	RoleOperator: ViewVenueDetails | ViewBookings | CreateBookings | EditBookings |
		CancelBookings | CheckInGuests | ViewCustomers | ProcessPayments,
	RoleStaff: ViewVenueDetails | ViewBookings | CheckInGuests,
}

// DefaultsFor returns the default permission set for a role.
// Unknown roles get no permissions.
func DefaultsFor(role Role) Permission {
	return defaults[role]
}

// Valid reports whether the role is one of the defined roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleCoworker, RoleOperator, RoleStaff:
		return true
	}
	return false
}

// Has reports whether granted contains every bit of required.
// Subset test: a holder may carry a superset of the checked bits.
func Has(granted, required Permission) bool {
	return granted&required == required
}

// Grant returns granted with the extra bits added.
func Grant(granted, extra Permission) Permission {
	return granted | extra
}

// Revoke returns granted with the removed bits cleared.
func Revoke(granted, removed Permission) Permission {
	return granted &^ removed
}
