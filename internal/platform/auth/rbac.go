package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Role is the closed set of user roles. Tokens carrying any other string are
// rejected at the door so downstream code can switch exhaustively.
type Role string

const (
	RoleSystemAdmin   Role = "admin-systeme"
	RoleHospitalOwner Role = "proprietaire-hopital"
	RoleDoctor        Role = "medecin"
	RoleNurse         Role = "infirmier"
	RoleSecretary     Role = "secretaire"
	RoleStaff         Role = "personnel"
	RolePatient       Role = "patient"
)

// Roles lists every valid role.
func Roles() []Role {
	return []Role{
		RoleSystemAdmin, RoleHospitalOwner, RoleDoctor,
		RoleNurse, RoleSecretary, RoleStaff, RolePatient,
	}
}

// ParseRole validates a role string against the closed set.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleSystemAdmin, RoleHospitalOwner, RoleDoctor,
		RoleNurse, RoleSecretary, RoleStaff, RolePatient:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

func (r Role) String() string { return string(r) }

// IsClinician reports whether the role delivers care directly.
func (r Role) IsClinician() bool {
	switch r {
	case RoleDoctor, RoleNurse:
		return true
	case RoleSystemAdmin, RoleHospitalOwner, RoleSecretary, RoleStaff, RolePatient:
		return false
	}
	return false
}

// CanManageAppointments reports whether the role may create, reschedule and
// cancel any appointment. Patients still manage their own through the
// service-level ownership checks.
func (r Role) CanManageAppointments() bool {
	switch r {
	case RoleSystemAdmin, RoleHospitalOwner, RoleDoctor, RoleNurse, RoleSecretary:
		return true
	case RoleStaff, RolePatient:
		return false
	}
	return false
}

// CanRecordCare reports whether the role may write consultations, follow-ups
// and prescriptions.
func (r Role) CanRecordCare() bool {
	switch r {
	case RoleSystemAdmin, RoleDoctor, RoleNurse:
		return true
	case RoleHospitalOwner, RoleSecretary, RoleStaff, RolePatient:
		return false
	}
	return false
}

// CanManageBilling reports whether the role may issue invoices, record
// payments and edit tariffs.
func (r Role) CanManageBilling() bool {
	switch r {
	case RoleSystemAdmin, RoleHospitalOwner, RoleSecretary:
		return true
	case RoleDoctor, RoleNurse, RoleStaff, RolePatient:
		return false
	}
	return false
}

// CanManageInventory reports whether the role may adjust medication stock.
func (r Role) CanManageInventory() bool {
	switch r {
	case RoleSystemAdmin, RoleHospitalOwner, RoleNurse, RoleStaff:
		return true
	case RoleDoctor, RoleSecretary, RolePatient:
		return false
	}
	return false
}

// CanManageUsers reports whether the role may create and deactivate accounts.
func (r Role) CanManageUsers() bool {
	switch r {
	case RoleSystemAdmin, RoleHospitalOwner:
		return true
	case RoleDoctor, RoleNurse, RoleSecretary, RoleStaff, RolePatient:
		return false
	}
	return false
}

// CanManageSettings reports whether the role may edit hospital settings.
func (r Role) CanManageSettings() bool {
	switch r {
	case RoleSystemAdmin, RoleHospitalOwner:
		return true
	case RoleDoctor, RoleNurse, RoleSecretary, RoleStaff, RolePatient:
		return false
	}
	return false
}

// RequireRole returns middleware that checks if the user has one of the
// specified roles. System admins always pass.
func RequireRole(roles ...Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userRole := RoleFromContext(c.Request().Context())
			if userRole == RoleSystemAdmin {
				return next(c)
			}
			for _, required := range roles {
				if userRole == required {
					return next(c)
				}
			}
			names := make([]string, len(roles))
			for i, r := range roles {
				names[i] = string(r)
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(names, " or ")))
		}
	}
}
