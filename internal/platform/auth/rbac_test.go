package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestParseRole_Valid(t *testing.T) {
	for _, r := range Roles() {
		parsed, err := ParseRole(string(r))
		if err != nil {
			t.Errorf("ParseRole(%q) returned error: %v", r, err)
		}
		if parsed != r {
			t.Errorf("ParseRole(%q) = %q", r, parsed)
		}
	}
}

func TestParseRole_Unknown(t *testing.T) {
	for _, s := range []string{"", "admin", "ADMIN-SYSTEME", "docteur", "root"} {
		if _, err := ParseRole(s); err == nil {
			t.Errorf("expected error for role %q", s)
		}
	}
}

func TestRolePermissions(t *testing.T) {
	tests := []struct {
		role         Role
		appointments bool
		care         bool
		billing      bool
		inventory    bool
		users        bool
	}{
		{RoleSystemAdmin, true, true, true, true, true},
		{RoleHospitalOwner, true, false, true, true, true},
		{RoleDoctor, true, true, false, false, false},
		{RoleNurse, true, true, false, true, false},
		{RoleSecretary, true, false, true, false, false},
		{RoleStaff, false, false, false, true, false},
		{RolePatient, false, false, false, false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			if got := tt.role.CanManageAppointments(); got != tt.appointments {
				t.Errorf("CanManageAppointments() = %v, want %v", got, tt.appointments)
			}
			if got := tt.role.CanRecordCare(); got != tt.care {
				t.Errorf("CanRecordCare() = %v, want %v", got, tt.care)
			}
			if got := tt.role.CanManageBilling(); got != tt.billing {
				t.Errorf("CanManageBilling() = %v, want %v", got, tt.billing)
			}
			if got := tt.role.CanManageInventory(); got != tt.inventory {
				t.Errorf("CanManageInventory() = %v, want %v", got, tt.inventory)
			}
			if got := tt.role.CanManageUsers(); got != tt.users {
				t.Errorf("CanManageUsers() = %v, want %v", got, tt.users)
			}
		})
	}
}

func TestRole_IsClinician(t *testing.T) {
	if !RoleDoctor.IsClinician() || !RoleNurse.IsClinician() {
		t.Error("expected doctor and nurse to be clinicians")
	}
	if RoleSecretary.IsClinician() || RolePatient.IsClinician() {
		t.Error("did not expect secretary or patient to be clinicians")
	}
}

func requestWithRole(role Role) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := context.WithValue(req.Context(), RoleKey, role)
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec)
}

func TestRequireRole_Allowed(t *testing.T) {
	c := requestWithRole(RoleSecretary)
	handler := func(c echo.Context) error { return c.String(http.StatusOK, "ok") }

	mw := RequireRole(RoleSecretary, RoleDoctor)
	if err := mw(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRequireRole_Forbidden(t *testing.T) {
	c := requestWithRole(RolePatient)
	handler := func(c echo.Context) error { return c.String(http.StatusOK, "ok") }

	mw := RequireRole(RoleSecretary, RoleDoctor)
	err := mw(handler)(c)
	if err == nil {
		t.Fatal("expected error for patient role")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", httpErr.Code)
	}
}

func TestRequireRole_SystemAdminAlwaysPasses(t *testing.T) {
	c := requestWithRole(RoleSystemAdmin)
	handler := func(c echo.Context) error { return c.String(http.StatusOK, "ok") }

	mw := RequireRole(RoleDoctor)
	if err := mw(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
