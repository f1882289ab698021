package identity

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/trimed/hospital/internal/platform/auth"
	"github.com/trimed/hospital/pkg/apperror"
)

type mockUserRepo struct {
	users map[uuid.UUID]*User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[uuid.UUID]*User)}
}

func (m *mockUserRepo) Create(_ context.Context, u *User) error {
	u.ID = uuid.New()
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id uuid.UUID) (*User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, apperror.NewNotFound("user")
	}
	cp := *u
	return &cp, nil
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*User, error) {
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperror.NewNotFound("user")
}

func (m *mockUserRepo) Update(_ context.Context, u *User) error {
	if _, ok := m.users[u.ID]; !ok {
		return apperror.NewNotFound("user")
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *mockUserRepo) List(_ context.Context, role string, limit, offset int) ([]*User, int, error) {
	var out []*User
	for _, u := range m.users {
		if role == "" || string(u.Role) == role {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, len(out), nil
}

func newTestService() (*Service, *mockUserRepo) {
	repo := newMockUserRepo()
	tokens := auth.NewTokenIssuer([]byte("test-secret"), "hospital-test")
	return NewService(repo, tokens, zerolog.Nop()), repo
}

func validRegisterInput() RegisterInput {
	return RegisterInput{
		Email:     "marie.dupont@hopital.fr",
		Password:  "s3cret-pass",
		FirstName: "Marie",
		LastName:  "Dupont",
		Role:      string(auth.RoleDoctor),
	}
}

func TestRegister_HashesPassword(t *testing.T) {
	svc, _ := newTestService()

	u, err := svc.Register(context.Background(), validRegisterInput())
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if u.PasswordHash == "s3cret-pass" {
		t.Fatal("password stored in plaintext")
	}
	if !CheckPassword(u.PasswordHash, "s3cret-pass") {
		t.Fatal("stored hash does not verify the original password")
	}
	if !u.IsActive {
		t.Error("new users should be active")
	}
	if u.FullName() != "Marie Dupont" {
		t.Errorf("FullName = %q", u.FullName())
	}
}

func TestRegister_Validation(t *testing.T) {
	svc, _ := newTestService()

	cases := []struct {
		name   string
		mutate func(*RegisterInput)
		field  string
	}{
		{"missing email", func(in *RegisterInput) { in.Email = "" }, "email"},
		{"malformed email", func(in *RegisterInput) { in.Email = "not-an-email" }, "email"},
		{"short password", func(in *RegisterInput) { in.Password = "abc" }, "password"},
		{"missing last name", func(in *RegisterInput) { in.LastName = "" }, "last_name"},
		{"unknown role", func(in *RegisterInput) { in.Role = "astronaute" }, "role"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validRegisterInput()
			tc.mutate(&in)
			_, err := svc.Register(context.Background(), in)
			v, ok := apperror.AsValidation(err)
			if !ok {
				t.Fatalf("expected validation error, got %v", err)
			}
			if _, found := v.Fields[tc.field]; !found {
				t.Errorf("expected error on field %q, got %v", tc.field, v.Fields)
			}
		})
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, _ := newTestService()

	if _, err := svc.Register(context.Background(), validRegisterInput()); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	_, err := svc.Register(context.Background(), validRegisterInput())
	if !apperror.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestAuthenticate_RoundTrip(t *testing.T) {
	svc, repo := newTestService()

	created, err := svc.Register(context.Background(), validRegisterInput())
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	u, token, expiresAt, err := svc.Authenticate(context.Background(), "hopital_central", "marie.dupont@hopital.fr", "s3cret-pass")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if token == "" {
		t.Fatal("expected a token")
	}
	if expiresAt.IsZero() {
		t.Fatal("expected an expiry")
	}
	if u.ID != created.ID {
		t.Errorf("user id = %s, want %s", u.ID, created.ID)
	}
	if stored := repo.users[created.ID]; stored.LastLoginAt == nil {
		t.Error("last login not recorded")
	}
}

func TestAuthenticate_WrongPassword(t *testing.T) {
	svc, _ := newTestService()
	if _, err := svc.Register(context.Background(), validRegisterInput()); err != nil {
		t.Fatalf("Register: %v", err)
	}
	_, _, _, err := svc.Authenticate(context.Background(), "t", "marie.dupont@hopital.fr", "wrong")
	if _, ok := err.(*apperror.PermissionError); !ok {
		t.Fatalf("expected permission error, got %v", err)
	}
}

func TestAuthenticate_UnknownEmail(t *testing.T) {
	svc, _ := newTestService()
	_, _, _, err := svc.Authenticate(context.Background(), "t", "nobody@hopital.fr", "whatever")
	if _, ok := err.(*apperror.PermissionError); !ok {
		t.Fatalf("expected permission error, got %v", err)
	}
}

func TestAuthenticate_DeactivatedUser(t *testing.T) {
	svc, _ := newTestService()
	u, err := svc.Register(context.Background(), validRegisterInput())
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := svc.Deactivate(context.Background(), u.ID); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	_, _, _, err = svc.Authenticate(context.Background(), "t", u.Email, "s3cret-pass")
	if _, ok := err.(*apperror.PermissionError); !ok {
		t.Fatalf("expected permission error, got %v", err)
	}
}

func TestDeactivate_AlreadyInactive(t *testing.T) {
	svc, _ := newTestService()
	u, _ := svc.Register(context.Background(), validRegisterInput())
	if err := svc.Deactivate(context.Background(), u.ID); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	if err := svc.Deactivate(context.Background(), u.ID); !apperror.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestReactivate(t *testing.T) {
	svc, repo := newTestService()
	u, _ := svc.Register(context.Background(), validRegisterInput())
	if err := svc.Deactivate(context.Background(), u.ID); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	if err := svc.Reactivate(context.Background(), u.ID); err != nil {
		t.Fatalf("Reactivate: %v", err)
	}
	if !repo.users[u.ID].IsActive {
		t.Error("user should be active again")
	}
}

func TestUpdate(t *testing.T) {
	svc, _ := newTestService()
	u, _ := svc.Register(context.Background(), validRegisterInput())

	newName := "Martin"
	phone := "+33 6 12 34 56 78"
	role := string(auth.RoleNurse)
	updated, err := svc.Update(context.Background(), u.ID, UpdateInput{
		LastName: &newName,
		Phone:    &phone,
		Role:     &role,
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.LastName != "Martin" {
		t.Errorf("LastName = %q", updated.LastName)
	}
	if updated.Phone == nil || *updated.Phone != phone {
		t.Error("phone not updated")
	}
	if updated.Role != auth.RoleNurse {
		t.Errorf("Role = %q", updated.Role)
	}
}

func TestUpdate_UnknownRole(t *testing.T) {
	svc, _ := newTestService()
	u, _ := svc.Register(context.Background(), validRegisterInput())
	bad := "pilote"
	_, err := svc.Update(context.Background(), u.ID, UpdateInput{Role: &bad})
	if _, ok := apperror.AsValidation(err); !ok {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	svc, _ := newTestService()
	u, _ := svc.Register(context.Background(), validRegisterInput())

	if err := svc.ChangePassword(context.Background(), u.ID, "wrong", "new-password-1"); err == nil {
		t.Fatal("expected error with wrong current password")
	}
	if err := svc.ChangePassword(context.Background(), u.ID, "s3cret-pass", "short"); err == nil {
		t.Fatal("expected error with short new password")
	}
	if err := svc.ChangePassword(context.Background(), u.ID, "s3cret-pass", "new-password-1"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if _, _, _, err := svc.Authenticate(context.Background(), "t", u.Email, "new-password-1"); err != nil {
		t.Fatalf("Authenticate with new password: %v", err)
	}
}

func TestList_FilterByRole(t *testing.T) {
	svc, _ := newTestService()
	if _, err := svc.Register(context.Background(), validRegisterInput()); err != nil {
		t.Fatalf("Register: %v", err)
	}
	in := validRegisterInput()
	in.Email = "jean.petit@hopital.fr"
	in.Role = string(auth.RoleSecretary)
	if _, err := svc.Register(context.Background(), in); err != nil {
		t.Fatalf("Register: %v", err)
	}

	doctors, total, err := svc.List(context.Background(), string(auth.RoleDoctor), 20, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 1 || len(doctors) != 1 {
		t.Fatalf("expected 1 doctor, got %d", total)
	}

	if _, _, err := svc.List(context.Background(), "cosmonaute", 20, 0); err == nil {
		t.Fatal("expected validation error for unknown role filter")
	}
}
