package identity

import (
	"context"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/trimed/hospital/internal/platform/auth"
	"github.com/trimed/hospital/pkg/apperror"
)

// Service implements account management and authentication.
type Service struct {
	users  UserRepository
	tokens *auth.TokenIssuer
	logger zerolog.Logger
}

func NewService(users UserRepository, tokens *auth.TokenIssuer, logger zerolog.Logger) *Service {
	return &Service{users: users, tokens: tokens, logger: logger}
}

// RegisterInput carries the fields accepted at account creation.
type RegisterInput struct {
	Email     string  `json:"email"`
	Password  string  `json:"password"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Phone     *string `json:"phone,omitempty"`
	Role      string  `json:"role"`
}

func (in *RegisterInput) validate() error {
	v := &apperror.ValidationError{}
	if in.Email == "" {
		v.Add("email", "email is required")
	} else if _, err := mail.ParseAddress(in.Email); err != nil {
		v.Add("email", "invalid email address")
	}
	if len(in.Password) < 8 {
		v.Add("password", "password must be at least 8 characters")
	}
	if in.LastName == "" {
		v.Add("last_name", "last name is required")
	}
	if _, err := auth.ParseRole(in.Role); err != nil {
		v.Add("role", "unknown role")
	}
	if v.HasErrors() {
		return v
	}
	return nil
}

// Register creates a new user account with a hashed password.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if existing, err := s.users.GetByEmail(ctx, in.Email); err == nil && existing != nil {
		return nil, apperror.NewConflict("email %q is already registered", in.Email)
	} else if err != nil && !apperror.IsNotFound(err) {
		return nil, err
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	role, _ := auth.ParseRole(in.Role)
	u := &User{
		Email:        in.Email,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Phone:        in.Phone,
		Role:         role,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	s.logger.Info().Str("user_id", u.ID.String()).Str("role", string(u.Role)).Msg("user registered")
	return u, nil
}

// Authenticate checks credentials and issues a JWT. The same permission
// error covers unknown email and bad password so logins cannot be used
// to enumerate accounts.
func (s *Service) Authenticate(ctx context.Context, tenantID, email, password string) (*User, string, time.Time, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, "", time.Time{}, apperror.NewPermission("invalid credentials")
		}
		return nil, "", time.Time{}, err
	}
	if !CheckPassword(u.PasswordHash, password) {
		return nil, "", time.Time{}, apperror.NewPermission("invalid credentials")
	}
	if !u.IsActive {
		return nil, "", time.Time{}, apperror.NewPermission("account is deactivated")
	}

	token, expiresAt, err := s.tokens.Issue(u.ID.String(), tenantID, u.Role)
	if err != nil {
		return nil, "", time.Time{}, err
	}

	now := time.Now().UTC()
	u.LastLoginAt = &now
	if err := s.users.Update(ctx, u); err != nil {
		s.logger.Warn().Err(err).Str("user_id", u.ID.String()).Msg("failed to record last login")
	}
	return u, token, expiresAt, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, role string, limit, offset int) ([]*User, int, error) {
	if role != "" {
		if _, err := auth.ParseRole(role); err != nil {
			return nil, 0, apperror.Validationf("role", "unknown role %q", role)
		}
	}
	return s.users.List(ctx, role, limit, offset)
}

// UpdateInput carries the mutable profile fields. Nil means unchanged.
type UpdateInput struct {
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Phone     *string `json:"phone,omitempty"`
	Role      *string `json:"role,omitempty"`
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.FirstName != nil {
		u.FirstName = *in.FirstName
	}
	if in.LastName != nil {
		if *in.LastName == "" {
			return nil, apperror.NewValidation("last_name", "last name is required")
		}
		u.LastName = *in.LastName
	}
	if in.Phone != nil {
		u.Phone = in.Phone
	}
	if in.Role != nil {
		role, err := auth.ParseRole(*in.Role)
		if err != nil {
			return nil, apperror.Validationf("role", "unknown role %q", *in.Role)
		}
		u.Role = role
	}
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// ChangePassword verifies the current password before setting a new one.
func (s *Service) ChangePassword(ctx context.Context, id uuid.UUID, current, next string) error {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !CheckPassword(u.PasswordHash, current) {
		return apperror.NewPermission("current password does not match")
	}
	if len(next) < 8 {
		return apperror.NewValidation("new_password", "password must be at least 8 characters")
	}
	hash, err := HashPassword(next)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return s.users.Update(ctx, u)
}

// Deactivate disables a user account. Tokens already issued keep working
// until they expire; middleware rejects deactivated users on profile reads.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !u.IsActive {
		return apperror.NewConflict("user is already deactivated")
	}
	u.IsActive = false
	return s.users.Update(ctx, u)
}

func (s *Service) Reactivate(ctx context.Context, id uuid.UUID) error {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if u.IsActive {
		return apperror.NewConflict("user is already active")
	}
	u.IsActive = true
	return s.users.Update(ctx, u)
}
