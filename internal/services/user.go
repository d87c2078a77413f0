package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/safeher/apiserver/internal/store"
	"github.com/safeher/apiserver/types"
)

// UserService encapsulates account use-cases.
type UserService struct {
	repo   UserRepository
	hasher PasswordHasher
}

func NewUserService(repo UserRepository, hasher PasswordHasher) *UserService {
	return &UserService{repo: repo, hasher: hasher}
}

func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

// Register creates an active account with the user role.
func (s *UserService) Register(ctx context.Context, email, password, fullName string) (types.User, error) {
	return s.createAccount(ctx, email, password, fullName, types.RoleUser)
}

// CreateWithRole provisions an account with an explicit role.
func (s *UserService) CreateWithRole(ctx context.Context, actor types.Actor, email, password, fullName string, role types.Role) (types.User, error) {
	if !actor.IsAdmin() {
		return types.User{}, ErrForbidden
	}
	if !role.Valid() {
		return types.User{}, invalid("role", "invalid role %q", role)
	}
	return s.createAccount(ctx, email, password, fullName, role)
}

// Authenticate checks credentials. Unknown emails and wrong passwords are
// indistinguishable to the caller.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (types.User, error) {
	user, err := s.repo.GetByEmail(ctx, types.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrInvalidCredentials
		}
		return types.User{}, err
	}
	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		return types.User{}, ErrInvalidCredentials
	}
	if !user.IsActive {
		return types.User{}, ErrAccountDeactivated
	}
	return user, nil
}

// SetActive activates or deactivates an account.
func (s *UserService) SetActive(ctx context.Context, actor types.Actor, userID int, active bool) (types.User, error) {
	if !actor.IsAdmin() {
		return types.User{}, ErrForbidden
	}
	return s.repo.SetActive(ctx, userID, active)
}

// List returns every account, newest first.
func (s *UserService) List(ctx context.Context, actor types.Actor) ([]types.User, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	return s.repo.List(ctx)
}

// EnsureAdmin creates the admin account unless the email is already
// registered. created is false when the account existed.
func (s *UserService) EnsureAdmin(ctx context.Context, email, password, fullName string) (user types.User, created bool, err error) {
	existing, err := s.repo.GetByEmail(ctx, types.NormalizeEmail(email))
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, false, err
	}
	user, err = s.createAccount(ctx, email, password, fullName, types.RoleAdmin)
	if err != nil {
		return types.User{}, false, err
	}
	return user, true, nil
}

// bcrypt only hashes the first 72 bytes and refuses longer input.
const (
	maxPasswordBytes = 72
	maxEmailLen      = 255
	maxFullNameLen   = 255
)

func (s *UserService) createAccount(ctx context.Context, email, password, fullName string, role types.Role) (types.User, error) {
	email = types.NormalizeEmail(email)
	fullName = strings.TrimSpace(fullName)
	switch {
	case email == "":
		return types.User{}, invalid("email", "email is required")
	case password == "":
		return types.User{}, invalid("password", "password is required")
	case fullName == "":
		return types.User{}, invalid("full_name", "full_name is required")
	case len(password) > maxPasswordBytes:
		return types.User{}, invalid("password", "password must be at most %d bytes", maxPasswordBytes)
	case utf8.RuneCountInString(email) > maxEmailLen:
		return types.User{}, invalid("email", "email must be at most %d characters", maxEmailLen)
	case utf8.RuneCountInString(fullName) > maxFullNameLen:
		return types.User{}, invalid("full_name", "full_name must be at most %d characters", maxFullNameLen)
	}

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return types.User{}, ErrEmailTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, err
	}

	hashed, err := s.hasher.Hash(password)
	if err != nil {
		return types.User{}, err
	}

	user, err := s.repo.Create(ctx, types.User{
		Email:        email,
		FullName:     fullName,
		Role:         role,
		IsActive:     true,
		PasswordHash: hashed,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.User{}, ErrEmailTaken
		}
		return types.User{}, err
	}
	return user, nil
}
