package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/tutorhub/apiserver/internal/store"
	"github.com/tutorhub/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

// RegisterInput carries the fields required to open an account.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     types.Role
}

// UserService encapsulates account use-cases.
type UserService struct {
	repo UserRepository
	cost int
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo, cost: bcrypt.DefaultCost}
}

// WithHashCost overrides the bcrypt cost, mainly to keep tests fast.
func (s *UserService) WithHashCost(cost int) *UserService {
	s.cost = cost
	return s
}

func (s *UserService) Register(ctx context.Context, input RegisterInput) (types.User, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = normalizeEmail(input.Email)
	if input.Name == "" || input.Email == "" || input.Password == "" || input.Role == "" {
		return types.User{}, validationError("missing fields")
	}
	if !input.Role.Valid() {
		return types.User{}, validationError("role must be student or tutor")
	}

	if _, err := s.repo.GetByEmail(ctx, input.Email); err == nil {
		return types.User{}, newError(ErrConflict, "email already registered")
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, fmt.Errorf("check email: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.cost)
	if err != nil {
		return types.User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.repo.Create(ctx, types.User{
		ID:           uuid.NewString(),
		Name:         input.Name,
		Email:        input.Email,
		Role:         input.Role,
		PasswordHash: string(hashed),
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.User{}, newError(ErrConflict, "email already registered")
		}
		return types.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Authenticate verifies credentials. Unknown email and wrong password are indistinguishable.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (types.User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return types.User{}, validationError("missing credentials")
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, newError(ErrUnauthenticated, "invalid credentials")
		}
		return types.User{}, fmt.Errorf("load user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return types.User{}, newError(ErrUnauthenticated, "invalid credentials")
	}
	return user, nil
}

func (s *UserService) GetByID(ctx context.Context, id string) (types.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.User{}, notFoundOr(err, "user")
	}
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
