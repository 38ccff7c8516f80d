package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tutorhub/apiserver/types"
)

func TestUserService_Register(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	user, err := f.users.Register(ctx, RegisterInput{
		Name:     " Alice ",
		Email:    "Alice@Example.com",
		Password: "secret",
		Role:     types.RoleTutor,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "Alice", user.Name)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.NotEqual(t, "secret", user.PasswordHash)

	tests := []struct {
		name  string
		input RegisterInput
		kind  error
	}{
		{"duplicate email", RegisterInput{Name: "A", Email: "alice@example.com", Password: "x", Role: types.RoleStudent}, ErrConflict},
		{"missing name", RegisterInput{Email: "b@example.com", Password: "x", Role: types.RoleStudent}, ErrValidation},
		{"missing password", RegisterInput{Name: "B", Email: "b@example.com", Role: types.RoleStudent}, ErrValidation},
		{"unknown role", RegisterInput{Name: "B", Email: "b@example.com", Password: "x", Role: "admin"}, ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.users.Register(ctx, tt.input)
			assert.ErrorIs(t, err, tt.kind)
		})
	}
}

func TestUserService_Authenticate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "bob", types.RoleStudent)

	user, err := f.users.Authenticate(ctx, "BOB@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "bob", user.Name)

	_, err = f.users.Authenticate(ctx, "bob@example.com", "wrong")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = f.users.Authenticate(ctx, "nobody@example.com", "secret")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = f.users.Authenticate(ctx, "", "secret")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUserService_GetByIDNotFound(t *testing.T) {
	_, err := newFixture(t).users.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
