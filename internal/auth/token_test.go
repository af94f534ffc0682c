package auth

import (
	"testing"
	"time"

	"courtmaster/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokens_RoundTrip(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)
	user := &domain.User{ID: uuid.New(), Email: "a@b.c", Role: domain.RoleStaff}

	tok, err := tokens.Mint(user, time.Now())
	require.NoError(t, err)

	actor, err := tokens.Validate(tok)
	require.NoError(t, err)
	assert.Equal(t, user.ID, actor.UserID)
	assert.Equal(t, domain.RoleStaff, actor.Role)
}

func TestTokens_Rejects(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)
	user := &domain.User{ID: uuid.New(), Role: domain.RoleCustomer}

	expired, err := tokens.Mint(user, time.Now().Add(-2*time.Hour))
	require.NoError(t, err)
	_, err = tokens.Validate(expired)
	assert.Error(t, err)

	foreign, err := NewTokens("other", time.Hour).Mint(user, time.Now())
	require.NoError(t, err)
	_, err = tokens.Validate(foreign)
	assert.Error(t, err)

	_, err = tokens.Validate("")
	assert.Error(t, err)
}
