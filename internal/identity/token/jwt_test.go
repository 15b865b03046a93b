package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensio/internal/directory"
	id "expensio/pkg/domain"
	dErrors "expensio/pkg/domain-errors"
)

func testUser() *directory.User {
	return &directory.User{
		ID:        id.NewUserID(),
		CompanyID: id.NewCompanyID(),
		Name:      "alice",
		Role:      directory.RoleAdmin,
	}
}

func TestGenerateAndValidate(t *testing.T) {
	service := NewService("test-signing-key", time.Hour)
	user := testUser()

	signed, err := service.Generate(user)
	require.NoError(t, err)

	claims, err := service.ValidateToken(signed)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims.UserID)
	assert.Equal(t, user.CompanyID.String(), claims.CompanyID)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, "expensio", claims.Issuer)
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	service := NewService("test-signing-key", -time.Minute)

	signed, err := service.Generate(testUser())
	require.NoError(t, err)

	_, err = service.ValidateToken(signed)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestValidateRejectsForeignKey(t *testing.T) {
	signer := NewService("key-one", time.Hour)
	verifier := NewService("key-two", time.Hour)

	signed, err := signer.Generate(testUser())
	require.NoError(t, err)

	_, err = verifier.ValidateToken(signed)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestMiddlewareAdapter(t *testing.T) {
	service := NewService("test-signing-key", time.Hour)
	user := testUser()

	signed, err := service.Generate(user)
	require.NoError(t, err)

	claims, err := NewMiddlewareAdapter(service).ValidateToken(signed)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims.UserID)
	assert.Equal(t, string(user.Role), claims.Role)
}
