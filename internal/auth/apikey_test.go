package auth

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidateAPIKey(t *testing.T) {
	svc := NewService("test-secret")

	for _, keyType := range []APIKeyType{APIKeyPortal, APIKeyService} {
		key, err := svc.GenerateAPIKey(keyType)
		require.NoError(t, err)
		require.NotEmpty(t, key)

		role, err := svc.ValidateAPIKey(key)
		require.NoError(t, err)
		require.Equal(t, string(keyType), role)
	}
}

func TestValidateAPIKey_WrongSecret(t *testing.T) {
	key, err := NewService("secret-a").GenerateAPIKey(APIKeyPortal)
	require.NoError(t, err)

	_, err = NewService("secret-b").ValidateAPIKey(key)
	require.Error(t, err)
}

func TestValidateAPIKey_Garbage(t *testing.T) {
	_, err := NewService("test-secret").ValidateAPIKey("not-a-jwt")
	require.Error(t, err)
}

func TestValidateAPIKey_UnknownRole(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"role": "superuser",
		"iss":  "reminderd",
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = NewService("test-secret").ValidateAPIKey(signed)
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid API key role")
}

func TestValidateAPIKey_MissingRole(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"iss": "reminderd"})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = NewService("test-secret").ValidateAPIKey(signed)
	require.Error(t, err)
	require.Contains(t, err.Error(), "missing role")
}

func TestValidateAPIKey_RejectsNonHMAC(t *testing.T) {
	// alg=none style tokens must not validate.
	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"role": "service"})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewService("test-secret").ValidateAPIKey(signed)
	require.Error(t, err)
}
