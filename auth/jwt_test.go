package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndVerify(t *testing.T) {
	SetSecret("test-secret")
	actorID := uuid.New()

	token, err := GenerateJWT(actorID, time.Hour)
	require.NoError(t, err)

	parsed, err := VerifyJWT(token)
	require.NoError(t, err)

	got, err := GetDataFromToken(parsed)
	require.NoError(t, err)
	assert.Equal(t, actorID, got)
}

func TestVerifyJWT_Expired(t *testing.T) {
	SetSecret("test-secret")

	token, err := GenerateJWT(uuid.New(), -time.Minute)
	require.NoError(t, err)

	_, err = VerifyJWT(token)
	assert.Error(t, err)
}

func TestVerifyJWT_WrongSecret(t *testing.T) {
	SetSecret("one")
	token, err := GenerateJWT(uuid.New(), time.Hour)
	require.NoError(t, err)

	SetSecret("two")
	_, err = VerifyJWT(token)
	assert.Error(t, err)
}

func TestVerifyJWT_RejectsNoneAlgorithm(t *testing.T) {
	SetSecret("test-secret")
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: uuid.NewString()})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = VerifyJWT(token)
	assert.Error(t, err)
}
