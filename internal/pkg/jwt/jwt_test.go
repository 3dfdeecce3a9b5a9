package jwt_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cmlabs-hris/attendance-sync/internal/pkg/jwt"
	"github.com/go-chi/jwtauth/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAccessToken_RoundTrip(t *testing.T) {
	svc := jwt.NewJWTService("secret", "15m")

	token, expiresAt, err := svc.GenerateAccessToken("operator", "C1")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Positive(t, expiresAt)

	var companyID string
	h := jwtauth.Verifier(svc.JWTAuth())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		companyID, err = jwt.CompanyID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	h.ServeHTTP(httptest.NewRecorder(), req)

	require.NoError(t, err)
	assert.Equal(t, "C1", companyID)
}

func TestGenerateAccessToken_Errors(t *testing.T) {
	_, _, err := jwt.NewJWTService("secret", "15m").GenerateAccessToken("operator", "")
	assert.ErrorIs(t, err, jwt.ErrMissingCompany)

	_, _, err = jwt.NewJWTService("secret", "soon").GenerateAccessToken("operator", "C1")
	assert.Error(t, err)
}

func TestCompanyID_NoToken(t *testing.T) {
	_, err := jwt.CompanyID(context.Background())
	assert.Error(t, err)
}
