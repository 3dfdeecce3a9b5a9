package jwt

import (
	"context"
	"errors"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const (
	ClaimSubject   = "sub"
	ClaimCompanyID = "company_id"
	ClaimType      = "type"

	TokenTypeAccess = "access"
)

var ErrMissingCompany = errors.New("token carries no company")

// Service verifies tenant tokens. Issuance lives elsewhere; GenerateAccessToken
// exists for local tooling and tests.
type Service interface {
	GenerateAccessToken(subject string, companyID string) (token string, expiresAt int64, err error)
	JWTAuth() *jwtauth.JWTAuth
}

type JWTService struct {
	accessTokenExpirationTime string
	tokenAuth                 *jwtauth.JWTAuth
}

func NewJWTService(secretKey string, accessTokenExpirationTime string) Service {
	return &JWTService{
		accessTokenExpirationTime: accessTokenExpirationTime,
		tokenAuth:                 jwtauth.New("HS256", []byte(secretKey), nil, jwt.WithAcceptableSkew(30*time.Second)),
	}
}

func (j *JWTService) JWTAuth() *jwtauth.JWTAuth {
	return j.tokenAuth
}

func (j *JWTService) GenerateAccessToken(subject string, companyID string) (token string, expiresAt int64, err error) {
	if companyID == "" {
		return "", 0, ErrMissingCompany
	}
	expDuration, err := time.ParseDuration(j.accessTokenExpirationTime)
	if err != nil {
		return "", 0, err
	}
	expiresAt = time.Now().Add(expDuration).Unix()

	claims := map[string]interface{}{
		ClaimSubject:   subject,
		ClaimCompanyID: companyID,
		ClaimType:      TokenTypeAccess,
		"iat":          time.Now().Unix(),
		"exp":          expiresAt,
	}

	_, tokenString, err := j.tokenAuth.Encode(claims)
	return tokenString, expiresAt, err
}

// CompanyID reads the tenant of the verified token stored in ctx by
// jwtauth.Verifier.
func CompanyID(ctx context.Context) (string, error) {
	_, claims, err := jwtauth.FromContext(ctx)
	if err != nil {
		return "", err
	}
	companyID, ok := claims[ClaimCompanyID].(string)
	if !ok || companyID == "" {
		return "", ErrMissingCompany
	}
	return companyID, nil
}
