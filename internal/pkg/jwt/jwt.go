package jwt

import (
	"errors"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const (
	TokenTypeAccess = "access"
	TokenTypeStream = "stream"
)

var (
	ErrInvalidToken      = errors.New("invalid token")
	ErrTokenRunMismatch  = errors.New("token was not issued for this run")
	ErrMissingCompanyID  = errors.New("token has no company")
	ErrInvalidExpiration = errors.New("token expiration must be positive")
)

// Claims are the identity fields the payroll API reads from a bearer token.
type Claims struct {
	UserID    string
	CompanyID string
	Role      string
}

// StreamClaims identify a short-lived token that opens one run's progress stream.
type StreamClaims struct {
	UserID    string
	CompanyID string
	RunID     string
}

type Service interface {
	GenerateAccessToken(claims Claims, ttl time.Duration) (token string, expiresAt int64, err error)
	GenerateStreamToken(claims StreamClaims) (token string, expiresIn int, err error)
	ValidateStreamToken(tokenString, runID string) (StreamClaims, error)
	JWTAuth() *jwtauth.JWTAuth
}

type JWTService struct {
	tokenAuth         *jwtauth.JWTAuth
	streamTokenExpiry time.Duration
	now               func() time.Time
}

func (j *JWTService) JWTAuth() *jwtauth.JWTAuth {
	return j.tokenAuth
}

func NewJWTService(secretKey string, streamTokenExpiry time.Duration) Service {
	if streamTokenExpiry <= 0 {
		streamTokenExpiry = 5 * time.Minute
	}
	return &JWTService{
		tokenAuth:         jwtauth.New("HS256", []byte(secretKey), nil, jwt.WithAcceptableSkew(30*time.Second)),
		streamTokenExpiry: streamTokenExpiry,
		now:               time.Now,
	}
}

// GenerateAccessToken issues an access token. Login lives outside this service; tokens
// minted here serve tooling and tests.
func (j *JWTService) GenerateAccessToken(claims Claims, ttl time.Duration) (token string, expiresAt int64, err error) {
	if ttl <= 0 {
		return "", 0, ErrInvalidExpiration
	}
	if claims.CompanyID == "" {
		return "", 0, ErrMissingCompanyID
	}
	expiresAt = j.now().Add(ttl).Unix()

	_, tokenString, err := j.tokenAuth.Encode(map[string]interface{}{
		"user_id":    claims.UserID,
		"company_id": claims.CompanyID,
		"role":       claims.Role,
		"type":       TokenTypeAccess,
		"exp":        expiresAt,
	})
	return tokenString, expiresAt, err
}

// GenerateStreamToken issues a token that only opens the progress stream of claims.RunID.
// EventSource cannot send headers, so the stream reads it from the query string.
func (j *JWTService) GenerateStreamToken(claims StreamClaims) (token string, expiresIn int, err error) {
	if claims.CompanyID == "" {
		return "", 0, ErrMissingCompanyID
	}
	expiresAt := j.now().Add(j.streamTokenExpiry).Unix()

	_, tokenString, err := j.tokenAuth.Encode(map[string]interface{}{
		"user_id":    claims.UserID,
		"company_id": claims.CompanyID,
		"run_id":     claims.RunID,
		"type":       TokenTypeStream,
		"exp":        expiresAt,
	})
	if err != nil {
		return "", 0, err
	}

	return tokenString, int(j.streamTokenExpiry.Seconds()), nil
}

// ValidateStreamToken verifies signature and expiry, then checks the token belongs to runID.
func (j *JWTService) ValidateStreamToken(tokenString, runID string) (StreamClaims, error) {
	token, err := jwtauth.VerifyToken(j.tokenAuth, tokenString)
	if err != nil {
		return StreamClaims{}, err
	}

	if tokenType, _ := stringClaim(token, "type"); tokenType != TokenTypeStream {
		return StreamClaims{}, ErrInvalidToken
	}

	var claims StreamClaims
	claims.UserID, _ = stringClaim(token, "user_id")
	claims.RunID, _ = stringClaim(token, "run_id")
	companyID, ok := stringClaim(token, "company_id")
	if !ok || companyID == "" {
		return StreamClaims{}, ErrMissingCompanyID
	}
	claims.CompanyID = companyID

	if claims.RunID != runID {
		return StreamClaims{}, ErrTokenRunMismatch
	}
	return claims, nil
}

// ClaimsFromMap reads access claims from a decoded token map.
func ClaimsFromMap(m map[string]interface{}) (Claims, error) {
	if t, _ := m["type"].(string); t != TokenTypeAccess {
		return Claims{}, ErrInvalidToken
	}
	companyID, _ := m["company_id"].(string)
	if companyID == "" {
		return Claims{}, ErrMissingCompanyID
	}
	userID, _ := m["user_id"].(string)
	role, _ := m["role"].(string)
	return Claims{UserID: userID, CompanyID: companyID, Role: role}, nil
}

func stringClaim(token jwt.Token, name string) (string, bool) {
	v, ok := token.Get(name)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
