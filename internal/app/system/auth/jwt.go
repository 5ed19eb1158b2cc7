package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrInvalidCredential is the single generic reason for any rejected token.
var ErrInvalidCredential = errors.New("invalid credential")

// Validator turns a bearer credential into an Identity. Token issuance
// happens elsewhere; this service only validates.
type Validator interface {
	Validate(token string) (*Identity, error)
}

// Claims is the payload carried by access tokens. Subject is the user id (hex).
type Claims struct {
	AgencyID string `json:"agency_id"`
	Role     string `json:"role"`
	Name     string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// JWTValidator checks HS256 signatures, expiry and (optionally) issuer.
type JWTValidator struct {
	secret []byte
	parser *jwt.Parser
}

// NewJWTValidator returns a validator for tokens signed with secret.
// An empty issuer disables the issuer check.
func NewJWTValidator(secret, issuer string) *JWTValidator {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30 * time.Second),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	return &JWTValidator{secret: []byte(secret), parser: jwt.NewParser(opts...)}
}

// Validate implements Validator.
func (v *JWTValidator) Validate(token string) (*Identity, error) {
	claims := &Claims{}
	_, err := v.parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}

	uid, err := primitive.ObjectIDFromHex(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: bad subject", ErrInvalidCredential)
	}
	aid, err := primitive.ObjectIDFromHex(claims.AgencyID)
	if err != nil {
		return nil, fmt.Errorf("%w: bad agency", ErrInvalidCredential)
	}
	return &Identity{UserID: uid, AgencyID: aid, Role: claims.Role, Name: claims.Name}, nil
}
