package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/stratachat/internal/app/system/auth"
	"github.com/dalemusser/stratachat/internal/domain/models"
	"github.com/golang-jwt/jwt/v5"
)

// TestJWTSecret signs tokens minted by MintToken.
const TestJWTSecret = "stratachat-test-secret"

// TestJWTIssuer is the issuer MintToken stamps on tokens.
const TestJWTIssuer = "stratachat-test"

// Identity returns the auth identity for u.
func Identity(u models.User) *auth.Identity {
	return &auth.Identity{UserID: u.ID, AgencyID: u.AgencyID, Role: u.Role, Name: u.FullName}
}

// WithUser adds u to the request context, bypassing bearer validation.
func WithUser(r *http.Request, u models.User) *http.Request {
	return auth.WithTestUser(r, Identity(u))
}

// NewJSONRequest builds a request with body encoded as JSON.
func NewJSONRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}
	r := httptest.NewRequest(method, target, &buf)
	r.Header.Set("Content-Type", "application/json")
	return r
}

// MintToken signs a token for u that validates against TestJWTSecret/TestJWTIssuer.
func MintToken(t *testing.T, u models.User, ttl time.Duration) string {
	t.Helper()
	claims := auth.Claims{
		AgencyID: u.AgencyID.Hex(),
		Role:     u.Role,
		Name:     u.FullName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID.Hex(),
			Issuer:    TestJWTIssuer,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(TestJWTSecret))
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return tok
}

// ResponseRecorder wraps httptest.ResponseRecorder with helper methods.
type ResponseRecorder struct {
	*httptest.ResponseRecorder
}

// NewRecorder creates a new ResponseRecorder.
func NewRecorder() *ResponseRecorder {
	return &ResponseRecorder{httptest.NewRecorder()}
}

// AssertStatus checks the response status code.
func (r *ResponseRecorder) AssertStatus(t interface{ Errorf(string, ...any) }, expected int) {
	if r.Code != expected {
		t.Errorf("status code: got %d, want %d (body %q)", r.Code, expected, r.Body.String())
	}
}

// AssertContains checks if the response body contains the expected string.
func (r *ResponseRecorder) AssertContains(t interface{ Errorf(string, ...any) }, expected string) {
	if !strings.Contains(r.Body.String(), expected) {
		t.Errorf("response body does not contain %q", expected)
	}
}

// DecodeJSON decodes the recorded body into v.
func (r *ResponseRecorder) DecodeJSON(t *testing.T, v any) {
	t.Helper()
	if err := json.Unmarshal(r.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", r.Body.String(), err)
	}
}
