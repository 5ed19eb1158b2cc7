package auth

import (
	"context"
	"net/http"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

/*─────────────────────────────────────────────────────────────────────────────*
| Current-User helper                                                        |
*─────────────────────────────────────────────────────────────────────────────*/

// Identity is what a validated bearer credential resolves to. It is injected
// into r.Context() by RequireBearer and handed to live connections by the gateway.
type Identity struct {
	UserID   primitive.ObjectID
	AgencyID primitive.ObjectID
	Role     string
	Name     string
}

type ctxKey string

const currentUserKey ctxKey = "currentUser"

// CurrentUser returns the identity & "found?" flag.
func CurrentUser(r *http.Request) (*Identity, bool) {
	return FromContext(r.Context())
}

// FromContext returns the identity stored in ctx, if any.
func FromContext(ctx context.Context) (*Identity, bool) {
	u, ok := ctx.Value(currentUserKey).(*Identity)
	return u, ok
}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, currentUserKey, id)
}

// WithTestUser injects id into the request context. Used by handler tests.
func WithTestUser(r *http.Request, id *Identity) *http.Request {
	return r.WithContext(WithIdentity(r.Context(), id))
}

/*─────────────────────────────────────────────────────────────────────────────*
| Bearer extraction                                                          |
*─────────────────────────────────────────────────────────────────────────────*/

// BearerToken pulls the credential from, in order:
//   - Authorization: Bearer <token>
//   - Sec-WebSocket-Protocol: bearer, <token>   (browsers cannot set headers on upgrade)
//   - ?token=<token>
//
// Returns "" when none is present.
func BearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if scheme, tok, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "bearer") {
			return strings.TrimSpace(tok)
		}
	}
	if tok := subprotocolToken(r); tok != "" {
		return tok
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

// SubprotocolBearer is the marker subprotocol that precedes the token.
const SubprotocolBearer = "bearer"

func subprotocolToken(r *http.Request) string {
	var protos []string
	for _, h := range r.Header.Values("Sec-WebSocket-Protocol") {
		for _, p := range strings.Split(h, ",") {
			protos = append(protos, strings.TrimSpace(p))
		}
	}
	for i := 0; i+1 < len(protos); i++ {
		if strings.EqualFold(protos[i], SubprotocolBearer) {
			return protos[i+1]
		}
	}
	return ""
}

/*─────────────────────────────────────────────────────────────────────────────*
| Middleware                                                                 |
*─────────────────────────────────────────────────────────────────────────────*/

// RequireBearer validates the bearer credential and injects the Identity.
// Missing or invalid credentials get a JSON 401 with a single generic reason.
func RequireBearer(v Validator, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := BearerToken(r)
			if tok == "" {
				unauthorized(w)
				return
			}
			id, err := v.Validate(tok)
			if err != nil {
				log.Debug("bearer rejected", zap.String("path", r.URL.Path), zap.Error(err))
				unauthorized(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="stratachat"`)
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized"}` + "\n"))
}
