// Package apiutil holds the JSON request/response helpers shared by the
// REST features.
package apiutil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dalemusser/stratachat/internal/app/system/apperr"
	"github.com/dalemusser/stratachat/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// MaxBodyBytes bounds every JSON request body.
const MaxBodyBytes = 64 << 10

var validate = validator.New()

// WriteJSON encodes v with status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError answers {"error": msg} with the status matching err's kind.
// Unclassified errors are logged and reported as 500.
func WriteError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	WriteJSON(w, status, map[string]string{"error": apperr.PublicMessage(err)})
}

// DecodeJSON reads a single JSON object into dst, rejecting unknown fields,
// then runs its validate tags. Failures are BadRequest.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.E(apperr.BadRequest, "request body is empty")
		}
		return apperr.Wrap(apperr.BadRequest, err, "malformed JSON body")
	}
	if dec.More() {
		return apperr.E(apperr.BadRequest, "request body must hold a single JSON object")
	}
	if err := validate.Struct(dst); err != nil {
		return apperr.Wrap(apperr.BadRequest, err, validationMessage(err))
	}
	return nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request body"
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", lowerFirst(fe.Field()), fe.Tag()))
	}
	return "invalid request body: " + strings.Join(parts, ", ")
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// ObjectIDParam parses the chi URL parameter name as an ObjectID.
func ObjectIDParam(r *http.Request, name string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(chi.URLParam(r, name))
	if err != nil {
		return primitive.NilObjectID, apperr.Ef(apperr.BadRequest, "invalid %s", name)
	}
	return oid, nil
}

// ParseObjectID parses a body field holding an ObjectID.
func ParseObjectID(field, hex string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, apperr.Ef(apperr.BadRequest, "invalid %s", field)
	}
	return oid, nil
}

// Caller returns the authenticated identity. RequireBearer guarantees one
// on /api routes; a missing identity is reported as Forbidden.
func Caller(r *http.Request) (*auth.Identity, error) {
	id, ok := auth.CurrentUser(r)
	if !ok {
		return nil, apperr.E(apperr.Forbidden, "not signed in")
	}
	return id, nil
}
