// internal/app/system/paging/paging.go
package paging

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PageSize is the default number of rows returned by history and inbox lists.
const PageSize = 50

// MaxPageSize is the hard upper bound a caller may request.
const MaxPageSize = 100

// ErrBadCursor is returned when a "before" cursor is not a valid id.
var ErrBadCursor = errors.New("invalid before cursor")

// ClampLimit maps a requested limit into [1, MaxPageSize].
// Zero or negative selects PageSize.
func ClampLimit(n int) int {
	switch {
	case n <= 0:
		return PageSize
	case n > MaxPageSize:
		return MaxPageSize
	default:
		return n
	}
}

// ParseLimit reads the "limit" query parameter and clamps it.
// Missing or unparsable values select PageSize.
func ParseLimit(r *http.Request) int {
	s := query.Get(r, "limit")
	if s == "" {
		return PageSize
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return PageSize
	}
	return ClampLimit(n)
}

// ParseBefore reads the "before" query parameter. An empty value yields nil.
func ParseBefore(r *http.Request) (*primitive.ObjectID, error) {
	s := query.Get(r, "before")
	if s == "" {
		return nil, nil
	}
	oid, err := primitive.ObjectIDFromHex(s)
	if err != nil {
		return nil, ErrBadCursor
	}
	return &oid, nil
}

// BeforeFilter adds an "_id < before" window to filter when before is set.
// ObjectIDs are monotonic per process, so _id order is insertion order.
func BeforeFilter(filter bson.M, before *primitive.ObjectID) bson.M {
	if before != nil {
		filter["_id"] = bson.M{"$lt": *before}
	}
	return filter
}

// NewestFirst is the sort used to fetch the most recent page.
func NewestFirst() bson.D {
	return bson.D{{Key: "_id", Value: -1}}
}

// NextBefore returns the cursor for the next older page given a
// chronological slice: the id of its oldest element. Returns "" when rows
// is shorter than limit (no older page).
func NextBefore[T any](rows []T, limit int, idFn func(T) primitive.ObjectID) string {
	if len(rows) == 0 || len(rows) < limit {
		return ""
	}
	return idFn(rows[0]).Hex()
}
