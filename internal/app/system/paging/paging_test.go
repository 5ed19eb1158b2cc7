package paging

import (
	"net/http/httptest"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestClampLimit(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, PageSize},
		{-5, PageSize},
		{1, 1},
		{2, 2},
		{MaxPageSize, MaxPageSize},
		{MaxPageSize + 1, MaxPageSize},
		{10000, MaxPageSize},
	}
	for _, tt := range tests {
		if got := ClampLimit(tt.in); got != tt.want {
			t.Errorf("ClampLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		url  string
		want int
	}{
		{"/x", PageSize},
		{"/x?limit=abc", PageSize},
		{"/x?limit=2", 2},
		{"/x?limit=500", MaxPageSize},
	}
	for _, tt := range tests {
		r := httptest.NewRequest("GET", tt.url, nil)
		if got := ParseLimit(r); got != tt.want {
			t.Errorf("ParseLimit(%q) = %d, want %d", tt.url, got, tt.want)
		}
	}
}

func TestParseBefore(t *testing.T) {
	oid := primitive.NewObjectID()

	r := httptest.NewRequest("GET", "/x?before="+oid.Hex(), nil)
	got, err := ParseBefore(r)
	if err != nil {
		t.Fatalf("ParseBefore: %v", err)
	}
	if got == nil || *got != oid {
		t.Errorf("ParseBefore = %v, want %v", got, oid)
	}

	r = httptest.NewRequest("GET", "/x", nil)
	if got, err := ParseBefore(r); err != nil || got != nil {
		t.Errorf("ParseBefore(empty) = %v, %v; want nil, nil", got, err)
	}

	r = httptest.NewRequest("GET", "/x?before=nope", nil)
	if _, err := ParseBefore(r); err != ErrBadCursor {
		t.Errorf("ParseBefore(bad) err = %v, want ErrBadCursor", err)
	}
}

func TestBeforeFilter(t *testing.T) {
	f := BeforeFilter(bson.M{"channel_id": 1}, nil)
	if _, ok := f["_id"]; ok {
		t.Error("expected no _id window when before is nil")
	}

	oid := primitive.NewObjectID()
	f = BeforeFilter(bson.M{}, &oid)
	w, ok := f["_id"].(bson.M)
	if !ok || w["$lt"] != oid {
		t.Errorf("_id window = %v, want $lt %v", f["_id"], oid)
	}
}

func TestNextBefore(t *testing.T) {
	ids := []primitive.ObjectID{primitive.NewObjectID(), primitive.NewObjectID()}
	idFn := func(o primitive.ObjectID) primitive.ObjectID { return o }

	if got := NextBefore(ids, 2, idFn); got != ids[0].Hex() {
		t.Errorf("NextBefore full page = %q, want %q", got, ids[0].Hex())
	}
	if got := NextBefore(ids, 3, idFn); got != "" {
		t.Errorf("NextBefore short page = %q, want empty", got)
	}
}
