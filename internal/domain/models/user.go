// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User roles as supplied by the user/agency directory. Only AgencyAdmin
// carries extra capability here (it may notify any user in its agency).
const (
	RoleAgencyAdmin = "agency_admin"
	RoleAgent       = "agent"
	RoleStaff       = "staff"
)

// User is owned by the user/agency directory; this service only reads it.
type User struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	AgencyID   primitive.ObjectID `bson:"agency_id" json:"agencyId"`
	FullName   string             `bson:"full_name" json:"fullName"`
	FullNameCI string             `bson:"full_name_ci" json:"-"` // lowercase, diacritics-stripped
	Email      string             `bson:"email" json:"email"`
	Role       string             `bson:"role" json:"role"`
	Status     string             `bson:"status,omitempty" json:"status,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

// UserSummary is the public slice of a user shown next to messages and members.
type UserSummary struct {
	ID       primitive.ObjectID `bson:"_id" json:"id"`
	FullName string             `bson:"full_name" json:"fullName"`
}

// Summary returns the public summary for u.
func (u User) Summary() UserSummary {
	return UserSummary{ID: u.ID, FullName: u.FullName}
}
