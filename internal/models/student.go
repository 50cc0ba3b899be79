package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Student represents a learner registered on the platform.
//
// EnrolledCourses is a denormalized projection of the enrollment ledger and
// carries set semantics: membership matters, order does not. It is kept
// current by the enrollment protocol and rebuildable by the reconciler.
type Student struct {
	ID              primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name            string               `bson:"name" json:"name"`
	Email           string               `bson:"email" json:"email"`
	Phone           string               `bson:"phone,omitempty" json:"phone,omitempty"`
	EnrolledCourses []primitive.ObjectID `bson:"enrolled_courses" json:"enrolledCourses"`
	IsActive        bool                 `bson:"is_active" json:"isActive"`
	CreatedAt       time.Time            `bson:"created_at" json:"createdAt"`
	UpdatedAt       time.Time            `bson:"updated_at" json:"updatedAt"`
}

// StudentFilter encapsulates allowed parameters for listing students.
type StudentFilter struct {
	Active *bool
}
