package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CourseCategory enumerates the course catalog categories.
type CourseCategory string

// Catalog categories.
const (
	CategoryProgramming CourseCategory = "Programming"
	CategoryDesign      CourseCategory = "Design"
	CategoryBusiness    CourseCategory = "Business"
	CategoryMarketing   CourseCategory = "Marketing"
	CategoryPersonalDev CourseCategory = "Personal Development"
	CategoryTechnology  CourseCategory = "Technology"
	CategoryOther       CourseCategory = "Other"
)

// CourseLevel enumerates difficulty levels.
type CourseLevel string

// Difficulty levels.
const (
	LevelBeginner     CourseLevel = "Beginner"
	LevelIntermediate CourseLevel = "Intermediate"
	LevelAdvanced     CourseLevel = "Advanced"
)

// Course represents a published course.
//
// EnrollmentCount is a denormalized counter derived from the enrollment
// ledger; the enrollment protocol increments and decrements it and the
// reconciler can recompute it from scratch.
type Course struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title           string             `bson:"title" json:"title"`
	Description     string             `bson:"description" json:"description"`
	Instructor      string             `bson:"instructor" json:"instructor"`
	Duration        int                `bson:"duration" json:"duration"`
	Price           float64            `bson:"price" json:"price"`
	Category        CourseCategory     `bson:"category" json:"category"`
	Level           CourseLevel        `bson:"level" json:"level"`
	IsActive        bool               `bson:"is_active" json:"isActive"`
	EnrollmentCount int                `bson:"enrollment_count" json:"enrollmentCount"`
	CreatedAt       time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt       time.Time          `bson:"updated_at" json:"updatedAt"`
}

// CourseFilter encapsulates allowed parameters for listing courses.
type CourseFilter struct {
	Category CourseCategory
	Level    CourseLevel
	MinPrice *float64
	MaxPrice *float64
	Active   *bool
}

// ValidCategory reports whether c names a known catalog category.
func ValidCategory(c CourseCategory) bool {
	switch c {
	case CategoryProgramming, CategoryDesign, CategoryBusiness, CategoryMarketing,
		CategoryPersonalDev, CategoryTechnology, CategoryOther:
		return true
	}
	return false
}

// ValidLevel reports whether l names a known difficulty level.
func ValidLevel(l CourseLevel) bool {
	switch l {
	case LevelBeginner, LevelIntermediate, LevelAdvanced:
		return true
	}
	return false
}
