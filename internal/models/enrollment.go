package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusActive    EnrollmentStatus = "active"
	EnrollmentStatusCompleted EnrollmentStatus = "completed"
	EnrollmentStatusDropped   EnrollmentStatus = "dropped"
)

// Enrollment is the ledger record binding a student to a course. The
// collection carries a unique (student_id, course_id) index; this ledger is
// the source of truth from which Student.EnrolledCourses and
// Course.EnrollmentCount are derived.
type Enrollment struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	StudentID      primitive.ObjectID `bson:"student_id" json:"student"`
	CourseID       primitive.ObjectID `bson:"course_id" json:"course"`
	EnrollmentDate time.Time          `bson:"enrollment_date" json:"enrollmentDate"`
	Progress       float64            `bson:"progress" json:"progress"`
	Status         EnrollmentStatus   `bson:"status" json:"status"`
	CreatedAt      time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt      time.Time          `bson:"updated_at" json:"updatedAt"`
}

// EnrollmentStudent is the minimal student projection joined onto details.
type EnrollmentStudent struct {
	ID    primitive.ObjectID `bson:"_id" json:"id"`
	Name  string             `bson:"name" json:"name"`
	Email string             `bson:"email" json:"email"`
}

// EnrollmentCourse is the minimal course projection joined onto details.
type EnrollmentCourse struct {
	ID         primitive.ObjectID `bson:"_id" json:"id"`
	Title      string             `bson:"title" json:"title"`
	Instructor string             `bson:"instructor" json:"instructor"`
	Price      float64            `bson:"price" json:"price"`
}

// EnrollmentDetail enriches an Enrollment with joined student and course data.
type EnrollmentDetail struct {
	ID             primitive.ObjectID `bson:"_id" json:"id"`
	Student        *EnrollmentStudent `bson:"student" json:"student"`
	Course         *EnrollmentCourse  `bson:"course" json:"course"`
	EnrollmentDate time.Time          `bson:"enrollment_date" json:"enrollmentDate"`
	Progress       float64            `bson:"progress" json:"progress"`
	Status         EnrollmentStatus   `bson:"status" json:"status"`
	CreatedAt      time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt      time.Time          `bson:"updated_at" json:"updatedAt"`
}

// ValidEnrollmentStatus reports whether s names a known status.
func ValidEnrollmentStatus(s EnrollmentStatus) bool {
	switch s {
	case EnrollmentStatusActive, EnrollmentStatusCompleted, EnrollmentStatusDropped:
		return true
	}
	return false
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID primitive.ObjectID
	CourseID  primitive.ObjectID
	Status    EnrollmentStatus
}
