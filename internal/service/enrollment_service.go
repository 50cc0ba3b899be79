package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/Amdreaith/elearning-api/internal/models"
	appErrors "github.com/Amdreaith/elearning-api/pkg/errors"
	"github.com/Amdreaith/elearning-api/pkg/export"
)

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Enrollment, error)
	FindDetailByID(ctx context.Context, id primitive.ObjectID) (*models.EnrollmentDetail, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type studentProjection interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Student, error)
	AddEnrolledCourse(ctx context.Context, studentID, courseID primitive.ObjectID) error
	PullEnrolledCourse(ctx context.Context, studentID, courseID primitive.ObjectID) error
}

type courseProjection interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Course, error)
	IncEnrollmentCount(ctx context.Context, id primitive.ObjectID, delta int) error
}

type repairScheduler interface {
	ScheduleRepair(studentID, courseID primitive.ObjectID)
}

// EnrollRequest describes enrollment creation payload.
type EnrollRequest struct {
	Student string `json:"student" validate:"required"`
	Course  string `json:"course" validate:"required"`
}

var enrollmentValidationMessages = map[string]string{
	"Student.required": "Student ID is required",
	"Course.required":  "Course ID is required",
}

// EnrollmentService orchestrates the enrollment consistency protocol.
//
// The enrollments collection is the ledger of truth. Student.EnrolledCourses
// and Course.EnrollmentCount are denormalized projections of it, updated
// best-effort after the ledger write with no cross-collection transaction.
// When a projection step fails the ledger still wins: the failure is logged,
// a repair job is scheduled, and the reconciler recomputes both projections
// from the ledger.
type EnrollmentService struct {
	repo      enrollmentRepository
	students  studentProjection
	courses   courseProjection
	repairs   repairScheduler
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService. repairs and cache are
// optional.
func NewEnrollmentService(repo enrollmentRepository, students studentProjection, courses courseProjection, repairs repairScheduler, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{repo: repo, students: students, courses: courses, repairs: repairs, cache: cache, validator: validate, logger: logger}
}

// List returns joined enrollment details matching the filter.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, error) {
	details, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return details, nil
}

// Enroll registers a student in a course.
//
// Steps run strictly in order, each a separate single-document operation:
// verify student, verify course, insert the ledger record, $addToSet the
// course into the student's enrolled set, $inc the course counter. A
// precondition failure aborts with zero side effects. Once the ledger insert
// has succeeded the operation reports success regardless of projection
// failures; those leave a recoverable drift the repair pass heals.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollRequest) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, enrollmentValidationMessages)
	}
	studentID, err := primitive.ObjectIDFromHex(req.Student)
	if err != nil {
		return nil, appErrors.WithDetails(appErrors.ErrValidation, []string{"Invalid student ID"})
	}
	courseID, err := primitive.ObjectIDFromHex(req.Course)
	if err != nil {
		return nil, appErrors.WithDetails(appErrors.ErrValidation, []string{"Invalid course ID"})
	}

	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	enrollment := &models.Enrollment{StudentID: studentID, CourseID: courseID}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		if errors.Is(err, appErrors.ErrDuplicateKey) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "Student already enrolled in this course")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}

	// Ledger entry is durable from here on. Projection updates are
	// best-effort and never fail the call.
	drifted := false
	if err := s.students.AddEnrolledCourse(ctx, studentID, courseID); err != nil {
		drifted = true
		s.logger.Warn("enrolled-course projection update failed",
			zap.String("enrollment_id", enrollment.ID.Hex()),
			zap.String("student_id", studentID.Hex()),
			zap.Error(err))
	}
	if err := s.courses.IncEnrollmentCount(ctx, courseID, 1); err != nil {
		drifted = true
		s.logger.Warn("enrollment-count projection update failed",
			zap.String("enrollment_id", enrollment.ID.Hex()),
			zap.String("course_id", courseID.Hex()),
			zap.Error(err))
	}
	if drifted && s.repairs != nil {
		s.repairs.ScheduleRepair(studentID, courseID)
	}
	s.cache.InvalidateCourses(ctx)

	detail, err := s.repo.FindDetailByID(ctx, enrollment.ID)
	if err != nil {
		// The joined read is a convenience; the enrollment exists either
		// way, so fall back to the documents already in hand.
		s.logger.Warn("joined enrollment read failed", zap.String("enrollment_id", enrollment.ID.Hex()), zap.Error(err))
		return assembleDetail(enrollment, student, course), nil
	}
	return detail, nil
}

// Withdraw removes an enrollment, unwinding both projections before the
// ledger record is deleted. Deleting the ledger entry last keeps the
// (student, course) pair recoverable: if the process dies after the
// projection updates, the surviving ledger record is all the repair pass
// needs to reconverge.
func (s *EnrollmentService) Withdraw(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return appErrors.Clone(appErrors.ErrBadRequest, "Invalid enrollment ID")
	}

	enrollment, err := s.repo.FindByID(ctx, oid)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return appErrors.Clone(appErrors.ErrNotFound, "Enrollment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	if err := s.students.PullEnrolledCourse(ctx, enrollment.StudentID, enrollment.CourseID); err != nil {
		s.scheduleRepair(enrollment)
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to withdraw enrollment")
	}
	if err := s.courses.IncEnrollmentCount(ctx, enrollment.CourseID, -1); err != nil {
		s.scheduleRepair(enrollment)
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to withdraw enrollment")
	}
	if err := s.repo.Delete(ctx, oid); err != nil {
		// Projections already dropped the pair but the ledger still holds
		// it; the repair pass will re-derive the projections from the
		// surviving record.
		s.scheduleRepair(enrollment)
		if err == mongo.ErrNoDocuments {
			return appErrors.Clone(appErrors.ErrNotFound, "Enrollment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete enrollment")
	}
	s.cache.InvalidateCourses(ctx)
	return nil
}

// Export renders the joined enrollment roster in the requested format and
// returns the payload with its MIME type.
func (s *EnrollmentService) Export(ctx context.Context, format string) ([]byte, string, error) {
	details, err := s.repo.List(ctx, models.EnrollmentFilter{})
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}

	table := export.Table{
		Title:   "Enrollment Roster",
		Columns: []string{"Student", "Email", "Course", "Instructor", "Status", "Progress", "Enrolled At"},
	}
	for _, d := range details {
		var name, email, title, instructor string
		if d.Student != nil {
			name, email = d.Student.Name, d.Student.Email
		}
		if d.Course != nil {
			title, instructor = d.Course.Title, d.Course.Instructor
		}
		table.Rows = append(table.Rows, []string{
			name, email, title, instructor,
			string(d.Status),
			fmt.Sprintf("%.0f%%", d.Progress),
			d.EnrollmentDate.Format("2006-01-02"),
		})
	}

	switch format {
	case "", "csv":
		payload, err := export.CSV(table)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
		}
		return payload, "text/csv", nil
	case "pdf":
		payload, err := export.PDF(table)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
		}
		return payload, "application/pdf", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrBadRequest, "Unsupported export format")
	}
}

func (s *EnrollmentService) scheduleRepair(enrollment *models.Enrollment) {
	if s.repairs == nil {
		return
	}
	s.repairs.ScheduleRepair(enrollment.StudentID, enrollment.CourseID)
}

func assembleDetail(enrollment *models.Enrollment, student *models.Student, course *models.Course) *models.EnrollmentDetail {
	return &models.EnrollmentDetail{
		ID: enrollment.ID,
		Student: &models.EnrollmentStudent{
			ID:    student.ID,
			Name:  student.Name,
			Email: student.Email,
		},
		Course: &models.EnrollmentCourse{
			ID:         course.ID,
			Title:      course.Title,
			Instructor: course.Instructor,
			Price:      course.Price,
		},
		EnrollmentDate: enrollment.EnrollmentDate,
		Progress:       enrollment.Progress,
		Status:         enrollment.Status,
		CreatedAt:      enrollment.CreatedAt,
		UpdatedAt:      enrollment.UpdatedAt,
	}
}
