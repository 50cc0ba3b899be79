package service

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/Amdreaith/elearning-api/internal/models"
	appErrors "github.com/Amdreaith/elearning-api/pkg/errors"
)

type ledgerScanner interface {
	All(ctx context.Context) ([]models.Enrollment, error)
	CourseIDsByStudent(ctx context.Context, studentID primitive.ObjectID) ([]primitive.ObjectID, error)
	CountByCourse(ctx context.Context, courseID primitive.ObjectID) (int64, error)
}

type studentProjectionWriter interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, error)
	SetEnrolledCourses(ctx context.Context, studentID primitive.ObjectID, courseIDs []primitive.ObjectID) error
}

type courseProjectionWriter interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, error)
	SetEnrollmentCount(ctx context.Context, id primitive.ObjectID, count int) error
}

// ReconcileReport summarises a full reconciliation pass.
type ReconcileReport struct {
	Enrollments      int       `json:"enrollments"`
	StudentsRepaired int       `json:"studentsRepaired"`
	CoursesRepaired  int       `json:"coursesRepaired"`
	CompletedAt      time.Time `json:"completedAt"`
}

// ReconcilerService recomputes the denormalized projections from the
// enrollment ledger. Every operation is idempotent: running it against a
// consistent store changes nothing.
type ReconcilerService struct {
	ledger   ledgerScanner
	students studentProjectionWriter
	courses  courseProjectionWriter
	logger   *zap.Logger
}

// NewReconcilerService constructs a ReconcilerService.
func NewReconcilerService(ledger ledgerScanner, students studentProjectionWriter, courses courseProjectionWriter, logger *zap.Logger) *ReconcilerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReconcilerService{ledger: ledger, students: students, courses: courses, logger: logger}
}

// ReconcilePair re-derives one student's enrolled-course set and one course's
// enrollment counter from the ledger. This is the targeted repair the
// enrollment protocol schedules after a projection-step failure.
func (s *ReconcilerService) ReconcilePair(ctx context.Context, studentID, courseID primitive.ObjectID) error {
	courseIDs, err := s.ledger.CourseIDsByStudent(ctx, studentID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to scan ledger for student")
	}
	if err := s.students.SetEnrolledCourses(ctx, studentID, courseIDs); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to repair enrolled-course set")
	}

	count, err := s.ledger.CountByCourse(ctx, courseID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to scan ledger for course")
	}
	if err := s.courses.SetEnrollmentCount(ctx, courseID, int(count)); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to repair enrollment count")
	}

	s.logger.Info("projection pair reconciled",
		zap.String("student_id", studentID.Hex()),
		zap.String("course_id", courseID.Hex()),
		zap.Int64("course_count", count))
	return nil
}

// ReconcileAll scans the whole ledger, recomputes every projection and
// rewrites only those that drifted.
func (s *ReconcilerService) ReconcileAll(ctx context.Context) (*ReconcileReport, error) {
	enrollments, err := s.ledger.All(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to scan ledger")
	}

	coursesByStudent := make(map[primitive.ObjectID][]primitive.ObjectID)
	countByCourse := make(map[primitive.ObjectID]int)
	for _, e := range enrollments {
		coursesByStudent[e.StudentID] = append(coursesByStudent[e.StudentID], e.CourseID)
		countByCourse[e.CourseID]++
	}

	report := &ReconcileReport{Enrollments: len(enrollments)}

	students, err := s.students.List(ctx, models.StudentFilter{})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	for _, student := range students {
		expected := coursesByStudent[student.ID]
		if sameCourseSet(student.EnrolledCourses, expected) {
			continue
		}
		if err := s.students.SetEnrolledCourses(ctx, student.ID, expected); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to repair enrolled-course set")
		}
		report.StudentsRepaired++
	}

	courses, err := s.courses.List(ctx, models.CourseFilter{})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	for _, course := range courses {
		expected := countByCourse[course.ID]
		if course.EnrollmentCount == expected {
			continue
		}
		if err := s.courses.SetEnrollmentCount(ctx, course.ID, expected); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to repair enrollment count")
		}
		report.CoursesRepaired++
	}

	report.CompletedAt = time.Now().UTC()
	s.logger.Info("ledger reconciliation completed",
		zap.Int("enrollments", report.Enrollments),
		zap.Int("students_repaired", report.StudentsRepaired),
		zap.Int("courses_repaired", report.CoursesRepaired))
	return report, nil
}

// sameCourseSet compares projections with set semantics: order and
// duplicates are irrelevant.
func sameCourseSet(a, b []primitive.ObjectID) bool {
	setA := make(map[primitive.ObjectID]struct{}, len(a))
	for _, id := range a {
		setA[id] = struct{}{}
	}
	setB := make(map[primitive.ObjectID]struct{}, len(b))
	for _, id := range b {
		setB[id] = struct{}{}
	}
	if len(setA) != len(setB) {
		return false
	}
	for id := range setA {
		if _, ok := setB[id]; !ok {
			return false
		}
	}
	return true
}
