package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/Amdreaith/elearning-api/internal/models"
)

type mockLedgerScanner struct {
	enrollments []models.Enrollment
}

func (m *mockLedgerScanner) All(ctx context.Context) ([]models.Enrollment, error) {
	return m.enrollments, nil
}

func (m *mockLedgerScanner) CourseIDsByStudent(ctx context.Context, studentID primitive.ObjectID) ([]primitive.ObjectID, error) {
	var out []primitive.ObjectID
	for _, e := range m.enrollments {
		if e.StudentID == studentID {
			out = append(out, e.CourseID)
		}
	}
	return out, nil
}

func (m *mockLedgerScanner) CountByCourse(ctx context.Context, courseID primitive.ObjectID) (int64, error) {
	var n int64
	for _, e := range m.enrollments {
		if e.CourseID == courseID {
			n++
		}
	}
	return n, nil
}

type mockStudentWriter struct {
	mu       sync.Mutex
	students map[primitive.ObjectID]models.Student
	writes   int
}

func (m *mockStudentWriter) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Student, 0, len(m.students))
	for _, s := range m.students {
		out = append(out, s)
	}
	return out, nil
}

func (m *mockStudentWriter) SetEnrolledCourses(ctx context.Context, studentID primitive.ObjectID, courseIDs []primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	s := m.students[studentID]
	s.ID = studentID
	s.EnrolledCourses = courseIDs
	m.students[studentID] = s
	return nil
}

func (m *mockStudentWriter) enrolled(studentID primitive.ObjectID) []primitive.ObjectID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.students[studentID].EnrolledCourses
}

type mockCourseWriter struct {
	mu      sync.Mutex
	courses map[primitive.ObjectID]models.Course
	writes  int
}

func (m *mockCourseWriter) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Course, 0, len(m.courses))
	for _, c := range m.courses {
		out = append(out, c)
	}
	return out, nil
}

func (m *mockCourseWriter) SetEnrollmentCount(ctx context.Context, id primitive.ObjectID, count int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	c := m.courses[id]
	c.ID = id
	c.EnrollmentCount = count
	m.courses[id] = c
	return nil
}

func (m *mockCourseWriter) count(id primitive.ObjectID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.courses[id].EnrollmentCount
}

func TestReconcilePair(t *testing.T) {
	studentID := primitive.NewObjectID()
	courseID := primitive.NewObjectID()
	otherCourse := primitive.NewObjectID()

	ledger := &mockLedgerScanner{enrollments: []models.Enrollment{
		{StudentID: studentID, CourseID: courseID},
		{StudentID: studentID, CourseID: otherCourse},
	}}
	// Both projections are stale: the student set is empty, the counter
	// overcounts.
	students := &mockStudentWriter{students: map[primitive.ObjectID]models.Student{
		studentID: {ID: studentID},
	}}
	courses := &mockCourseWriter{courses: map[primitive.ObjectID]models.Course{
		courseID: {ID: courseID, EnrollmentCount: 7},
	}}

	svc := NewReconcilerService(ledger, students, courses, zap.NewNop())
	require.NoError(t, svc.ReconcilePair(context.Background(), studentID, courseID))

	assert.ElementsMatch(t, []primitive.ObjectID{courseID, otherCourse}, students.students[studentID].EnrolledCourses)
	assert.Equal(t, 1, courses.courses[courseID].EnrollmentCount)
}

func TestReconcileAllRepairsDrift(t *testing.T) {
	studentA := primitive.NewObjectID()
	studentB := primitive.NewObjectID()
	courseX := primitive.NewObjectID()
	courseY := primitive.NewObjectID()

	ledger := &mockLedgerScanner{enrollments: []models.Enrollment{
		{StudentID: studentA, CourseID: courseX},
		{StudentID: studentA, CourseID: courseY},
		{StudentID: studentB, CourseID: courseX},
	}}
	students := &mockStudentWriter{students: map[primitive.ObjectID]models.Student{
		// A's set is missing courseY, B's is correct.
		studentA: {ID: studentA, EnrolledCourses: []primitive.ObjectID{courseX}},
		studentB: {ID: studentB, EnrolledCourses: []primitive.ObjectID{courseX}},
	}}
	courses := &mockCourseWriter{courses: map[primitive.ObjectID]models.Course{
		// X's counter drifted, Y's is correct.
		courseX: {ID: courseX, EnrollmentCount: 5},
		courseY: {ID: courseY, EnrollmentCount: 1},
	}}

	svc := NewReconcilerService(ledger, students, courses, zap.NewNop())
	report, err := svc.ReconcileAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, report.Enrollments)
	assert.Equal(t, 1, report.StudentsRepaired)
	assert.Equal(t, 1, report.CoursesRepaired)
	assert.ElementsMatch(t, []primitive.ObjectID{courseX, courseY}, students.students[studentA].EnrolledCourses)
	assert.Equal(t, 2, courses.courses[courseX].EnrollmentCount)
}

func TestReconcileAllIdempotent(t *testing.T) {
	studentID := primitive.NewObjectID()
	courseID := primitive.NewObjectID()

	ledger := &mockLedgerScanner{enrollments: []models.Enrollment{
		{StudentID: studentID, CourseID: courseID},
	}}
	students := &mockStudentWriter{students: map[primitive.ObjectID]models.Student{
		studentID: {ID: studentID, EnrolledCourses: []primitive.ObjectID{courseID}},
	}}
	courses := &mockCourseWriter{courses: map[primitive.ObjectID]models.Course{
		courseID: {ID: courseID, EnrollmentCount: 1},
	}}

	svc := NewReconcilerService(ledger, students, courses, zap.NewNop())
	report, err := svc.ReconcileAll(context.Background())
	require.NoError(t, err)

	// A consistent store yields zero writes.
	assert.Zero(t, report.StudentsRepaired)
	assert.Zero(t, report.CoursesRepaired)
	assert.Zero(t, students.writes)
	assert.Zero(t, courses.writes)
}

func TestReconcileAllClearsOrphanedProjections(t *testing.T) {
	studentID := primitive.NewObjectID()
	courseID := primitive.NewObjectID()

	// Ledger is empty but the projections still reference the pair, the
	// state a crashed withdraw leaves behind when only the ledger delete
	// ran.
	ledger := &mockLedgerScanner{}
	students := &mockStudentWriter{students: map[primitive.ObjectID]models.Student{
		studentID: {ID: studentID, EnrolledCourses: []primitive.ObjectID{courseID}},
	}}
	courses := &mockCourseWriter{courses: map[primitive.ObjectID]models.Course{
		courseID: {ID: courseID, EnrollmentCount: 1},
	}}

	svc := NewReconcilerService(ledger, students, courses, zap.NewNop())
	report, err := svc.ReconcileAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.StudentsRepaired)
	assert.Equal(t, 1, report.CoursesRepaired)
	assert.Empty(t, students.students[studentID].EnrolledCourses)
	assert.Zero(t, courses.courses[courseID].EnrollmentCount)
}
