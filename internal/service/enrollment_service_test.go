package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/Amdreaith/elearning-api/internal/models"
	appErrors "github.com/Amdreaith/elearning-api/pkg/errors"
)

type mockEnrollmentLedger struct {
	enrollments map[primitive.ObjectID]models.Enrollment
	created     []models.Enrollment
	deleted     []primitive.ObjectID
	calls       []string

	createErr error
	deleteErr error
	detailErr error
}

func (m *mockEnrollmentLedger) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, error) {
	details := make([]models.EnrollmentDetail, 0, len(m.enrollments))
	for _, e := range m.enrollments {
		details = append(details, models.EnrollmentDetail{
			ID:             e.ID,
			Student:        &models.EnrollmentStudent{ID: e.StudentID, Name: "Jane Doe", Email: "jane@example.com"},
			Course:         &models.EnrollmentCourse{ID: e.CourseID, Title: "Go Basics", Instructor: "Smith"},
			EnrollmentDate: e.EnrollmentDate,
			Progress:       e.Progress,
			Status:         e.Status,
		})
	}
	return details, nil
}

func (m *mockEnrollmentLedger) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Enrollment, error) {
	if e, ok := m.enrollments[id]; ok {
		return &e, nil
	}
	return nil, mongo.ErrNoDocuments
}

func (m *mockEnrollmentLedger) FindDetailByID(ctx context.Context, id primitive.ObjectID) (*models.EnrollmentDetail, error) {
	if m.detailErr != nil {
		return nil, m.detailErr
	}
	e, ok := m.enrollments[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	return &models.EnrollmentDetail{
		ID:      e.ID,
		Student: &models.EnrollmentStudent{ID: e.StudentID, Name: "Jane Doe", Email: "jane@example.com"},
		Course:  &models.EnrollmentCourse{ID: e.CourseID, Title: "Go Basics", Instructor: "Smith"},
		Status:  e.Status,
	}, nil
}

func (m *mockEnrollmentLedger) Create(ctx context.Context, enrollment *models.Enrollment) error {
	m.calls = append(m.calls, "create")
	if m.createErr != nil {
		return m.createErr
	}
	for _, e := range m.enrollments {
		if e.StudentID == enrollment.StudentID && e.CourseID == enrollment.CourseID {
			return appErrors.ErrDuplicateKey
		}
	}
	enrollment.ID = primitive.NewObjectID()
	enrollment.Status = models.EnrollmentStatusActive
	enrollment.EnrollmentDate = time.Now().UTC()
	if m.enrollments == nil {
		m.enrollments = make(map[primitive.ObjectID]models.Enrollment)
	}
	m.enrollments[enrollment.ID] = *enrollment
	m.created = append(m.created, *enrollment)
	return nil
}

func (m *mockEnrollmentLedger) Delete(ctx context.Context, id primitive.ObjectID) error {
	m.calls = append(m.calls, "delete")
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.enrollments[id]; !ok {
		return mongo.ErrNoDocuments
	}
	delete(m.enrollments, id)
	m.deleted = append(m.deleted, id)
	return nil
}

type mockStudentProjection struct {
	students map[primitive.ObjectID]models.Student
	added    [][2]primitive.ObjectID
	pulled   [][2]primitive.ObjectID
	calls    *[]string

	addErr  error
	pullErr error
}

func (m *mockStudentProjection) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		return &s, nil
	}
	return nil, mongo.ErrNoDocuments
}

func (m *mockStudentProjection) AddEnrolledCourse(ctx context.Context, studentID, courseID primitive.ObjectID) error {
	if m.calls != nil {
		*m.calls = append(*m.calls, "addToSet")
	}
	if m.addErr != nil {
		return m.addErr
	}
	m.added = append(m.added, [2]primitive.ObjectID{studentID, courseID})
	return nil
}

func (m *mockStudentProjection) PullEnrolledCourse(ctx context.Context, studentID, courseID primitive.ObjectID) error {
	if m.calls != nil {
		*m.calls = append(*m.calls, "pull")
	}
	if m.pullErr != nil {
		return m.pullErr
	}
	m.pulled = append(m.pulled, [2]primitive.ObjectID{studentID, courseID})
	return nil
}

type mockCourseProjection struct {
	courses map[primitive.ObjectID]models.Course
	deltas  []int
	calls   *[]string

	incErr error
}

func (m *mockCourseProjection) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Course, error) {
	if c, ok := m.courses[id]; ok {
		return &c, nil
	}
	return nil, mongo.ErrNoDocuments
}

func (m *mockCourseProjection) IncEnrollmentCount(ctx context.Context, id primitive.ObjectID, delta int) error {
	if m.calls != nil {
		*m.calls = append(*m.calls, "inc")
	}
	if m.incErr != nil {
		return m.incErr
	}
	m.deltas = append(m.deltas, delta)
	if c, ok := m.courses[id]; ok {
		c.EnrollmentCount += delta
		m.courses[id] = c
	}
	return nil
}

type mockRepairScheduler struct {
	scheduled [][2]primitive.ObjectID
}

func (m *mockRepairScheduler) ScheduleRepair(studentID, courseID primitive.ObjectID) {
	m.scheduled = append(m.scheduled, [2]primitive.ObjectID{studentID, courseID})
}

func newEnrollFixture() (*mockEnrollmentLedger, *mockStudentProjection, *mockCourseProjection, *mockRepairScheduler, primitive.ObjectID, primitive.ObjectID) {
	studentID := primitive.NewObjectID()
	courseID := primitive.NewObjectID()
	ledger := &mockEnrollmentLedger{}
	students := &mockStudentProjection{students: map[primitive.ObjectID]models.Student{
		studentID: {ID: studentID, Name: "Jane Doe", Email: "jane@example.com", IsActive: true},
	}}
	courses := &mockCourseProjection{courses: map[primitive.ObjectID]models.Course{
		courseID: {ID: courseID, Title: "Go Basics", Instructor: "Smith", IsActive: true},
	}}
	repairs := &mockRepairScheduler{}
	return ledger, students, courses, repairs, studentID, courseID
}

func TestEnroll(t *testing.T) {
	ledger, students, courses, repairs, studentID, courseID := newEnrollFixture()
	svc := NewEnrollmentService(ledger, students, courses, repairs, nil, nil, zap.NewNop())

	detail, err := svc.Enroll(context.Background(), EnrollRequest{Student: studentID.Hex(), Course: courseID.Hex()})
	require.NoError(t, err)
	require.NotNil(t, detail)
	assert.Equal(t, models.EnrollmentStatusActive, detail.Status)
	assert.Equal(t, "Jane Doe", detail.Student.Name)

	require.Len(t, ledger.created, 1)
	assert.Equal(t, [][2]primitive.ObjectID{{studentID, courseID}}, students.added)
	assert.Equal(t, []int{1}, courses.deltas)
	assert.Empty(t, repairs.scheduled)
}

func TestEnrollMissingStudent(t *testing.T) {
	ledger, students, courses, repairs, _, courseID := newEnrollFixture()
	svc := NewEnrollmentService(ledger, students, courses, repairs, nil, nil, zap.NewNop())

	_, err := svc.Enroll(context.Background(), EnrollRequest{Student: primitive.NewObjectID().Hex(), Course: courseID.Hex()})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, 404, appErr.Status)
	assert.Equal(t, "Student not found", appErr.Message)

	// Precondition failures leave no side effects at all.
	assert.Empty(t, ledger.created)
	assert.Empty(t, students.added)
	assert.Empty(t, courses.deltas)
}

func TestEnrollMissingCourse(t *testing.T) {
	ledger, students, courses, repairs, studentID, _ := newEnrollFixture()
	svc := NewEnrollmentService(ledger, students, courses, repairs, nil, nil, zap.NewNop())

	_, err := svc.Enroll(context.Background(), EnrollRequest{Student: studentID.Hex(), Course: primitive.NewObjectID().Hex()})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, 404, appErr.Status)
	assert.Equal(t, "Course not found", appErr.Message)
	assert.Empty(t, ledger.created)
}

func TestEnrollDuplicate(t *testing.T) {
	ledger, students, courses, repairs, studentID, courseID := newEnrollFixture()
	svc := NewEnrollmentService(ledger, students, courses, repairs, nil, nil, zap.NewNop())

	_, err := svc.Enroll(context.Background(), EnrollRequest{Student: studentID.Hex(), Course: courseID.Hex()})
	require.NoError(t, err)

	_, err = svc.Enroll(context.Background(), EnrollRequest{Student: studentID.Hex(), Course: courseID.Hex()})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, 409, appErr.Status)
	assert.Equal(t, "Student already enrolled in this course", appErr.Message)

	// The rejected attempt must not touch the projections: the counter is
	// not idempotent and a second $inc would drift it.
	assert.Equal(t, []int{1}, courses.deltas)
	assert.Len(t, students.added, 1)
}

func TestEnrollInvalidIDs(t *testing.T) {
	ledger, students, courses, repairs, _, courseID := newEnrollFixture()
	svc := NewEnrollmentService(ledger, students, courses, repairs, nil, nil, zap.NewNop())

	_, err := svc.Enroll(context.Background(), EnrollRequest{Student: "not-hex", Course: courseID.Hex()})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, 400, appErr.Status)
	assert.Equal(t, []string{"Invalid student ID"}, appErr.Details)

	_, err = svc.Enroll(context.Background(), EnrollRequest{Student: "", Course: ""})
	require.Error(t, err)
	appErr = appErrors.FromError(err)
	assert.Equal(t, []string{"Student ID is required", "Course ID is required"}, appErr.Details)
}

func TestEnrollProjectionFailureStillSucceeds(t *testing.T) {
	ledger, students, courses, repairs, studentID, courseID := newEnrollFixture()
	students.addErr = errors.New("write concern timeout")
	svc := NewEnrollmentService(ledger, students, courses, repairs, nil, nil, zap.NewNop())

	detail, err := svc.Enroll(context.Background(), EnrollRequest{Student: studentID.Hex(), Course: courseID.Hex()})
	require.NoError(t, err)
	require.NotNil(t, detail)

	// Ledger entry exists, counter still moved, drift repair got queued.
	require.Len(t, ledger.created, 1)
	assert.Equal(t, []int{1}, courses.deltas)
	require.Len(t, repairs.scheduled, 1)
	assert.Equal(t, [2]primitive.ObjectID{studentID, courseID}, repairs.scheduled[0])
}

func TestEnrollDetailReadFailureFallsBack(t *testing.T) {
	ledger, students, courses, repairs, studentID, courseID := newEnrollFixture()
	ledger.detailErr = errors.New("aggregation timeout")
	svc := NewEnrollmentService(ledger, students, courses, repairs, nil, nil, zap.NewNop())

	detail, err := svc.Enroll(context.Background(), EnrollRequest{Student: studentID.Hex(), Course: courseID.Hex()})
	require.NoError(t, err)
	require.NotNil(t, detail)
	assert.Equal(t, "Jane Doe", detail.Student.Name)
	assert.Equal(t, "Go Basics", detail.Course.Title)
}

func TestWithdraw(t *testing.T) {
	ledger, students, courses, repairs, studentID, courseID := newEnrollFixture()
	var calls []string
	ledger.calls = nil
	students.calls = &calls
	courses.calls = &calls
	svc := NewEnrollmentService(ledger, students, courses, repairs, nil, nil, zap.NewNop())

	detail, err := svc.Enroll(context.Background(), EnrollRequest{Student: studentID.Hex(), Course: courseID.Hex()})
	require.NoError(t, err)
	calls = nil
	ledger.calls = nil

	require.NoError(t, svc.Withdraw(context.Background(), detail.ID.Hex()))
	assert.Empty(t, ledger.enrollments)
	assert.Equal(t, [][2]primitive.ObjectID{{studentID, courseID}}, students.pulled)
	assert.Equal(t, []int{1, -1}, courses.deltas)

	// Projections unwind before the ledger record goes away.
	assert.Equal(t, []string{"pull", "inc"}, calls)
	assert.Equal(t, []string{"delete"}, ledger.calls)
}

func TestWithdrawNotFound(t *testing.T) {
	ledger, students, courses, repairs, _, _ := newEnrollFixture()
	svc := NewEnrollmentService(ledger, students, courses, repairs, nil, nil, zap.NewNop())

	err := svc.Withdraw(context.Background(), primitive.NewObjectID().Hex())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, 404, appErr.Status)
	assert.Equal(t, "Enrollment not found", appErr.Message)
}

func TestWithdrawProjectionFailureKeepsLedger(t *testing.T) {
	ledger, students, courses, repairs, studentID, courseID := newEnrollFixture()
	svc := NewEnrollmentService(ledger, students, courses, repairs, nil, nil, zap.NewNop())

	detail, err := svc.Enroll(context.Background(), EnrollRequest{Student: studentID.Hex(), Course: courseID.Hex()})
	require.NoError(t, err)
	repairs.scheduled = nil

	students.pullErr = errors.New("write concern timeout")
	err = svc.Withdraw(context.Background(), detail.ID.Hex())
	require.Error(t, err)

	// The ledger record survives so the pair stays recoverable.
	assert.Len(t, ledger.enrollments, 1)
	require.Len(t, repairs.scheduled, 1)
	assert.Equal(t, [2]primitive.ObjectID{studentID, courseID}, repairs.scheduled[0])
}

func TestProjectionStepIdempotenceAsymmetry(t *testing.T) {
	studentID := primitive.NewObjectID()
	courseID := primitive.NewObjectID()

	students := &mockStudentProjection{students: map[primitive.ObjectID]models.Student{
		studentID: {ID: studentID},
	}}
	courses := &mockCourseProjection{courses: map[primitive.ObjectID]models.Course{
		courseID: {ID: courseID},
	}}

	// Replay both projection steps, the way a blind crash-retry would.
	// The set insert converges; the counter drifts. This asymmetry is why
	// drift repair rewrites the counter from a ledger count instead of
	// replaying increments.
	for i := 0; i < 2; i++ {
		require.NoError(t, students.AddEnrolledCourse(context.Background(), studentID, courseID))
		require.NoError(t, courses.IncEnrollmentCount(context.Background(), courseID, 1))
	}
	setSize := make(map[primitive.ObjectID]struct{})
	for _, pair := range students.added {
		setSize[pair[1]] = struct{}{}
	}
	assert.Len(t, setSize, 1)
	assert.Equal(t, 2, courses.courses[courseID].EnrollmentCount)

	// The reconciler heals the drifted counter from the ledger.
	ledger := &mockLedgerScanner{enrollments: []models.Enrollment{
		{StudentID: studentID, CourseID: courseID},
	}}
	writer := &mockCourseWriter{courses: courses.courses}
	studentWriter := &mockStudentWriter{students: students.students}
	reconciler := NewReconcilerService(ledger, studentWriter, writer, zap.NewNop())
	require.NoError(t, reconciler.ReconcilePair(context.Background(), studentID, courseID))
	assert.Equal(t, 1, writer.count(courseID))
}

func TestExport(t *testing.T) {
	ledger, students, courses, repairs, studentID, courseID := newEnrollFixture()
	svc := NewEnrollmentService(ledger, students, courses, repairs, nil, nil, zap.NewNop())

	_, err := svc.Enroll(context.Background(), EnrollRequest{Student: studentID.Hex(), Course: courseID.Hex()})
	require.NoError(t, err)

	payload, contentType, err := svc.Export(context.Background(), "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)
	assert.Contains(t, string(payload), "Jane Doe")
	assert.Contains(t, string(payload), "Go Basics")

	payload, contentType, err = svc.Export(context.Background(), "pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", contentType)
	assert.NotEmpty(t, payload)

	_, _, err = svc.Export(context.Background(), "xlsx")
	require.Error(t, err)
	assert.Equal(t, 400, appErrors.FromError(err).Status)
}
