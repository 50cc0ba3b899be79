package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/Amdreaith/elearning-api/internal/models"
	appErrors "github.com/Amdreaith/elearning-api/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, error)
	Search(ctx context.Context, q string) ([]models.Student, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Student, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, id primitive.ObjectID, set bson.M) (*models.Student, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type studentLedgerReader interface {
	CountByStudent(ctx context.Context, studentID primitive.ObjectID) (int64, error)
}

// CreateStudentRequest holds payload for registering students.
type CreateStudentRequest struct {
	Name  string `json:"name" validate:"required,max=100"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone" validate:"omitempty,phone"`
}

// UpdateStudentRequest holds the partial payload for updating students.
// Nil fields are left untouched.
type UpdateStudentRequest struct {
	Name     *string `json:"name" validate:"omitempty,min=1,max=100"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Phone    *string `json:"phone" validate:"omitempty,phone"`
	IsActive *bool   `json:"isActive"`
}

var studentValidationMessages = map[string]string{
	"Name.required":  "Name is required",
	"Name.max":       "Name cannot exceed 100 characters",
	"Name.min":       "Name is required",
	"Email.required": "Email is required",
	"Email.email":    "Invalid email format",
	"Phone.phone":    "Please provide a valid phone number",
}

// StudentService handles student use-cases.
type StudentService struct {
	repo      studentRepository
	ledger    studentLedgerReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs the student service.
func NewStudentService(repo studentRepository, ledger studentLedgerReader, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, ledger: ledger, validator: validate, logger: logger}
}

// List returns students matching the filter.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, error) {
	students, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, nil
}

// Search returns students whose name or email contains q, case-insensitive.
func (s *StudentService) Search(ctx context.Context, q string) ([]models.Student, error) {
	if strings.TrimSpace(q) == "" {
		return nil, appErrors.Clone(appErrors.ErrBadRequest, "Search query is required")
	}
	students, err := s.repo.Search(ctx, q)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to search students")
	}
	return students, nil
}

// Get returns a single student.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrBadRequest, "Invalid student ID")
	}
	student, err := s.repo.FindByID(ctx, oid)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// Create registers a new student.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, studentValidationMessages)
	}
	student := &models.Student{
		Name:     strings.TrimSpace(req.Name),
		Email:    strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:    strings.TrimSpace(req.Phone),
		IsActive: true,
	}
	if err := s.repo.Create(ctx, student); err != nil {
		if errors.Is(err, appErrors.ErrDuplicateKey) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "Email already registered")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	return student, nil
}

// Update applies a partial update to an existing student.
func (s *StudentService) Update(ctx context.Context, id string, req UpdateStudentRequest) (*models.Student, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrBadRequest, "Invalid student ID")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, studentValidationMessages)
	}

	set := bson.M{}
	if req.Name != nil {
		set["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		set["email"] = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if req.Phone != nil {
		set["phone"] = strings.TrimSpace(*req.Phone)
	}
	if req.IsActive != nil {
		set["is_active"] = *req.IsActive
	}
	if len(set) == 0 {
		return nil, appErrors.WithDetails(appErrors.ErrValidation, []string{"No fields to update"})
	}

	student, err := s.repo.Update(ctx, oid, set)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Student not found")
		}
		if errors.Is(err, appErrors.ErrDuplicateKey) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "Email already registered")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	return student, nil
}

// Delete removes a student. A student with ledger records cannot be deleted;
// withdrawing the enrollments first keeps the ledger free of dangling
// references.
func (s *StudentService) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return appErrors.Clone(appErrors.ErrBadRequest, "Invalid student ID")
	}
	count, err := s.ledger.CountByStudent(ctx, oid)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollments")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "Student has existing enrollments")
	}
	if err := s.repo.Delete(ctx, oid); err != nil {
		if err == mongo.ErrNoDocuments {
			return appErrors.Clone(appErrors.ErrNotFound, "Student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete student")
	}
	return nil
}
