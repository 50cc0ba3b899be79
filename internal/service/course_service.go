package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/Amdreaith/elearning-api/internal/models"
	appErrors "github.com/Amdreaith/elearning-api/pkg/errors"
)

type courseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, error)
	Search(ctx context.Context, q string) ([]models.Course, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Course, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, id primitive.ObjectID, set bson.M) (*models.Course, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type courseLedgerReader interface {
	CountByCourse(ctx context.Context, courseID primitive.ObjectID) (int64, error)
}

// CreateCourseRequest holds payload for publishing courses.
type CreateCourseRequest struct {
	Title       string  `json:"title" validate:"required,max=200"`
	Description string  `json:"description" validate:"required,max=2000"`
	Instructor  string  `json:"instructor" validate:"required"`
	Duration    int     `json:"duration" validate:"required,gt=0"`
	Price       float64 `json:"price" validate:"gte=0"`
	Category    string  `json:"category"`
	Level       string  `json:"level"`
}

// UpdateCourseRequest holds the partial payload for updating courses.
type UpdateCourseRequest struct {
	Title       *string  `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string  `json:"description" validate:"omitempty,min=1,max=2000"`
	Instructor  *string  `json:"instructor" validate:"omitempty,min=1"`
	Duration    *int     `json:"duration" validate:"omitempty,gt=0"`
	Price       *float64 `json:"price" validate:"omitempty,gte=0"`
	Category    *string  `json:"category"`
	Level       *string  `json:"level"`
	IsActive    *bool    `json:"isActive"`
}

var courseValidationMessages = map[string]string{
	"Title.required":       "Title is required",
	"Title.max":            "Title cannot exceed 200 characters",
	"Title.min":            "Title is required",
	"Description.required": "Description is required",
	"Description.max":      "Description cannot exceed 2000 characters",
	"Description.min":      "Description is required",
	"Instructor.required":  "Instructor name is required",
	"Instructor.min":       "Instructor name is required",
	"Duration.required":    "Duration must be a positive number",
	"Duration.gt":          "Duration must be a positive number",
	"Price.gte":            "Price must be zero or a positive number",
}

// CourseService handles course use-cases.
type CourseService struct {
	repo      courseRepository
	ledger    courseLedgerReader
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs the course service. The cache is optional.
func NewCourseService(repo courseRepository, ledger courseLedgerReader, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{repo: repo, ledger: ledger, cache: cache, validator: validate, logger: logger}
}

func courseListCacheKey(filter models.CourseFilter) string {
	active := "any"
	if filter.Active != nil {
		active = fmt.Sprintf("%t", *filter.Active)
	}
	minPrice, maxPrice := "", ""
	if filter.MinPrice != nil {
		minPrice = fmt.Sprintf("%g", *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		maxPrice = fmt.Sprintf("%g", *filter.MaxPrice)
	}
	return fmt.Sprintf("courses:list:%s:%s:%s:%s:%s", filter.Category, filter.Level, minPrice, maxPrice, active)
}

// List returns courses matching the filter, served from cache when possible.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, error) {
	key := courseListCacheKey(filter)
	var cached []models.Course
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached, nil
	}

	courses, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	s.cache.SetAsync(ctx, key, courses)
	return courses, nil
}

// Search returns active courses matching q over title, description and
// instructor, case-insensitive.
func (s *CourseService) Search(ctx context.Context, q string) ([]models.Course, error) {
	if strings.TrimSpace(q) == "" {
		return nil, appErrors.Clone(appErrors.ErrBadRequest, "Search query is required")
	}
	courses, err := s.repo.Search(ctx, q)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to search courses")
	}
	return courses, nil
}

// Get returns a single course, served from cache when possible.
func (s *CourseService) Get(ctx context.Context, id string) (*models.Course, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrBadRequest, "Invalid course ID")
	}

	key := "courses:id:" + id
	var cached models.Course
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}

	course, err := s.repo.FindByID(ctx, oid)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	s.cache.SetAsync(ctx, key, course)
	return course, nil
}

// Create publishes a new course.
func (s *CourseService) Create(ctx context.Context, req CreateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, courseValidationMessages)
	}

	category := models.CourseCategory(req.Category)
	if req.Category == "" {
		category = models.CategoryOther
	} else if !models.ValidCategory(category) {
		return nil, appErrors.WithDetails(appErrors.ErrValidation, []string{"Unknown course category"})
	}
	level := models.CourseLevel(req.Level)
	if req.Level == "" {
		level = models.LevelBeginner
	} else if !models.ValidLevel(level) {
		return nil, appErrors.WithDetails(appErrors.ErrValidation, []string{"Unknown course level"})
	}

	course := &models.Course{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Instructor:  strings.TrimSpace(req.Instructor),
		Duration:    req.Duration,
		Price:       req.Price,
		Category:    category,
		Level:       level,
		IsActive:    true,
	}
	if err := s.repo.Create(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}
	s.cache.InvalidateCourses(ctx)
	return course, nil
}

// Update applies a partial update to an existing course.
func (s *CourseService) Update(ctx context.Context, id string, req UpdateCourseRequest) (*models.Course, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrBadRequest, "Invalid course ID")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, courseValidationMessages)
	}

	set := bson.M{}
	if req.Title != nil {
		set["title"] = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		set["description"] = *req.Description
	}
	if req.Instructor != nil {
		set["instructor"] = strings.TrimSpace(*req.Instructor)
	}
	if req.Duration != nil {
		set["duration"] = *req.Duration
	}
	if req.Price != nil {
		set["price"] = *req.Price
	}
	if req.Category != nil {
		category := models.CourseCategory(*req.Category)
		if !models.ValidCategory(category) {
			return nil, appErrors.WithDetails(appErrors.ErrValidation, []string{"Unknown course category"})
		}
		set["category"] = category
	}
	if req.Level != nil {
		level := models.CourseLevel(*req.Level)
		if !models.ValidLevel(level) {
			return nil, appErrors.WithDetails(appErrors.ErrValidation, []string{"Unknown course level"})
		}
		set["level"] = level
	}
	if req.IsActive != nil {
		set["is_active"] = *req.IsActive
	}
	if len(set) == 0 {
		return nil, appErrors.WithDetails(appErrors.ErrValidation, []string{"No fields to update"})
	}

	course, err := s.repo.Update(ctx, oid, set)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}
	s.cache.InvalidateCourses(ctx)
	return course, nil
}

// Delete removes a course. A course with ledger records cannot be deleted.
func (s *CourseService) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return appErrors.Clone(appErrors.ErrBadRequest, "Invalid course ID")
	}
	count, err := s.ledger.CountByCourse(ctx, oid)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollments")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "Course has existing enrollments")
	}
	if err := s.repo.Delete(ctx, oid); err != nil {
		if err == mongo.ErrNoDocuments {
			return appErrors.Clone(appErrors.ErrNotFound, "Course not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course")
	}
	s.cache.InvalidateCourses(ctx)
	return nil
}
