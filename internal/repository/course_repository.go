package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Amdreaith/elearning-api/internal/models"
	"github.com/Amdreaith/elearning-api/pkg/database"
)

// CourseRepository manages persistence for course documents.
type CourseRepository struct {
	collection *mongo.Collection
}

// NewCourseRepository constructs a CourseRepository.
func NewCourseRepository(db *mongo.Database) *CourseRepository {
	return &CourseRepository{collection: db.Collection(database.CollectionCourses)}
}

// List returns courses matching the provided filters.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, error) {
	query := bson.M{}
	if filter.Active != nil {
		query["is_active"] = *filter.Active
	}
	if filter.Category != "" {
		query["category"] = filter.Category
	}
	if filter.Level != "" {
		query["level"] = filter.Level
	}
	price := bson.M{}
	if filter.MinPrice != nil {
		price["$gte"] = *filter.MinPrice
	}
	if filter.MaxPrice != nil {
		price["$lte"] = *filter.MaxPrice
	}
	if len(price) > 0 {
		query["price"] = price
	}

	cursor, err := r.collection.Find(ctx, query, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	defer cursor.Close(ctx)

	courses := []models.Course{}
	if err := cursor.All(ctx, &courses); err != nil {
		return nil, fmt.Errorf("decode courses: %w", err)
	}
	return courses, nil
}

// Search performs a case-insensitive substring match over title, description
// and instructor, restricted to active courses.
func (r *CourseRepository) Search(ctx context.Context, q string) ([]models.Course, error) {
	query := bson.M{
		"is_active": true,
		"$or": bson.A{
			bson.M{"title": bson.M{"$regex": q, "$options": "i"}},
			bson.M{"description": bson.M{"$regex": q, "$options": "i"}},
			bson.M{"instructor": bson.M{"$regex": q, "$options": "i"}},
		},
	}

	cursor, err := r.collection.Find(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search courses: %w", err)
	}
	defer cursor.Close(ctx)

	courses := []models.Course{}
	if err := cursor.All(ctx, &courses); err != nil {
		return nil, fmt.Errorf("decode courses: %w", err)
	}
	return courses, nil
}

// FindByID loads a single course. Returns mongo.ErrNoDocuments when absent.
func (r *CourseRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Course, error) {
	var course models.Course
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&course); err != nil {
		return nil, err
	}
	return &course, nil
}

// Create inserts a new course, assigning identity and timestamps.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	now := time.Now().UTC()
	course.ID = primitive.NewObjectID()
	course.CreatedAt = now
	course.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, course); err != nil {
		return fmt.Errorf("insert course: %w", err)
	}
	return nil
}

// Update applies a partial $set and returns the updated document.
func (r *CourseRepository) Update(ctx context.Context, id primitive.ObjectID, set bson.M) (*models.Course, error) {
	set["updated_at"] = time.Now().UTC()

	var course models.Course
	err := r.collection.FindOneAndUpdate(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&course)
	if err != nil {
		return nil, err
	}
	return &course, nil
}

// Delete removes the course document. Returns mongo.ErrNoDocuments when the
// ID matched nothing.
func (r *CourseRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	if res.DeletedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// IncEnrollmentCount atomically adjusts the denormalized counter by delta.
// Unlike the enrolled-course set mutations this is NOT idempotent: replaying
// the increment moves the counter again.
func (r *CourseRepository) IncEnrollmentCount(ctx context.Context, id primitive.ObjectID, delta int) error {
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$inc": bson.M{"enrollment_count": delta},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil {
		return fmt.Errorf("inc enrollment count: %w", err)
	}
	return nil
}

// SetEnrollmentCount overwrites the counter with a ledger-derived value.
// Used by the reconciler only.
func (r *CourseRepository) SetEnrollmentCount(ctx context.Context, id primitive.ObjectID, count int) error {
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"enrollment_count": count, "updated_at": time.Now().UTC()},
	})
	if err != nil {
		return fmt.Errorf("set enrollment count: %w", err)
	}
	return nil
}
