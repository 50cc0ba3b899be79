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
	appErrors "github.com/Amdreaith/elearning-api/pkg/errors"
)

// StudentRepository manages persistence for student documents.
type StudentRepository struct {
	collection *mongo.Collection
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *mongo.Database) *StudentRepository {
	return &StudentRepository{collection: db.Collection(database.CollectionStudents)}
}

// List returns students matching the provided filters.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, error) {
	query := bson.M{}
	if filter.Active != nil {
		query["is_active"] = *filter.Active
	}

	cursor, err := r.collection.Find(ctx, query, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	defer cursor.Close(ctx)

	students := []models.Student{}
	if err := cursor.All(ctx, &students); err != nil {
		return nil, fmt.Errorf("decode students: %w", err)
	}
	return students, nil
}

// Search performs a case-insensitive substring match over name and email.
func (r *StudentRepository) Search(ctx context.Context, q string) ([]models.Student, error) {
	query := bson.M{"$or": bson.A{
		bson.M{"name": bson.M{"$regex": q, "$options": "i"}},
		bson.M{"email": bson.M{"$regex": q, "$options": "i"}},
	}}

	cursor, err := r.collection.Find(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search students: %w", err)
	}
	defer cursor.Close(ctx)

	students := []models.Student{}
	if err := cursor.All(ctx, &students); err != nil {
		return nil, fmt.Errorf("decode students: %w", err)
	}
	return students, nil
}

// FindByID loads a single student. Returns mongo.ErrNoDocuments when absent.
func (r *StudentRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Student, error) {
	var student models.Student
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&student); err != nil {
		return nil, err
	}
	return &student, nil
}

// Create inserts a new student, assigning identity and timestamps.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	now := time.Now().UTC()
	student.ID = primitive.NewObjectID()
	student.CreatedAt = now
	student.UpdatedAt = now
	if student.EnrolledCourses == nil {
		student.EnrolledCourses = []primitive.ObjectID{}
	}

	if _, err := r.collection.InsertOne(ctx, student); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return appErrors.ErrDuplicateKey
		}
		return fmt.Errorf("insert student: %w", err)
	}
	return nil
}

// Update applies a partial $set and returns the updated document.
func (r *StudentRepository) Update(ctx context.Context, id primitive.ObjectID, set bson.M) (*models.Student, error) {
	set["updated_at"] = time.Now().UTC()

	var student models.Student
	err := r.collection.FindOneAndUpdate(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&student)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, appErrors.ErrDuplicateKey
		}
		return nil, err
	}
	return &student, nil
}

// Delete removes the student document. Returns mongo.ErrNoDocuments when the
// ID matched nothing.
func (r *StudentRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	if res.DeletedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// AddEnrolledCourse inserts courseID into the student's enrolled set. The
// $addToSet keeps the operation idempotent: repeating it never duplicates
// membership.
func (r *StudentRepository) AddEnrolledCourse(ctx context.Context, studentID, courseID primitive.ObjectID) error {
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": studentID}, bson.M{
		"$addToSet": bson.M{"enrolled_courses": courseID},
		"$set":      bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil {
		return fmt.Errorf("add enrolled course: %w", err)
	}
	return nil
}

// PullEnrolledCourse removes courseID from the student's enrolled set.
// Idempotent for the same reason $addToSet is.
func (r *StudentRepository) PullEnrolledCourse(ctx context.Context, studentID, courseID primitive.ObjectID) error {
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": studentID}, bson.M{
		"$pull": bson.M{"enrolled_courses": courseID},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil {
		return fmt.Errorf("pull enrolled course: %w", err)
	}
	return nil
}

// SetEnrolledCourses overwrites the projection with a ledger-derived set.
// Used by the reconciler only.
func (r *StudentRepository) SetEnrolledCourses(ctx context.Context, studentID primitive.ObjectID, courseIDs []primitive.ObjectID) error {
	if courseIDs == nil {
		courseIDs = []primitive.ObjectID{}
	}
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": studentID}, bson.M{
		"$set": bson.M{"enrolled_courses": courseIDs, "updated_at": time.Now().UTC()},
	})
	if err != nil {
		return fmt.Errorf("set enrolled courses: %w", err)
	}
	return nil
}
