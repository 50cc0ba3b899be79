package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Amdreaith/elearning-api/internal/models"
	"github.com/Amdreaith/elearning-api/pkg/database"
	appErrors "github.com/Amdreaith/elearning-api/pkg/errors"
)

// EnrollmentRepository manages persistence for the enrollment ledger.
type EnrollmentRepository struct {
	collection *mongo.Collection
}

// NewEnrollmentRepository constructs an EnrollmentRepository.
func NewEnrollmentRepository(db *mongo.Database) *EnrollmentRepository {
	return &EnrollmentRepository{collection: db.Collection(database.CollectionEnrollments)}
}

// detailPipeline joins minimal student and course projections onto ledger
// records, mirroring what clients expect on every enrollment read.
func detailPipeline(match bson.M) mongo.Pipeline {
	pipeline := mongo.Pipeline{}
	if len(match) > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: match}})
	}
	pipeline = append(pipeline,
		bson.D{{Key: "$lookup", Value: bson.M{
			"from":         database.CollectionStudents,
			"localField":   "student_id",
			"foreignField": "_id",
			"as":           "student_doc",
		}}},
		bson.D{{Key: "$lookup", Value: bson.M{
			"from":         database.CollectionCourses,
			"localField":   "course_id",
			"foreignField": "_id",
			"as":           "course_doc",
		}}},
		bson.D{{Key: "$project", Value: bson.M{
			"_id":             1,
			"enrollment_date": 1,
			"progress":        1,
			"status":          1,
			"created_at":      1,
			"updated_at":      1,
			"student": bson.M{"$arrayElemAt": bson.A{
				bson.M{"$map": bson.M{
					"input": "$student_doc",
					"as":    "s",
					"in": bson.M{
						"_id":   "$$s._id",
						"name":  "$$s.name",
						"email": "$$s.email",
					},
				}}, 0,
			}},
			"course": bson.M{"$arrayElemAt": bson.A{
				bson.M{"$map": bson.M{
					"input": "$course_doc",
					"as":    "c",
					"in": bson.M{
						"_id":        "$$c._id",
						"title":      "$$c.title",
						"instructor": "$$c.instructor",
						"price":      "$$c.price",
					},
				}}, 0,
			}},
		}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: -1}}}},
	)
	return pipeline
}

// List returns joined enrollment details matching the filter.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, error) {
	match := bson.M{}
	if !filter.StudentID.IsZero() {
		match["student_id"] = filter.StudentID
	}
	if !filter.CourseID.IsZero() {
		match["course_id"] = filter.CourseID
	}
	if filter.Status != "" {
		match["status"] = filter.Status
	}

	cursor, err := r.collection.Aggregate(ctx, detailPipeline(match))
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	defer cursor.Close(ctx)

	details := []models.EnrollmentDetail{}
	if err := cursor.All(ctx, &details); err != nil {
		return nil, fmt.Errorf("decode enrollments: %w", err)
	}
	return details, nil
}

// FindByID loads a single ledger record. Returns mongo.ErrNoDocuments when
// absent.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Enrollment, error) {
	var enrollment models.Enrollment
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&enrollment); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindDetailByID loads a single joined detail record.
func (r *EnrollmentRepository) FindDetailByID(ctx context.Context, id primitive.ObjectID) (*models.EnrollmentDetail, error) {
	cursor, err := r.collection.Aggregate(ctx, detailPipeline(bson.M{"_id": id}))
	if err != nil {
		return nil, fmt.Errorf("find enrollment detail: %w", err)
	}
	defer cursor.Close(ctx)

	var details []models.EnrollmentDetail
	if err := cursor.All(ctx, &details); err != nil {
		return nil, fmt.Errorf("decode enrollment detail: %w", err)
	}
	if len(details) == 0 {
		return nil, mongo.ErrNoDocuments
	}
	return &details[0], nil
}

// Create inserts a ledger record. The unique (student_id, course_id) index is
// the only guard against concurrent double-enrollment: exactly one of two
// racing inserts succeeds, the other sees ErrDuplicateKey.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	now := time.Now().UTC()
	enrollment.ID = primitive.NewObjectID()
	enrollment.CreatedAt = now
	enrollment.UpdatedAt = now
	if enrollment.EnrollmentDate.IsZero() {
		enrollment.EnrollmentDate = now
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusActive
	}

	if _, err := r.collection.InsertOne(ctx, enrollment); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return appErrors.ErrDuplicateKey
		}
		return fmt.Errorf("insert enrollment: %w", err)
	}
	return nil
}

// Delete removes the ledger record. Returns mongo.ErrNoDocuments when the ID
// matched nothing.
func (r *EnrollmentRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	if res.DeletedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// CountByStudent returns the number of ledger records naming the student.
func (r *EnrollmentRepository) CountByStudent(ctx context.Context, studentID primitive.ObjectID) (int64, error) {
	n, err := r.collection.CountDocuments(ctx, bson.M{"student_id": studentID})
	if err != nil {
		return 0, fmt.Errorf("count enrollments by student: %w", err)
	}
	return n, nil
}

// CountByCourse returns the number of ledger records naming the course.
func (r *EnrollmentRepository) CountByCourse(ctx context.Context, courseID primitive.ObjectID) (int64, error) {
	n, err := r.collection.CountDocuments(ctx, bson.M{"course_id": courseID})
	if err != nil {
		return 0, fmt.Errorf("count enrollments by course: %w", err)
	}
	return n, nil
}

// CourseIDsByStudent returns the course IDs the ledger holds for a student.
func (r *EnrollmentRepository) CourseIDsByStudent(ctx context.Context, studentID primitive.ObjectID) ([]primitive.ObjectID, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"student_id": studentID})
	if err != nil {
		return nil, fmt.Errorf("find enrollments by student: %w", err)
	}
	defer cursor.Close(ctx)

	var enrollments []models.Enrollment
	if err := cursor.All(ctx, &enrollments); err != nil {
		return nil, fmt.Errorf("decode enrollments: %w", err)
	}

	ids := make([]primitive.ObjectID, 0, len(enrollments))
	for _, e := range enrollments {
		ids = append(ids, e.CourseID)
	}
	return ids, nil
}

// All returns every raw ledger record. Used by the reconciler's full scan.
func (r *EnrollmentRepository) All(ctx context.Context) ([]models.Enrollment, error) {
	cursor, err := r.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("scan enrollments: %w", err)
	}
	defer cursor.Close(ctx)

	enrollments := []models.Enrollment{}
	if err := cursor.All(ctx, &enrollments); err != nil {
		return nil, fmt.Errorf("decode enrollments: %w", err)
	}
	return enrollments, nil
}
