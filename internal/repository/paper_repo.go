package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/noah-isme/peak-go-api/internal/models"
)

// ErrPaperNotFound indicates no paper exists for the identifier.
var ErrPaperNotFound = errors.New("paper not found")

// ErrInvalidPaperID indicates the identifier is not a 24-character hex object id.
var ErrInvalidPaperID = errors.New("invalid paper id")

// PaperRepository defines data operations for question papers.
type PaperRepository interface {
	Create(ctx context.Context, paper *models.Paper) (string, error)
	GetByID(ctx context.Context, id string) (models.Paper, error)
	ListByTeacher(ctx context.Context, teacherEmail string) ([]models.Paper, error)
	ListByTeachers(ctx context.Context, teacherEmails []string) ([]models.Paper, error)
	SetExpired(ctx context.Context, id string, expired bool) error
	SaveSubmission(ctx context.Context, id string, submission models.StudentSubmission) error
	UpdateEvaluation(ctx context.Context, id string, expectedVersion int64, submissions []models.StudentSubmission, evaluated bool) (int64, error)
}

type paperRepository struct {
	collection *mongo.Collection
	now        func() time.Time
}

// NewPaperRepository instantiates the repository over the question_papers collection.
func NewPaperRepository(db *mongo.Database) PaperRepository {
	return &paperRepository{
		collection: db.Collection("question_papers"),
		now:        time.Now,
	}
}

// ParseObjectID converts a hex identifier into an ObjectID.
func ParseObjectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %q", ErrInvalidPaperID, id)
	}
	return oid, nil
}

func (r *paperRepository) Create(ctx context.Context, paper *models.Paper) (string, error) {
	now := r.now().UTC()
	paper.ID = ""
	paper.CreatedAt = now
	paper.UpdatedAt = now
	if paper.Submissions == nil {
		paper.Submissions = []models.StudentSubmission{}
	}

	result, err := r.collection.InsertOne(ctx, paper)
	if err != nil {
		return "", err
	}

	oid, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("unexpected inserted id type %T", result.InsertedID)
	}
	paper.ID = oid.Hex()
	return paper.ID, nil
}

func (r *paperRepository) GetByID(ctx context.Context, id string) (models.Paper, error) {
	oid, err := ParseObjectID(id)
	if err != nil {
		return models.Paper{}, err
	}

	var paper models.Paper
	err = r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&paper)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Paper{}, ErrPaperNotFound
	}
	if err != nil {
		return models.Paper{}, err
	}

	paper.ID = oid.Hex()
	return paper, nil
}

func (r *paperRepository) ListByTeacher(ctx context.Context, teacherEmail string) ([]models.Paper, error) {
	return r.find(ctx, bson.M{"teacher_email": teacherEmail})
}

func (r *paperRepository) ListByTeachers(ctx context.Context, teacherEmails []string) ([]models.Paper, error) {
	if len(teacherEmails) == 0 {
		return []models.Paper{}, nil
	}
	return r.find(ctx, bson.M{"teacher_email": bson.M{"$in": teacherEmails}})
}

func (r *paperRepository) find(ctx context.Context, filter bson.M) ([]models.Paper, error) {
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	papers := make([]models.Paper, 0)
	if err := cursor.All(ctx, &papers); err != nil {
		return nil, err
	}
	return papers, nil
}

func (r *paperRepository) SetExpired(ctx context.Context, id string, expired bool) error {
	oid, err := ParseObjectID(id)
	if err != nil {
		return err
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{
		"$set": bson.M{"expired": expired, "updated_at": r.now().UTC()},
	})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrPaperNotFound
	}
	return nil
}

// SaveSubmission replaces the student's existing submission or appends a new one. Either way the
// paper drops back to the ungraded state because the new answers carry no scores.
func (r *paperRepository) SaveSubmission(ctx context.Context, id string, submission models.StudentSubmission) error {
	oid, err := ParseObjectID(id)
	if err != nil {
		return err
	}

	now := r.now().UTC()
	replaced, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": oid, "submissions.student_email": submission.StudentEmail},
		bson.M{
			"$set": bson.M{"submissions.$": submission, "evaluated": false, "updated_at": now},
			"$inc": bson.M{"version": int64(1)},
		},
	)
	if err != nil {
		return err
	}
	if replaced.MatchedCount > 0 {
		return nil
	}

	appended, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": oid, "submissions.student_email": bson.M{"$ne": submission.StudentEmail}},
		bson.M{
			"$push": bson.M{"submissions": submission},
			"$set":  bson.M{"evaluated": false, "updated_at": now},
			"$inc":  bson.M{"version": int64(1)},
		},
	)
	if err != nil {
		return err
	}
	if appended.MatchedCount == 0 {
		return ErrPaperNotFound
	}
	return nil
}

// UpdateEvaluation writes the whole submissions array and the evaluated flag in a single update.
// The write only applies when the stored version still equals expectedVersion; the returned count
// is zero when the paper was deleted or changed since it was read.
func (r *paperRepository) UpdateEvaluation(ctx context.Context, id string, expectedVersion int64, submissions []models.StudentSubmission, evaluated bool) (int64, error) {
	oid, err := ParseObjectID(id)
	if err != nil {
		return 0, err
	}

	result, err := r.collection.UpdateOne(ctx, versionedFilter(oid, expectedVersion), evaluationUpdate(submissions, evaluated, r.now().UTC()))
	if err != nil {
		return 0, err
	}
	return result.ModifiedCount, nil
}

// versionedFilter matches the paper at expectedVersion. Documents written before versioning have
// no version field and count as version zero.
func versionedFilter(oid primitive.ObjectID, expectedVersion int64) bson.M {
	if expectedVersion == 0 {
		return bson.M{"_id": oid, "version": bson.M{"$in": bson.A{int64(0), nil}}}
	}
	return bson.M{"_id": oid, "version": expectedVersion}
}

func evaluationUpdate(submissions []models.StudentSubmission, evaluated bool, now time.Time) bson.M {
	if submissions == nil {
		submissions = []models.StudentSubmission{}
	}

	set := bson.M{
		"submissions": submissions,
		"evaluated":   evaluated,
		"updated_at":  now,
	}
	update := bson.M{
		"$set": set,
		"$inc": bson.M{"version": int64(1)},
	}
	if evaluated {
		set["evaluated_at"] = now
	} else {
		update["$unset"] = bson.M{"evaluated_at": ""}
	}
	return update
}
