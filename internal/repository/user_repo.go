package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/noah-isme/peak-go-api/internal/models"
)

// ErrUserTypeNotFound indicates no role is recorded for the email.
var ErrUserTypeNotFound = errors.New("user type not found")

// ErrAssociationExists indicates the teacher and student are already linked.
var ErrAssociationExists = errors.New("association already exists")

// ErrUserTypeExists indicates the email already carries a role.
var ErrUserTypeExists = errors.New("user type already exists")

// EnsureUserIndexes creates the unique indexes the user collections rely on. It is idempotent.
func EnsureUserIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("types").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("types_email_unique"),
	})
	if err != nil {
		return fmt.Errorf("create types index: %w", err)
	}

	_, err = db.Collection("association").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "teacher_email", Value: 1}, {Key: "student_email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("association_pair_unique"),
	})
	if err != nil {
		return fmt.Errorf("create association index: %w", err)
	}
	return nil
}

// UserTypeRepository stores the teacher/student role of each email.
type UserTypeRepository interface {
	Create(ctx context.Context, userType *models.UserType) (string, error)
	GetByEmail(ctx context.Context, email string) (models.UserType, error)
	Exists(ctx context.Context, email, userType string) (bool, error)
}

type userTypeRepository struct {
	collection *mongo.Collection
}

// NewUserTypeRepository instantiates the repository over the types collection.
func NewUserTypeRepository(db *mongo.Database) UserTypeRepository {
	return &userTypeRepository{collection: db.Collection("types")}
}

func (r *userTypeRepository) Create(ctx context.Context, userType *models.UserType) (string, error) {
	userType.ID = ""
	result, err := r.collection.InsertOne(ctx, userType)
	if mongo.IsDuplicateKeyError(err) {
		return "", ErrUserTypeExists
	}
	if err != nil {
		return "", err
	}
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		userType.ID = oid.Hex()
	}
	return userType.ID, nil
}

func (r *userTypeRepository) GetByEmail(ctx context.Context, email string) (models.UserType, error) {
	var userType models.UserType
	err := r.collection.FindOne(ctx, bson.M{"email": email}).Decode(&userType)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.UserType{}, ErrUserTypeNotFound
	}
	if err != nil {
		return models.UserType{}, err
	}
	return userType, nil
}

func (r *userTypeRepository) Exists(ctx context.Context, email, userType string) (bool, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{"email": email, "type": userType})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// AssociationRepository stores teacher-student associations.
type AssociationRepository interface {
	Create(ctx context.Context, association *models.TeacherStudentAssociation) (string, error)
	Exists(ctx context.Context, teacherEmail, studentEmail string) (bool, error)
	ListByStudent(ctx context.Context, studentEmail string) ([]models.TeacherStudentAssociation, error)
	ListByTeacher(ctx context.Context, teacherEmail string) ([]models.TeacherStudentAssociation, error)
}

type associationRepository struct {
	collection *mongo.Collection
}

// NewAssociationRepository instantiates the repository over the association collection.
func NewAssociationRepository(db *mongo.Database) AssociationRepository {
	return &associationRepository{collection: db.Collection("association")}
}

func (r *associationRepository) Create(ctx context.Context, association *models.TeacherStudentAssociation) (string, error) {
	association.ID = ""
	result, err := r.collection.InsertOne(ctx, association)
	if mongo.IsDuplicateKeyError(err) {
		return "", ErrAssociationExists
	}
	if err != nil {
		return "", err
	}
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		association.ID = oid.Hex()
	}
	return association.ID, nil
}

func (r *associationRepository) Exists(ctx context.Context, teacherEmail, studentEmail string) (bool, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{"teacher_email": teacherEmail, "student_email": studentEmail})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *associationRepository) ListByStudent(ctx context.Context, studentEmail string) ([]models.TeacherStudentAssociation, error) {
	return r.find(ctx, bson.M{"student_email": studentEmail})
}

func (r *associationRepository) ListByTeacher(ctx context.Context, teacherEmail string) ([]models.TeacherStudentAssociation, error) {
	return r.find(ctx, bson.M{"teacher_email": teacherEmail})
}

func (r *associationRepository) find(ctx context.Context, filter bson.M) ([]models.TeacherStudentAssociation, error) {
	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	associations := make([]models.TeacherStudentAssociation, 0)
	if err := cursor.All(ctx, &associations); err != nil {
		return nil, err
	}
	return associations, nil
}
