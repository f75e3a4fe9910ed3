package repository

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"go-user-service/internal/model"
)

const usersCollection = "users"

// emailCollation compares emails case-insensitively, so records written with a
// mixed-case address still match a lowercased lookup and still collide on the
// unique index.
var emailCollation = &options.Collation{Locale: "en", Strength: 2}

type userDocument struct {
	ID              bson.ObjectID `bson:"_id,omitempty"`
	Username        string        `bson:"username"`
	Email           string        `bson:"email"`
	AdmissionNumber string        `bson:"admission_number"`
	HashedPassword  string        `bson:"hashed_password"`
	CreatedAt       time.Time     `bson:"created_at,omitempty"`
}

func (d userDocument) toModel() model.User {
	return model.User{
		ID:              d.ID.Hex(),
		Username:        d.Username,
		Email:           d.Email,
		AdmissionNumber: d.AdmissionNumber,
		PasswordHash:    d.HashedPassword,
		CreatedAt:       d.CreatedAt,
	}
}

type MongoUserRepository struct {
	coll    *mongo.Collection
	indexed atomic.Bool
}

func NewMongoUserRepository(db *mongo.Database) *MongoUserRepository {
	return &MongoUserRepository{coll: db.Collection(usersCollection)}
}

// EnsureIndexes creates the unique email index that backs registration.
// Create calls it on demand until it has succeeded once.
func (r *MongoUserRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "email", Value: 1}},
		Options: options.Index().
			SetUnique(true).
			SetName("email_unique").
			SetCollation(emailCollation),
	})
	if err != nil {
		return fmt.Errorf("create email index: %w", err)
	}
	r.indexed.Store(true)
	return nil
}

func (r *MongoUserRepository) FindByEmail(ctx context.Context, email string) (model.User, error) {
	return r.findOne(ctx, bson.D{{Key: "email", Value: normalizeEmail(email)}},
		options.FindOne().SetCollation(emailCollation))
}

func (r *MongoUserRepository) FindByID(ctx context.Context, id string) (model.User, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return model.User{}, model.ErrMalformedIdentifier
	}
	return r.findOne(ctx, bson.D{{Key: "_id", Value: oid}}, options.FindOne())
}

func (r *MongoUserRepository) Create(ctx context.Context, u model.User) (model.User, error) {
	if !r.indexed.Load() {
		if err := r.EnsureIndexes(ctx); err != nil {
			return model.User{}, fmt.Errorf("insert user: %w", err)
		}
	}

	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	doc := userDocument{
		Username:        u.Username,
		Email:           normalizeEmail(u.Email),
		AdmissionNumber: u.AdmissionNumber,
		HashedPassword:  u.PasswordHash,
		CreatedAt:       u.CreatedAt,
	}

	res, err := r.coll.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return model.User{}, model.ErrEmailTaken
	}
	if err != nil {
		return model.User{}, fmt.Errorf("insert user: %w", err)
	}

	oid, ok := res.InsertedID.(bson.ObjectID)
	if !ok {
		return model.User{}, fmt.Errorf("insert user: unexpected id type %T", res.InsertedID)
	}
	doc.ID = oid

	return doc.toModel(), nil
}

func (r *MongoUserRepository) CountByEmail(ctx context.Context, email string) (int, error) {
	n, err := r.coll.CountDocuments(ctx, bson.D{{Key: "email", Value: normalizeEmail(email)}},
		options.Count().SetCollation(emailCollation))
	if err != nil {
		return 0, fmt.Errorf("count users by email: %w", err)
	}
	return int(n), nil
}

func (r *MongoUserRepository) findOne(ctx context.Context, filter bson.D, opts *options.FindOneOptionsBuilder) (model.User, error) {
	var doc userDocument
	err := r.coll.FindOne(ctx, filter, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.User{}, model.ErrNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("find user: %w", err)
	}
	return doc.toModel(), nil
}
