package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"musicjam/internal/model"
)

// ErrCodeConflict is returned when an insert races another active jam onto
// the same code. The unique index is the authority; callers retry allocation.
var ErrCodeConflict = errors.New("jam code already held by an active jam")

type JamRepo interface {
	Create(ctx context.Context, jam *model.Jam) error
	GetActiveByCode(ctx context.Context, code string) (*model.Jam, error)
	Deactivate(ctx context.Context, id string) error
	ActiveCodeExists(ctx context.Context, code string) (bool, error)
}

type jamRepo struct {
	collection *mongo.Collection
}

func NewJamRepo(db *mongo.Database) JamRepo {
	return &jamRepo{
		collection: db.Collection("jams"),
	}
}

// EnsureJamIndexes creates the partial unique index that allows a code to be
// reused by a later jam once the earlier one is deactivated.
func EnsureJamIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("jams").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "code", Value: 1}},
		Options: options.Index().
			SetUnique(true).
			SetPartialFilterExpression(bson.M{"isActive": true}),
	})
	return err
}

func (r *jamRepo) Create(ctx context.Context, jam *model.Jam) error {
	if jam.ID == "" {
		jam.ID = primitive.NewObjectID().Hex()
	}
	if jam.CreatedAt.IsZero() {
		jam.CreatedAt = time.Now()
	}
	jam.IsActive = true

	_, err := r.collection.InsertOne(ctx, jam)
	if mongo.IsDuplicateKeyError(err) {
		return ErrCodeConflict
	}
	return err
}

func (r *jamRepo) GetActiveByCode(ctx context.Context, code string) (*model.Jam, error) {
	var jam model.Jam
	err := r.collection.FindOne(ctx, bson.M{"code": code, "isActive": true}).Decode(&jam)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil // no active jam with this code
		}
		return nil, err
	}
	return &jam, nil
}

func (r *jamRepo) Deactivate(ctx context.Context, id string) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"isActive": false}},
	)
	return err
}

func (r *jamRepo) ActiveCodeExists(ctx context.Context, code string) (bool, error) {
	n, err := r.collection.CountDocuments(ctx, bson.M{"code": code, "isActive": true})
	return n > 0, err
}
