package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"musicjam/internal/model"
)

// ParticipantFields is the writable portion of a participant row. The
// identity columns and JoinedAt are fixed at first insert.
type ParticipantFields struct {
	DisplayName string
	AvatarURL   string
	TrackID     *string
	IsPlaying   bool
}

type ParticipantRepo interface {
	// Upsert writes the one row for (jamID, userID), creating it on first
	// call and updating it afterwards. LastUpdatedAt always advances.
	Upsert(ctx context.Context, jamID, userID string, fields ParticipantFields) (*model.Participant, error)
	// Delete removes the row; deleting an absent row is not an error.
	Delete(ctx context.Context, jamID, userID string) error
	// ListByJam returns all rows ordered by joinedAt ascending. Viewers
	// depend on this ordering for stable layout.
	ListByJam(ctx context.Context, jamID string) ([]model.Participant, error)
	// DeleteStale removes rows whose last self-report is older than cutoff.
	DeleteStale(ctx context.Context, jamID string, cutoff time.Time) (int64, error)
}

type participantRepo struct {
	collection *mongo.Collection
}

func NewParticipantRepo(db *mongo.Database) ParticipantRepo {
	return &participantRepo{
		collection: db.Collection("jam_participants"),
	}
}

// EnsureParticipantIndexes enforces one row per (jamId, userId) so that
// rejoins and concurrent upserts can never duplicate a member.
func EnsureParticipantIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("jam_participants").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "jamId", Value: 1}, {Key: "userId", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (r *participantRepo) Upsert(ctx context.Context, jamID, userID string, fields ParticipantFields) (*model.Participant, error) {
	now := time.Now()

	update := bson.M{
		"$set": bson.M{
			"displayName":   fields.DisplayName,
			"avatarUrl":     fields.AvatarURL,
			"trackId":       fields.TrackID,
			"isPlaying":     fields.IsPlaying,
			"lastUpdatedAt": now,
		},
		"$setOnInsert": bson.M{
			"_id":      primitive.NewObjectID().Hex(),
			"jamId":    jamID,
			"userId":   userID,
			"joinedAt": now,
		},
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var participant model.Participant
	err := r.collection.FindOneAndUpdate(ctx,
		bson.M{"jamId": jamID, "userId": userID},
		update, opts,
	).Decode(&participant)
	if err != nil {
		return nil, err
	}
	return &participant, nil
}

func (r *participantRepo) Delete(ctx context.Context, jamID, userID string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"jamId": jamID, "userId": userID})
	return err
}

func (r *participantRepo) ListByJam(ctx context.Context, jamID string) ([]model.Participant, error) {
	opts := options.Find().SetSort(bson.D{{Key: "joinedAt", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"jamId": jamID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	participants := []model.Participant{}
	if err := cursor.All(ctx, &participants); err != nil {
		return nil, err
	}
	return participants, nil
}

func (r *participantRepo) DeleteStale(ctx context.Context, jamID string, cutoff time.Time) (int64, error) {
	res, err := r.collection.DeleteMany(ctx, bson.M{
		"jamId":         jamID,
		"lastUpdatedAt": bson.M{"$lt": cutoff},
	})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
