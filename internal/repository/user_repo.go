package repository

import (
	"context"
	"time"

	"chatzone/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type UserRepo interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	SetPresence(ctx context.Context, userID string, online bool, at time.Time) error
}

type userRepo struct {
	collection *mongo.Collection
}

func NewUserRepo(db *mongo.Database) UserRepo {
	return &userRepo{
		collection: db.Collection("users"),
	}
}

func (r *userRepo) Create(ctx context.Context, user *model.User) error {
	doc := userDoc{
		ID:       primitive.NewObjectID(),
		Username: user.Username,
		Email:    user.Email,
		FCMToken: user.PushToken,
	}
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return err
	}
	user.ID = doc.ID.Hex()
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}

	var doc userDoc
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}

	return &model.User{
		ID:        doc.ID.Hex(),
		Username:  doc.Username,
		Email:     doc.Email,
		PushToken: doc.FCMToken,
		IsOnline:  doc.IsOnline,
		LastSeen:  doc.LastSeen,
	}, nil
}

// SetPresence updates isOnline and lastSeen. presenceAt orders the writes:
// a transition older than the stored one is ignored.
func (r *userRepo) SetPresence(ctx context.Context, userID string, online bool, at time.Time) error {
	objectID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil // ids from other auth backends have no user document
	}

	set := bson.M{"isOnline": online, "presenceAt": at}
	if !online {
		set["lastSeen"] = at
	}
	filter := bson.M{
		"_id": objectID,
		"$or": bson.A{
			bson.M{"presenceAt": bson.M{"$exists": false}},
			bson.M{"presenceAt": bson.M{"$lte": at}},
		},
	}
	_, err = r.collection.UpdateOne(ctx, filter, bson.M{"$set": set})
	return err
}
