package repository

import (
	"context"
	"time"

	"chatzone/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ChatRepo interface {
	Create(ctx context.Context, room *model.Room) error
	GetRoom(ctx context.Context, id string) (*model.Room, error)
}

type chatRepo struct {
	chats *mongo.Collection
	users *mongo.Collection
}

func NewChatRepo(db *mongo.Database) ChatRepo {
	return &chatRepo{
		chats: db.Collection("chats"),
		users: db.Collection("users"),
	}
}

func (r *chatRepo) Create(ctx context.Context, room *model.Room) error {
	doc := chatDoc{
		ID:        primitive.NewObjectID(),
		ChatType:  string(room.Type),
		GroupName: room.Name,
		CreatedAt: time.Now(),
	}
	for _, p := range room.Participants {
		if id := optionalID(p.ID); id != nil {
			doc.Participants = append(doc.Participants, *id)
		}
	}
	for _, u := range room.MutedBy {
		if id := optionalID(u); id != nil {
			doc.MutedBy = append(doc.MutedBy, *id)
		}
	}
	if _, err := r.chats.InsertOne(ctx, doc); err != nil {
		return err
	}
	room.ID = doc.ID.Hex()
	return nil
}

// GetRoom loads a chat with its participants' names and push tokens.
func (r *chatRepo) GetRoom(ctx context.Context, id string) (*model.Room, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil // not one of ours
	}

	var chat chatDoc
	err = r.chats.FindOne(ctx, bson.M{"_id": objectID}).Decode(&chat)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}

	users := make(map[primitive.ObjectID]userDoc, len(chat.Participants))
	if len(chat.Participants) > 0 {
		opts := options.Find().SetProjection(bson.M{"username": 1, "fcmToken": 1})
		cursor, err := r.users.Find(ctx, bson.M{"_id": bson.M{"$in": chat.Participants}}, opts)
		if err != nil {
			return nil, err
		}
		var docs []userDoc
		if err := cursor.All(ctx, &docs); err != nil {
			return nil, err
		}
		for _, u := range docs {
			users[u.ID] = u
		}
	}

	return chat.toRoom(users), nil
}
