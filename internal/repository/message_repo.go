package repository

import (
	"context"
	"fmt"
	"time"

	"chatzone/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type MessageRepo interface {
	Create(ctx context.Context, msg *model.Message) error
	GetMessage(ctx context.Context, id string) (*model.Message, error)
	RecordStatus(ctx context.Context, messageID, viewerUserID string, status model.MessageStatus, at time.Time) error
}

type messageRepo struct {
	collection *mongo.Collection
}

func NewMessageRepo(db *mongo.Database) MessageRepo {
	return &messageRepo{
		collection: db.Collection("messages"),
	}
}

func (r *messageRepo) Create(ctx context.Context, msg *model.Message) error {
	chat := optionalID(msg.ChatID)
	sender := optionalID(msg.SenderID)
	if chat == nil || sender == nil {
		return fmt.Errorf("create message: invalid chat or sender id")
	}
	doc := messageDoc{
		ID:        primitive.NewObjectID(),
		Text:      msg.Text,
		Type:      msg.Type,
		Sender:    *sender,
		Chat:      *chat,
		Status:    string(model.StatusSent),
		SeenBy:    []seenEntry{},
		CreatedAt: time.Now(),
	}
	if doc.Type == "" {
		doc.Type = "text"
	}
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return err
	}
	msg.ID = doc.ID.Hex()
	msg.Status = doc.Status
	msg.CreatedAt = doc.CreatedAt
	return nil
}

// GetMessage returns (nil, nil) for unknown and deleted-for-everyone messages.
func (r *messageRepo) GetMessage(ctx context.Context, id string) (*model.Message, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}

	var doc messageDoc
	filter := bson.M{"_id": objectID, "deletedForEveryone": bson.M{"$ne": true}}
	err = r.collection.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}

	return doc.toMessage(), nil
}

// RecordStatus moves the stored status forward and appends the viewer to
// seenBy once.
func (r *messageRepo) RecordStatus(ctx context.Context, messageID, viewerUserID string, status model.MessageStatus, at time.Time) error {
	objectID, err := primitive.ObjectIDFromHex(messageID)
	if err != nil {
		return nil
	}

	var behind bson.A
	switch status {
	case model.StatusDelivered:
		behind = bson.A{string(model.StatusSent)}
	case model.StatusSeen:
		behind = bson.A{string(model.StatusSent), string(model.StatusDelivered)}
	default:
		return nil
	}
	_, err = r.collection.UpdateOne(ctx,
		bson.M{"_id": objectID, "status": bson.M{"$in": behind}},
		bson.M{"$set": bson.M{"status": string(status)}},
	)
	if err != nil {
		return err
	}

	if status != model.StatusSeen {
		return nil
	}
	viewer := optionalID(viewerUserID)
	if viewer == nil {
		return nil
	}
	_, err = r.collection.UpdateOne(ctx,
		bson.M{"_id": objectID, "seenBy.user": bson.M{"$ne": *viewer}},
		bson.M{"$push": bson.M{"seenBy": seenEntry{User: *viewer, SeenAt: at}}},
	)
	return err
}
