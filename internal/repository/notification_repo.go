package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"chatzone/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type NotificationRepo interface {
	CreateNotification(ctx context.Context, n *model.Notification) error
	CountUnread(ctx context.Context, recipientID string) (int64, error)
}

type notificationRepo struct {
	collection *mongo.Collection
}

func NewNotificationRepo(db *mongo.Database) NotificationRepo {
	repo := &notificationRepo{
		collection: db.Collection("notifications"),
	}
	repo.ensureIndexes(context.Background())
	return repo
}

func (r *notificationRepo) ensureIndexes(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	keys := bson.D{
		{Key: "recipient", Value: 1},
		{Key: "isRead", Value: 1},
		{Key: "createdAt", Value: -1},
	}
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: keys, Options: options.Index()})
	if err != nil {
		slog.Warn("create notifications index", "error", err)
	}
}

func (r *notificationRepo) CreateNotification(ctx context.Context, n *model.Notification) error {
	recipient, err := primitive.ObjectIDFromHex(n.Recipient)
	if err != nil {
		return fmt.Errorf("notification recipient %q: %w", n.Recipient, err)
	}
	created := n.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	doc := notificationDoc{
		Recipient:   recipient,
		Type:        string(n.Type),
		Title:       n.Title,
		Message:     n.Body,
		RelatedUser: optionalID(n.RelatedUser),
		RelatedChat: optionalID(n.RelatedChat),
		IsRead:      n.IsRead,
		CreatedAt:   created,
		UpdatedAt:   created,
	}
	_, err = r.collection.InsertOne(ctx, doc)
	return err
}

func (r *notificationRepo) CountUnread(ctx context.Context, recipientID string) (int64, error) {
	recipient, err := primitive.ObjectIDFromHex(recipientID)
	if err != nil {
		return 0, nil
	}
	return r.collection.CountDocuments(ctx, bson.M{"recipient": recipient, "isRead": false})
}
