package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"chatzone/internal/config"
	"chatzone/internal/model"
	"chatzone/internal/repository"
	"chatzone/internal/service"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Seeds two users, a private chat between them and one message, then prints
// tokens for connecting to the relay.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fail("load config", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		fail("connect to MongoDB", err)
	}
	defer client.Disconnect(ctx)

	db := client.Database(cfg.MongoDatabase)
	users := repository.NewUserRepo(db)
	chats := repository.NewChatRepo(db)
	messages := repository.NewMessageRepo(db)
	notifications := repository.NewNotificationRepo(db)

	alice := &model.User{Username: "alice", Email: "alice@example.com"}
	bob := &model.User{Username: "bob", Email: "bob@example.com"}
	for _, u := range []*model.User{alice, bob} {
		if err := users.Create(ctx, u); err != nil {
			fail("create user "+u.Username, err)
		}
	}

	room := &model.Room{
		Type:         model.RoomPrivate,
		Participants: []model.Participant{{ID: alice.ID}, {ID: bob.ID}},
	}
	if err := chats.Create(ctx, room); err != nil {
		fail("create chat", err)
	}

	msg := &model.Message{ChatID: room.ID, SenderID: alice.ID, Text: "hello bob"}
	if err := messages.Create(ctx, msg); err != nil {
		fail("create message", err)
	}

	auth := service.NewAuthService(cfg.JWTSecret)
	fmt.Printf("chat    %s\n", room.ID)
	fmt.Printf("message %s (announce with POST /v1/messages/%s/sent as alice)\n", msg.ID, msg.ID)
	for _, u := range []*model.User{alice, bob} {
		token, err := auth.GenerateToken(u.ID, 24*time.Hour)
		if err != nil {
			fail("sign token", err)
		}
		unread, err := notifications.CountUnread(ctx, u.ID)
		if err != nil {
			fail("count notifications", err)
		}
		fmt.Printf("%-6s id=%s unread=%d\n  token=%s\n", u.Username, u.ID, unread, token)
	}
}

func fail(what string, err error) {
	slog.Error("seed failed", "step", what, "error", err)
	os.Exit(1)
}
