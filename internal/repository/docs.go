package repository

import (
	"time"

	"chatzone/internal/model"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Documents mirror the collections written by the chat API.

type userDoc struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	Username   string             `bson:"username"`
	Email      string             `bson:"email,omitempty"`
	FCMToken   string             `bson:"fcmToken,omitempty"`
	IsOnline   bool               `bson:"isOnline"`
	LastSeen   *time.Time         `bson:"lastSeen,omitempty"`
	PresenceAt *time.Time         `bson:"presenceAt,omitempty"`
}

type chatDoc struct {
	ID           primitive.ObjectID   `bson:"_id,omitempty"`
	ChatType     string               `bson:"chatType"`
	GroupName    string               `bson:"groupName,omitempty"`
	Participants []primitive.ObjectID `bson:"participants"`
	MutedBy      []primitive.ObjectID `bson:"mutedBy"`
	CreatedAt    time.Time            `bson:"createdAt"`
}

type seenEntry struct {
	User   primitive.ObjectID `bson:"user"`
	SeenAt time.Time          `bson:"seenAt"`
}

type mediaDoc struct {
	URL string `bson:"url"`
}

type messageDoc struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty"`
	Text               string             `bson:"text"`
	Type               string             `bson:"type"`
	Media              *mediaDoc          `bson:"media,omitempty"`
	Sender             primitive.ObjectID `bson:"sender"`
	Chat               primitive.ObjectID `bson:"chat"`
	Status             string             `bson:"status"`
	SeenBy             []seenEntry        `bson:"seenBy"`
	Edited             bool               `bson:"edited"`
	DeletedForEveryone bool               `bson:"deletedForEveryone"`
	CreatedAt          time.Time          `bson:"createdAt"`
}

type notificationDoc struct {
	ID          primitive.ObjectID  `bson:"_id,omitempty"`
	Recipient   primitive.ObjectID  `bson:"recipient"`
	Type        string              `bson:"type"`
	Title       string              `bson:"title"`
	Message     string              `bson:"message"`
	RelatedUser *primitive.ObjectID `bson:"relatedUser"`
	RelatedChat *primitive.ObjectID `bson:"relatedChat"`
	IsRead      bool                `bson:"isRead"`
	CreatedAt   time.Time           `bson:"createdAt"`
	UpdatedAt   time.Time           `bson:"updatedAt"`
}

func (d *chatDoc) toRoom(users map[primitive.ObjectID]userDoc) *model.Room {
	room := &model.Room{
		ID:   d.ID.Hex(),
		Type: model.RoomType(d.ChatType),
		Name: d.GroupName,
	}
	if room.Type == "" {
		room.Type = model.RoomPrivate
	}
	for _, id := range d.Participants {
		p := model.Participant{ID: id.Hex()}
		if u, ok := users[id]; ok {
			p.Username = u.Username
			p.PushToken = u.FCMToken
		}
		room.Participants = append(room.Participants, p)
	}
	for _, id := range d.MutedBy {
		room.MutedBy = append(room.MutedBy, id.Hex())
	}
	return room
}

func (d *messageDoc) toMessage() *model.Message {
	msg := &model.Message{
		ID:        d.ID.Hex(),
		ChatID:    d.Chat.Hex(),
		SenderID:  d.Sender.Hex(),
		Text:      d.Text,
		Type:      d.Type,
		HasMedia:  d.Media != nil && d.Media.URL != "",
		Status:    d.Status,
		Edited:    d.Edited,
		CreatedAt: d.CreatedAt,
	}
	for _, e := range d.SeenBy {
		msg.SeenBy = append(msg.SeenBy, e.User.Hex())
	}
	return msg
}

// optionalID parses a hex id, returning nil for empty or invalid input.
func optionalID(hex string) *primitive.ObjectID {
	if hex == "" {
		return nil
	}
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return nil
	}
	return &id
}
