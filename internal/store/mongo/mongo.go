// Package mongo is the MongoDB backend of the realtime layer's stores. It
// keeps one chat document per project with messages embedded, as the web
// application does.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nfrund/collabhub/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	usersCollection         = "users"
	projectsCollection      = "projects"
	chatsCollection         = "chats"
	notificationsCollection = "notifications"
)

// Store implements the project, chat, notification and user stores.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	now    func() time.Time
}

var (
	_ domain.ProjectStore      = (*Store)(nil)
	_ domain.ChatStore         = (*Store)(nil)
	_ domain.NotificationStore = (*Store)(nil)
	_ domain.UserDirectory     = (*Store)(nil)
)

// Open connects to uri and verifies the connection.
func Open(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetConnectTimeout(10*time.Second))
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping: %w", err)
	}
	return &Store{
		client: client,
		db:     client.Database(database),
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// Ping checks the server is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

type chatMessageDoc struct {
	ID          string    `bson:"_id"`
	Sender      string    `bson:"sender"`
	Content     string    `bson:"content"`
	MessageType string    `bson:"messageType"`
	ReplyTo     string    `bson:"replyTo,omitempty"`
	CreatedAt   time.Time `bson:"createdAt"`
}

type notificationDoc struct {
	ID        string    `bson:"_id"`
	Recipient string    `bson:"recipient"`
	Sender    string    `bson:"sender,omitempty"`
	Type      string    `bson:"type"`
	Title     string    `bson:"title"`
	Message   string    `bson:"message"`
	Project   string    `bson:"relatedProject,omitempty"`
	Priority  string    `bson:"priority"`
	Category  string    `bson:"category"`
	IsRead    bool      `bson:"isRead"`
	CreatedAt time.Time `bson:"createdAt"`
}

func (s *Store) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	var doc userDoc
	err := s.db.Collection(usersCollection).FindOne(ctx, bson.M{"_id": userID}).Decode(&doc)
	if err != nil {
		return nil, notFound(err, "user", userID)
	}
	return doc.toDomain(), nil
}

func (s *Store) TouchLastActive(ctx context.Context, userID string, at time.Time) error {
	res, err := s.db.Collection(usersCollection).UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$max": bson.M{"lastActive": at.UTC()}})
	if err != nil {
		return fmt.Errorf("touch user %s: %w", userID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	return nil
}

// PutUser inserts or replaces a user.
func (s *Store) PutUser(ctx context.Context, u *domain.User) error {
	_, err := s.db.Collection(usersCollection).ReplaceOne(ctx, bson.M{"_id": u.ID}, userToDoc(u), options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("put user %s: %w", u.ID, err)
	}
	return nil
}

func (s *Store) GetProject(ctx context.Context, projectID string) (*domain.Project, error) {
	var doc projectDoc
	err := s.db.Collection(projectsCollection).FindOne(ctx, bson.M{"_id": projectID}).Decode(&doc)
	if err != nil {
		return nil, notFound(err, "project", projectID)
	}
	return doc.toDomain(), nil
}

// PutProject inserts or replaces a project.
func (s *Store) PutProject(ctx context.Context, p *domain.Project) error {
	_, err := s.db.Collection(projectsCollection).ReplaceOne(ctx, bson.M{"_id": p.ID}, projectToDoc(p), options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("put project %s: %w", p.ID, err)
	}
	return nil
}

func (s *Store) GetActiveTeamMembers(ctx context.Context, projectID string) ([]string, error) {
	p, err := s.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return p.ActiveMemberIDs(), nil
}

func (s *Store) UpdateProgress(ctx context.Context, projectID string, progress int) error {
	res, err := s.db.Collection(projectsCollection).UpdateOne(ctx,
		bson.M{"_id": projectID},
		bson.M{"$set": bson.M{"progress": progress}})
	if err != nil {
		return fmt.Errorf("update progress of %s: %w", projectID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("project %s: %w", projectID, domain.ErrNotFound)
	}
	return nil
}

// CompleteTask sets the task's status with a positional update, then
// recomputes progress inside the server from the stored tasks.
func (s *Store) CompleteTask(ctx context.Context, projectID, taskID string, at time.Time) (*domain.Project, error) {
	coll := s.db.Collection(projectsCollection)
	res, err := coll.UpdateOne(ctx,
		bson.M{"_id": projectID, "tasks.id": taskID},
		bson.M{"$set": bson.M{"tasks.$.status": string(domain.TaskCompleted), "tasks.$.completedAt": at.UTC()}})
	if err != nil {
		return nil, fmt.Errorf("complete task %s: %w", taskID, err)
	}
	if res.MatchedCount == 0 {
		if _, err := s.GetProject(ctx, projectID); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("task %s: %w", taskID, domain.ErrNotFound)
	}

	var doc projectDoc
	err = coll.FindOneAndUpdate(ctx, bson.M{"_id": projectID}, recomputeProgress(),
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if err != nil {
		return nil, notFound(err, "project", projectID)
	}
	return doc.toDomain(), nil
}

// recomputeProgress is an update pipeline that sets progress to the
// rounded share of completed tasks.
func recomputeProgress() mongo.Pipeline {
	completed := bson.M{"$size": bson.M{"$filter": bson.M{
		"input": "$tasks",
		"cond":  bson.M{"$eq": bson.A{"$$this.status", string(domain.TaskCompleted)}},
	}}}
	share := bson.M{"$divide": bson.A{bson.M{"$multiply": bson.A{completed, 100}}, bson.M{"$size": "$tasks"}}}
	return mongo.Pipeline{
		{{Key: "$set", Value: bson.M{"progress": bson.M{"$toInt": bson.M{"$floor": bson.M{"$add": bson.A{share, 0.5}}}}}}},
	}
}

// AppendMessage pushes the message onto the project's chat document,
// creating it on first use.
func (s *Store) AppendMessage(ctx context.Context, projectID string, msg *domain.OutboundMessage) (*domain.ChatMessage, error) {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	doc := chatMessageDoc{
		ID:          primitive.NewObjectID().Hex(),
		Sender:      msg.SenderID,
		Content:     msg.Content,
		MessageType: string(msg.MessageType),
		ReplyTo:     msg.ReplyToMessageID,
		CreatedAt:   s.now(),
	}
	_, err := s.db.Collection(chatsCollection).UpdateOne(ctx,
		bson.M{"project": projectID},
		bson.M{
			"$push":        bson.M{"messages": doc},
			"$set":         bson.M{"lastActivity": doc.CreatedAt},
			"$setOnInsert": bson.M{"project": projectID, "createdAt": doc.CreatedAt},
		},
		options.Update().SetUpsert(true))
	if err != nil {
		return nil, fmt.Errorf("append message to %s: %w", projectID, err)
	}
	return &domain.ChatMessage{
		ID:               doc.ID,
		ProjectID:        projectID,
		SenderID:         doc.Sender,
		Content:          doc.Content,
		MessageType:      msg.MessageType,
		ReplyToMessageID: doc.ReplyTo,
		CreatedAt:        doc.CreatedAt,
	}, nil
}

func (s *Store) CreateNotification(ctx context.Context, n *domain.Notification) (*domain.Notification, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}
	doc := notificationDoc{
		ID:        primitive.NewObjectID().Hex(),
		Recipient: n.RecipientID,
		Sender:    n.SenderID,
		Type:      string(n.Type),
		Title:     n.Title,
		Message:   n.Message,
		Project:   n.ProjectID,
		Priority:  n.Priority,
		Category:  n.Category,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = s.now()
	}
	if _, err := s.db.Collection(notificationsCollection).InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("create notification for %s: %w", n.RecipientID, err)
	}
	saved := *n
	saved.ID = doc.ID
	saved.CreatedAt = doc.CreatedAt
	return &saved, nil
}

func notFound(err error, kind, id string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%s %s: %w", kind, id, domain.ErrNotFound)
	}
	return fmt.Errorf("get %s %s: %w", kind, id, err)
}
