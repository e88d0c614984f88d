// Package events publishes domain events for downstream consumers. Delivery
// is best-effort: the feed service logs publish failures and carries on.
package events

import (
	"context"
	"encoding/json"
	"time"
)

const (
	TypePostCreated   = "post.created"
	TypeCommentAdded  = "comment.added"
	TypeFollowCreated = "follow.created"
	TypeFollowDeleted = "follow.deleted"
)

// Event is a message published to the event bus.
type Event struct {
	Type      string          `json:"type"`
	Key       string          `json:"key"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewEvent creates a new event with the current timestamp. The key groups
// related events into the same Kafka partition.
func NewEvent(eventType, key string, payload interface{}) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{
		Type:      eventType,
		Key:       key,
		Payload:   data,
		Timestamp: time.Now(),
	}, nil
}

// PostCreated is the payload of a post.created event.
type PostCreated struct {
	PostID   uint  `json:"post_id"`
	AuthorID uint  `json:"author_id"`
	GroupID  *uint `json:"group_id,omitempty"`
}

// CommentAdded is the payload of a comment.added event.
type CommentAdded struct {
	CommentID uint `json:"comment_id"`
	PostID    uint `json:"post_id"`
	AuthorID  uint `json:"author_id"`
}

// FollowChanged is the payload of follow.created and follow.deleted events.
type FollowChanged struct {
	UserID   uint `json:"user_id"`
	AuthorID uint `json:"author_id"`
}

// Publisher publishes events to the event bus.
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}

// NoopPublisher discards every event. Used when no brokers are configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, event *Event) error { return nil }
func (NoopPublisher) Close() error                                    { return nil }

var _ Publisher = NoopPublisher{}
