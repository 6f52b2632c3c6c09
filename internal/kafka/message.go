package kafka

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventPostPublished = "post.published"
	EventPostFailed    = "post.failed"
)

// PostEvent is the lifecycle envelope the dispatcher publishes after a post
// reaches a terminal status. Consumers outside this core (dashboards,
// audit) key on AccountID.
type PostEvent struct {
	EventID    string    `json:"event_id"`
	Kind       string    `json:"kind"`
	PostID     int64     `json:"post_id"`
	AccountID  int64     `json:"account_id"`
	Error      string    `json:"error,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

func NewPostPublishedEvent(postID, accountID int64) *PostEvent {
	return &PostEvent{
		EventID:    uuid.NewString(),
		Kind:       EventPostPublished,
		PostID:     postID,
		AccountID:  accountID,
		OccurredAt: time.Now().UTC(),
	}
}

func NewPostFailedEvent(postID, accountID int64, errMsg string) *PostEvent {
	return &PostEvent{
		EventID:    uuid.NewString(),
		Kind:       EventPostFailed,
		PostID:     postID,
		AccountID:  accountID,
		Error:      errMsg,
		OccurredAt: time.Now().UTC(),
	}
}

// EngagementEvent arrives from the inbound-message webhook layer and turns
// into a user notification.
type EngagementEvent struct {
	UserID    int64  `json:"user_id"`
	AccountID int64  `json:"account_id"`
	Kind      string `json:"kind"` // mention, comment, direct_message, ...
	Summary   string `json:"summary"`
}
