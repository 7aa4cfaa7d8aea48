package domain

import (
	"context"
	"time"

	"github.com/google/uuid"

	shared "github.com/veylan/knock/internal/shared/domain"
)

type JoinDecision int

const (
	DecisionBlocked JoinDecision = iota
	DecisionRejected
	DecisionAccepted
)

func (d JoinDecision) String() string {
	switch d {
	case DecisionBlocked:
		return "blocked"
	case DecisionRejected:
		return "rejected"
	case DecisionAccepted:
		return "accepted"
	}
	return "unknown"
}

// JoinEvent is one processed join request, kept for audit. ConversationID
// is empty when the request never resolved to a conversation.
type JoinEvent struct {
	ID             uuid.UUID
	ConversationID string
	Requester      shared.InboxID
	Decision       JoinDecision
	Reason         string
	At             time.Time
}

type JoinLogRepository interface {
	Append(ctx context.Context, e JoinEvent) error
	ListByConversation(ctx context.Context, id string) ([]JoinEvent, error)
}
