package domain

import (
	"context"
	"time"

	shared "github.com/veylan/knock/internal/shared/domain"
)

// Conversation is a group owned by this agent. Tag is the current invite
// tag; rotating it leaves issued invites cryptographically valid but makes
// them unredeemable.
type Conversation struct {
	ID          string
	Tag         string
	Name        string
	Description string
	ImageURL    string
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

// HasExpired reports whether the conversation's self-destruct time passed.
func (c Conversation) HasExpired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

func (c Conversation) Summary(creator shared.InboxID) shared.ConversationSummary {
	return shared.ConversationSummary{
		ID:      c.ID,
		Tag:     c.Tag,
		Creator: creator,
		Name:    c.Name,
	}
}

type ConversationRepository interface {
	Save(ctx context.Context, conv Conversation) error
	GetByID(ctx context.Context, id string) (Conversation, error)
	List(ctx context.Context) ([]Conversation, error)
	UpdateTag(ctx context.Context, id, tag string) error
	Delete(ctx context.Context, id string) error
}
