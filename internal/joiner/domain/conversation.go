package domain

import (
	shared "github.com/veylan/knock/internal/shared/domain"
)

// JoinedConversation is what a joiner remembers about a group it entered:
// display metadata plus the invite tag it joined under, which makes repeat
// redemptions of the same invite a no-op.
type JoinedConversation struct {
	ID      string
	Tag     string
	Creator shared.InboxID
	Name    string
}

type ConversationStore interface {
	GetByTag(tag string) (JoinedConversation, error)
	Save(conv JoinedConversation) error
	List() ([]JoinedConversation, error)
}
