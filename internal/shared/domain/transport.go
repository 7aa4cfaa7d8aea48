package domain

import (
	"context"
)

// ConversationSummary is the group state a messaging transport shares with a
// member on add: enough to address the conversation and check the invite tag
// against it. It is display-level data, distinct from the signed payload.
type ConversationSummary struct {
	ID      string
	Tag     string
	Creator InboxID
	Name    string
}

type IncomingMessage struct {
	From InboxID
	Text string
}

type MembershipEvent struct {
	Conversation ConversationSummary
	Member       InboxID
}

// MessagingTransport is the group-messaging layer knock rides on. Sender
// identity on incoming messages is guaranteed by the transport; knock adds
// nothing on top of it.
//
// Inbox and Membership channels are owned by the transport and closed when
// it shuts down.
type MessagingTransport interface {
	SendDirectMessage(ctx context.Context, to InboxID, text string) error
	AddMember(ctx context.Context, conv ConversationSummary, member InboxID) error
	SetConsentBlocked(ctx context.Context, sender InboxID) error
	Inbox() <-chan IncomingMessage
	Membership() <-chan MembershipEvent
}
