// Package joiner implements the joiner side of the invite protocol: decode
// and verify a pasted slug, knock on the creator's inbox with it, wait for
// the membership grant, and check the tag afterwards.
package joiner

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/veylan/knock/internal/invite"
	joiner "github.com/veylan/knock/internal/joiner/domain"
	shared "github.com/veylan/knock/internal/shared/domain"
	"github.com/veylan/knock/internal/shared/log"
)

// JoinState is where a join attempt ended.
type JoinState int

const (
	// StateAlreadyJoined means a conversation with this invite tag is
	// already stored locally; nothing was sent.
	StateAlreadyJoined JoinState = iota
	// StateTagVerified means membership was granted and the conversation's
	// tag matches the invite.
	StateTagVerified
	// StateTagMismatch means membership was granted for a conversation
	// whose current tag differs from the invite's. The joiner landed in an
	// unintended conversation; surfaced as a security anomaly.
	StateTagMismatch
)

type JoinResult struct {
	State        JoinState
	Conversation joiner.JoinedConversation
}

// Joiner drives join attempts over the messaging transport. One attempt
// runs at a time; the transport's membership stream is single-reader.
type Joiner struct {
	Identity      shared.Identity
	Transport     shared.MessagingTransport
	Conversations joiner.ConversationStore
	Logger        *zerolog.Logger

	mu sync.Mutex
}

// Join redeems an invite slug. Malformed input fails locally before
// anything is transmitted. Cancelling ctx stops the wait for the membership
// grant; a join-request DM already sent stays sent.
func (j *Joiner) Join(ctx context.Context, slug string) (JoinResult, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	// Decoding: parse and verify before any network traffic.
	code := invite.ExtractCode(slug)
	inv, err := invite.DecodeSlug(code)
	if err != nil {
		return JoinResult{}, err
	}
	if _, err := invite.RecoverPublicKey(inv.Payload, inv.Signature); err != nil {
		return JoinResult{}, err
	}
	payload, err := inv.ParsePayload()
	if err != nil {
		return JoinResult{}, err
	}

	// LocalLookup: joining a conversation twice is a no-op.
	if conv, err := j.Conversations.GetByTag(payload.Tag); err == nil {
		return JoinResult{State: StateAlreadyJoined, Conversation: conv}, nil
	}

	// SendingJoinRequest: the knock is the invite text itself, sent back
	// to the creator's inbox as a plain DM.
	if err := j.Transport.SendDirectMessage(ctx, payload.CreatorInboxID, code); err != nil {
		return JoinResult{}, fmt.Errorf("failed to send join request: %w", err)
	}
	j.logger().Info().
		Str("creator", payload.CreatorInboxID.String()).
		Str("tag", payload.Tag).
		Msg("sent join request")

	return j.waitForAdd(ctx, payload)
}

// waitForAdd suspends until the transport grants membership in a
// conversation created by the invite's creator, then verifies the tag.
func (j *Joiner) waitForAdd(ctx context.Context, payload invite.InvitePayload) (JoinResult, error) {
	self := j.Identity.InboxID()
	for {
		select {
		case <-ctx.Done():
			return JoinResult{}, ctx.Err()
		case ev, ok := <-j.Transport.Membership():
			if !ok {
				return JoinResult{}, fmt.Errorf("transport closed while waiting for membership")
			}
			if ev.Member != self || ev.Conversation.Creator != payload.CreatorInboxID {
				continue
			}
			conv := joiner.JoinedConversation{
				ID:      ev.Conversation.ID,
				Tag:     ev.Conversation.Tag,
				Creator: ev.Conversation.Creator,
				Name:    ev.Conversation.Name,
			}
			if ev.Conversation.Tag != payload.Tag {
				j.logger().Warn().
					Str("conversation", ev.Conversation.ID).
					Str("expected_tag", payload.Tag).
					Str("actual_tag", ev.Conversation.Tag).
					Msg("added to a conversation with a different tag")
				return JoinResult{State: StateTagMismatch, Conversation: conv}, invite.ErrTagMismatch
			}
			if err := j.Conversations.Save(conv); err != nil {
				return JoinResult{State: StateTagVerified, Conversation: conv}, fmt.Errorf("failed to store joined conversation: %w", err)
			}
			j.logger().Info().
				Str("conversation", conv.ID).
				Str("tag", conv.Tag).
				Msg("joined conversation")
			return JoinResult{State: StateTagVerified, Conversation: conv}, nil
		}
	}
}

func (j *Joiner) logger() *zerolog.Logger {
	if j.Logger == nil {
		nop := log.Nop()
		return &nop
	}
	return j.Logger
}
