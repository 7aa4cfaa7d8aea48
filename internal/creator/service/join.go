// Package service implements the creator side of the invite protocol:
// conversation management, invite generation, and the join-request state
// machine that turns incoming direct messages into group membership.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	creator "github.com/veylan/knock/internal/creator/domain"
	"github.com/veylan/knock/internal/invite"
	shared "github.com/veylan/knock/internal/shared/domain"
	"github.com/veylan/knock/internal/shared/log"
)

// ConversationService owns this agent's conversations and processes join
// requests addressed to them. Rand and Now default to crypto/rand and
// time.Now when nil; Logger defaults to a nop logger.
type ConversationService struct {
	Identity      shared.Identity
	Transport     shared.MessagingTransport
	Conversations creator.ConversationRepository
	Redemptions   creator.RedemptionRepository
	JoinLog       creator.JoinLogRepository
	TXRunner      shared.TransactionRunner
	Rand          io.Reader
	Now           func() time.Time
	Logger        *zerolog.Logger

	mu      sync.Mutex
	locks   map[string]*sync.Mutex
	blocked map[shared.InboxID]struct{}
}

// Run consumes incoming direct messages until ctx is cancelled or the
// transport's inbox closes. Every message is treated as a join request;
// this protocol has no other inbound traffic.
func (s *ConversationService) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-s.Transport.Inbox():
			if !ok {
				return nil
			}
			decision, err := s.HandleJoinRequest(ctx, msg.From, msg.Text)
			if err != nil && decision != creator.DecisionBlocked && decision != creator.DecisionRejected {
				s.logger().Error().
					Err(err).
					Str("from", msg.From.String()).
					Msg("failed to process join request")
			}
		}
	}
}

// HandleJoinRequest runs the creator-side state machine over one incoming
// DM. Signature or decoding failures block the sender; a valid self-signed
// request that fails its conditions is rejected without side effects;
// acceptance adds the sender to the group.
func (s *ConversationService) HandleJoinRequest(ctx context.Context, from shared.InboxID, text string) (creator.JoinDecision, error) {
	if s.isBlocked(from) {
		return creator.DecisionBlocked, invite.ErrInvalidSignature
	}

	payload, err := s.validateSignature(text)
	if err != nil {
		return s.block(ctx, from, err)
	}

	// The token only opens with this agent's key and inbox id as AAD. A
	// failure here means a valid self-signature over a token this agent
	// cannot read, which is anomalous but not attacker-attributable.
	conversationID, err := invite.DecryptConversationToken(payload.ConversationToken, s.Identity.InboxID(), s.Identity.Key)
	if err != nil {
		s.logger().Warn().
			Str("from", from.String()).
			Err(err).
			Msg("join request carried undecryptable conversation token")
		return s.reject(ctx, from, "", err)
	}

	unlock := s.lockConversation(conversationID)
	defer unlock()

	conv, err := s.Conversations.GetByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, shared.ErrNotExist) {
			return s.reject(ctx, from, "", err)
		}
		return creator.DecisionRejected, err
	}

	if err := s.validateConditions(ctx, conv, payload); err != nil {
		return s.reject(ctx, from, conv.ID, err)
	}

	return s.accept(ctx, conv, payload, from)
}

// validateSignature decodes the DM text as a signed invite and requires
// both the recovered signing key and the embedded creator inbox id to be
// this agent's own. Creators only honor invites they themselves issued.
func (s *ConversationService) validateSignature(text string) (invite.InvitePayload, error) {
	inv, err := invite.DecodeSlug(invite.ExtractCode(text))
	if err != nil {
		return invite.InvitePayload{}, err
	}
	own := s.Identity.PublicKey().SerializeUncompressed()
	if !invite.Verify(own, inv.Payload, inv.Signature) {
		return invite.InvitePayload{}, fmt.Errorf("%w: not signed by this agent", invite.ErrInvalidSignature)
	}
	payload, err := inv.ParsePayload()
	if err != nil {
		return invite.InvitePayload{}, err
	}
	if payload.CreatorInboxID != s.Identity.InboxID() {
		return invite.InvitePayload{}, fmt.Errorf("%w: creator inbox id mismatch", invite.ErrInvalidSignature)
	}
	return payload, nil
}

func (s *ConversationService) validateConditions(ctx context.Context, conv creator.Conversation, payload invite.InvitePayload) error {
	// Tag pre-check: a rotated tag makes every older invite unredeemable
	// before anyone is added.
	if payload.Tag != conv.Tag {
		return invite.ErrTagMismatch
	}
	now := s.now()
	if payload.HasExpired(now) {
		return invite.ErrExpired
	}
	if conv.HasExpired(now) {
		return invite.ErrExpired
	}
	if payload.ExpiresAfterUse {
		if _, err := s.Redemptions.GetByTag(ctx, payload.Tag); err == nil {
			return invite.ErrAlreadyUsed
		} else if !errors.Is(err, shared.ErrNotExist) {
			return err
		}
	}
	return nil
}

func (s *ConversationService) accept(ctx context.Context, conv creator.Conversation, payload invite.InvitePayload, from shared.InboxID) (creator.JoinDecision, error) {
	err := s.TXRunner.Exec(ctx, func(ctx context.Context) error {
		if payload.ExpiresAfterUse {
			if err := s.Redemptions.Consume(ctx, creator.Redemption{
				Tag:            payload.Tag,
				ConversationID: conv.ID,
				RedeemedBy:     from,
				RedeemedAt:     s.now(),
			}); err != nil {
				return err
			}
		}
		return s.JoinLog.Append(ctx, creator.JoinEvent{
			ID:             uuid.New(),
			ConversationID: conv.ID,
			Requester:      from,
			Decision:       creator.DecisionAccepted,
			At:             s.now(),
		})
	})
	if err != nil {
		return creator.DecisionRejected, err
	}

	if err := s.Transport.AddMember(ctx, conv.Summary(s.Identity.InboxID()), from); err != nil {
		return creator.DecisionAccepted, fmt.Errorf("failed to add member: %w", err)
	}
	s.logger().Info().
		Str("conversation", conv.ID).
		Str("member", from.String()).
		Msg("accepted join request")
	return creator.DecisionAccepted, nil
}

// block is the only path with a side effect on invalid input: the sender's
// consent state flips to blocked on the transport.
func (s *ConversationService) block(ctx context.Context, from shared.InboxID, cause error) (creator.JoinDecision, error) {
	s.mu.Lock()
	if s.blocked == nil {
		s.blocked = make(map[shared.InboxID]struct{})
	}
	s.blocked[from] = struct{}{}
	s.mu.Unlock()

	if err := s.Transport.SetConsentBlocked(ctx, from); err != nil {
		s.logger().Error().
			Err(err).
			Str("sender", from.String()).
			Msg("failed to block sender")
	}
	s.logger().Warn().
		Str("sender", from.String()).
		Err(cause).
		Msg("blocked sender of invalid join request")

	if err := s.JoinLog.Append(ctx, creator.JoinEvent{
		ID:        uuid.New(),
		Requester: from,
		Decision:  creator.DecisionBlocked,
		Reason:    cause.Error(),
		At:        s.now(),
	}); err != nil {
		s.logger().Error().Err(err).Msg("failed to record join event")
	}
	return creator.DecisionBlocked, cause
}

func (s *ConversationService) reject(ctx context.Context, from shared.InboxID, conversationID string, cause error) (creator.JoinDecision, error) {
	if err := s.JoinLog.Append(ctx, creator.JoinEvent{
		ID:             uuid.New(),
		ConversationID: conversationID,
		Requester:      from,
		Decision:       creator.DecisionRejected,
		Reason:         cause.Error(),
		At:             s.now(),
	}); err != nil {
		s.logger().Error().Err(err).Msg("failed to record join event")
	}
	return creator.DecisionRejected, cause
}

func (s *ConversationService) isBlocked(id shared.InboxID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.blocked[id]
	return ok
}

// lockConversation serializes join processing per conversation so two
// requests for the same tag cannot both pass the single-use check.
func (s *ConversationService) lockConversation(id string) func() {
	s.mu.Lock()
	if s.locks == nil {
		s.locks = make(map[string]*sync.Mutex)
	}
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

func (s *ConversationService) logger() *zerolog.Logger {
	if s.Logger == nil {
		nop := log.Nop()
		return &nop
	}
	return s.Logger
}
