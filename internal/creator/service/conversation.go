package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	creator "github.com/veylan/knock/internal/creator/domain"
	"github.com/veylan/knock/internal/invite"
)

type CreateConversationOptions struct {
	Name        string
	Description string
	ImageURL    string
	ExpiresAt   time.Time
}

func (s *ConversationService) CreateConversation(ctx context.Context, opts CreateConversationOptions) (creator.Conversation, error) {
	tag, err := invite.NewTag(s.rand())
	if err != nil {
		return creator.Conversation{}, err
	}
	conv := creator.Conversation{
		ID:          uuid.NewString(),
		Tag:         tag,
		Name:        opts.Name,
		Description: opts.Description,
		ImageURL:    opts.ImageURL,
		ExpiresAt:   opts.ExpiresAt,
		CreatedAt:   s.now(),
	}
	if err := s.Conversations.Save(ctx, conv); err != nil {
		return creator.Conversation{}, err
	}
	return conv, nil
}

func (s *ConversationService) GetConversation(ctx context.Context, id string) (creator.Conversation, error) {
	return s.Conversations.GetByID(ctx, id)
}

func (s *ConversationService) ListConversations(ctx context.Context) ([]creator.Conversation, error) {
	return s.Conversations.List(ctx)
}

// RotateTag replaces the conversation's invite tag. Invites carrying the
// old tag remain cryptographically valid but fail the tag pre-check on
// redemption from this point on.
func (s *ConversationService) RotateTag(ctx context.Context, id string) (string, error) {
	unlock := s.lockConversation(id)
	defer unlock()

	if _, err := s.Conversations.GetByID(ctx, id); err != nil {
		return "", err
	}
	tag, err := invite.NewTag(s.rand())
	if err != nil {
		return "", err
	}
	if err := s.Conversations.UpdateTag(ctx, id, tag); err != nil {
		return "", err
	}
	return tag, nil
}

type GenerateInviteOptions struct {
	ExpiresAt time.Time
	SingleUse bool
}

// GenerateInvite builds, signs, and encodes an invite slug for the
// conversation's current tag.
func (s *ConversationService) GenerateInvite(ctx context.Context, id string, opts GenerateInviteOptions) (string, error) {
	conv, err := s.Conversations.GetByID(ctx, id)
	if err != nil {
		return "", err
	}

	inbox := s.Identity.InboxID()
	token, err := invite.EncryptConversationToken(conv.ID, inbox, s.Identity.Key)
	if err != nil {
		return "", err
	}
	payload := invite.BuildPayload(invite.PayloadParams{
		Tag:                   conv.Tag,
		ConversationToken:     token,
		CreatorInboxID:        inbox,
		Name:                  conv.Name,
		Description:           conv.Description,
		ImageURL:              conv.ImageURL,
		ExpiresAt:             opts.ExpiresAt,
		ConversationExpiresAt: conv.ExpiresAt,
		ExpiresAfterUse:       opts.SingleUse,
	})
	payloadBytes, err := payload.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("failed to serialize invite payload: %w", err)
	}
	sig, err := invite.Sign(payloadBytes, s.Identity.Key)
	if err != nil {
		return "", err
	}
	return invite.EncodeSlug(invite.SignedInvite{
		Payload:   payloadBytes,
		Signature: sig,
	})
}

// DecodeInvite parses a pasted slug into its payload without redeeming it.
// The signature must recover cleanly but is not matched against any key;
// previewing a stranger's invite is allowed.
func (s *ConversationService) DecodeInvite(slug string) (invite.InvitePayload, error) {
	inv, err := invite.DecodeSlug(invite.ExtractCode(slug))
	if err != nil {
		return invite.InvitePayload{}, err
	}
	if _, err := invite.RecoverPublicKey(inv.Payload, inv.Signature); err != nil {
		return invite.InvitePayload{}, err
	}
	return inv.ParsePayload()
}

func (s *ConversationService) rand() io.Reader {
	if s.Rand == nil {
		return rand.Reader
	}
	return s.Rand
}

func (s *ConversationService) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}
