package admin

import (
	"context"
	"errors"
	"time"

	"github.com/jinzhu/copier"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	adminapi "github.com/veylan/knock/internal/api/admin"
	creator "github.com/veylan/knock/internal/creator/domain"
	"github.com/veylan/knock/internal/creator/service"
	"github.com/veylan/knock/internal/invite"
	"github.com/veylan/knock/internal/joiner"
	shared "github.com/veylan/knock/internal/shared/domain"
)

// TODO: Sanitize errors

type AgentHandler struct {
	adminapi.UnimplementedAgentServer
	Conversations *service.ConversationService
	Joiner        *joiner.Joiner
}

func (h *AgentHandler) CreateConversation(ctx context.Context, req *adminapi.CreateConversationRequest) (*adminapi.CreateConversationReply, error) {
	opts := service.CreateConversationOptions{
		Name:        req.Name,
		Description: req.Description,
		ImageURL:    req.ImageUrl,
	}
	if req.ExpiresAtUnix != 0 {
		opts.ExpiresAt = time.Unix(req.ExpiresAtUnix, 0)
	}
	conv, err := h.Conversations.CreateConversation(ctx, opts)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return &adminapi.CreateConversationReply{Conversation: toWire(conv)}, nil
}

func (h *AgentHandler) ListConversations(ctx context.Context, req *adminapi.ListConversationsRequest) (*adminapi.ListConversationsReply, error) {
	convs, err := h.Conversations.ListConversations(ctx)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	reply := &adminapi.ListConversationsReply{}
	for _, conv := range convs {
		reply.Conversations = append(reply.Conversations, toWire(conv))
	}
	return reply, nil
}

func (h *AgentHandler) GenerateInvite(ctx context.Context, req *adminapi.GenerateInviteRequest) (*adminapi.GenerateInviteReply, error) {
	opts := service.GenerateInviteOptions{
		SingleUse: req.SingleUse,
	}
	if req.ExpiresAtUnix != 0 {
		opts.ExpiresAt = time.Unix(req.ExpiresAtUnix, 0)
	}
	slug, err := h.Conversations.GenerateInvite(ctx, req.Id, opts)
	if err != nil {
		if errors.Is(err, shared.ErrNotExist) {
			return nil, status.Error(codes.NotFound, err.Error())
		}
		return nil, status.Error(codes.Internal, err.Error())
	}
	return &adminapi.GenerateInviteReply{Slug: slug}, nil
}

func (h *AgentHandler) RotateTag(ctx context.Context, req *adminapi.RotateTagRequest) (*adminapi.RotateTagReply, error) {
	tag, err := h.Conversations.RotateTag(ctx, req.Id)
	if err != nil {
		if errors.Is(err, shared.ErrNotExist) {
			return nil, status.Error(codes.NotFound, err.Error())
		}
		return nil, status.Error(codes.Internal, err.Error())
	}
	return &adminapi.RotateTagReply{Tag: tag}, nil
}

func (h *AgentHandler) DecodeInvite(ctx context.Context, req *adminapi.DecodeInviteRequest) (*adminapi.DecodeInviteReply, error) {
	payload, err := h.Conversations.DecodeInvite(req.Slug)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	reply := &adminapi.DecodeInviteReply{
		Tag:            payload.Tag,
		CreatorInboxId: payload.CreatorInboxID.Bytes(),
		SingleUse:      payload.ExpiresAfterUse,
	}
	copier.Copy(reply, &payload)
	if payload.ImageURL != nil {
		reply.ImageUrl = *payload.ImageURL
	}
	if at, ok := payload.Expiry(); ok {
		reply.ExpiresAtUnix = at.Unix()
	}
	if at, ok := payload.ConversationExpiry(); ok {
		reply.ConversationExpiresAtUnix = at.Unix()
	}
	return reply, nil
}

func (h *AgentHandler) Join(ctx context.Context, req *adminapi.JoinRequest) (*adminapi.JoinReply, error) {
	result, err := h.Joiner.Join(ctx, req.Slug)
	if err != nil && !errors.Is(err, invite.ErrTagMismatch) {
		if errors.Is(err, invite.ErrEncoding) || errors.Is(err, invite.ErrInvalidSignature) || errors.Is(err, invite.ErrDecompressionBomb) {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		return nil, status.Error(codes.Internal, err.Error())
	}
	reply := &adminapi.JoinReply{
		ConversationId: result.Conversation.ID,
		Tag:            result.Conversation.Tag,
		Name:           result.Conversation.Name,
	}
	switch result.State {
	case joiner.StateAlreadyJoined:
		reply.State = adminapi.JoinStateAlreadyJoined
	case joiner.StateTagVerified:
		reply.State = adminapi.JoinStateTagVerified
	case joiner.StateTagMismatch:
		reply.State = adminapi.JoinStateTagMismatch
	}
	return reply, nil
}

func toWire(conv creator.Conversation) *adminapi.Conversation {
	c := &adminapi.Conversation{
		Id:            conv.ID,
		ImageUrl:      conv.ImageURL,
		CreatedAtUnix: conv.CreatedAt.Unix(),
	}
	copier.Copy(c, &conv)
	if !conv.ExpiresAt.IsZero() {
		c.ExpiresAtUnix = conv.ExpiresAt.Unix()
	}
	return c
}
