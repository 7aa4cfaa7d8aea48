package admin

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const serviceName = "knock.admin.Agent"

type AgentServer interface {
	CreateConversation(context.Context, *CreateConversationRequest) (*CreateConversationReply, error)
	ListConversations(context.Context, *ListConversationsRequest) (*ListConversationsReply, error)
	GenerateInvite(context.Context, *GenerateInviteRequest) (*GenerateInviteReply, error)
	RotateTag(context.Context, *RotateTagRequest) (*RotateTagReply, error)
	DecodeInvite(context.Context, *DecodeInviteRequest) (*DecodeInviteReply, error)
	Join(context.Context, *JoinRequest) (*JoinReply, error)
}

// UnimplementedAgentServer may be embedded for forward compatibility.
type UnimplementedAgentServer struct{}

func (UnimplementedAgentServer) CreateConversation(context.Context, *CreateConversationRequest) (*CreateConversationReply, error) {
	return nil, status.Error(codes.Unimplemented, "method CreateConversation not implemented")
}

func (UnimplementedAgentServer) ListConversations(context.Context, *ListConversationsRequest) (*ListConversationsReply, error) {
	return nil, status.Error(codes.Unimplemented, "method ListConversations not implemented")
}

func (UnimplementedAgentServer) GenerateInvite(context.Context, *GenerateInviteRequest) (*GenerateInviteReply, error) {
	return nil, status.Error(codes.Unimplemented, "method GenerateInvite not implemented")
}

func (UnimplementedAgentServer) RotateTag(context.Context, *RotateTagRequest) (*RotateTagReply, error) {
	return nil, status.Error(codes.Unimplemented, "method RotateTag not implemented")
}

func (UnimplementedAgentServer) DecodeInvite(context.Context, *DecodeInviteRequest) (*DecodeInviteReply, error) {
	return nil, status.Error(codes.Unimplemented, "method DecodeInvite not implemented")
}

func (UnimplementedAgentServer) Join(context.Context, *JoinRequest) (*JoinReply, error) {
	return nil, status.Error(codes.Unimplemented, "method Join not implemented")
}

func RegisterAgentServer(s grpc.ServiceRegistrar, srv AgentServer) {
	s.RegisterService(&agentServiceDesc, srv)
}

func unaryHandler[Req, Reply any](
	method string,
	call func(AgentServer, context.Context, *Req) (*Reply, error),
) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(AgentServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + serviceName + "/" + method,
			}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(AgentServer), ctx, req.(*Req))
			})
		},
	}
}

var agentServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*AgentServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("CreateConversation", func(s AgentServer, ctx context.Context, in *CreateConversationRequest) (*CreateConversationReply, error) {
			return s.CreateConversation(ctx, in)
		}),
		unaryHandler("ListConversations", func(s AgentServer, ctx context.Context, in *ListConversationsRequest) (*ListConversationsReply, error) {
			return s.ListConversations(ctx, in)
		}),
		unaryHandler("GenerateInvite", func(s AgentServer, ctx context.Context, in *GenerateInviteRequest) (*GenerateInviteReply, error) {
			return s.GenerateInvite(ctx, in)
		}),
		unaryHandler("RotateTag", func(s AgentServer, ctx context.Context, in *RotateTagRequest) (*RotateTagReply, error) {
			return s.RotateTag(ctx, in)
		}),
		unaryHandler("DecodeInvite", func(s AgentServer, ctx context.Context, in *DecodeInviteRequest) (*DecodeInviteReply, error) {
			return s.DecodeInvite(ctx, in)
		}),
		unaryHandler("Join", func(s AgentServer, ctx context.Context, in *JoinRequest) (*JoinReply, error) {
			return s.Join(ctx, in)
		}),
	},
	Streams: []grpc.StreamDesc{},
}

// AgentClient calls the admin plane over a client connection, pinning the
// knock content-subtype so both ends use the hand-maintained codec.
type AgentClient struct {
	cc grpc.ClientConnInterface
}

func NewAgentClient(cc grpc.ClientConnInterface) *AgentClient {
	return &AgentClient{cc: cc}
}

func invoke[Req, Reply any](c *AgentClient, ctx context.Context, method string, in *Req) (*Reply, error) {
	out := new(Reply)
	err := c.cc.Invoke(ctx, "/"+serviceName+"/"+method, in, out, grpc.CallContentSubtype(CodecName))
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AgentClient) CreateConversation(ctx context.Context, in *CreateConversationRequest) (*CreateConversationReply, error) {
	return invoke[CreateConversationRequest, CreateConversationReply](c, ctx, "CreateConversation", in)
}

func (c *AgentClient) ListConversations(ctx context.Context, in *ListConversationsRequest) (*ListConversationsReply, error) {
	return invoke[ListConversationsRequest, ListConversationsReply](c, ctx, "ListConversations", in)
}

func (c *AgentClient) GenerateInvite(ctx context.Context, in *GenerateInviteRequest) (*GenerateInviteReply, error) {
	return invoke[GenerateInviteRequest, GenerateInviteReply](c, ctx, "GenerateInvite", in)
}

func (c *AgentClient) RotateTag(ctx context.Context, in *RotateTagRequest) (*RotateTagReply, error) {
	return invoke[RotateTagRequest, RotateTagReply](c, ctx, "RotateTag", in)
}

func (c *AgentClient) DecodeInvite(ctx context.Context, in *DecodeInviteRequest) (*DecodeInviteReply, error) {
	return invoke[DecodeInviteRequest, DecodeInviteReply](c, ctx, "DecodeInvite", in)
}

func (c *AgentClient) Join(ctx context.Context, in *JoinRequest) (*JoinReply, error) {
	return invoke[JoinRequest, JoinReply](c, ctx, "Join", in)
}
