// Package agent wires one knock participant together: the creator service
// processing incoming join requests, the joiner for outgoing ones, and the
// admin gRPC plane operators drive with the knock CLI.
package agent

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"

	adminapi "github.com/veylan/knock/internal/api/admin"
	"github.com/veylan/knock/internal/agent/handler/admin"
	"github.com/veylan/knock/internal/creator/service"
	"github.com/veylan/knock/internal/joiner"
)

type AdminConfig struct {
	Addr   string
	Logger *zerolog.Logger
}

type Agent struct {
	Admin AdminConfig

	Conversations *service.ConversationService
	Joiner        *joiner.Joiner
}

// ServeAdmin runs the admin gRPC plane until ctx is cancelled.
func (a *Agent) ServeAdmin(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.Admin.Addr)
	if err != nil {
		return fmt.Errorf("failed to init server: %w", err)
	}
	a.Admin.Logger.Info().
		Str("address", a.Admin.Addr).
		Msg("started server")

	inst := grpc.NewServer()
	adminapi.RegisterAgentServer(inst, &admin.AgentHandler{
		Conversations: a.Conversations,
		Joiner:        a.Joiner,
	})

	go func() {
		<-ctx.Done()
		a.Admin.Logger.Info().Msg("shutting down")
		inst.GracefulStop()
	}()

	return inst.Serve(ln)
}

// Run processes incoming join requests until ctx is cancelled.
func (a *Agent) Run(ctx context.Context) error {
	err := a.Conversations.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
