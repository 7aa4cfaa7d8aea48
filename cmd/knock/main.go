package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/manifoldco/promptui"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	adminapi "github.com/veylan/knock/internal/api/admin"
)

const joinTimeout = 2 * time.Minute

func main() {
	addr := flag.String("addr", "127.0.0.1:7030", "knockd admin address")
	flag.Parse()

	conn, err := grpc.NewClient(*addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to knockd: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()
	client := adminapi.NewAgentClient(conn)

	for {
		action, err := selectAction()
		if err != nil {
			return
		}
		if err := runAction(client, action); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
}

func selectAction() (string, error) {
	prompt := promptui.Select{
		Label: "Action",
		Items: []string{
			"Create conversation",
			"List conversations",
			"Generate invite",
			"Rotate tag",
			"Decode invite",
			"Join",
			"Quit",
		},
	}
	_, action, err := prompt.Run()
	if err != nil || action == "Quit" {
		return "", fmt.Errorf("quit")
	}
	return action, nil
}

func runAction(client *adminapi.AgentClient, action string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch action {
	case "Create conversation":
		return createConversation(ctx, client)
	case "List conversations":
		return listConversations(ctx, client)
	case "Generate invite":
		return generateInvite(ctx, client)
	case "Rotate tag":
		return rotateTag(ctx, client)
	case "Decode invite":
		return decodeInvite(ctx, client)
	case "Join":
		return join(client)
	}
	return nil
}

func createConversation(ctx context.Context, client *adminapi.AgentClient) error {
	name, err := promptString("Name", true)
	if err != nil {
		return err
	}
	description, err := promptString("Description", true)
	if err != nil {
		return err
	}
	reply, err := client.CreateConversation(ctx, &adminapi.CreateConversationRequest{
		Name:        name,
		Description: description,
	})
	if err != nil {
		return err
	}
	printConversation(reply.Conversation)
	return nil
}

func listConversations(ctx context.Context, client *adminapi.AgentClient) error {
	reply, err := client.ListConversations(ctx, &adminapi.ListConversationsRequest{})
	if err != nil {
		return err
	}
	if len(reply.Conversations) == 0 {
		fmt.Println("no conversations")
		return nil
	}
	for _, conv := range reply.Conversations {
		printConversation(conv)
	}
	return nil
}

func generateInvite(ctx context.Context, client *adminapi.AgentClient) error {
	id, err := promptString("Conversation id", false)
	if err != nil {
		return err
	}
	ttl, err := promptString("Expires in hours (empty for never)", true)
	if err != nil {
		return err
	}
	req := &adminapi.GenerateInviteRequest{Id: id}
	if ttl != "" {
		hours, err := strconv.Atoi(ttl)
		if err != nil {
			return fmt.Errorf("invalid hour count: %w", err)
		}
		req.ExpiresAtUnix = time.Now().Add(time.Duration(hours) * time.Hour).Unix()
	}
	confirm := promptui.Prompt{
		Label:     "Single use",
		IsConfirm: true,
	}
	if _, err := confirm.Run(); err == nil {
		req.SingleUse = true
	}
	reply, err := client.GenerateInvite(ctx, req)
	if err != nil {
		return err
	}
	fmt.Println(reply.Slug)
	return nil
}

func rotateTag(ctx context.Context, client *adminapi.AgentClient) error {
	id, err := promptString("Conversation id", false)
	if err != nil {
		return err
	}
	reply, err := client.RotateTag(ctx, &adminapi.RotateTagRequest{Id: id})
	if err != nil {
		return err
	}
	fmt.Printf("new tag: %s\n", reply.Tag)
	return nil
}

func decodeInvite(ctx context.Context, client *adminapi.AgentClient) error {
	slug, err := promptString("Invite", false)
	if err != nil {
		return err
	}
	reply, err := client.DecodeInvite(ctx, &adminapi.DecodeInviteRequest{Slug: slug})
	if err != nil {
		return err
	}
	fmt.Printf("tag:      %s\n", reply.Tag)
	fmt.Printf("creator:  %s\n", hex.EncodeToString(reply.CreatorInboxId))
	if reply.Name != "" {
		fmt.Printf("name:     %s\n", reply.Name)
	}
	if reply.ExpiresAtUnix != 0 {
		fmt.Printf("expires:  %s\n", time.Unix(reply.ExpiresAtUnix, 0).Format(time.RFC3339))
	}
	fmt.Printf("one-shot: %v\n", reply.SingleUse)
	return nil
}

func join(client *adminapi.AgentClient) error {
	slug, err := promptString("Invite", false)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), joinTimeout)
	defer cancel()
	fmt.Println("knocking...")
	reply, err := client.Join(ctx, &adminapi.JoinRequest{Slug: slug})
	if err != nil {
		return err
	}
	switch reply.State {
	case adminapi.JoinStateAlreadyJoined:
		fmt.Printf("already a member of %s\n", reply.ConversationId)
	case adminapi.JoinStateTagVerified:
		fmt.Printf("joined %s (tag %s)\n", reply.ConversationId, reply.Tag)
	case adminapi.JoinStateTagMismatch:
		fmt.Printf("WARNING: added to %s but its tag does not match the invite\n", reply.ConversationId)
	}
	return nil
}

func promptString(label string, allowEmpty bool) (string, error) {
	prompt := promptui.Prompt{Label: label}
	if !allowEmpty {
		prompt.Validate = func(s string) error {
			if s == "" {
				return fmt.Errorf("value is required")
			}
			return nil
		}
	}
	return prompt.Run()
}

func printConversation(conv *adminapi.Conversation) {
	fmt.Printf("%s  tag=%s", conv.Id, conv.Tag)
	if conv.Name != "" {
		fmt.Printf("  name=%q", conv.Name)
	}
	if conv.ExpiresAtUnix != 0 {
		fmt.Printf("  expires=%s", time.Unix(conv.ExpiresAtUnix, 0).Format(time.RFC3339))
	}
	fmt.Println()
}
