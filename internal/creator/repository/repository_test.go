package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	creator "github.com/veylan/knock/internal/creator/domain"
	"github.com/veylan/knock/internal/invite"
	shared "github.com/veylan/knock/internal/shared/domain"
	"github.com/veylan/knock/internal/shared/infra"
)

func testDB(t *testing.T) context.Context {
	t.Helper()
	return context.Background()
}

func testConversation(tag string) creator.Conversation {
	return creator.Conversation{
		ID:          uuid.NewString(),
		Tag:         tag,
		Name:        "reading club",
		Description: "tuesdays",
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
	}
}

func testInbox(b byte) shared.InboxID {
	var id shared.InboxID
	for i := range id {
		id[i] = b
	}
	return id
}

func TestBunConversationRepository(t *testing.T) {
	ctx := testDB(t)
	db, err := infra.OpenDB("")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()
	repo, err := NewBunConversationRepository(ctx, db)
	if err != nil {
		t.Fatalf("failed to init repository: %v", err)
	}

	conv := testConversation("aB3dE7gH1k")
	if err := repo.Save(ctx, conv); err != nil {
		t.Fatalf("failed to save: %v", err)
	}

	got, err := repo.GetByID(ctx, conv.ID)
	if err != nil {
		t.Fatalf("failed to get: %v", err)
	}
	if got.Tag != conv.Tag || got.Name != conv.Name || got.Description != conv.Description {
		t.Fatalf("loaded conversation differs: %+v", got)
	}

	if _, err := repo.GetByID(ctx, uuid.NewString()); !errors.Is(err, shared.ErrNotExist) {
		t.Fatalf("expected ErrNotExist for unknown id, got %v", err)
	}

	if err := repo.UpdateTag(ctx, conv.ID, "zZ9yX8wV7u"); err != nil {
		t.Fatalf("failed to update tag: %v", err)
	}
	got, err = repo.GetByID(ctx, conv.ID)
	if err != nil {
		t.Fatalf("failed to get after rotation: %v", err)
	}
	if got.Tag != "zZ9yX8wV7u" {
		t.Fatalf("expected rotated tag, got %q", got.Tag)
	}

	list, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	var found bool
	for _, c := range list {
		if c.ID == conv.ID {
			found = true
		}
	}
	if !found {
		t.Fatal("expected conversation in list")
	}

	if err := repo.Delete(ctx, conv.ID); err != nil {
		t.Fatalf("failed to delete: %v", err)
	}
	if _, err := repo.GetByID(ctx, conv.ID); !errors.Is(err, shared.ErrNotExist) {
		t.Fatalf("expected ErrNotExist after delete, got %v", err)
	}
}

func TestBunRedemptionRepositoryConsumeOnce(t *testing.T) {
	ctx := testDB(t)
	db, err := infra.OpenDB("")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()
	repo, err := NewBunRedemptionRepository(ctx, db)
	if err != nil {
		t.Fatalf("failed to init repository: %v", err)
	}

	red := creator.Redemption{
		Tag:            uuid.NewString()[:10],
		ConversationID: uuid.NewString(),
		RedeemedBy:     testInbox(0x05),
		RedeemedAt:     time.Now().UTC(),
	}
	if err := repo.Consume(ctx, red); err != nil {
		t.Fatalf("failed to consume fresh tag: %v", err)
	}

	second := red
	second.RedeemedBy = testInbox(0x06)
	if err := repo.Consume(ctx, second); !errors.Is(err, invite.ErrAlreadyUsed) {
		t.Fatalf("expected ErrAlreadyUsed, got %v", err)
	}

	got, err := repo.GetByTag(ctx, red.Tag)
	if err != nil {
		t.Fatalf("failed to get redemption: %v", err)
	}
	if got.RedeemedBy != red.RedeemedBy {
		t.Fatal("expected the first redeemer to hold the tag")
	}

	if _, err := repo.GetByTag(ctx, "never-used"); !errors.Is(err, shared.ErrNotExist) {
		t.Fatalf("expected ErrNotExist for unconsumed tag, got %v", err)
	}
}

func TestBunJoinLogRepository(t *testing.T) {
	ctx := testDB(t)
	db, err := infra.OpenDB("")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()
	repo, err := NewBunJoinLogRepository(ctx, db)
	if err != nil {
		t.Fatalf("failed to init repository: %v", err)
	}

	conversationID := uuid.NewString()
	events := []creator.JoinEvent{
		{
			ID:             uuid.New(),
			ConversationID: conversationID,
			Requester:      testInbox(0x01),
			Decision:       creator.DecisionAccepted,
			At:             time.Now().UTC(),
		},
		{
			ID:             uuid.New(),
			ConversationID: conversationID,
			Requester:      testInbox(0x02),
			Decision:       creator.DecisionRejected,
			Reason:         "invite expired",
			At:             time.Now().UTC().Add(time.Second),
		},
	}
	for _, e := range events {
		if err := repo.Append(ctx, e); err != nil {
			t.Fatalf("failed to append: %v", err)
		}
	}

	got, err := repo.ListByConversation(ctx, conversationID)
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if got[0].Decision != creator.DecisionAccepted || got[1].Decision != creator.DecisionRejected {
		t.Fatalf("events out of order: %+v", got)
	}
	if got[1].Reason != "invite expired" {
		t.Fatalf("expected reason to survive, got %q", got[1].Reason)
	}
}
