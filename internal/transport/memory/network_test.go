package memory

import (
	"context"
	"testing"

	shared "github.com/veylan/knock/internal/shared/domain"
)

func testInbox(b byte) shared.InboxID {
	var id shared.InboxID
	for i := range id {
		id[i] = b
	}
	return id
}

func TestDirectMessageDelivery(t *testing.T) {
	net := NewNetwork()
	a := net.Attach(testInbox(0x01))
	b := net.Attach(testInbox(0x02))

	if err := a.SendDirectMessage(context.Background(), testInbox(0x02), "hello"); err != nil {
		t.Fatalf("failed to send: %v", err)
	}
	select {
	case msg := <-b.Inbox():
		if msg.From != testInbox(0x01) || msg.Text != "hello" {
			t.Fatalf("unexpected message: %+v", msg)
		}
	default:
		t.Fatal("expected a delivered message")
	}

	if err := a.SendDirectMessage(context.Background(), testInbox(0x09), "hello"); err == nil {
		t.Fatal("expected send to unknown inbox to fail")
	}
}

func TestConsentBlockDropsMessages(t *testing.T) {
	net := NewNetwork()
	a := net.Attach(testInbox(0x01))
	b := net.Attach(testInbox(0x02))

	if err := b.SetConsentBlocked(context.Background(), testInbox(0x01)); err != nil {
		t.Fatalf("failed to block: %v", err)
	}
	if err := a.SendDirectMessage(context.Background(), testInbox(0x02), "spam"); err != nil {
		t.Fatalf("blocked send must not error: %v", err)
	}
	select {
	case msg := <-b.Inbox():
		t.Fatalf("expected blocked message to be dropped, got %+v", msg)
	default:
	}
}

func TestAddMemberIsIdempotent(t *testing.T) {
	net := NewNetwork()
	creator := net.Attach(testInbox(0x01))
	member := net.Attach(testInbox(0x02))

	conv := shared.ConversationSummary{ID: "conv-1", Tag: "aB3dE7gH1k", Creator: testInbox(0x01)}
	for i := 0; i < 2; i++ {
		if err := creator.AddMember(context.Background(), conv, testInbox(0x02)); err != nil {
			t.Fatalf("attempt %d: failed to add member: %v", i, err)
		}
	}

	<-member.Membership()
	select {
	case ev := <-member.Membership():
		t.Fatalf("expected a single membership event, got extra %+v", ev)
	default:
	}
}
