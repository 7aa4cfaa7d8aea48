package wire

import (
	"bytes"
	"encoding/binary"
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

func TestEnvelopeFrameRoundTrip(t *testing.T) {
	conv := shared.ConversationSummary{
		ID:      "conv-1",
		Tag:     "aB3dE7gH1k",
		Creator: testInbox(0x01),
		Name:    "reading club",
	}
	envelopes := []Envelope{
		{Kind: KindHello, From: testInbox(0x02)},
		{Kind: KindDirectMessage, To: testInbox(0x03), Text: "knock knock"},
		{Kind: KindMemberAdded, Conversation: &conv, Subject: testInbox(0x04)},
		{Kind: KindSetConsent, Subject: testInbox(0x05)},
	}

	var buf bytes.Buffer
	for _, env := range envelopes {
		if err := WriteFrame(&buf, env); err != nil {
			t.Fatalf("failed to write frame: %v", err)
		}
	}
	for i, want := range envelopes {
		got, err := ReadFrame(&buf)
		if err != nil {
			t.Fatalf("failed to read frame %d: %v", i, err)
		}
		if got.Kind != want.Kind || got.From != want.From || got.To != want.To || got.Text != want.Text || got.Subject != want.Subject {
			t.Fatalf("frame %d differs: got %+v, want %+v", i, got, want)
		}
		if (got.Conversation == nil) != (want.Conversation == nil) {
			t.Fatalf("frame %d conversation presence differs", i)
		}
		if got.Conversation != nil && *got.Conversation != *want.Conversation {
			t.Fatalf("frame %d conversation differs: %+v", i, *got.Conversation)
		}
	}
}

func TestReadFrameRejectsOversizedFrames(t *testing.T) {
	var buf bytes.Buffer
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], MaxFrameSize+1)
	buf.Write(prefix[:])

	if _, err := ReadFrame(&buf); err == nil {
		t.Fatal("expected oversized frame to be rejected")
	}
}

func TestUnmarshalRejectsUnknownKind(t *testing.T) {
	var e Envelope
	if err := e.UnmarshalBinary([]byte{0x08, 0x2a}); err == nil {
		t.Fatal("expected unknown kind to be rejected")
	}
}
