package invite

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNewTag(t *testing.T) {
	tag, err := NewTag(bytes.NewReader([]byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}))
	if err != nil {
		t.Fatalf("failed to generate tag: %v", err)
	}
	if len(tag) != TagLength {
		t.Fatalf("expected tag of %d characters, got %d", TagLength, len(tag))
	}
	for _, c := range tag {
		if !strings.ContainsRune(tagAlphabet, c) {
			t.Fatalf("tag character %q outside alphabet", c)
		}
	}
}

func TestNewTagExhaustedReader(t *testing.T) {
	if _, err := NewTag(bytes.NewReader([]byte{1, 2, 3})); err == nil {
		t.Fatal("expected error from exhausted reader")
	}
}

func TestBuildPayloadOmitsAbsentFields(t *testing.T) {
	p := BuildPayload(PayloadParams{
		Tag:               "aB3dE7gH1k",
		ConversationToken: []byte{1, 2, 3},
		CreatorInboxID:    testInbox(0x01),
	})
	if p.Name != nil || p.Description != nil || p.ImageURL != nil {
		t.Fatal("expected absent optional strings to stay nil")
	}
	if p.ExpiresAt != nil || p.ConversationExpiresAt != nil {
		t.Fatal("expected absent expirations to stay nil")
	}

	data, err := p.MarshalBinary()
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}
	var decoded InvitePayload
	if err := decoded.UnmarshalBinary(data); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if decoded.Name != nil {
		t.Fatal("expected name to round-trip as absent, not empty")
	}
	if _, ok := decoded.Expiry(); ok {
		t.Fatal("expected expiry to round-trip as absent")
	}
}

func TestPayloadOptionalFieldsRoundTrip(t *testing.T) {
	expires := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	p := BuildPayload(PayloadParams{
		Tag:                   "aB3dE7gH1k",
		ConversationToken:     []byte{1, 2, 3},
		CreatorInboxID:        testInbox(0x01),
		Name:                  "reading club",
		Description:           "tuesdays",
		ImageURL:              "https://knock.example/c.png",
		ExpiresAt:             expires,
		ConversationExpiresAt: expires.Add(24 * time.Hour),
		ExpiresAfterUse:       true,
	})
	data, err := p.MarshalBinary()
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}
	var decoded InvitePayload
	if err := decoded.UnmarshalBinary(data); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}

	if name, ok := decoded.DisplayName(); !ok || name != "reading club" {
		t.Fatalf("expected name to survive, got %q (%v)", name, ok)
	}
	if at, ok := decoded.Expiry(); !ok || !at.Equal(expires) {
		t.Fatalf("expected expiry %v, got %v (%v)", expires, at, ok)
	}
	if at, ok := decoded.ConversationExpiry(); !ok || !at.Equal(expires.Add(24*time.Hour)) {
		t.Fatalf("unexpected conversation expiry %v (%v)", at, ok)
	}
	if !decoded.ExpiresAfterUse {
		t.Fatal("expected single-use flag to survive")
	}
}

func TestHasExpired(t *testing.T) {
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)

	past := now.Add(-time.Second)
	p := BuildPayload(PayloadParams{
		Tag:               "aB3dE7gH1k",
		ConversationToken: []byte{1},
		CreatorInboxID:    testInbox(0x01),
		ExpiresAt:         past,
	})
	if !p.HasExpired(now) {
		t.Fatal("expected payload expiring one second ago to be expired")
	}

	future := now.Add(time.Hour)
	p = BuildPayload(PayloadParams{
		Tag:               "aB3dE7gH1k",
		ConversationToken: []byte{1},
		CreatorInboxID:    testInbox(0x01),
		ExpiresAt:         future,
	})
	if p.HasExpired(now) {
		t.Fatal("expected payload expiring in an hour to be valid")
	}

	p = BuildPayload(PayloadParams{
		Tag:               "aB3dE7gH1k",
		ConversationToken: []byte{1},
		CreatorInboxID:    testInbox(0x01),
	})
	if p.HasExpired(now) {
		t.Fatal("expected payload without expiry to never expire")
	}
}

func TestPayloadRejectsMissingRequiredFields(t *testing.T) {
	var decoded InvitePayload
	if err := decoded.UnmarshalBinary(nil); !errors.Is(err, ErrEncoding) {
		t.Fatalf("expected ErrEncoding for empty payload, got %v", err)
	}

	p := InvitePayload{Tag: "aB3dE7gH1k"}
	if _, err := p.MarshalBinary(); err == nil {
		t.Fatal("expected marshal of incomplete payload to fail")
	}
}
