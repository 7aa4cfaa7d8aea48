package invite

import (
	"bytes"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	shared "github.com/veylan/knock/internal/shared/domain"
)

// Full creation-to-redemption pass over the protocol primitives: token
// cipher, payload builder, signer, and slug codec together.
func TestInviteProtocolEndToEnd(t *testing.T) {
	keyBytes := bytes.Repeat([]byte{0x42}, 32)
	key := secp256k1.PrivKeyFromBytes(keyBytes)

	inboxBytes := make([]byte, shared.InboxIDSize)
	for i := range inboxBytes {
		inboxBytes[i] = byte(i + 1)
	}
	inbox, err := shared.InboxIDFromBytes(inboxBytes)
	if err != nil {
		t.Fatalf("failed to build inbox id: %v", err)
	}

	token, err := EncryptConversationToken("conv-123", inbox, key)
	if err != nil {
		t.Fatalf("failed to encrypt conversation token: %v", err)
	}
	payload := BuildPayload(PayloadParams{
		Tag:               "aB3dE7gH1k",
		ConversationToken: token,
		CreatorInboxID:    inbox,
	})
	payloadBytes, err := payload.MarshalBinary()
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}
	sig, err := Sign(payloadBytes, key)
	if err != nil {
		t.Fatalf("failed to sign payload: %v", err)
	}
	slug, err := EncodeSlug(SignedInvite{Payload: payloadBytes, Signature: sig})
	if err != nil {
		t.Fatalf("failed to encode slug: %v", err)
	}

	decoded, err := DecodeSlug(slug)
	if err != nil {
		t.Fatalf("failed to decode slug: %v", err)
	}
	if !bytes.Equal(decoded.Payload, payloadBytes) {
		t.Fatal("payload bytes changed across encode/decode")
	}

	recovered, err := RecoverPublicKey(decoded.Payload, decoded.Signature)
	if err != nil {
		t.Fatalf("failed to recover public key: %v", err)
	}
	if !bytes.Equal(recovered, key.PubKey().SerializeUncompressed()) {
		t.Fatal("recovered key does not match the creator's")
	}

	parsed, err := decoded.ParsePayload()
	if err != nil {
		t.Fatalf("failed to parse payload: %v", err)
	}
	if parsed.Tag != "aB3dE7gH1k" {
		t.Fatalf("expected tag %q, got %q", "aB3dE7gH1k", parsed.Tag)
	}
	if parsed.CreatorInboxID != inbox {
		t.Fatal("creator inbox id changed in transit")
	}
	if parsed.ExpiresAfterUse {
		t.Fatal("expected multi-use invite")
	}
	if _, ok := parsed.Expiry(); ok {
		t.Fatal("expected no expiry")
	}

	conversationID, err := DecryptConversationToken(parsed.ConversationToken, inbox, key)
	if err != nil {
		t.Fatalf("failed to decrypt conversation token: %v", err)
	}
	if conversationID != "conv-123" {
		t.Fatalf("expected conversation id %q, got %q", "conv-123", conversationID)
	}
}
