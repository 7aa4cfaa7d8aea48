package invite

import (
	"bytes"
	"errors"
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

func TestConversationTokenRoundTrip(t *testing.T) {
	key := testKey(t)
	inbox := testInbox(0x11)

	token, err := EncryptConversationToken("conv-abc", inbox, key)
	if err != nil {
		t.Fatalf("failed to encrypt token: %v", err)
	}
	if token[0] != tokenVersion {
		t.Fatalf("expected version byte %d, got %d", tokenVersion, token[0])
	}
	if len(token) < tokenMinSize {
		t.Fatalf("expected token of at least %d bytes, got %d", tokenMinSize, len(token))
	}

	id, err := DecryptConversationToken(token, inbox, key)
	if err != nil {
		t.Fatalf("failed to decrypt token: %v", err)
	}
	if id != "conv-abc" {
		t.Fatalf("expected conversation id %q, got %q", "conv-abc", id)
	}
}

func TestConversationTokenNoncesDiffer(t *testing.T) {
	key := testKey(t)
	inbox := testInbox(0x11)

	a, err := EncryptConversationToken("conv-abc", inbox, key)
	if err != nil {
		t.Fatalf("failed to encrypt token: %v", err)
	}
	b, err := EncryptConversationToken("conv-abc", inbox, key)
	if err != nil {
		t.Fatalf("failed to encrypt token: %v", err)
	}
	if bytes.Equal(a, b) {
		t.Fatal("expected two encryptions to differ")
	}
}

func TestConversationTokenAuthenticationFailures(t *testing.T) {
	key := testKey(t)
	inbox := testInbox(0x11)
	token, err := EncryptConversationToken("conv-abc", inbox, key)
	if err != nil {
		t.Fatalf("failed to encrypt token: %v", err)
	}

	t.Run("wrong inbox", func(t *testing.T) {
		if _, err := DecryptConversationToken(token, testInbox(0x22), key); !errors.Is(err, ErrDecryption) {
			t.Fatalf("expected ErrDecryption, got %v", err)
		}
	})
	t.Run("wrong key", func(t *testing.T) {
		if _, err := DecryptConversationToken(token, inbox, testKey(t)); !errors.Is(err, ErrDecryption) {
			t.Fatalf("expected ErrDecryption, got %v", err)
		}
	})
	t.Run("tampered ciphertext", func(t *testing.T) {
		bad := append([]byte{}, token...)
		bad[len(bad)-1] ^= 0x01
		if _, err := DecryptConversationToken(bad, inbox, key); !errors.Is(err, ErrDecryption) {
			t.Fatalf("expected ErrDecryption, got %v", err)
		}
	})
	t.Run("truncated", func(t *testing.T) {
		if _, err := DecryptConversationToken(token[:tokenMinSize-1], inbox, key); !errors.Is(err, ErrDecryption) {
			t.Fatalf("expected ErrDecryption, got %v", err)
		}
	})
	t.Run("unknown version", func(t *testing.T) {
		bad := append([]byte{}, token...)
		bad[0] = 0x7f
		if _, err := DecryptConversationToken(bad, inbox, key); !errors.Is(err, ErrDecryption) {
			t.Fatalf("expected ErrDecryption, got %v", err)
		}
	})
}
