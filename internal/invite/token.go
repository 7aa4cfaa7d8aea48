package invite

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	shared "github.com/veylan/knock/internal/shared/domain"
)

// Conversation token wire layout: version(1) | nonce(12) | ciphertext+tag.
const (
	tokenVersion   = 0x01
	tokenNonceSize = chacha20poly1305.NonceSize
	tokenMinSize   = 1 + tokenNonceSize + chacha20poly1305.Overhead
)

var tokenSalt = []byte("knock/conversation-token/v1")

// tokenKey derives the symmetric token key from the creator's signing key
// and inbox id. Deterministic, so the creator can always reopen tokens it
// issued without persisting the key anywhere.
func tokenKey(key *secp256k1.PrivateKey, inbox shared.InboxID) ([]byte, error) {
	info := append([]byte("token-key:"), inbox.Bytes()...)
	kdf := hkdf.New(sha256.New, key.Serialize(), tokenSalt, info)
	k := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(kdf, k); err != nil {
		return nil, fmt.Errorf("failed to derive token key: %w", err)
	}
	return k, nil
}

// EncryptConversationToken seals a conversation id into an opaque token
// bound to the creator's inbox id, which is mixed into the key derivation
// and authenticated as associated data.
func EncryptConversationToken(conversationID string, inbox shared.InboxID, key *secp256k1.PrivateKey) ([]byte, error) {
	if key == nil {
		return nil, fmt.Errorf("token key material is required")
	}
	k, err := tokenKey(key, inbox)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.New(k)
	if err != nil {
		return nil, fmt.Errorf("failed to init token cipher: %w", err)
	}
	nonce := make([]byte, tokenNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate token nonce: %w", err)
	}
	token := make([]byte, 0, tokenMinSize+len(conversationID))
	token = append(token, tokenVersion)
	token = append(token, nonce...)
	token = aead.Seal(token, nonce, []byte(conversationID), inbox.Bytes())
	return token, nil
}

// DecryptConversationToken reopens a token issued by the same identity. Any
// mismatch in key, inbox id, or token bytes fails authentication; no
// partial plaintext is ever returned.
func DecryptConversationToken(token []byte, inbox shared.InboxID, key *secp256k1.PrivateKey) (string, error) {
	if key == nil {
		return "", fmt.Errorf("token key material is required")
	}
	if len(token) < tokenMinSize {
		return "", fmt.Errorf("%w: token too short", ErrDecryption)
	}
	if token[0] != tokenVersion {
		return "", fmt.Errorf("%w: unknown token version %d", ErrDecryption, token[0])
	}
	k, err := tokenKey(key, inbox)
	if err != nil {
		return "", err
	}
	aead, err := chacha20poly1305.New(k)
	if err != nil {
		return "", fmt.Errorf("failed to init token cipher: %w", err)
	}
	nonce := token[1 : 1+tokenNonceSize]
	plain, err := aead.Open(nil, nonce, token[1+tokenNonceSize:], inbox.Bytes())
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	return string(plain), nil
}
