package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// InboxIDSize is the length of a raw inbox id in bytes.
const InboxIDSize = 32

// InboxID is the stable identifier of a messaging identity: the SHA-256 of
// the identity's compressed secp256k1 public key.
type InboxID [InboxIDSize]byte

func InboxIDFromBytes(b []byte) (InboxID, error) {
	var id InboxID
	if len(b) != InboxIDSize {
		return id, fmt.Errorf("inbox id must be %d bytes, got %d", InboxIDSize, len(b))
	}
	copy(id[:], b)
	return id, nil
}

func InboxIDForKey(pk *secp256k1.PublicKey) InboxID {
	return InboxID(sha256.Sum256(pk.SerializeCompressed()))
}

func (id InboxID) Bytes() []byte {
	return id[:]
}

func (id InboxID) IsZero() bool {
	return id == InboxID{}
}

func (id InboxID) String() string {
	return hex.EncodeToString(id[:])
}

func (id *InboxID) UnmarshalText(text []byte) error {
	raw := make([]byte, InboxIDSize)
	n, err := hex.Decode(raw, text)
	if err != nil {
		return err
	}
	if n != InboxIDSize {
		return fmt.Errorf("inbox id must be %d bytes, got %d", InboxIDSize, n)
	}
	copy(id[:], raw)
	return nil
}

func (id InboxID) MarshalText() ([]byte, error) {
	text := make([]byte, hex.EncodedLen(InboxIDSize))
	hex.Encode(text, id[:])
	return text, nil
}

// Identity is an agent's signing identity on the network. The private key
// doubles as input key material for conversation token encryption, so losing
// it makes previously issued tokens undecryptable.
type Identity struct {
	Key *secp256k1.PrivateKey
}

func NewIdentity() (Identity, error) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return Identity{}, fmt.Errorf("failed to generate identity key: %w", err)
	}
	return Identity{Key: key}, nil
}

func IdentityFromKeyBytes(b []byte) (Identity, error) {
	if len(b) != 32 {
		return Identity{}, fmt.Errorf("identity key must be 32 bytes, got %d", len(b))
	}
	return Identity{Key: secp256k1.PrivKeyFromBytes(b)}, nil
}

func (i Identity) PublicKey() *secp256k1.PublicKey {
	return i.Key.PubKey()
}

func (i Identity) InboxID() InboxID {
	return InboxIDForKey(i.Key.PubKey())
}
