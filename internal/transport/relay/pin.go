package relay

import (
	"crypto/ed25519"
)

// RelayPin is a known relay: its dial address and the ed25519 key its TLS
// certificate must be signed with.
type RelayPin struct {
	ID        string
	Address   string
	PublicKey ed25519.PublicKey
}

type PinStore interface {
	Get(id string) (RelayPin, error)
	Set(id string, pin RelayPin) error
	Delete(id string) error
}
