package invite

import (
	"crypto/sha256"
	"crypto/subtle"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	secpecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// SignatureSize is a 64-byte compact r‖s signature plus one recovery id
// byte. The recovery id sits last and is always in [0,3].
const SignatureSize = 65

// compactHeaderBase is the offset the compact encoding adds to the recovery
// id in its leading header byte.
const compactHeaderBase = 27

// Sign produces a recoverable signature over the SHA-256 digest of payload.
func Sign(payload []byte, key *secp256k1.PrivateKey) ([]byte, error) {
	if key == nil {
		return nil, fmt.Errorf("signing key is required")
	}
	digest := sha256.Sum256(payload)
	compact := secpecdsa.SignCompact(key, digest[:], false)
	// Move the recovery id from the compact header byte to the tail.
	sig := make([]byte, SignatureSize)
	copy(sig, compact[1:])
	sig[SignatureSize-1] = compact[0] - compactHeaderBase
	return sig, nil
}

// RecoverPublicKey reconstructs the signer's public key from payload and
// signature, serialized uncompressed (65 bytes).
func RecoverPublicKey(payload, sig []byte) ([]byte, error) {
	pub, err := recoverKey(payload, sig)
	if err != nil {
		return nil, err
	}
	return pub.SerializeUncompressed(), nil
}

func recoverKey(payload, sig []byte) (*secp256k1.PublicKey, error) {
	if len(sig) != SignatureSize {
		return nil, fmt.Errorf("%w: signature must be %d bytes, got %d", ErrInvalidSignature, SignatureSize, len(sig))
	}
	recID := sig[SignatureSize-1]
	if recID > 3 {
		return nil, fmt.Errorf("%w: recovery id %d out of range", ErrInvalidSignature, recID)
	}
	digest := sha256.Sum256(payload)
	compact := make([]byte, SignatureSize)
	compact[0] = recID + compactHeaderBase
	copy(compact[1:], sig[:SignatureSize-1])
	pub, _, err := secpecdsa.RecoverCompact(compact, digest[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return pub, nil
}

// Verify reports whether sig over payload recovers to the expected public
// key. The expected key may be serialized compressed or uncompressed; when
// forms differ both sides are normalized to compressed before comparing.
// The byte comparison is constant time; only a total-length difference
// short-circuits.
func Verify(expected, payload, sig []byte) bool {
	recovered, err := recoverKey(payload, sig)
	if err != nil {
		return false
	}
	got := recovered.SerializeUncompressed()
	if len(expected) != len(got) {
		parsed, err := secp256k1.ParsePubKey(expected)
		if err != nil {
			return false
		}
		expected = parsed.SerializeCompressed()
		got = recovered.SerializeCompressed()
	}
	return subtle.ConstantTimeCompare(expected, got) == 1
}
