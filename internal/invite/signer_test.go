package invite

import (
	"bytes"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

func testKey(t *testing.T) *secp256k1.PrivateKey {
	t.Helper()
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	return key
}

func TestSignRecoverRoundTrip(t *testing.T) {
	key := testKey(t)
	payload := []byte("the quick brown fox")

	sig, err := Sign(payload, key)
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}
	if len(sig) != SignatureSize {
		t.Fatalf("expected %d byte signature, got %d", SignatureSize, len(sig))
	}
	if recID := sig[SignatureSize-1]; recID > 3 {
		t.Fatalf("expected recovery id in [0,3], got %d", recID)
	}

	pub, err := RecoverPublicKey(payload, sig)
	if err != nil {
		t.Fatalf("failed to recover public key: %v", err)
	}
	want := key.PubKey().SerializeUncompressed()
	if !bytes.Equal(pub, want) {
		t.Fatalf("recovered key %x, expected %x", pub, want)
	}
}

func TestRecoverRejectsMalformedSignatures(t *testing.T) {
	key := testKey(t)
	payload := []byte("payload")
	sig, err := Sign(payload, key)
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}

	cases := map[string][]byte{
		"too short":       sig[:64],
		"too long":        append(append([]byte{}, sig...), 0),
		"bad recovery id": func() []byte { s := append([]byte{}, sig...); s[64] = 4; return s }(),
		"zero r and s":    make([]byte, SignatureSize),
	}
	for name, bad := range cases {
		if _, err := RecoverPublicKey(payload, bad); err == nil {
			t.Errorf("%s: expected recovery to fail", name)
		}
	}
}

func TestVerifyDetectsTamper(t *testing.T) {
	key := testKey(t)
	payload := []byte("original payload bytes")
	sig, err := Sign(payload, key)
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}
	expected := key.PubKey().SerializeUncompressed()

	if !Verify(expected, payload, sig) {
		t.Fatal("expected untampered payload to verify")
	}

	for i := 0; i < len(payload); i++ {
		tampered := append([]byte{}, payload...)
		tampered[i] ^= 0x01
		if Verify(expected, tampered, sig) {
			t.Fatalf("expected verification to fail after flipping a bit in byte %d", i)
		}
	}
}

func TestVerifyNormalizesCompressedKeys(t *testing.T) {
	key := testKey(t)
	payload := []byte("payload")
	sig, err := Sign(payload, key)
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}

	if !Verify(key.PubKey().SerializeCompressed(), payload, sig) {
		t.Fatal("expected compressed expected key to verify")
	}

	other := testKey(t)
	if Verify(other.PubKey().SerializeCompressed(), payload, sig) {
		t.Fatal("expected verification against a different key to fail")
	}
}
