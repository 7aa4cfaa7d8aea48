package invite

import (
	"bytes"
	"compress/flate"
	"encoding/base64"
	"errors"
	"math/rand"
	"strings"
	"testing"
)

func testSignedInvite(t *testing.T, payloadSize int, repetitive bool) SignedInvite {
	t.Helper()
	payload := make([]byte, payloadSize)
	if repetitive {
		for i := range payload {
			payload[i] = 'a'
		}
	} else {
		rnd := rand.New(rand.NewSource(42))
		rnd.Read(payload)
	}
	sig := make([]byte, SignatureSize)
	rand.New(rand.NewSource(7)).Read(sig)
	sig[SignatureSize-1] = 1
	return SignedInvite{Payload: payload, Signature: sig}
}

func slugBody(t *testing.T, slug string) []byte {
	t.Helper()
	data, err := base64.RawURLEncoding.DecodeString(strings.ReplaceAll(slug, slugSeparator, ""))
	if err != nil {
		t.Fatalf("slug is not valid base64url: %v", err)
	}
	return data
}

func TestSlugRoundTrip(t *testing.T) {
	for _, size := range []int{10, 80, 500, 5000} {
		inv := testSignedInvite(t, size, false)
		slug, err := EncodeSlug(inv)
		if err != nil {
			t.Fatalf("failed to encode: %v", err)
		}
		decoded, err := DecodeSlug(slug)
		if err != nil {
			t.Fatalf("failed to decode: %v", err)
		}
		if !bytes.Equal(decoded.Payload, inv.Payload) {
			t.Fatalf("payload changed across round trip at size %d", size)
		}
		if !bytes.Equal(decoded.Signature, inv.Signature) {
			t.Fatalf("signature changed across round trip at size %d", size)
		}
	}
}

func TestSmallInvitesAreNeverCompressed(t *testing.T) {
	// Highly repetitive, so compression would shrink it, but it is under
	// the size floor.
	inv := testSignedInvite(t, 20, true)
	slug, err := EncodeSlug(inv)
	if err != nil {
		t.Fatalf("failed to encode: %v", err)
	}
	if body := slugBody(t, slug); body[0] == compressionMarker {
		t.Fatal("expected small invite to stay uncompressed")
	}
}

func TestRepetitiveInvitesAreCompressed(t *testing.T) {
	inv := testSignedInvite(t, 5000, true)
	slug, err := EncodeSlug(inv)
	if err != nil {
		t.Fatalf("failed to encode: %v", err)
	}
	if body := slugBody(t, slug); body[0] != compressionMarker {
		t.Fatal("expected repetitive invite to carry the compression marker")
	}
	decoded, err := DecodeSlug(slug)
	if err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if !bytes.Equal(decoded.Payload, inv.Payload) {
		t.Fatal("payload changed across compressed round trip")
	}
}

func TestIncompressibleInvitesStayRaw(t *testing.T) {
	inv := testSignedInvite(t, 500, false)
	slug, err := EncodeSlug(inv)
	if err != nil {
		t.Fatalf("failed to encode: %v", err)
	}
	if body := slugBody(t, slug); body[0] == compressionMarker {
		t.Fatal("expected random payload to stay uncompressed")
	}
}

func TestSlugSeparatorInsertion(t *testing.T) {
	inv := testSignedInvite(t, 600, false)
	slug, err := EncodeSlug(inv)
	if err != nil {
		t.Fatalf("failed to encode: %v", err)
	}
	if !strings.Contains(slug, slugSeparator) {
		t.Fatal("expected separator in a long slug")
	}
	for i, chunk := range strings.Split(slug, slugSeparator) {
		if len(chunk) > slugChunkSize {
			t.Fatalf("chunk %d is %d characters, expected at most %d", i, len(chunk), slugChunkSize)
		}
	}
	if _, err := DecodeSlug(slug); err != nil {
		t.Fatalf("failed to decode chunked slug: %v", err)
	}
}

func TestDecompressionBombIsRejected(t *testing.T) {
	var compressed bytes.Buffer
	w, err := flate.NewWriter(&compressed, flate.BestCompression)
	if err != nil {
		t.Fatalf("failed to init writer: %v", err)
	}
	zeros := make([]byte, 64<<10)
	for written := 0; written < 2*MaxDecodedSize; written += len(zeros) {
		if _, err := w.Write(zeros); err != nil {
			t.Fatalf("failed to write: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}

	body := append([]byte{compressionMarker}, compressed.Bytes()...)
	slug := base64.RawURLEncoding.EncodeToString(body)
	if _, err := DecodeSlug(slug); !errors.Is(err, ErrDecompressionBomb) {
		t.Fatalf("expected ErrDecompressionBomb, got %v", err)
	}
}

func TestDecodeRejectsMalformedInput(t *testing.T) {
	cases := map[string]string{
		"empty":          "",
		"whitespace":     "  \n ",
		"bad base64":     "!!!not-base64!!!",
		"empty body":     base64.RawURLEncoding.EncodeToString(nil),
		"garbage struct": base64.RawURLEncoding.EncodeToString([]byte{0xff, 0xff, 0xff}),
	}
	for name, slug := range cases {
		if _, err := DecodeSlug(slug); !errors.Is(err, ErrEncoding) {
			t.Errorf("%s: expected ErrEncoding, got %v", name, err)
		}
	}
}

func TestExtractCode(t *testing.T) {
	cases := map[string]struct {
		input string
		want  string
	}{
		"bare code":          {"abcDEF123", "abcDEF123"},
		"padded code":        {"  abcDEF123\n", "abcDEF123"},
		"query parameter":    {"https://knock.example/invite?code=abcDEF123", "abcDEF123"},
		"custom scheme":      {"knock:abcDEF123", "abcDEF123"},
		"path component":     {"https://knock.example/i/abcDEF123", "abcDEF123"},
		"unparseable input":  {"://////", "://////"},
		"starred code":       {"abc*DEF*123", "abc*DEF*123"},
		"empty":              {"   ", ""},
		"no code in the url": {"https://knock.example", "https://knock.example"},
	}
	for name, tc := range cases {
		if got := ExtractCode(tc.input); got != tc.want {
			t.Errorf("%s: expected %q, got %q", name, tc.want, got)
		}
	}
}
