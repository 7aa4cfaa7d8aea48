package invite

import (
	"bytes"
	"compress/flate"
	"encoding/base64"
	"fmt"
	"io"
	"net/url"
	"strings"
)

const (
	// compressionMarker prefixes DEFLATE-compressed slug bodies.
	compressionMarker = 0x1F
	// compressionMinBytes is the serialized size below which compression is
	// never attempted.
	compressionMinBytes = 100
	// MaxDecodedSize caps inflated slug bodies. Anything declaring or
	// producing more is treated as a decompression bomb.
	MaxDecodedSize = 1 << 20

	// slugChunkSize is how often a separator is inserted into the encoded
	// slug. Messaging apps break very long unbroken tokens at link-detection
	// boundaries; the separator is transport padding, not data.
	slugChunkSize = 300
	slugSeparator = "*"

	codeQueryParam = "code"
)

// EncodeSlug renders a signed invite as a messaging-safe text slug:
// optionally DEFLATE-compressed, base64url without padding, separator every
// 300 characters.
func EncodeSlug(inv SignedInvite) (string, error) {
	raw, err := inv.MarshalBinary()
	if err != nil {
		return "", err
	}
	data := raw
	if len(raw) > compressionMinBytes {
		if compressed, err := deflate(raw); err == nil && len(compressed)+1 < len(raw) {
			data = append([]byte{compressionMarker}, compressed...)
		}
	}
	return chunkSlug(base64.RawURLEncoding.EncodeToString(data)), nil
}

// DecodeSlug parses a slug back into a signed invite. Inflation is bounded
// by MaxDecodedSize and aborts with ErrDecompressionBomb beyond it.
func DecodeSlug(slug string) (SignedInvite, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(slug), slugSeparator, "")
	if cleaned == "" {
		return SignedInvite{}, fmt.Errorf("%w: empty invite code", ErrEncoding)
	}
	data, err := base64.RawURLEncoding.DecodeString(cleaned)
	if err != nil {
		return SignedInvite{}, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	if len(data) == 0 {
		return SignedInvite{}, fmt.Errorf("%w: empty invite body", ErrEncoding)
	}
	if data[0] == compressionMarker {
		if data, err = inflate(data[1:]); err != nil {
			return SignedInvite{}, err
		}
	}
	var inv SignedInvite
	if err := inv.UnmarshalBinary(data); err != nil {
		return SignedInvite{}, err
	}
	return inv, nil
}

// ExtractCode pulls an invite code out of pasted input: a bare code, a link
// carrying the code in a query parameter, or a knock: deep link. Surrounding
// whitespace from copy-paste is tolerated; input that does not parse as a
// URL is returned as-is.
func ExtractCode(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ""
	}
	u, err := url.Parse(trimmed)
	if err != nil || u.Scheme == "" {
		return trimmed
	}
	if code := u.Query().Get(codeQueryParam); code != "" {
		return code
	}
	if u.Opaque != "" {
		return u.Opaque
	}
	if p := strings.Trim(u.Path, "/"); p != "" {
		if i := strings.LastIndex(p, "/"); i >= 0 {
			return p[i+1:]
		}
		return p
	}
	return trimmed
}

func chunkSlug(s string) string {
	if len(s) <= slugChunkSize {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + len(s)/slugChunkSize)
	for i := 0; i < len(s); i += slugChunkSize {
		if i > 0 {
			b.WriteString(slugSeparator)
		}
		end := i + slugChunkSize
		if end > len(s) {
			end = len(s)
		}
		b.WriteString(s[i:end])
	}
	return b.String()
}

func deflate(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func inflate(data []byte) ([]byte, error) {
	fr := flate.NewReader(bytes.NewReader(data))
	defer fr.Close()
	var out bytes.Buffer
	n, err := io.Copy(&out, io.LimitReader(fr, MaxDecodedSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	if n > MaxDecodedSize {
		return nil, fmt.Errorf("%w: inflated size exceeds %d bytes", ErrDecompressionBomb, MaxDecodedSize)
	}
	return out.Bytes(), nil
}
