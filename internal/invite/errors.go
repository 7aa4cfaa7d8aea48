package invite

import "errors"

// Protocol error taxonomy. Callers branch with errors.Is; raw library
// errors never cross this package's API unwrapped.
var (
	// ErrEncoding marks a malformed slug, base64 body, or wire structure.
	ErrEncoding = errors.New("malformed invite encoding")
	// ErrDecompressionBomb marks compressed input that would inflate past
	// the hard ceiling. Treated as malicious, rejected before expansion.
	ErrDecompressionBomb = errors.New("inflated invite exceeds size limit")
	// ErrInvalidSignature marks an unparseable or unrecoverable signature.
	ErrInvalidSignature = errors.New("invalid invite signature")
	// ErrDecryption marks an AEAD authentication failure on the
	// conversation token. No partial plaintext is ever returned with it.
	ErrDecryption = errors.New("conversation token decryption failed")
	// ErrExpired marks a cryptographically valid but stale invite.
	ErrExpired = errors.New("invite expired")
	// ErrAlreadyUsed marks a consumed single-use invite.
	ErrAlreadyUsed = errors.New("invite already used")
	// ErrTagMismatch marks an invite whose tag no longer matches the
	// conversation it references.
	ErrTagMismatch = errors.New("conversation tag mismatch")
)
