// Package invite implements the signed conversation invite protocol: the
// payload model, its binary wire form, the recoverable signature scheme, the
// conversation token cipher, and the text slug codec. Everything here is
// pure computation over explicit inputs; no storage or transport concerns.
package invite

import (
	"fmt"
	"io"
	"time"

	shared "github.com/veylan/knock/internal/shared/domain"
)

// TagLength is the fixed length of a conversation invite tag.
const TagLength = 10

const tagAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// NewTag draws a fresh random alphanumeric tag from r.
func NewTag(r io.Reader) (string, error) {
	// Rejection sampling keeps the draw uniform over the 62-char alphabet.
	const limit = 256 - 256%len(tagAlphabet)
	tag := make([]byte, 0, TagLength)
	buf := make([]byte, 1)
	for len(tag) < TagLength {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", fmt.Errorf("failed to generate invite tag: %w", err)
		}
		if int(buf[0]) >= limit {
			continue
		}
		tag = append(tag, tagAlphabet[int(buf[0])%len(tagAlphabet)])
	}
	return string(tag), nil
}

// InvitePayload is the unsigned body of an invite. Optional fields are
// pointers so that an absent field round-trips as absent, not as a zero
// value.
type InvitePayload struct {
	Tag                   string
	ConversationToken     []byte
	CreatorInboxID        shared.InboxID
	Name                  *string
	Description           *string
	ImageURL              *string
	ExpiresAt             *int64
	ConversationExpiresAt *int64
	ExpiresAfterUse       bool
}

// PayloadParams collects conversation state for BuildPayload. Zero values
// mean "absent": empty strings and zero times are omitted from the payload
// rather than encoded as empty.
type PayloadParams struct {
	Tag                   string
	ConversationToken     []byte
	CreatorInboxID        shared.InboxID
	Name                  string
	Description           string
	ImageURL              string
	ExpiresAt             time.Time
	ConversationExpiresAt time.Time
	ExpiresAfterUse       bool
}

// BuildPayload assembles an invite payload from conversation state and a
// freshly minted conversation token.
func BuildPayload(p PayloadParams) InvitePayload {
	payload := InvitePayload{
		Tag:               p.Tag,
		ConversationToken: p.ConversationToken,
		CreatorInboxID:    p.CreatorInboxID,
		ExpiresAfterUse:   p.ExpiresAfterUse,
	}
	if p.Name != "" {
		payload.Name = &p.Name
	}
	if p.Description != "" {
		payload.Description = &p.Description
	}
	if p.ImageURL != "" {
		payload.ImageURL = &p.ImageURL
	}
	if !p.ExpiresAt.IsZero() {
		at := p.ExpiresAt.Unix()
		payload.ExpiresAt = &at
	}
	if !p.ConversationExpiresAt.IsZero() {
		at := p.ConversationExpiresAt.Unix()
		payload.ConversationExpiresAt = &at
	}
	return payload
}

// DisplayName returns the conversation name carried by the invite, if any.
func (p InvitePayload) DisplayName() (string, bool) {
	if p.Name == nil {
		return "", false
	}
	return *p.Name, true
}

// Expiry returns the invite expiry, if one was set.
func (p InvitePayload) Expiry() (time.Time, bool) {
	if p.ExpiresAt == nil {
		return time.Time{}, false
	}
	return time.Unix(*p.ExpiresAt, 0), true
}

// ConversationExpiry returns the conversation self-destruct time, if set.
func (p InvitePayload) ConversationExpiry() (time.Time, bool) {
	if p.ConversationExpiresAt == nil {
		return time.Time{}, false
	}
	return time.Unix(*p.ConversationExpiresAt, 0), true
}

// HasExpired reports whether the invite itself is past its expiry at now.
// Invites without an expiry never expire.
func (p InvitePayload) HasExpired(now time.Time) bool {
	at, ok := p.Expiry()
	if !ok {
		return false
	}
	return now.After(at)
}
