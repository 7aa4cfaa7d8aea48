package invite

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	shared "github.com/veylan/knock/internal/shared/domain"
)

// Wire field numbers. These are frozen: changing one breaks every invite in
// circulation.
const (
	fieldPayloadTag         = 1
	fieldPayloadToken       = 2
	fieldPayloadCreator     = 3
	fieldPayloadName        = 4
	fieldPayloadDescription = 5
	fieldPayloadImageURL    = 6
	fieldPayloadExpiresAt   = 7
	fieldPayloadConvExpires = 8
	fieldPayloadSingleUse   = 9

	fieldSignedPayload   = 1
	fieldSignedSignature = 2
)

// SignedInvite couples serialized payload bytes with a recoverable signature
// over them. Payload is kept verbatim: the signature covers these exact
// bytes, so the payload is never re-serialized after signing.
type SignedInvite struct {
	Payload   []byte
	Signature []byte
}

// ParsePayload decodes the carried payload bytes.
func (s SignedInvite) ParsePayload() (InvitePayload, error) {
	var p InvitePayload
	if err := p.UnmarshalBinary(s.Payload); err != nil {
		return InvitePayload{}, err
	}
	return p, nil
}

func (s SignedInvite) MarshalBinary() ([]byte, error) {
	if len(s.Payload) == 0 {
		return nil, fmt.Errorf("signed invite has no payload")
	}
	if len(s.Signature) != SignatureSize {
		return nil, fmt.Errorf("signed invite signature must be %d bytes, got %d", SignatureSize, len(s.Signature))
	}
	b := make([]byte, 0, len(s.Payload)+len(s.Signature)+8)
	b = protowire.AppendTag(b, fieldSignedPayload, protowire.BytesType)
	b = protowire.AppendBytes(b, s.Payload)
	b = protowire.AppendTag(b, fieldSignedSignature, protowire.BytesType)
	b = protowire.AppendBytes(b, s.Signature)
	return b, nil
}

func (s *SignedInvite) UnmarshalBinary(data []byte) error {
	var out SignedInvite
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrEncoding, protowire.ParseError(n))
		}
		data = data[n:]
		switch {
		case num == fieldSignedPayload && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return fmt.Errorf("%w: %v", ErrEncoding, protowire.ParseError(n))
			}
			out.Payload = append([]byte(nil), v...)
			data = data[n:]
		case num == fieldSignedSignature && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return fmt.Errorf("%w: %v", ErrEncoding, protowire.ParseError(n))
			}
			out.Signature = append([]byte(nil), v...)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return fmt.Errorf("%w: %v", ErrEncoding, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	if len(out.Payload) == 0 {
		return fmt.Errorf("%w: signed invite payload missing", ErrEncoding)
	}
	if len(out.Signature) != SignatureSize {
		return fmt.Errorf("%w: signed invite signature must be %d bytes", ErrEncoding, SignatureSize)
	}
	*s = out
	return nil
}

func (p InvitePayload) MarshalBinary() ([]byte, error) {
	if p.Tag == "" {
		return nil, fmt.Errorf("invite payload missing tag")
	}
	if len(p.ConversationToken) == 0 {
		return nil, fmt.Errorf("invite payload missing conversation token")
	}
	if p.CreatorInboxID.IsZero() {
		return nil, fmt.Errorf("invite payload missing creator inbox id")
	}
	var b []byte
	b = protowire.AppendTag(b, fieldPayloadTag, protowire.BytesType)
	b = protowire.AppendString(b, p.Tag)
	b = protowire.AppendTag(b, fieldPayloadToken, protowire.BytesType)
	b = protowire.AppendBytes(b, p.ConversationToken)
	b = protowire.AppendTag(b, fieldPayloadCreator, protowire.BytesType)
	b = protowire.AppendBytes(b, p.CreatorInboxID.Bytes())
	if p.Name != nil {
		b = protowire.AppendTag(b, fieldPayloadName, protowire.BytesType)
		b = protowire.AppendString(b, *p.Name)
	}
	if p.Description != nil {
		b = protowire.AppendTag(b, fieldPayloadDescription, protowire.BytesType)
		b = protowire.AppendString(b, *p.Description)
	}
	if p.ImageURL != nil {
		b = protowire.AppendTag(b, fieldPayloadImageURL, protowire.BytesType)
		b = protowire.AppendString(b, *p.ImageURL)
	}
	if p.ExpiresAt != nil {
		b = protowire.AppendTag(b, fieldPayloadExpiresAt, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(*p.ExpiresAt))
	}
	if p.ConversationExpiresAt != nil {
		b = protowire.AppendTag(b, fieldPayloadConvExpires, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(*p.ConversationExpiresAt))
	}
	if p.ExpiresAfterUse {
		b = protowire.AppendTag(b, fieldPayloadSingleUse, protowire.VarintType)
		b = protowire.AppendVarint(b, 1)
	}
	return b, nil
}

func (p *InvitePayload) UnmarshalBinary(data []byte) error {
	var out InvitePayload
	var seenTag, seenToken, seenCreator bool
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrEncoding, protowire.ParseError(n))
		}
		data = data[n:]

		if typ == protowire.BytesType {
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return fmt.Errorf("%w: %v", ErrEncoding, protowire.ParseError(n))
			}
			data = data[n:]
			switch num {
			case fieldPayloadTag:
				out.Tag = string(v)
				seenTag = true
			case fieldPayloadToken:
				out.ConversationToken = append([]byte(nil), v...)
				seenToken = true
			case fieldPayloadCreator:
				id, err := shared.InboxIDFromBytes(v)
				if err != nil {
					return fmt.Errorf("%w: %v", ErrEncoding, err)
				}
				out.CreatorInboxID = id
				seenCreator = true
			case fieldPayloadName:
				s := string(v)
				out.Name = &s
			case fieldPayloadDescription:
				s := string(v)
				out.Description = &s
			case fieldPayloadImageURL:
				s := string(v)
				out.ImageURL = &s
			}
			continue
		}
		if typ == protowire.VarintType {
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return fmt.Errorf("%w: %v", ErrEncoding, protowire.ParseError(n))
			}
			data = data[n:]
			switch num {
			case fieldPayloadExpiresAt:
				at := int64(v)
				out.ExpiresAt = &at
			case fieldPayloadConvExpires:
				at := int64(v)
				out.ConversationExpiresAt = &at
			case fieldPayloadSingleUse:
				out.ExpiresAfterUse = v != 0
			}
			continue
		}
		n = protowire.ConsumeFieldValue(num, typ, data)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrEncoding, protowire.ParseError(n))
		}
		data = data[n:]
	}
	if !seenTag || !seenToken || !seenCreator {
		return fmt.Errorf("%w: invite payload missing required fields", ErrEncoding)
	}
	*p = out
	return nil
}
