// Package wire defines the envelope format spoken between agents and the
// relay: protowire-encoded envelopes in length-prefixed frames. Both the
// relay server and the relay client transport use it.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"

	shared "github.com/veylan/knock/internal/shared/domain"
)

// Kind discriminates envelope payloads.
type Kind int

const (
	KindHello Kind = iota + 1
	KindDirectMessage
	KindMemberAdded
	KindSetConsent
)

// MaxFrameSize bounds a single envelope frame on the wire.
const MaxFrameSize = 256 << 10

const (
	fieldKind         = 1
	fieldFrom         = 2
	fieldTo           = 3
	fieldText         = 4
	fieldConversation = 5
	fieldSubject      = 6

	fieldConvID      = 1
	fieldConvTag     = 2
	fieldConvCreator = 3
	fieldConvName    = 4
)

// Envelope is one routed unit. Hello announces the sender's inbox id on
// connect; DirectMessage carries text to To; MemberAdded grants Subject
// membership in Conversation; SetConsent blocks Subject from reaching From.
type Envelope struct {
	Kind         Kind
	From         shared.InboxID
	To           shared.InboxID
	Text         string
	Conversation *shared.ConversationSummary
	Subject      shared.InboxID
}

func (e Envelope) MarshalBinary() ([]byte, error) {
	if e.Kind < KindHello || e.Kind > KindSetConsent {
		return nil, fmt.Errorf("unknown envelope kind %d", e.Kind)
	}
	var b []byte
	b = protowire.AppendTag(b, fieldKind, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(e.Kind))
	if !e.From.IsZero() {
		b = protowire.AppendTag(b, fieldFrom, protowire.BytesType)
		b = protowire.AppendBytes(b, e.From.Bytes())
	}
	if !e.To.IsZero() {
		b = protowire.AppendTag(b, fieldTo, protowire.BytesType)
		b = protowire.AppendBytes(b, e.To.Bytes())
	}
	if e.Text != "" {
		b = protowire.AppendTag(b, fieldText, protowire.BytesType)
		b = protowire.AppendString(b, e.Text)
	}
	if e.Conversation != nil {
		b = protowire.AppendTag(b, fieldConversation, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalConversation(*e.Conversation))
	}
	if !e.Subject.IsZero() {
		b = protowire.AppendTag(b, fieldSubject, protowire.BytesType)
		b = protowire.AppendBytes(b, e.Subject.Bytes())
	}
	return b, nil
}

func (e *Envelope) UnmarshalBinary(data []byte) error {
	var out Envelope
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("malformed envelope: %v", protowire.ParseError(n))
		}
		data = data[n:]
		switch {
		case num == fieldKind && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return fmt.Errorf("malformed envelope: %v", protowire.ParseError(n))
			}
			out.Kind = Kind(v)
			data = data[n:]
		case typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return fmt.Errorf("malformed envelope: %v", protowire.ParseError(n))
			}
			data = data[n:]
			switch num {
			case fieldFrom, fieldTo, fieldSubject:
				id, err := shared.InboxIDFromBytes(v)
				if err != nil {
					return fmt.Errorf("malformed envelope: %w", err)
				}
				switch num {
				case fieldFrom:
					out.From = id
				case fieldTo:
					out.To = id
				case fieldSubject:
					out.Subject = id
				}
			case fieldText:
				out.Text = string(v)
			case fieldConversation:
				conv, err := unmarshalConversation(v)
				if err != nil {
					return err
				}
				out.Conversation = &conv
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return fmt.Errorf("malformed envelope: %v", protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	if out.Kind < KindHello || out.Kind > KindSetConsent {
		return fmt.Errorf("malformed envelope: unknown kind %d", out.Kind)
	}
	*e = out
	return nil
}

func marshalConversation(c shared.ConversationSummary) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldConvID, protowire.BytesType)
	b = protowire.AppendString(b, c.ID)
	b = protowire.AppendTag(b, fieldConvTag, protowire.BytesType)
	b = protowire.AppendString(b, c.Tag)
	b = protowire.AppendTag(b, fieldConvCreator, protowire.BytesType)
	b = protowire.AppendBytes(b, c.Creator.Bytes())
	if c.Name != "" {
		b = protowire.AppendTag(b, fieldConvName, protowire.BytesType)
		b = protowire.AppendString(b, c.Name)
	}
	return b
}

func unmarshalConversation(data []byte) (shared.ConversationSummary, error) {
	var out shared.ConversationSummary
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return out, fmt.Errorf("malformed conversation summary: %v", protowire.ParseError(n))
		}
		data = data[n:]
		if typ != protowire.BytesType {
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return out, fmt.Errorf("malformed conversation summary: %v", protowire.ParseError(n))
			}
			data = data[n:]
			continue
		}
		v, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return out, fmt.Errorf("malformed conversation summary: %v", protowire.ParseError(n))
		}
		data = data[n:]
		switch num {
		case fieldConvID:
			out.ID = string(v)
		case fieldConvTag:
			out.Tag = string(v)
		case fieldConvCreator:
			id, err := shared.InboxIDFromBytes(v)
			if err != nil {
				return out, fmt.Errorf("malformed conversation summary: %w", err)
			}
			out.Creator = id
		case fieldConvName:
			out.Name = string(v)
		}
	}
	return out, nil
}

// WriteFrame writes one envelope with a big-endian uint32 length prefix.
func WriteFrame(w io.Writer, e Envelope) error {
	body, err := e.MarshalBinary()
	if err != nil {
		return err
	}
	if len(body) > MaxFrameSize {
		return fmt.Errorf("envelope exceeds frame limit: %d bytes", len(body))
	}
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(body)))
	if _, err := w.Write(prefix[:]); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// ReadFrame reads one envelope, rejecting frames over MaxFrameSize before
// buffering them.
func ReadFrame(r io.Reader) (Envelope, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return Envelope{}, err
	}
	size := binary.BigEndian.Uint32(prefix[:])
	if size > MaxFrameSize {
		return Envelope{}, fmt.Errorf("frame of %d bytes exceeds limit", size)
	}
	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return Envelope{}, fmt.Errorf("failed to read frame: %w", err)
	}
	var e Envelope
	if err := e.UnmarshalBinary(body); err != nil {
		return Envelope{}, err
	}
	return e, nil
}
