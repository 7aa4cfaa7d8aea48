package admin

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers below are frozen per message; unknown fields are skipped on
// decode for forward compatibility.

type Conversation struct {
	Id            string
	Tag           string
	Name          string
	Description   string
	ImageUrl      string
	ExpiresAtUnix int64
	CreatedAtUnix int64
}

func (m *Conversation) MarshalBinary() ([]byte, error) {
	var b []byte
	b = appendString(b, 1, m.Id)
	b = appendString(b, 2, m.Tag)
	b = appendString(b, 3, m.Name)
	b = appendString(b, 4, m.Description)
	b = appendString(b, 5, m.ImageUrl)
	b = appendInt64(b, 6, m.ExpiresAtUnix)
	b = appendInt64(b, 7, m.CreatedAtUnix)
	return b, nil
}

func (m *Conversation) UnmarshalBinary(data []byte) error {
	*m = Conversation{}
	return walkFields(data, func(f field) error {
		switch f.num {
		case 1:
			m.Id = f.text()
		case 2:
			m.Tag = f.text()
		case 3:
			m.Name = f.text()
		case 4:
			m.Description = f.text()
		case 5:
			m.ImageUrl = f.text()
		case 6:
			m.ExpiresAtUnix = int64(f.varint)
		case 7:
			m.CreatedAtUnix = int64(f.varint)
		}
		return nil
	})
}

type CreateConversationRequest struct {
	Name          string
	Description   string
	ImageUrl      string
	ExpiresAtUnix int64
}

func (m *CreateConversationRequest) MarshalBinary() ([]byte, error) {
	var b []byte
	b = appendString(b, 1, m.Name)
	b = appendString(b, 2, m.Description)
	b = appendString(b, 3, m.ImageUrl)
	b = appendInt64(b, 4, m.ExpiresAtUnix)
	return b, nil
}

func (m *CreateConversationRequest) UnmarshalBinary(data []byte) error {
	*m = CreateConversationRequest{}
	return walkFields(data, func(f field) error {
		switch f.num {
		case 1:
			m.Name = f.text()
		case 2:
			m.Description = f.text()
		case 3:
			m.ImageUrl = f.text()
		case 4:
			m.ExpiresAtUnix = int64(f.varint)
		}
		return nil
	})
}

type CreateConversationReply struct {
	Conversation *Conversation
}

func (m *CreateConversationReply) MarshalBinary() ([]byte, error) {
	var b []byte
	b, err := appendMessage(b, 1, m.Conversation)
	return b, err
}

func (m *CreateConversationReply) UnmarshalBinary(data []byte) error {
	*m = CreateConversationReply{}
	return walkFields(data, func(f field) error {
		if f.num == 1 {
			m.Conversation = new(Conversation)
			return m.Conversation.UnmarshalBinary(f.bytes)
		}
		return nil
	})
}

type ListConversationsRequest struct{}

func (m *ListConversationsRequest) MarshalBinary() ([]byte, error) { return nil, nil }

func (m *ListConversationsRequest) UnmarshalBinary(data []byte) error { return nil }

type ListConversationsReply struct {
	Conversations []*Conversation
}

func (m *ListConversationsReply) MarshalBinary() ([]byte, error) {
	var b []byte
	var err error
	for _, c := range m.Conversations {
		if b, err = appendMessage(b, 1, c); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (m *ListConversationsReply) UnmarshalBinary(data []byte) error {
	*m = ListConversationsReply{}
	return walkFields(data, func(f field) error {
		if f.num == 1 {
			c := new(Conversation)
			if err := c.UnmarshalBinary(f.bytes); err != nil {
				return err
			}
			m.Conversations = append(m.Conversations, c)
		}
		return nil
	})
}

type GenerateInviteRequest struct {
	Id            string
	ExpiresAtUnix int64
	SingleUse     bool
}

func (m *GenerateInviteRequest) MarshalBinary() ([]byte, error) {
	var b []byte
	b = appendString(b, 1, m.Id)
	b = appendInt64(b, 2, m.ExpiresAtUnix)
	b = appendBool(b, 3, m.SingleUse)
	return b, nil
}

func (m *GenerateInviteRequest) UnmarshalBinary(data []byte) error {
	*m = GenerateInviteRequest{}
	return walkFields(data, func(f field) error {
		switch f.num {
		case 1:
			m.Id = f.text()
		case 2:
			m.ExpiresAtUnix = int64(f.varint)
		case 3:
			m.SingleUse = f.varint != 0
		}
		return nil
	})
}

type GenerateInviteReply struct {
	Slug string
}

func (m *GenerateInviteReply) MarshalBinary() ([]byte, error) {
	return appendString(nil, 1, m.Slug), nil
}

func (m *GenerateInviteReply) UnmarshalBinary(data []byte) error {
	*m = GenerateInviteReply{}
	return walkFields(data, func(f field) error {
		if f.num == 1 {
			m.Slug = f.text()
		}
		return nil
	})
}

type RotateTagRequest struct {
	Id string
}

func (m *RotateTagRequest) MarshalBinary() ([]byte, error) {
	return appendString(nil, 1, m.Id), nil
}

func (m *RotateTagRequest) UnmarshalBinary(data []byte) error {
	*m = RotateTagRequest{}
	return walkFields(data, func(f field) error {
		if f.num == 1 {
			m.Id = f.text()
		}
		return nil
	})
}

type RotateTagReply struct {
	Tag string
}

func (m *RotateTagReply) MarshalBinary() ([]byte, error) {
	return appendString(nil, 1, m.Tag), nil
}

func (m *RotateTagReply) UnmarshalBinary(data []byte) error {
	*m = RotateTagReply{}
	return walkFields(data, func(f field) error {
		if f.num == 1 {
			m.Tag = f.text()
		}
		return nil
	})
}

type DecodeInviteRequest struct {
	Slug string
}

func (m *DecodeInviteRequest) MarshalBinary() ([]byte, error) {
	return appendString(nil, 1, m.Slug), nil
}

func (m *DecodeInviteRequest) UnmarshalBinary(data []byte) error {
	*m = DecodeInviteRequest{}
	return walkFields(data, func(f field) error {
		if f.num == 1 {
			m.Slug = f.text()
		}
		return nil
	})
}

type DecodeInviteReply struct {
	Tag                       string
	CreatorInboxId            []byte
	Name                      string
	Description               string
	ImageUrl                  string
	ExpiresAtUnix             int64
	ConversationExpiresAtUnix int64
	SingleUse                 bool
}

func (m *DecodeInviteReply) MarshalBinary() ([]byte, error) {
	var b []byte
	b = appendString(b, 1, m.Tag)
	b = appendBytes(b, 2, m.CreatorInboxId)
	b = appendString(b, 3, m.Name)
	b = appendString(b, 4, m.Description)
	b = appendString(b, 5, m.ImageUrl)
	b = appendInt64(b, 6, m.ExpiresAtUnix)
	b = appendInt64(b, 7, m.ConversationExpiresAtUnix)
	b = appendBool(b, 8, m.SingleUse)
	return b, nil
}

func (m *DecodeInviteReply) UnmarshalBinary(data []byte) error {
	*m = DecodeInviteReply{}
	return walkFields(data, func(f field) error {
		switch f.num {
		case 1:
			m.Tag = f.text()
		case 2:
			m.CreatorInboxId = append([]byte(nil), f.bytes...)
		case 3:
			m.Name = f.text()
		case 4:
			m.Description = f.text()
		case 5:
			m.ImageUrl = f.text()
		case 6:
			m.ExpiresAtUnix = int64(f.varint)
		case 7:
			m.ConversationExpiresAtUnix = int64(f.varint)
		case 8:
			m.SingleUse = f.varint != 0
		}
		return nil
	})
}

type JoinRequest struct {
	Slug string
}

func (m *JoinRequest) MarshalBinary() ([]byte, error) {
	return appendString(nil, 1, m.Slug), nil
}

func (m *JoinRequest) UnmarshalBinary(data []byte) error {
	*m = JoinRequest{}
	return walkFields(data, func(f field) error {
		if f.num == 1 {
			m.Slug = f.text()
		}
		return nil
	})
}

const (
	JoinStateAlreadyJoined = 1
	JoinStateTagVerified   = 2
	JoinStateTagMismatch   = 3
)

type JoinReply struct {
	State          int64
	ConversationId string
	Tag            string
	Name           string
}

func (m *JoinReply) MarshalBinary() ([]byte, error) {
	var b []byte
	b = appendInt64(b, 1, m.State)
	b = appendString(b, 2, m.ConversationId)
	b = appendString(b, 3, m.Tag)
	b = appendString(b, 4, m.Name)
	return b, nil
}

func (m *JoinReply) UnmarshalBinary(data []byte) error {
	*m = JoinReply{}
	return walkFields(data, func(f field) error {
		switch f.num {
		case 1:
			m.State = int64(f.varint)
		case 2:
			m.ConversationId = f.text()
		case 3:
			m.Tag = f.text()
		case 4:
			m.Name = f.text()
		}
		return nil
	})
}

type field struct {
	num    protowire.Number
	bytes  []byte
	varint uint64
}

func (f field) text() string {
	return string(f.bytes)
}

// walkFields iterates protowire fields, handing bytes and varint values to
// fn and skipping everything else.
func walkFields(data []byte, fn func(f field) error) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("malformed message: %v", protowire.ParseError(n))
		}
		data = data[n:]
		switch typ {
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return fmt.Errorf("malformed message: %v", protowire.ParseError(n))
			}
			data = data[n:]
			if err := fn(field{num: num, bytes: v}); err != nil {
				return err
			}
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return fmt.Errorf("malformed message: %v", protowire.ParseError(n))
			}
			data = data[n:]
			if err := fn(field{num: num, varint: v}); err != nil {
				return err
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return fmt.Errorf("malformed message: %v", protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return nil
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendInt64(b []byte, num protowire.Number, v int64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(v))
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, 1)
}

func appendMessage(b []byte, num protowire.Number, m *Conversation) ([]byte, error) {
	if m == nil {
		return b, nil
	}
	body, err := m.MarshalBinary()
	if err != nil {
		return nil, err
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, body), nil
}
