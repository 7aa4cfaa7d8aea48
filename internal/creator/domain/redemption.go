package domain

import (
	"context"
	"time"

	shared "github.com/veylan/knock/internal/shared/domain"
)

// Redemption marks a single-use invite tag as consumed. At most one
// redemption ever exists per tag.
type Redemption struct {
	Tag            string
	ConversationID string
	RedeemedBy     shared.InboxID
	RedeemedAt     time.Time
}

type RedemptionRepository interface {
	// Consume atomically records the redemption. A tag already consumed
	// yields invite.ErrAlreadyUsed; two concurrent calls cannot both
	// succeed.
	Consume(ctx context.Context, r Redemption) error
	GetByTag(ctx context.Context, tag string) (Redemption, error)
}
