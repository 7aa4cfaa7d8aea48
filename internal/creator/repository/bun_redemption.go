package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	creator "github.com/veylan/knock/internal/creator/domain"
	"github.com/veylan/knock/internal/invite"
	shared "github.com/veylan/knock/internal/shared/domain"
	"github.com/veylan/knock/internal/shared/infra"
)

type BunRedemptionRepository struct {
	db *bun.DB
}

func NewBunRedemptionRepository(ctx context.Context, db *bun.DB) (*BunRedemptionRepository, error) {
	r := &BunRedemptionRepository{
		db: db,
	}
	tx := infra.ExtractTx(ctx, r.db)
	_, err := tx.NewCreateTable().
		Model((*redemption)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return r, fmt.Errorf("failed to create repository: %w", err)
	}
	return r, nil
}

// Consume is the single-use check-and-mark. The tag is the primary key, so
// the insert either claims it or conflicts; a conflict means the tag was
// already redeemed.
func (r *BunRedemptionRepository) Consume(ctx context.Context, red creator.Redemption) error {
	tx := infra.ExtractTx(ctx, r.db)
	row := new(redemption)
	row.fromDomain(red)
	res, err := tx.NewInsert().
		Model(row).
		On("CONFLICT (tag) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to consume invite tag: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to consume invite tag: %w", err)
	}
	if affected == 0 {
		return invite.ErrAlreadyUsed
	}
	return nil
}

func (r *BunRedemptionRepository) GetByTag(ctx context.Context, tag string) (creator.Redemption, error) {
	tx := infra.ExtractTx(ctx, r.db)
	row := new(redemption)
	err := tx.NewSelect().
		Model(row).
		Where("tag = ?", tag).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = shared.ErrNotExist
		}
		return creator.Redemption{}, fmt.Errorf("failed to get redemption: %w", err)
	}
	return row.toDomain(), nil
}

type redemption struct {
	bun.BaseModel `bun:"table:redemptions"`

	Tag            string `bun:",pk"`
	ConversationID string `bun:",notnull"`
	RedeemedBy     []byte `bun:",notnull"`
	RedeemedAt     time.Time
}

func (r *redemption) toDomain() creator.Redemption {
	id, _ := shared.InboxIDFromBytes(r.RedeemedBy)
	return creator.Redemption{
		Tag:            r.Tag,
		ConversationID: r.ConversationID,
		RedeemedBy:     id,
		RedeemedAt:     r.RedeemedAt,
	}
}

func (r *redemption) fromDomain(red creator.Redemption) {
	r.Tag = red.Tag
	r.ConversationID = red.ConversationID
	r.RedeemedBy = red.RedeemedBy.Bytes()
	r.RedeemedAt = red.RedeemedAt
}
