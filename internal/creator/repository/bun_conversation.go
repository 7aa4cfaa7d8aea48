package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jinzhu/copier"
	"github.com/uptrace/bun"

	creator "github.com/veylan/knock/internal/creator/domain"
	shared "github.com/veylan/knock/internal/shared/domain"
	"github.com/veylan/knock/internal/shared/infra"
)

type BunConversationRepository struct {
	db *bun.DB
}

func NewBunConversationRepository(ctx context.Context, db *bun.DB) (*BunConversationRepository, error) {
	r := &BunConversationRepository{
		db: db,
	}
	tx := infra.ExtractTx(ctx, r.db)
	_, err := tx.NewCreateTable().
		Model((*conversation)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return r, fmt.Errorf("failed to create repository: %w", err)
	}
	return r, nil
}

func (r *BunConversationRepository) Save(ctx context.Context, conv creator.Conversation) error {
	tx := infra.ExtractTx(ctx, r.db)
	c := new(conversation)
	copier.Copy(c, &conv)
	_, err := tx.NewInsert().
		Model(c).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to save conversation: %w", err)
	}
	return nil
}

func (r *BunConversationRepository) GetByID(ctx context.Context, id string) (creator.Conversation, error) {
	tx := infra.ExtractTx(ctx, r.db)
	c := new(conversation)
	conv := creator.Conversation{}
	err := tx.NewSelect().
		Model(c).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = shared.ErrNotExist
		}
		return conv, fmt.Errorf("failed to get conversation: %w", err)
	}
	copier.Copy(&conv, c)
	return conv, nil
}

func (r *BunConversationRepository) List(ctx context.Context) ([]creator.Conversation, error) {
	tx := infra.ExtractTx(ctx, r.db)
	var rows []conversation
	err := tx.NewSelect().
		Model(&rows).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	convs := make([]creator.Conversation, len(rows))
	for i := range rows {
		copier.Copy(&convs[i], &rows[i])
	}
	return convs, nil
}

func (r *BunConversationRepository) UpdateTag(ctx context.Context, id, tag string) error {
	tx := infra.ExtractTx(ctx, r.db)
	c := &conversation{ID: id, Tag: tag}
	_, err := tx.NewUpdate().
		Model(c).
		Column("tag").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update conversation tag: %w", err)
	}
	return nil
}

func (r *BunConversationRepository) Delete(ctx context.Context, id string) error {
	tx := infra.ExtractTx(ctx, r.db)
	c := &conversation{ID: id}
	_, err := tx.NewDelete().
		Model(c).
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	return nil
}

type conversation struct {
	bun.BaseModel `bun:"table:conversations"`

	ID          string `bun:",pk"`
	Tag         string `bun:",unique,notnull"`
	Name        string `bun:",nullzero"`
	Description string `bun:",nullzero"`
	ImageURL    string `bun:",nullzero"`
	ExpiresAt   time.Time
	CreatedAt   time.Time
}
