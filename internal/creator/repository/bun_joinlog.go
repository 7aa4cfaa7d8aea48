package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	creator "github.com/veylan/knock/internal/creator/domain"
	shared "github.com/veylan/knock/internal/shared/domain"
	"github.com/veylan/knock/internal/shared/infra"
)

type BunJoinLogRepository struct {
	db *bun.DB
}

func NewBunJoinLogRepository(ctx context.Context, db *bun.DB) (*BunJoinLogRepository, error) {
	r := &BunJoinLogRepository{
		db: db,
	}
	tx := infra.ExtractTx(ctx, r.db)
	_, err := tx.NewCreateTable().
		Model((*joinEvent)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return r, fmt.Errorf("failed to create repository: %w", err)
	}
	return r, nil
}

func (r *BunJoinLogRepository) Append(ctx context.Context, e creator.JoinEvent) error {
	tx := infra.ExtractTx(ctx, r.db)
	row := new(joinEvent)
	row.fromDomain(e)
	_, err := tx.NewInsert().
		Model(row).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to append join event: %w", err)
	}
	return nil
}

func (r *BunJoinLogRepository) ListByConversation(ctx context.Context, id string) ([]creator.JoinEvent, error) {
	tx := infra.ExtractTx(ctx, r.db)
	var rows []joinEvent
	err := tx.NewSelect().
		Model(&rows).
		Where("conversation_id = ?", id).
		Order("at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list join events: %w", err)
	}
	events := make([]creator.JoinEvent, len(rows))
	for i := range rows {
		events[i] = rows[i].toDomain()
	}
	return events, nil
}

type joinEvent struct {
	bun.BaseModel `bun:"table:join_events"`

	ID             uuid.UUID `bun:",pk"`
	ConversationID string    `bun:",nullzero"`
	Requester      []byte    `bun:",notnull"`
	Decision       int       `bun:",notnull"`
	Reason         string    `bun:",nullzero"`
	At             time.Time
}

func (e *joinEvent) toDomain() creator.JoinEvent {
	id, _ := shared.InboxIDFromBytes(e.Requester)
	return creator.JoinEvent{
		ID:             e.ID,
		ConversationID: e.ConversationID,
		Requester:      id,
		Decision:       creator.JoinDecision(e.Decision),
		Reason:         e.Reason,
		At:             e.At,
	}
}

func (e *joinEvent) fromDomain(event creator.JoinEvent) {
	e.ID = event.ID
	e.ConversationID = event.ConversationID
	e.Requester = event.Requester.Bytes()
	e.Decision = int(event.Decision)
	e.Reason = event.Reason
	e.At = event.At
}
