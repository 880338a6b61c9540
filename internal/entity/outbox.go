package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// OutboxEvent is a domain event committed with the business rows and relayed later.
type OutboxEvent struct {
	bun.BaseModel `bun:"table:outbox_events"`

	ID        int64     `bun:",pk,autoincrement"`
	EventID   string    `bun:"event_id,notnull,unique"`
	Topic     string    `bun:"topic,notnull"`
	EventKey  string    `bun:"event_key,notnull"`
	Payload   []byte    `bun:"payload,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
	SentAt    time.Time `bun:"sent_at,nullzero"`
}
