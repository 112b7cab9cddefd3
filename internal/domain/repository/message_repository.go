package repository

import (
	"context"

	"pasarmobil/internal/domain/entity"
)

// MessageRepository is the gateway to the remote tier: the shared row
// store that holds a message from send until the receiver reads it.
type MessageRepository interface {
	Create(ctx context.Context, message *entity.Message) error
	ListByUser(ctx context.Context, userID string) ([]*entity.Message, error)
	ListBetween(ctx context.Context, userID, partnerID string) ([]*entity.Message, error)
	MarkRead(ctx context.Context, ids []string) error
	Delete(ctx context.Context, ids []string) error
}
