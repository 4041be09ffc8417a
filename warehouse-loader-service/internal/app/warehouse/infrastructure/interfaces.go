package infrastructure

import (
	"context"
)

// MessagePublisher отправляет события о загрузках downstream потребителям
type MessagePublisher interface {
	PublishMessage(ctx context.Context, key string, value []byte) error
	Close() error
}
