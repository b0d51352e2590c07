package alerts

import (
	"context"

	"github.com/mcdev12/miou/go/internal/models"
)

// Repository is the durable backing of the store. Every method must have
// persisted its effect when it returns nil.
type Repository interface {
	LoadAll(ctx context.Context) ([]models.Alert, error)
	Upsert(ctx context.Context, alert models.Alert) error
	Delete(ctx context.Context, key models.AlertKey) error
	DeleteGame(ctx context.Context, gameID string) error
}
