package alerts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/mcdev12/miou/go/internal/models"
	"github.com/mcdev12/miou/go/internal/sqlutil"
)

// Schema creates the alerts table. Shared with the import tool.
const Schema = `
CREATE TABLE IF NOT EXISTS alerts (
    room_id       TEXT        NOT NULL,
    game_id       TEXT        NOT NULL,
    user_id       TEXT        NOT NULL,
    player        TEXT        NOT NULL,
    delay_minutes INTEGER     NOT NULL CHECK (delay_minutes > 0),
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (room_id, game_id)
)`

const (
	listAlertsSQL = `
SELECT room_id, game_id, user_id, player, delay_minutes, created_at
FROM alerts
ORDER BY game_id, room_id`

	upsertAlertSQL = `
INSERT INTO alerts (room_id, game_id, user_id, player, delay_minutes, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (room_id, game_id) DO UPDATE SET
    user_id       = EXCLUDED.user_id,
    player        = EXCLUDED.player,
    delay_minutes = EXCLUDED.delay_minutes,
    created_at    = EXCLUDED.created_at`

	deleteAlertSQL      = `DELETE FROM alerts WHERE room_id = $1 AND game_id = $2`
	deleteGameAlertsSQL = `DELETE FROM alerts WHERE game_id = $1`
)

// pq error codes
const undefinedTable = "42P01"

type queries struct {
	db sqlutil.DBTX
}

func newQueries(db sqlutil.DBTX) *queries {
	return &queries{db: db}
}

func (q *queries) upsert(ctx context.Context, a models.Alert) error {
	_, err := q.db.ExecContext(ctx, upsertAlertSQL,
		a.RoomID, a.GameID, a.UserID, a.PlayerName, a.DelayMinutes(), a.CreatedAt.UTC())
	return err
}

// PostgresRepository stores alerts in Postgres through database/sql and the
// lib/pq driver.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// EnsureSchema creates the alerts table if it does not exist.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create alerts table: %w", err)
	}
	return nil
}

func (r *PostgresRepository) LoadAll(ctx context.Context) ([]models.Alert, error) {
	rows, err := r.db.QueryContext(ctx, listAlertsSQL)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == undefinedTable {
			return nil, fmt.Errorf("alerts table missing, run with schema creation enabled: %w", err)
		}
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	var out []models.Alert
	for rows.Next() {
		var (
			a            models.Alert
			delayMinutes int64
			createdAt    time.Time
		)
		if err := rows.Scan(&a.RoomID, &a.GameID, &a.UserID, &a.PlayerName, &delayMinutes, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		a.Delay = time.Duration(delayMinutes) * time.Minute
		a.CreatedAt = createdAt
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alerts: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, alert models.Alert) error {
	err := sqlutil.Run(ctx, r.db, newQueries, func(q *queries) error {
		return q.upsert(ctx, alert)
	})
	if err != nil {
		return fmt.Errorf("failed to upsert alert %s: %w", alert.Key(), err)
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, key models.AlertKey) error {
	if _, err := r.db.ExecContext(ctx, deleteAlertSQL, key.RoomID, key.GameID); err != nil {
		return fmt.Errorf("failed to delete alert %s: %w", key, err)
	}
	return nil
}

func (r *PostgresRepository) DeleteGame(ctx context.Context, gameID string) error {
	if _, err := r.db.ExecContext(ctx, deleteGameAlertsSQL, gameID); err != nil {
		return fmt.Errorf("failed to delete alerts of game %s: %w", gameID, err)
	}
	return nil
}
