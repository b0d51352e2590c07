// Command import_alerts copies the alerts of a JSON store file into the
// Postgres alerts table.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mcdev12/miou/go/internal/alerts"
	"github.com/mcdev12/miou/go/internal/dbconfig"
	"github.com/mcdev12/miou/go/internal/models"
)

const insertAlertSQL = `
INSERT INTO alerts (room_id, game_id, user_id, player, delay_minutes, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (room_id, game_id) DO NOTHING`

const overwriteAlertSQL = `
INSERT INTO alerts (room_id, game_id, user_id, player, delay_minutes, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (room_id, game_id) DO UPDATE SET
    user_id       = EXCLUDED.user_id,
    player        = EXCLUDED.player,
    delay_minutes = EXCLUDED.delay_minutes,
    created_at    = EXCLUDED.created_at`

func main() {
	path := flag.String("file", "data/alerts.json", "alert store file to import")
	overwrite := flag.Bool("overwrite", false, "replace alerts that already exist in the table")
	flag.Parse()

	ctx := context.Background()

	// 1) Load the JSON store
	list, err := alerts.NewFileRepository(*path).LoadAll(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read alerts: %v\n", err)
		os.Exit(1)
	}

	// 2) Connect using shared dbconfig
	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, alerts.Schema); err != nil {
		fmt.Fprintf(os.Stderr, "ensure schema: %v\n", err)
		os.Exit(1)
	}

	// 3) Insert in one batch and count
	batch := buildBatch(list, *overwrite)
	results := pool.SendBatch(ctx, batch)

	var (
		total    = len(list)
		inserted int
		skipped  int
		errs     int
	)
	for _, a := range list {
		tag, err := results.Exec()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error inserting alert %s: %v\n", a.Key(), err)
			errs++
			continue
		}
		if tag.RowsAffected() == 1 {
			inserted++
		} else {
			skipped++
		}
	}
	if err := results.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "close batch: %v\n", err)
		os.Exit(1)
	}

	// 4) Print summary
	fmt.Printf(
		"Alerts import complete: %d total, %d inserted, %d skipped, %d errors\n",
		total, inserted, skipped, errs,
	)
}

func buildBatch(list []models.Alert, overwrite bool) *pgx.Batch {
	query := insertAlertSQL
	if overwrite {
		query = overwriteAlertSQL
	}

	batch := &pgx.Batch{}
	for _, a := range list {
		batch.Queue(query, a.RoomID, a.GameID, a.UserID, a.PlayerName, a.DelayMinutes(), a.CreatedAt.UTC())
	}
	return batch
}
