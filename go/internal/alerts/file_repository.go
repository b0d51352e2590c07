package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/miou/go/internal/models"
)

const fileFormatVersion = 1

type alertFile struct {
	Version int            `json:"version"`
	Alerts  []models.Alert `json:"alerts"`
}

// FileRepository keeps all alerts in a single JSON file that is rewritten
// atomically (write temp file, fsync, rename) on every mutation.
type FileRepository struct {
	path string

	mu      sync.Mutex
	records map[models.AlertKey]models.Alert
}

func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path:    path,
		records: make(map[models.AlertKey]models.Alert),
	}
}

// LoadAll reads the file. A missing file is an empty store; an unreadable or
// corrupt file is an error so that state is never silently dropped.
func (r *FileRepository) LoadAll(ctx context.Context) ([]models.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Warn().Str("path", r.path).Msg("no persisted alerts found, starting with an empty store")
		r.records = make(map[models.AlertKey]models.Alert)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read alerts file: %w", err)
	}

	var file alertFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse alerts file %s: %w", r.path, err)
	}
	if file.Version != fileFormatVersion {
		return nil, fmt.Errorf("unsupported alerts file version %d", file.Version)
	}

	records := make(map[models.AlertKey]models.Alert, len(file.Alerts))
	for _, a := range file.Alerts {
		records[a.Key()] = a
	}
	r.records = records

	log.Info().Str("path", r.path).Int("alerts", len(records)).Msg("loaded persisted alerts")
	return sortedAlerts(records), nil
}

func (r *FileRepository) Upsert(ctx context.Context, alert models.Alert) error {
	return r.mutate(func(records map[models.AlertKey]models.Alert) {
		records[alert.Key()] = alert
	})
}

func (r *FileRepository) Delete(ctx context.Context, key models.AlertKey) error {
	return r.mutate(func(records map[models.AlertKey]models.Alert) {
		delete(records, key)
	})
}

func (r *FileRepository) DeleteGame(ctx context.Context, gameID string) error {
	return r.mutate(func(records map[models.AlertKey]models.Alert) {
		for key := range records {
			if key.GameID == gameID {
				delete(records, key)
			}
		}
	})
}

// mutate applies fn to a copy of the records and only keeps the copy once it
// is on disk.
func (r *FileRepository) mutate(fn func(map[models.AlertKey]models.Alert)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := make(map[models.AlertKey]models.Alert, len(r.records)+1)
	for k, v := range r.records {
		next[k] = v
	}
	fn(next)

	if err := r.write(next); err != nil {
		return err
	}
	r.records = next
	return nil
}

func (r *FileRepository) write(records map[models.AlertKey]models.Alert) error {
	data, err := json.MarshalIndent(alertFile{
		Version: fileFormatVersion,
		Alerts:  sortedAlerts(records),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize alerts: %w", err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create alerts directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".alerts-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("failed to write alerts: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("failed to sync alerts: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		cleanup()
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		cleanup()
		return fmt.Errorf("failed to replace alerts file: %w", err)
	}

	// Make the rename itself durable. Not every platform supports syncing a
	// directory, so failures are only logged.
	if d, err := os.Open(dir); err == nil {
		if err := d.Sync(); err != nil {
			log.Debug().Err(err).Str("dir", dir).Msg("directory sync not supported")
		}
		d.Close()
	}

	return nil
}

func sortedAlerts(records map[models.AlertKey]models.Alert) []models.Alert {
	out := make([]models.Alert, 0, len(records))
	for _, a := range records {
		out = append(out, a)
	}
	sortByGameThenRoom(out)
	return out
}

func sortByGameThenRoom(alerts []models.Alert) {
	sort.Slice(alerts, func(i, j int) bool {
		if alerts[i].GameID != alerts[j].GameID {
			return alerts[i].GameID < alerts[j].GameID
		}
		return alerts[i].RoomID < alerts[j].RoomID
	})
}
