package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// one row per collection, replaced on every successful run
const Schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	collection_id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	captured_at INTEGER NOT NULL,
	item_count INTEGER NOT NULL,
	items TEXT NOT NULL
);
`

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) (*Store, error) {
	_, err := db.Exec(Schema)
	if err != nil {
		return nil, fmt.Errorf("ensure snapshot schema: %w", err)
	}
	return &Store{db: db}, nil
}

func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	return NewStore(db)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Load returns the previous capture for a collection, or nil when
// none has been persisted yet (the first-run case).
func (s *Store) Load(ctx context.Context, collectionID string) (*Snapshot, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT name, captured_at, items FROM snapshots WHERE collection_id = ?`,
		collectionID,
	)

	var name string
	var capturedAt int64
	var itemsJson string
	err := row.Scan(&name, &capturedAt, &itemsJson)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var items []Item
	err = json.Unmarshal([]byte(itemsJson), &items)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot items: %w", err)
	}

	return &Snapshot{
		CollectionID: collectionID,
		Name:         name,
		CapturedAt:   capturedAt,
		Items:        items,
	}, nil
}

// Save replaces the persisted capture for the snapshot's collection.
func (s *Store) Save(ctx context.Context, snap Snapshot) error {
	itemsJson, err := json.Marshal(snap.Items)
	if err != nil {
		return fmt.Errorf("encode snapshot items: %w", err)
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO snapshots (collection_id, name, captured_at, item_count, items)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (collection_id) DO UPDATE SET
			name = excluded.name,
			captured_at = excluded.captured_at,
			item_count = excluded.item_count,
			items = excluded.items`,
		snap.CollectionID,
		snap.Name,
		snap.CapturedAt,
		len(snap.Items),
		string(itemsJson),
	)
	return err
}
