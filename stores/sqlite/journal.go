package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"roomsync/core"
	"time"

	"github.com/sirupsen/logrus"
)

type journalStore struct {
	db *sql.DB
}

// NewJournal opens (or creates) the sqlite database at dataSourceName and
// prepares the changes table.
func NewJournal(dataSourceName string) (*journalStore, error) {
	db, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("open sqlite journal: %w", err)
	}
	// sqlite serializes writers anyway; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	changesTable := `CREATE TABLE IF NOT EXISTS changes (
		id TEXT PRIMARY KEY,
		room_id TEXT NOT NULL,
		version INTEGER NOT NULL,
		kind TEXT NOT NULL,
		data BLOB,
		created_at INTEGER NOT NULL
	);`
	if _, err = db.Exec(changesTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create changes table: %w", err)
	}

	roomIndex := `CREATE INDEX IF NOT EXISTS changes_room_version ON changes (room_id, version);`
	if _, err = db.Exec(roomIndex); err != nil {
		db.Close()
		return nil, fmt.Errorf("create changes index: %w", err)
	}

	return &journalStore{db}, nil
}

func (s *journalStore) Append(ctx context.Context, c core.Change) error {
	log := logrus.WithFields(logrus.Fields{
		"change_id":   c.ID,
		"room_id":     c.Room,
		"version":     c.Version,
		"data_length": len(c.Data),
	})

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO changes (id, room_id, version, kind, data, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		c.ID, c.Room, int64(c.Version), c.Kind, []byte(c.Data), c.At.UnixMilli())
	if err != nil {
		log.WithField("error", err).Error("Failed to journal change")
		return err
	}
	log.Debug("Change journaled")
	return nil
}

// History returns up to limit changes for a room, newest first.
func (s *journalStore) History(ctx context.Context, roomID string, limit int) ([]core.Change, error) {
	log := logrus.WithField("room_id", roomID)
	log.Debug("Listing room history")

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, room_id, version, kind, data, created_at FROM changes WHERE room_id = ? ORDER BY version DESC, id DESC LIMIT ?",
		roomID, limit)
	if err != nil {
		log.WithField("error", err).Error("Failed to list history")
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			log.WithError(cerr).Warn("Failed to close history rows")
		}
	}()

	var changes []core.Change
	for rows.Next() {
		var (
			c         core.Change
			version   int64
			data      []byte
			createdAt int64
		)
		if err := rows.Scan(&c.ID, &c.Room, &version, &c.Kind, &data, &createdAt); err != nil {
			log.WithField("error", err).Error("Failed to scan change")
			return nil, err
		}
		c.Version = uint64(version)
		c.Data = data
		c.At = time.UnixMilli(createdAt).UTC()
		changes = append(changes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	log.WithField("count", len(changes)).Debug("History listed")
	return changes, nil
}

func (s *journalStore) Close() error {
	return s.db.Close()
}
