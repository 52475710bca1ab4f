package filesystem

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"roomsync/core"
	"sync"

	"github.com/sirupsen/logrus"
)

const fileSuffix = ".ndjson"

// fsJournal keeps one newline-delimited JSON file per room under basePath.
type fsJournal struct {
	mu       sync.Mutex
	basePath string
}

func NewJournal(basePath string) (*fsJournal, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}
	return &fsJournal{basePath: basePath}, nil
}

func (s *fsJournal) roomPath(roomID string) (string, error) {
	if roomID == "" || roomID == "." || roomID == ".." || filepath.Base(roomID) != roomID {
		return "", fmt.Errorf("%w: %q", core.ErrInvalidRoomID, roomID)
	}
	return filepath.Join(s.basePath, roomID+fileSuffix), nil
}

func (s *fsJournal) Append(ctx context.Context, c core.Change) error {
	filePath, err := s.roomPath(c.Room)
	if err != nil {
		return err
	}
	log := logrus.WithFields(logrus.Fields{
		"room_id":   c.Room,
		"version":   c.Version,
		"file_path": filePath,
	})

	line, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode change: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		log.WithError(err).Error("Failed to open journal file")
		return err
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		log.WithError(err).Error("Failed to write journal file")
		return err
	}
	log.Debug("Change journaled")
	return f.Close()
}

// History reads the room's file and returns the last limit changes, newest first.
func (s *fsJournal) History(ctx context.Context, roomID string, limit int) ([]core.Change, error) {
	filePath, err := s.roomPath(roomID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(filePath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var changes []core.Change
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		var c core.Change
		if err := json.Unmarshal(scanner.Bytes(), &c); err != nil {
			logrus.WithField("file_path", filePath).WithError(err).Warn("Skipping corrupt journal line")
			continue
		}
		changes = append(changes, c)
		if limit > 0 && len(changes) > limit {
			changes = changes[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(changes)-1; i < j; i, j = i+1, j-1 {
		changes[i], changes[j] = changes[j], changes[i]
	}
	return changes, nil
}

func (s *fsJournal) Close() error {
	return nil
}
