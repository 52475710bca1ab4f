package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"roomsync/core"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
)

func setupTestDB(t *testing.T) *journalStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := NewJournal(dbPath)
	if err != nil {
		t.Fatalf("NewJournal() failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testChange(room string, version uint64, data string) core.Change {
	kind := core.ChangeCommit
	if version == 1 {
		kind = core.ChangeCreate
	}
	return core.Change{
		ID:      ulid.Make().String(),
		Room:    room,
		Version: version,
		Kind:    kind,
		Data:    json.RawMessage(data),
		At:      time.Now().UTC(),
	}
}

func TestNewJournal(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := NewJournal(dbPath)
	if err != nil {
		t.Fatalf("NewJournal() failed: %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("NewJournal() did not create database file")
	}
}

func TestNewJournal_TableCreated(t *testing.T) {
	store := setupTestDB(t)

	var tableName string
	err := store.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='changes'").Scan(&tableName)
	if err != nil {
		t.Fatalf("changes table not created: %v", err)
	}
}

func TestAppend_Success(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	c := testChange("apple.pear", 1, `{"x":1}`)
	if err := store.Append(ctx, c); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}

	var (
		room    string
		version int64
		data    []byte
	)
	err := store.db.QueryRow("SELECT room_id, version, data FROM changes WHERE id = ?", c.ID).Scan(&room, &version, &data)
	if err != nil {
		t.Fatalf("Failed to query change: %v", err)
	}
	if room != "apple.pear" || version != 1 || string(data) != `{"x":1}` {
		t.Errorf("stored change = (%s, %d, %s)", room, version, data)
	}
}

func TestAppend_DuplicateID(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	c := testChange("apple.pear", 1, `1`)
	if err := store.Append(ctx, c); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}
	if err := store.Append(ctx, c); err == nil {
		t.Error("Append() should fail for a duplicate change id")
	}
}

func TestHistory_NewestFirst(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	for v := uint64(1); v <= 5; v++ {
		if err := store.Append(ctx, testChange("apple.pear", v, fmt.Sprintf(`{"v":%d}`, v))); err != nil {
			t.Fatalf("Append(%d) failed: %v", v, err)
		}
	}

	changes, err := store.History(ctx, "apple.pear", 3)
	if err != nil {
		t.Fatalf("History() failed: %v", err)
	}
	if len(changes) != 3 {
		t.Fatalf("History() returned %d changes, want 3", len(changes))
	}
	for i, want := range []uint64{5, 4, 3} {
		if changes[i].Version != want {
			t.Errorf("changes[%d].Version = %d, want %d", i, changes[i].Version, want)
		}
	}
	if string(changes[0].Data) != `{"v":5}` {
		t.Errorf("changes[0].Data = %s", changes[0].Data)
	}
	if changes[len(changes)-1].Kind != core.ChangeCommit {
		t.Errorf("kind = %q, want commit", changes[len(changes)-1].Kind)
	}
}

func TestHistory_OrderedByVersion(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	// Ids sort opposite to versions; history must follow versions.
	v3 := testChange("apple.pear", 3, `3`)
	v3.ID = "01A"
	v2 := testChange("apple.pear", 2, `2`)
	v2.ID = "01B"
	for _, c := range []core.Change{v3, v2} {
		if err := store.Append(ctx, c); err != nil {
			t.Fatalf("Append(%d) failed: %v", c.Version, err)
		}
	}

	changes, err := store.History(ctx, "apple.pear", 10)
	if err != nil {
		t.Fatalf("History() failed: %v", err)
	}
	if len(changes) != 2 || changes[0].Version != 3 || changes[1].Version != 2 {
		t.Errorf("History() versions = %v, want [3 2]", changeVersions(changes))
	}
}

func changeVersions(changes []core.Change) []uint64 {
	out := make([]uint64, 0, len(changes))
	for _, c := range changes {
		out = append(out, c.Version)
	}
	return out
}

func TestHistory_EmptyRoom(t *testing.T) {
	store := setupTestDB(t)

	changes, err := store.History(context.Background(), "nope.nope", 10)
	if err != nil {
		t.Fatalf("History() failed: %v", err)
	}
	if len(changes) != 0 {
		t.Errorf("History() returned %d changes for unknown room", len(changes))
	}
}

func TestHistory_MultipleRooms(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	store.Append(ctx, testChange("apple.pear", 1, `1`))
	store.Append(ctx, testChange("fig.lime", 1, `1`))
	store.Append(ctx, testChange("fig.lime", 2, `2`))

	apple, _ := store.History(ctx, "apple.pear", 10)
	fig, _ := store.History(ctx, "fig.lime", 10)
	if len(apple) != 1 || len(fig) != 2 {
		t.Errorf("history sizes = %d, %d; want 1, 2", len(apple), len(fig))
	}
}

func TestHistory_PreservesTimestamp(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	c := testChange("apple.pear", 1, `1`)
	store.Append(ctx, c)

	changes, _ := store.History(ctx, "apple.pear", 1)
	if len(changes) != 1 {
		t.Fatalf("History() returned %d changes", len(changes))
	}
	if got, want := changes[0].At.UnixMilli(), c.At.UnixMilli(); got != want {
		t.Errorf("At = %d, want %d", got, want)
	}
}

func TestDataIntegrity(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	testCases := []struct {
		name string
		data string
	}{
		{"Object", `{"elements":[],"appState":{}}`},
		{"UTF-8", `"Hello 世界 🌍"`},
		{"Null", `null`},
		{"Array", `[1,2,3]`},
		{"Escapes", `"line1\nline2\t\"quoted\""`},
	}

	for i, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			room := fmt.Sprintf("room.%d", i)
			if err := store.Append(ctx, testChange(room, 1, tc.data)); err != nil {
				t.Fatalf("Append() failed: %v", err)
			}
			changes, err := store.History(ctx, room, 1)
			if err != nil || len(changes) != 1 {
				t.Fatalf("History() = %d changes, %v", len(changes), err)
			}
			if string(changes[0].Data) != tc.data {
				t.Errorf("Data integrity failed: got %s, want %s", changes[0].Data, tc.data)
			}
		})
	}
}

func TestDatabasePersistence(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "persist.db")
	ctx := context.Background()

	store1, err := NewJournal(dbPath)
	if err != nil {
		t.Fatalf("NewJournal() failed: %v", err)
	}
	if err := store1.Append(ctx, testChange("apple.pear", 1, `"kept"`)); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}
	store1.Close()

	store2, err := NewJournal(dbPath)
	if err != nil {
		t.Fatalf("NewJournal() failed on reopen: %v", err)
	}
	defer store2.Close()

	changes, err := store2.History(ctx, "apple.pear", 10)
	if err != nil || len(changes) != 1 {
		t.Fatalf("History() after reopen = %d changes, %v", len(changes), err)
	}
}

func TestSQLInjection(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	maliciousIDs := []string{
		"'; DROP TABLE changes; --",
		"' OR '1'='1",
		"1' UNION SELECT * FROM changes--",
	}

	store.Append(ctx, testChange("apple.pear", 1, `1`))
	for _, id := range maliciousIDs {
		changes, err := store.History(ctx, id, 10)
		if err != nil {
			t.Errorf("History() failed for %q: %v", id, err)
		}
		if len(changes) != 0 {
			t.Errorf("History(%q) returned %d changes", id, len(changes))
		}
	}

	var tableName string
	err := store.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='changes'").Scan(&tableName)
	if err == sql.ErrNoRows {
		t.Fatal("changes table was dropped - SQL injection vulnerability!")
	}
}

func TestImplementsHistoryReader(t *testing.T) {
	var _ core.Journal = (*journalStore)(nil)
	var _ core.HistoryReader = (*journalStore)(nil)
}
