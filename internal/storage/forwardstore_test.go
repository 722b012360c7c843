package storage

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/apache/arrow/go/v8/arrow/ipc"
	"github.com/bwmarrin/snowflake"
)

func newTestNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake.NewNode: %v", err)
	}
	return node
}

// TestMemForwardStoreProjection is scenario (F): fetch({USER_ID, id,
// LOCAL_ROW_ID, score}, [0,3,6,1,0]) returns a 5-row table whose
// LOCAL_ROW_ID column is {0,3,6,1,0} and whose id column mirrors the
// requested row order.
func TestMemForwardStoreProjection(t *testing.T) {
	node := newTestNode(t)
	s := NewMemForwardStore([]ColumnDef{
		{Name: "id", Type: TypeInt32},
		{Name: "name", Type: TypeString},
		{Name: "score", Type: TypeFloat64},
	}, 1<<30, node)

	names := []string{"alice", "bob", "carol", "dave", "erin", "frank", "grace"}
	for i, name := range names {
		if _, err := s.Insert(name, map[string]interface{}{
			"id":    int32(i),
			"name":  name,
			"score": float64(i) * 1.5,
		}); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	table, err := s.Fetch([]string{ColumnUserID, "id", ColumnLocalRowID, "score"}, []int{0, 3, 6, 1, 0})
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if !reflect.DeepEqual(table.Columns, []string{ColumnUserID, "id", ColumnLocalRowID, "score"}) {
		t.Fatalf("unexpected column order: %v", table.Columns)
	}
	if len(table.Rows) != 5 {
		t.Fatalf("expected 5 rows, got %d", len(table.Rows))
	}

	wantLocalRowID := []uint64{0, 3, 6, 1, 0}
	wantID := []int32{0, 3, 6, 1, 0}
	wantUser := []string{"alice", "dave", "grace", "bob", "alice"}
	for i, r := range table.Rows {
		if r[0] != wantUser[i] {
			t.Errorf("row %d USER_ID = %v, want %v", i, r[0], wantUser[i])
		}
		if r[1] != wantID[i] {
			t.Errorf("row %d id = %v, want %v", i, r[1], wantID[i])
		}
		if r[2] != wantLocalRowID[i] {
			t.Errorf("row %d LOCAL_ROW_ID = %v, want %v", i, r[2], wantLocalRowID[i])
		}
	}
}

func TestMemForwardStoreEmptyIndices(t *testing.T) {
	node := newTestNode(t)
	s := NewMemForwardStore([]ColumnDef{{Name: "id", Type: TypeInt32}}, 1<<30, node)
	table, err := s.Fetch([]string{"id", ColumnGlobalDocID}, nil)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if len(table.Rows) != 0 {
		t.Fatalf("expected 0 rows for empty indices, got %d", len(table.Rows))
	}
	if len(table.Columns) != 2 {
		t.Fatalf("expected schema-shaped (2-column) empty table, got %d columns", len(table.Columns))
	}
}

func TestMemForwardStoreFlushThreshold(t *testing.T) {
	node := newTestNode(t)
	s := NewMemForwardStore([]ColumnDef{{Name: "id", Type: TypeInt32}}, 32, node)

	for i := 0; i < 10; i++ {
		if _, err := s.Insert("user", map[string]interface{}{"id": int32(i)}); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	if s.rowCount() != 10 {
		t.Fatalf("expected all 10 rows visible post-flush, got %d", s.rowCount())
	}
	if len(s.batches) == 0 {
		t.Fatal("expected at least one flushed batch given the small threshold")
	}
}

// TestMemForwardStoreFlushPersistsToDisk exercises the real Arrow IPC
// write path: Open a file, push enough rows to cross one auto-flush plus a
// trailing partial batch, then Flush and confirm every row made it to disk
// through the IPC writer (not just into the in-memory batches slice).
func TestMemForwardStoreFlushPersistsToDisk(t *testing.T) {
	node := newTestNode(t)
	s := NewMemForwardStore([]ColumnDef{
		{Name: "id", Type: TypeInt32},
		{Name: "score", Type: TypeFloat32},
	}, 32, node)

	path := filepath.Join(t.TempDir(), "forward.arrow")
	if err := s.Open(path, FormatArrowIPC); err != nil {
		t.Fatalf("open: %v", err)
	}

	const n = 25
	for i := 0; i < n; i++ {
		if _, err := s.Insert("user", map[string]interface{}{
			"id":    int32(i),
			"score": float32(i) * 0.5,
		}); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	if err := s.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer f.Close()

	reader, err := ipc.NewFileReader(f)
	if err != nil {
		t.Fatalf("new ipc reader: %v", err)
	}
	defer reader.Close()

	var rows int64
	for i := 0; i < reader.NumRecords(); i++ {
		rec, err := reader.Record(i)
		if err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
		rows += rec.NumRows()
	}
	if rows != n {
		t.Fatalf("expected %d rows persisted to disk, got %d", n, rows)
	}
}

func TestMemForwardStoreUnknownColumn(t *testing.T) {
	node := newTestNode(t)
	s := NewMemForwardStore([]ColumnDef{{Name: "id", Type: TypeInt32}}, 1<<30, node)
	if _, err := s.Insert("user", map[string]interface{}{"id": int32(1)}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := s.Fetch([]string{"nope"}, []int{0}); err == nil {
		t.Fatal("expected error for unknown column")
	}
}
