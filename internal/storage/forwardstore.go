package storage

import (
	"os"
	"sync"

	"github.com/apache/arrow/go/v8/arrow"
	"github.com/apache/arrow/go/v8/arrow/array"
	"github.com/apache/arrow/go/v8/arrow/ipc"
	"github.com/apache/arrow/go/v8/arrow/memory"
	"github.com/bwmarrin/snowflake"

	"github.com/zvecio/zvec/internal/zvecerr"
)

// Reserved column names of §4.5: LOCAL_ROW_ID is synthesized from the
// requested indices rather than stored; USER_ID and GLOBAL_DOC_ID alias the
// schema's mandatory first two columns.
const (
	ColumnLocalRowID  = "LOCAL_ROW_ID"
	ColumnUserID      = "USER_ID"
	ColumnGlobalDocID = "GLOBAL_DOC_ID"

	columnDocID = "doc_id"
	columnPK    = "pk"
)

// ColumnType is the scalar type of one forward-store field.
type ColumnType int

const (
	TypeInt32 ColumnType = iota
	TypeInt64
	TypeUint64
	TypeFloat32
	TypeFloat64
	TypeString
)

// ColumnDef describes one schema column.
type ColumnDef struct {
	Name string
	Type ColumnType
}

// Schema is an ordered column list; by invariant its first two columns are
// always doc_id (u64) and pk (string).
type Schema struct {
	Columns []ColumnDef
}

func newSchema(scalarColumns []ColumnDef) Schema {
	cols := make([]ColumnDef, 0, len(scalarColumns)+2)
	cols = append(cols, ColumnDef{Name: columnDocID, Type: TypeUint64}, ColumnDef{Name: columnPK, Type: TypeString})
	cols = append(cols, scalarColumns...)
	return Schema{Columns: cols}
}

func (s Schema) indexOf(name string) int {
	for i, c := range s.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// FileFormat selects the on-disk container Open writes flushed batches to.
// memory_forward_store.cc only ever includes arrow/ipc/writer.h (no parquet
// header), so the file writer here speaks the Arrow IPC file format too.
type FileFormat int

const (
	FormatArrowIPC FileFormat = iota
)

func arrowType(t ColumnType) arrow.DataType {
	switch t {
	case TypeInt32:
		return arrow.PrimitiveTypes.Int32
	case TypeInt64:
		return arrow.PrimitiveTypes.Int64
	case TypeUint64:
		return arrow.PrimitiveTypes.Uint64
	case TypeFloat32:
		return arrow.PrimitiveTypes.Float32
	case TypeFloat64:
		return arrow.PrimitiveTypes.Float64
	default:
		return arrow.BinaryTypes.String
	}
}

// arrowSchema converts the scalar schema to Arrow fields, the Go analogue of
// ConvertCollectionSchemaToArrowFields feeding memory_forward_store.cc's Open.
func (s Schema) arrowSchema() *arrow.Schema {
	fields := make([]arrow.Field, len(s.Columns))
	for i, c := range s.Columns {
		fields[i] = arrow.Field{Name: c.Name, Type: arrowType(c.Type), Nullable: false}
	}
	return arrow.NewSchema(fields, nil)
}

type row struct {
	docID  uint64
	pk     string
	values []interface{} // aligned to schema.Columns[2:]
	nbytes int
}

// Table is the materialized result of Fetch/Scan: one column per requested
// name, in exactly the requested order (§4.5 invariant 3).
type Table struct {
	Columns []string
	Rows    [][]interface{}
}

// MemForwardStore buffers typed rows in memory until a byte threshold is
// exceeded, then merges them into an immutable batch, per §4.5.
type MemForwardStore struct {
	mu sync.Mutex

	schema       Schema
	flushBytes   int
	node         *snowflake.Node
	container    string
	maxBatchRows int
	pending      []row
	batches      [][]row
	totalCacheSz int

	// On-disk Arrow IPC file state, set by Open. flushedBatches mirrors
	// memory_forward_store.cc's flushed_batches_: the prefix of batches
	// already written to writer, so Flush never re-writes a batch.
	path           string
	format         FileFormat
	arrowSchema    *arrow.Schema
	mem            memory.Allocator
	file           *os.File
	writer         *ipc.FileWriter
	flushedBatches int
}

// NewMemForwardStore creates a store for scalarColumns (the forward store's
// declared attributes, excluding the mandatory doc_id/pk columns), flushing
// to an immutable batch once totalCacheBytes reaches or exceeds flushBytes.
func NewMemForwardStore(scalarColumns []ColumnDef, flushBytes int, node *snowflake.Node) *MemForwardStore {
	return &MemForwardStore{
		schema:       newSchema(scalarColumns),
		flushBytes:   flushBytes,
		node:         node,
		maxBatchRows: 65536, // kMaxRecordBatchNumRows
	}
}

// Schema returns the store's column schema.
func (s *MemForwardStore) Schema() Schema { return s.schema }

// Open creates the on-disk Arrow IPC file backing this store, the Go
// analogue of memory_forward_store.cc's Open(): convert the schema to Arrow
// fields once, then create the chunked file writer over path. Flush and
// Close write already-buffered batches through it.
func (s *MemForwardStore) Open(path string, format FileFormat) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Create(path)
	if err != nil {
		return zvecerr.Wrap(zvecerr.Runtime, "forwardstore: open "+path, err)
	}
	schema := s.schema.arrowSchema()
	mem := memory.NewGoAllocator()
	w, err := ipc.NewFileWriter(f, ipc.WithSchema(schema), ipc.WithAllocator(mem))
	if err != nil {
		f.Close()
		return zvecerr.Wrap(zvecerr.Runtime, "forwardstore: create ipc writer", err)
	}

	s.path = path
	s.format = format
	s.arrowSchema = schema
	s.mem = mem
	s.file = f
	s.writer = w
	s.flushedBatches = 0
	return nil
}

// Close flushes any remaining buffered rows to disk and finalizes the Arrow
// IPC file, mirroring memory_forward_store.cc's close().
func (s *MemForwardStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.flushLocked()
	writeErr := s.flushToDiskLocked()
	if s.writer == nil {
		return writeErr
	}

	closeErr := s.writer.Close()
	s.writer = nil
	if s.file != nil {
		s.file.Close()
		s.file = nil
	}
	if writeErr != nil {
		return writeErr
	}
	if closeErr != nil {
		return zvecerr.Wrap(zvecerr.Runtime, "forwardstore: close ipc writer", closeErr)
	}
	return nil
}

// Insert allocates a global doc_id via snowflake, appends one row under the
// cache mutex, and flushes when the byte threshold is reached or exceeded.
func (s *MemForwardStore) Insert(pk string, fields map[string]interface{}) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values := make([]interface{}, len(s.schema.Columns)-2)
	size := len(pk) + 8
	for i := 2; i < len(s.schema.Columns); i++ {
		col := s.schema.Columns[i]
		v, ok := fields[col.Name]
		if !ok {
			return 0, zvecerr.New(zvecerr.InvalidArgument, "forwardstore: missing field: "+col.Name)
		}
		values[i-2] = v
		size += scalarSize(col.Type, v)
	}

	docID := uint64(s.node.Generate().Int64())
	s.pending = append(s.pending, row{docID: docID, pk: pk, values: values, nbytes: size})
	s.totalCacheSz += size

	if s.totalCacheSz >= s.flushBytes {
		s.flushLocked()
	}
	return docID, nil
}

func scalarSize(t ColumnType, v interface{}) int {
	switch t {
	case TypeInt32, TypeFloat32:
		return 4
	case TypeInt64, TypeUint64, TypeFloat64:
		return 8
	case TypeString:
		if str, ok := v.(string); ok {
			return len(str)
		}
		return 0
	default:
		return 0
	}
}

// Flush merges the pending row buffer into one (or more, capped at
// maxBatchRows) immutable batch(es) per §4.5 invariant 1, then — if Open was
// called — writes every batch not yet on disk through the Arrow IPC writer,
// mirroring memory_forward_store.cc's flush(): cache-to-batch conversion
// followed by a merge-and-write pass over the unflushed batch suffix.
func (s *MemForwardStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushLocked()
	return s.flushToDiskLocked()
}

func (s *MemForwardStore) flushLocked() {
	if len(s.pending) == 0 {
		return
	}
	for len(s.pending) > 0 {
		n := s.maxBatchRows
		if n > len(s.pending) {
			n = len(s.pending)
		}
		s.batches = append(s.batches, append([]row(nil), s.pending[:n]...))
		s.pending = s.pending[n:]
	}
	s.pending = nil
	s.totalCacheSz = 0
}

// flushToDiskLocked writes every batch in s.batches[s.flushedBatches:] to the
// IPC writer, merging consecutive small batches up to maxBatchRows per write
// the same way flush()'s batches_to_merge loop does before handing a chunk
// to its ChunkedFileWriter. A no-op when Open was never called.
func (s *MemForwardStore) flushToDiskLocked() error {
	if s.writer == nil {
		return nil
	}
	start := s.flushedBatches
	for start < len(s.batches) {
		var merge []row
		end := start
		for end < len(s.batches) {
			cur := s.batches[end]
			if len(merge) > 0 && len(merge)+len(cur) > s.maxBatchRows {
				break
			}
			merge = append(merge, cur...)
			end++
			if len(cur) >= s.maxBatchRows {
				break
			}
		}
		if len(merge) == 0 {
			break
		}
		rec, err := s.buildRecord(merge)
		if err != nil {
			return err
		}
		err = s.writer.Write(rec)
		rec.Release()
		if err != nil {
			return zvecerr.Wrap(zvecerr.Runtime, "forwardstore: write record batch", err)
		}
		s.flushedBatches = end
		start = end
	}
	return nil
}

// buildRecord converts rows to an Arrow record via a RecordBuilder, the Go
// analogue of createBuilder/convertToBuilder: field 0 is doc_id, field 1 is
// pk, and the remaining fields follow schema order.
func (s *MemForwardStore) buildRecord(rows []row) (arrow.Record, error) {
	bldr := array.NewRecordBuilder(s.mem, s.arrowSchema)
	defer bldr.Release()

	for _, r := range rows {
		bldr.Field(0).(*array.Uint64Builder).Append(r.docID)
		bldr.Field(1).(*array.StringBuilder).Append(r.pk)
		for i := 2; i < len(s.schema.Columns); i++ {
			if err := appendScalar(bldr.Field(i), s.schema.Columns[i].Type, r.values[i-2]); err != nil {
				return nil, err
			}
		}
	}
	return bldr.NewRecord(), nil
}

func appendScalar(b array.Builder, t ColumnType, v interface{}) error {
	switch t {
	case TypeInt32:
		vv, ok := v.(int32)
		if !ok {
			return zvecerr.New(zvecerr.InvalidArgument, "forwardstore: expected int32 field value")
		}
		b.(*array.Int32Builder).Append(vv)
	case TypeInt64:
		vv, ok := v.(int64)
		if !ok {
			return zvecerr.New(zvecerr.InvalidArgument, "forwardstore: expected int64 field value")
		}
		b.(*array.Int64Builder).Append(vv)
	case TypeUint64:
		vv, ok := v.(uint64)
		if !ok {
			return zvecerr.New(zvecerr.InvalidArgument, "forwardstore: expected uint64 field value")
		}
		b.(*array.Uint64Builder).Append(vv)
	case TypeFloat32:
		vv, ok := v.(float32)
		if !ok {
			return zvecerr.New(zvecerr.InvalidArgument, "forwardstore: expected float32 field value")
		}
		b.(*array.Float32Builder).Append(vv)
	case TypeFloat64:
		vv, ok := v.(float64)
		if !ok {
			return zvecerr.New(zvecerr.InvalidArgument, "forwardstore: expected float64 field value")
		}
		b.(*array.Float64Builder).Append(vv)
	case TypeString:
		vv, ok := v.(string)
		if !ok {
			return zvecerr.New(zvecerr.InvalidArgument, "forwardstore: expected string field value")
		}
		b.(*array.StringBuilder).Append(vv)
	default:
		return zvecerr.New(zvecerr.Unsupported, "forwardstore: unsupported column type")
	}
	return nil
}

// rowAt returns the row at global index i across flushed batches followed by
// the live pending buffer, or ok=false if out of range.
func (s *MemForwardStore) rowAt(i int) (row, bool) {
	if i < 0 {
		return row{}, false
	}
	for _, b := range s.batches {
		if i < len(b) {
			return b[i], true
		}
		i -= len(b)
	}
	if i < len(s.pending) {
		return s.pending[i], true
	}
	return row{}, false
}

func (s *MemForwardStore) rowCount() int {
	n := len(s.pending)
	for _, b := range s.batches {
		n += len(b)
	}
	return n
}

// Fetch projects columns over the rows at indices, preserving both the
// requested column order and the requested index order (§4.5 invariant 3).
// An empty indices slice returns an empty-but-schema-shaped table.
func (s *MemForwardStore) Fetch(columns []string, indices []int) (*Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &Table{Columns: append([]string(nil), columns...)}
	if len(indices) == 0 {
		return t, nil
	}

	t.Rows = make([][]interface{}, len(indices))
	for ri, idx := range indices {
		r, ok := s.rowAt(idx)
		if !ok {
			return nil, zvecerr.New(zvecerr.InvalidArgument, "forwardstore: row index out of range")
		}
		out := make([]interface{}, len(columns))
		for ci, col := range columns {
			switch col {
			case ColumnLocalRowID:
				out[ci] = uint64(idx)
			case ColumnUserID:
				out[ci] = r.pk
			case ColumnGlobalDocID:
				out[ci] = r.docID
			default:
				schemaIdx := s.schema.indexOf(col)
				if schemaIdx < 0 {
					return nil, zvecerr.New(zvecerr.InvalidArgument, "forwardstore: unknown column: "+col)
				}
				if schemaIdx == 0 {
					out[ci] = r.docID
				} else if schemaIdx == 1 {
					out[ci] = r.pk
				} else {
					out[ci] = r.values[schemaIdx-2]
				}
			}
		}
		t.Rows[ri] = out
	}
	return t, nil
}

// FetchRow projects columns for a single row, returning scalars directly.
func (s *MemForwardStore) FetchRow(columns []string, i int) ([]interface{}, error) {
	t, err := s.Fetch(columns, []int{i})
	if err != nil {
		return nil, err
	}
	return t.Rows[0], nil
}

// Scan returns all rows projected onto columns, in physical row order.
func (s *MemForwardStore) Scan(columns []string) (*Table, error) {
	s.mu.Lock()
	n := s.rowCount()
	s.mu.Unlock()

	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	return s.Fetch(columns, indices)
}
