// Package wal implements the write-ahead log of SPEC_FULL §4.6: a 64-byte
// header followed by a sequential stream of length+CRC32C framed records,
// with an append/replay/flush/remove lifecycle and a per-record-count flush
// policy.
package wal

import (
	"encoding/binary"
	"hash/crc32"
	"io"
	"os"
	"sync"

	"github.com/zvecio/zvec/internal/zvecerr"
	"github.com/zvecio/zvec/pkg/observability"
)

const (
	headerSize    = 64
	headerVersion = uint64(0)
	maxRecordSize = 4 * 1024 * 1024 // 4 MiB, §3 "length ≤ 4 MiB"
)

var crcTable = crc32.MakeTable(crc32.Castagnoli)

// WAL is a crash-consistent, append-only record stream.
type WAL struct {
	mu           sync.Mutex
	file         *os.File
	path         string
	closed       bool
	docsCount    uint32
	maxDocsFlush uint32
	readOffset   int64
	log          *observability.Logger
}

// Open opens (or creates) the WAL file at path. When createNew is true, the
// file must not already exist; when false, it must already exist — either
// mismatch returns a StatusError (§4.6).
func Open(path string, createNew bool, maxDocsWALFlush uint32) (*WAL, error) {
	_, statErr := os.Stat(path)
	exists := statErr == nil
	if createNew && exists {
		return nil, zvecerr.New(zvecerr.StatusError, "wal: create_new requested but file already exists")
	}
	if !createNew && !exists {
		return nil, zvecerr.New(zvecerr.StatusError, "wal: file does not exist")
	}

	flags := os.O_RDWR
	if createNew {
		flags |= os.O_CREATE | os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, zvecerr.Wrap(zvecerr.ReadData, "wal: open failed", err)
	}

	w := &WAL{
		file:         f,
		path:         path,
		maxDocsFlush: maxDocsWALFlush,
		readOffset:   headerSize,
		log:          observability.GetGlobalLogger().WithField("component", "wal"),
	}

	if createNew {
		if err := w.writeHeader(); err != nil {
			f.Close()
			return nil, err
		}
	}

	return w, nil
}

func (w *WAL) writeHeader() error {
	buf := make([]byte, headerSize)
	binary.LittleEndian.PutUint64(buf[0:8], headerVersion)
	if _, err := w.file.WriteAt(buf, 0); err != nil {
		return zvecerr.Wrap(zvecerr.ReadData, "wal: write header failed", err)
	}
	return nil
}

// Append writes one framed record under the append mutex: [u32 length][u32
// crc32c][payload]. When a flush threshold is configured and reached, the
// file is flushed and the counter reset.
func (w *WAL) Append(payload []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return zvecerr.New(zvecerr.StatusError, "wal: append on closed file")
	}
	if len(payload) > maxRecordSize {
		return zvecerr.New(zvecerr.InvalidArgument, "wal: payload exceeds 4 MiB")
	}

	if _, err := w.file.Seek(0, io.SeekEnd); err != nil {
		return zvecerr.Wrap(zvecerr.ReadData, "wal: seek to end failed", err)
	}

	header := make([]byte, 8)
	binary.LittleEndian.PutUint32(header[0:4], uint32(len(payload)))
	binary.LittleEndian.PutUint32(header[4:8], crc32.Checksum(payload, crcTable))

	if _, err := w.file.Write(header); err != nil {
		return zvecerr.Wrap(zvecerr.ReadData, "wal: write frame header failed", err)
	}
	if len(payload) > 0 {
		if _, err := w.file.Write(payload); err != nil {
			return zvecerr.Wrap(zvecerr.ReadData, "wal: write payload failed", err)
		}
	}

	w.docsCount++
	if w.maxDocsFlush != 0 && w.docsCount >= w.maxDocsFlush {
		if err := w.flushLocked(); err != nil {
			return err
		}
		w.docsCount = 0
	}
	return nil
}

// Flush fsyncs the underlying file.
func (w *WAL) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked()
}

func (w *WAL) flushLocked() error {
	if w.closed {
		return zvecerr.New(zvecerr.StatusError, "wal: flush on closed file")
	}
	if err := w.file.Sync(); err != nil {
		return zvecerr.Wrap(zvecerr.ReadData, "wal: sync failed", err)
	}
	return nil
}

// PrepareForRead seeks to the start, validates the header version, and
// positions the read cursor at the first record.
func (w *WAL) PrepareForRead() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	buf := make([]byte, headerSize)
	if _, err := w.file.ReadAt(buf, 0); err != nil {
		return zvecerr.Wrap(zvecerr.InvalidFormat, "wal: read header failed", err)
	}
	version := binary.LittleEndian.Uint64(buf[0:8])
	if version != headerVersion {
		return zvecerr.New(zvecerr.InvalidFormat, "wal: unsupported header version")
	}
	w.readOffset = headerSize
	return nil
}

// Next returns the next record's payload, or "" at EOF or the first
// corrupt/implausible frame, per §4.6: corruption silently stops replay
// rather than erroring, after logging.
func (w *WAL) Next() string {
	w.mu.Lock()
	defer w.mu.Unlock()

	header := make([]byte, 8)
	n, err := w.file.ReadAt(header, w.readOffset)
	if err != nil || n < 8 {
		return ""
	}
	length := binary.LittleEndian.Uint32(header[0:4])
	crc := binary.LittleEndian.Uint32(header[4:8])

	if length == 0 || int(length) > maxRecordSize {
		w.log.Error("wal: implausible record length, stopping replay", map[string]interface{}{"length": length})
		return ""
	}

	payload := make([]byte, length)
	n, err = w.file.ReadAt(payload, w.readOffset+8)
	if err != nil || n != int(length) {
		w.log.Error("wal: short read, stopping replay", map[string]interface{}{"expected": length, "got": n})
		return ""
	}

	if crc32.Checksum(payload, crcTable) != crc {
		w.log.Error("wal: crc mismatch, stopping replay", nil)
		return ""
	}

	w.readOffset += 8 + int64(length)
	return string(payload)
}

// Close closes the underlying file handle.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.file.Close(); err != nil {
		return zvecerr.Wrap(zvecerr.ReadData, "wal: close failed", err)
	}
	return nil
}

// Remove closes the WAL (if still open) and deletes the on-disk file.
func (w *WAL) Remove() error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		w.file.Close()
	}
	w.mu.Unlock()

	if err := os.Remove(w.path); err != nil {
		return zvecerr.Wrap(zvecerr.ReadData, "wal: remove failed", err)
	}
	return nil
}
