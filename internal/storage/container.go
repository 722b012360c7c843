// Package storage implements the segmented blob container of SPEC_FULL §3/§6:
// a set of named, sized byte ranges ("segments") backing one on-disk IVF
// image, addressed by string id and read via pread-style offset reads.
package storage

import (
	"encoding/binary"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/zvecio/zvec/internal/zvecerr"
)

const (
	containerMagic   = uint32(0x7a766331) // "zvc1"
	directoryVersion = uint32(1)
)

// Segment is one named byte range of a container: { data_size(), read(off,
// out, size) -> bytes_read, clone() } per §6.
type Segment interface {
	DataSize() int64
	ReadAt(buf []byte, off int64) (int, error)
	Clone() Segment
}

type segmentEntry struct {
	name   string
	offset int64
	size   int64
}

// Container is a read-only view over a set of named segments backed by one
// file. Segments are addressed by string id (§6: IVF_INVERTED_HEADER_SEG_ID,
// IVF_KEYS_SEG_ID, …).
type Container struct {
	mu      sync.Mutex
	file    *os.File
	path    string
	entries map[string]segmentEntry
}

// Open reads a container's directory and prepares it for segment lookups.
func Open(path string) (*Container, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, zvecerr.Wrap(zvecerr.ReadData, "storage: open container failed", err)
	}

	c := &Container{file: f, path: path, entries: make(map[string]segmentEntry)}
	if err := c.readDirectory(); err != nil {
		f.Close()
		return nil, err
	}
	return c, nil
}

func (c *Container) readDirectory() error {
	var fixed [12]byte
	if _, err := c.file.ReadAt(fixed[:], 0); err != nil {
		return zvecerr.Wrap(zvecerr.InvalidFormat, "storage: read container header failed", err)
	}
	magic := binary.LittleEndian.Uint32(fixed[0:4])
	version := binary.LittleEndian.Uint32(fixed[4:8])
	count := binary.LittleEndian.Uint32(fixed[8:12])
	if magic != containerMagic {
		return zvecerr.New(zvecerr.InvalidFormat, "storage: bad container magic")
	}
	if version != directoryVersion {
		return zvecerr.New(zvecerr.InvalidFormat, "storage: unsupported container directory version")
	}

	off := int64(12)
	for i := uint32(0); i < count; i++ {
		var nameLen [2]byte
		if _, err := c.file.ReadAt(nameLen[:], off); err != nil {
			return zvecerr.Wrap(zvecerr.InvalidFormat, "storage: read segment name length failed", err)
		}
		nl := binary.LittleEndian.Uint16(nameLen[:])
		off += 2

		nameBuf := make([]byte, nl)
		if _, err := c.file.ReadAt(nameBuf, off); err != nil {
			return zvecerr.Wrap(zvecerr.InvalidFormat, "storage: read segment name failed", err)
		}
		off += int64(nl)

		var rest [16]byte
		if _, err := c.file.ReadAt(rest[:], off); err != nil {
			return zvecerr.Wrap(zvecerr.InvalidFormat, "storage: read segment entry failed", err)
		}
		off += 16

		entry := segmentEntry{
			name:   string(nameBuf),
			offset: int64(binary.LittleEndian.Uint64(rest[0:8])),
			size:   int64(binary.LittleEndian.Uint64(rest[8:16])),
		}
		c.entries[entry.name] = entry
	}
	return nil
}

// Segment returns the named segment, or NoExist if it was never written.
func (c *Container) Segment(name string) (Segment, error) {
	entry, ok := c.entries[name]
	if !ok {
		return nil, zvecerr.New(zvecerr.NoExist, "storage: segment not found: "+name)
	}
	return &fileSegment{container: c, entry: entry}, nil
}

// HasSegment reports whether the named segment is present.
func (c *Container) HasSegment(name string) bool {
	_, ok := c.entries[name]
	return ok
}

// Close releases the underlying file handle.
func (c *Container) Close() error {
	if err := c.file.Close(); err != nil {
		return zvecerr.Wrap(zvecerr.ReadData, "storage: close container failed", err)
	}
	return nil
}

// Clone reopens the container's backing file, giving the returned instance
// an independent file handle / read cursor for parallel readers (§4.3 clone).
func (c *Container) Clone() (*Container, error) {
	return Open(c.path)
}

type fileSegment struct {
	container *Container
	entry     segmentEntry
}

func (s *fileSegment) DataSize() int64 { return s.entry.size }

func (s *fileSegment) ReadAt(buf []byte, off int64) (int, error) {
	if off < 0 || off > s.entry.size {
		return 0, zvecerr.New(zvecerr.InvalidArgument, "storage: read offset out of range")
	}
	want := len(buf)
	if off+int64(want) > s.entry.size {
		want = int(s.entry.size - off)
	}
	s.container.mu.Lock()
	n, err := s.container.file.ReadAt(buf[:want], s.entry.offset+off)
	s.container.mu.Unlock()
	if err != nil && err != io.EOF {
		return n, zvecerr.Wrap(zvecerr.ReadData, "storage: segment read failed", err)
	}
	return n, nil
}

func (s *fileSegment) Clone() Segment {
	return &fileSegment{container: s.container, entry: s.entry}
}

// Writer builds a container by appending named segments sequentially, then
// emitting the directory on Close.
type Writer struct {
	file    *os.File
	path    string
	entries []segmentEntry
	cursor  int64
}

// Create opens path for writing a new container; the directory is written
// lazily by Close once every segment has been appended.
func Create(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, zvecerr.Wrap(zvecerr.ReadData, "storage: create container failed", err)
	}
	// Reserve space for the fixed header; the directory itself is appended
	// after the segment bodies since its size depends on the segment count.
	return &Writer{file: f, path: path, cursor: 0}, nil
}

// WriteSegment appends one named segment's bytes and records its placement.
func (w *Writer) WriteSegment(name string, data []byte) error {
	if _, err := w.file.WriteAt(data, headerReserve+w.cursor); err != nil {
		return zvecerr.Wrap(zvecerr.ReadData, "storage: write segment failed", err)
	}
	w.entries = append(w.entries, segmentEntry{name: name, offset: headerReserve + w.cursor, size: int64(len(data))})
	w.cursor += int64(len(data))
	return nil
}

const headerReserve = 12

// Close writes the segment directory immediately after the segment bodies
// and the fixed 12-byte header at offset 0, then syncs and closes the file.
func (w *Writer) Close() error {
	sort.Slice(w.entries, func(i, j int) bool { return w.entries[i].name < w.entries[j].name })

	dirOff := headerReserve + w.cursor
	buf := make([]byte, 0, 64)
	for _, e := range w.entries {
		nameBytes := []byte(e.name)
		rec := make([]byte, 2+len(nameBytes)+16)
		binary.LittleEndian.PutUint16(rec[0:2], uint16(len(nameBytes)))
		copy(rec[2:], nameBytes)
		binary.LittleEndian.PutUint64(rec[2+len(nameBytes):], uint64(e.offset))
		binary.LittleEndian.PutUint64(rec[2+len(nameBytes)+8:], uint64(e.size))
		buf = append(buf, rec...)
	}
	if _, err := w.file.WriteAt(buf, dirOff); err != nil {
		return zvecerr.Wrap(zvecerr.ReadData, "storage: write directory failed", err)
	}

	header := make([]byte, headerReserve)
	binary.LittleEndian.PutUint32(header[0:4], containerMagic)
	binary.LittleEndian.PutUint32(header[4:8], directoryVersion)
	binary.LittleEndian.PutUint32(header[8:12], uint32(len(w.entries)))
	if _, err := w.file.WriteAt(header, 0); err != nil {
		return zvecerr.Wrap(zvecerr.ReadData, "storage: write container header failed", err)
	}

	if err := w.file.Sync(); err != nil {
		return zvecerr.Wrap(zvecerr.ReadData, "storage: sync container failed", err)
	}
	return w.file.Close()
}
