package ivf

import "encoding/binary"

const listMetaRecordSize = 24 // 3×u32 + u64 + u32(pad)

// ListMeta is one inverted_meta record (§3 "Inverted list"): id_offset,
// vector_count, block_count, byte offset into inverted_body.
type ListMeta struct {
	IDOffset     uint32
	VectorCount  uint32
	BlockCount   uint32
	Offset       uint64
}

// MarshalListMetas serializes a slice of ListMeta in list-id order.
func MarshalListMetas(metas []ListMeta) []byte {
	buf := make([]byte, len(metas)*listMetaRecordSize)
	for i, m := range metas {
		b := buf[i*listMetaRecordSize:]
		binary.LittleEndian.PutUint32(b[0:4], m.IDOffset)
		binary.LittleEndian.PutUint32(b[4:8], m.VectorCount)
		binary.LittleEndian.PutUint32(b[8:12], m.BlockCount)
		binary.LittleEndian.PutUint32(b[12:16], 0) // padding to align the u64
		binary.LittleEndian.PutUint64(b[16:24], m.Offset)
	}
	return buf
}

// UnmarshalListMetas parses a buffer produced by MarshalListMetas.
func UnmarshalListMetas(buf []byte, count int) []ListMeta {
	metas := make([]ListMeta, count)
	for i := range metas {
		b := buf[i*listMetaRecordSize:]
		metas[i] = ListMeta{
			IDOffset:    binary.LittleEndian.Uint32(b[0:4]),
			VectorCount: binary.LittleEndian.Uint32(b[4:8]),
			BlockCount:  binary.LittleEndian.Uint32(b[8:12]),
			Offset:      binary.LittleEndian.Uint64(b[16:24]),
		}
	}
	return metas
}

// VecLocation is one offsets[] record (§3): maps a local id to its byte
// offset in inverted_body and whether that block is column-major.
type VecLocation struct {
	Offset      uint64
	ColumnMajor bool
}

const vecLocationRecordSize = 9

// MarshalVecLocations serializes locations in local-id order.
func MarshalVecLocations(locs []VecLocation) []byte {
	buf := make([]byte, len(locs)*vecLocationRecordSize)
	for i, l := range locs {
		b := buf[i*vecLocationRecordSize:]
		binary.LittleEndian.PutUint64(b[0:8], l.Offset)
		if l.ColumnMajor {
			b[8] = 1
		}
	}
	return buf
}

// UnmarshalVecLocations parses a buffer produced by MarshalVecLocations.
func UnmarshalVecLocations(buf []byte, count int) []VecLocation {
	locs := make([]VecLocation, count)
	for i := range locs {
		b := buf[i*vecLocationRecordSize:]
		locs[i] = VecLocation{
			Offset:      binary.LittleEndian.Uint64(b[0:8]),
			ColumnMajor: b[8] != 0,
		}
	}
	return locs
}
