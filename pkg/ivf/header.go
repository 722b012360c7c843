package ivf

import (
	"encoding/binary"

	"github.com/zvecio/zvec/internal/zvecerr"
)

// Segment ids of the on-disk IVF image (§6).
const (
	SegInvertedHeader  = "IVF_INVERTED_HEADER_SEG_ID"
	SegInvertedBody    = "IVF_INVERTED_BODY_SEG_ID"
	SegInvertedMeta    = "IVF_INVERTED_META_SEG_ID"
	SegKeys            = "IVF_KEYS_SEG_ID"
	SegOffsets         = "IVF_OFFSETS_SEG_ID"
	SegMapping         = "IVF_MAPPING_SEG_ID"
	SegInt8QuantParams = "IVF_INT8_QUANTIZED_PARAMS_SEG_ID"
	SegInt4QuantParams = "IVF_INT4_QUANTIZED_PARAMS_SEG_ID"
	SegFeatures        = "IVF_FEATURES_SEG_ID"
)

// InvalidKey marks a deleted or padding vector slot (§3).
const InvalidKey = ^uint64(0)

const fixedHeaderSize = 36 // 7×u32 + u64

// Header is the fixed-size prefix of the inverted_header segment (§6),
// immediately followed by IndexMetaSize bytes of serialized IndexMeta.
type Header struct {
	HeaderSize        uint32 // sizeof(Header) + IndexMetaSize
	IndexMetaSize     uint32
	InvertedListCount uint32
	BlockCount        uint32
	BlockVectorCount  uint32
	BlockSize         uint32 // bytes
	TotalVectorCount  uint32
	InvertedBodySize  uint64
}

// Marshal serializes h followed by the encoded meta bytes, matching
// HeaderSize = fixedHeaderSize + len(metaBytes).
func (h Header) Marshal(metaBytes []byte) []byte {
	buf := make([]byte, fixedHeaderSize+len(metaBytes))
	binary.LittleEndian.PutUint32(buf[0:4], h.HeaderSize)
	binary.LittleEndian.PutUint32(buf[4:8], h.IndexMetaSize)
	binary.LittleEndian.PutUint32(buf[8:12], h.InvertedListCount)
	binary.LittleEndian.PutUint32(buf[12:16], h.BlockCount)
	binary.LittleEndian.PutUint32(buf[16:20], h.BlockVectorCount)
	binary.LittleEndian.PutUint32(buf[20:24], h.BlockSize)
	binary.LittleEndian.PutUint32(buf[24:28], h.TotalVectorCount)
	binary.LittleEndian.PutUint64(buf[28:36], h.InvertedBodySize)
	copy(buf[36:], metaBytes)
	return buf
}

// UnmarshalHeader parses the fixed header and returns it along with the
// trailing meta bytes slice (validated to match IndexMetaSize).
func UnmarshalHeader(buf []byte) (Header, []byte, error) {
	var h Header
	if len(buf) < fixedHeaderSize {
		return h, nil, zvecerr.New(zvecerr.InvalidFormat, "ivf: header segment too short")
	}
	h.HeaderSize = binary.LittleEndian.Uint32(buf[0:4])
	h.IndexMetaSize = binary.LittleEndian.Uint32(buf[4:8])
	h.InvertedListCount = binary.LittleEndian.Uint32(buf[8:12])
	h.BlockCount = binary.LittleEndian.Uint32(buf[12:16])
	h.BlockVectorCount = binary.LittleEndian.Uint32(buf[16:20])
	h.BlockSize = binary.LittleEndian.Uint32(buf[20:24])
	h.TotalVectorCount = binary.LittleEndian.Uint32(buf[24:28])
	h.InvertedBodySize = binary.LittleEndian.Uint64(buf[28:36])

	if h.HeaderSize != fixedHeaderSize+h.IndexMetaSize {
		return h, nil, zvecerr.New(zvecerr.InvalidFormat, "ivf: header_size does not match index_meta_size")
	}
	if uint32(len(buf)) < h.HeaderSize {
		return h, nil, zvecerr.New(zvecerr.InvalidFormat, "ivf: header segment shorter than declared header_size")
	}
	return h, buf[fixedHeaderSize:h.HeaderSize], nil
}
