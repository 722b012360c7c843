package ivf

import (
	"github.com/zvecio/zvec/internal/storage"
	"github.com/zvecio/zvec/internal/zvecerr"
)

// Record is one (key, vector) pair already assigned to an inverted list by
// an external centroid assignment step (§2: "IVF entity builder" consumes
// centroid assignments produced upstream of this package).
type Record struct {
	Key    uint64
	Vector []float32
}

// BuildInput is everything Builder needs to emit one on-disk IVF image.
// Builder currently emits FP32-element images only; see DESIGN.md for why
// INT8/INT4-element build paths are out of scope for the builder (the
// reformer and searcher still read all three element types written by
// other producers).
type BuildInput struct {
	Meta             IndexMeta
	BlockVectorCount int
	Lists            [][]Record // Lists[listID] = assigned records, any order
	WithFeatures     bool       // also emit a dense features segment for exact rescoring
}

// Build assembles the header/body/meta/keys/offsets/mapping(/features)
// segments described in §6 and writes them to path via storage.Writer.
func Build(path string, in BuildInput) error {
	if in.BlockVectorCount <= 0 || in.BlockVectorCount >= 64 {
		return zvecerr.New(zvecerr.InvalidArgument, "ivf: block_vector_count must be in (0,64), see §9 keeps-mask note")
	}
	if in.Meta.Element != ElementFP32 {
		return zvecerr.New(zvecerr.Unsupported, "ivf: builder only supports fp32 element images")
	}

	elemSize := in.Meta.Element.Size(in.Meta.Dim)
	blockBytes := elemSize * in.BlockVectorCount

	var body []byte
	var keys []uint64
	var vectors [][]float32 // per local id, padding slots included
	var offsets []VecLocation
	var listMetas []ListMeta
	var nextID uint32

	for _, recs := range in.Lists {
		idOffset := nextID
		blockCount := (len(recs) + in.BlockVectorCount - 1) / in.BlockVectorCount
		if blockCount == 0 {
			blockCount = 0
		}
		listOffset := uint64(len(body))

		for b := 0; b < blockCount; b++ {
			start := b * in.BlockVectorCount
			blockRecs := make([]Record, in.BlockVectorCount)
			for i := 0; i < in.BlockVectorCount; i++ {
				if start+i < len(recs) {
					blockRecs[i] = recs[start+i]
				} else {
					blockRecs[i] = Record{Key: InvalidKey, Vector: make([]float32, in.Meta.Dim)}
				}
			}

			// column-major: for each coordinate, blockVectorCount elements contiguous
			colMajor := make([]float32, in.Meta.Dim*in.BlockVectorCount)
			for c := 0; c < in.Meta.Dim; c++ {
				for i := 0; i < in.BlockVectorCount; i++ {
					colMajor[c*in.BlockVectorCount+i] = blockRecs[i].Vector[c]
				}
			}
			blockOffset := uint64(len(body))
			body = append(body, encodeFloat32Array(colMajor)...)

			for i, r := range blockRecs {
				keys = append(keys, r.Key)
				vectors = append(vectors, r.Vector)
				// byte offset of this record's first coordinate within the block
				recOffset := blockOffset + uint64(i)*uint64(unitSize(in.Meta.Element))
				offsets = append(offsets, VecLocation{Offset: recOffset, ColumnMajor: true})
				nextID++
			}
		}

		listMetas = append(listMetas, ListMeta{
			IDOffset:    idOffset,
			VectorCount: uint32(len(recs)),
			BlockCount:  uint32(blockCount),
			Offset:      listOffset,
		})
	}

	mapping := sortedKeyMapping(keys)

	header := Header{
		InvertedListCount: uint32(len(listMetas)),
		BlockCount:        sumBlockCounts(listMetas),
		BlockVectorCount:  uint32(in.BlockVectorCount),
		BlockSize:         uint32(blockBytes),
		TotalVectorCount:  uint32(len(keys)),
		InvertedBodySize:  uint64(len(body)),
	}
	metaBytes := in.Meta.Marshal()
	header.IndexMetaSize = uint32(len(metaBytes))
	header.HeaderSize = fixedHeaderSize + header.IndexMetaSize
	headerBytes := header.Marshal(metaBytes)

	w, err := storage.Create(path)
	if err != nil {
		return err
	}
	if err := w.WriteSegment(SegInvertedHeader, headerBytes); err != nil {
		return err
	}
	if err := w.WriteSegment(SegInvertedBody, body); err != nil {
		return err
	}
	if err := w.WriteSegment(SegInvertedMeta, MarshalListMetas(listMetas)); err != nil {
		return err
	}
	if err := w.WriteSegment(SegKeys, encodeUint64Array(keys)); err != nil {
		return err
	}
	if err := w.WriteSegment(SegOffsets, MarshalVecLocations(offsets)); err != nil {
		return err
	}
	if err := w.WriteSegment(SegMapping, encodeUint32Array(mapping)); err != nil {
		return err
	}
	if in.WithFeatures {
		features := make([]byte, 0, len(keys)*elemSize)
		for _, v := range vectors {
			features = append(features, encodeFloat32Array(v)...)
		}
		if err := w.WriteSegment(SegFeatures, features); err != nil {
			return err
		}
	}
	return w.Close()
}

func sumBlockCounts(metas []ListMeta) uint32 {
	var n uint32
	for _, m := range metas {
		n += m.BlockCount
	}
	return n
}

func sortedKeyMapping(keys []uint64) []uint32 {
	mapping := make([]uint32, len(keys))
	for i := range mapping {
		mapping[i] = uint32(i)
	}
	sortUint32ByKey(mapping, keys)
	return mapping
}

func sortUint32ByKey(mapping []uint32, keys []uint64) {
	// insertion sort is adequate here: mapping arrays are built once at
	// index-build time, not on the search hot path.
	for i := 1; i < len(mapping); i++ {
		j := i
		for j > 0 && keys[mapping[j-1]] > keys[mapping[j]] {
			mapping[j-1], mapping[j] = mapping[j], mapping[j-1]
			j--
		}
	}
}
