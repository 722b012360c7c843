package ivf

import (
	"math"
	"sort"

	"github.com/zvecio/zvec/internal/kernel"
	"github.com/zvecio/zvec/internal/storage"
	"github.com/zvecio/zvec/internal/zvecerr"
)

// kBatchBlocks is the implementation-defined prefetch batch size: the
// number of physical blocks read from storage in one call during scan
// (§4.3).
const kBatchBlocks = 4

// Filter reports whether local id i survives (e.g. a bitset.FixedBitset or
// bitset.Bitmap).
type Filter interface {
	Test(i int) bool
}

// Candidate is one surviving scan hit handed to a Heap.
type Candidate struct {
	Key     uint64
	Score   float32
	LocalID uint32
}

// Heap receives scan candidates; implementations enforce the top-k bound
// and threshold described in §3.
type Heap interface {
	Insert(c Candidate)
}

// Entity is one immutable loaded IVF index (§4.3): header, meta, segments
// and the metric/reformer it was built with.
type Entity struct {
	header       Header
	meta         IndexMeta
	metric       kernel.Metric
	distanceLike bool

	container *storage.Container

	listMetas []ListMeta
	keys      []uint64
	offsets   []VecLocation
	mapping   []uint32
	features   storage.Segment // optional
	globalNorm float64
}

// Load parses the header, deserializes meta, instantiates the metric, and
// loads every required segment with size validation (§4.3).
func Load(c *storage.Container) (*Entity, error) {
	headerSeg, err := c.Segment(SegInvertedHeader)
	if err != nil {
		return nil, err
	}
	headerBuf := make([]byte, headerSeg.DataSize())
	if _, err := headerSeg.ReadAt(headerBuf, 0); err != nil {
		return nil, err
	}
	header, metaBuf, err := UnmarshalHeader(headerBuf)
	if err != nil {
		return nil, err
	}
	meta, err := UnmarshalIndexMeta(metaBuf)
	if err != nil {
		return nil, err
	}

	metric, distanceLike, err := ParseMetric(meta.MetricName)
	if err != nil {
		return nil, err
	}
	if meta.ReformerName != ReformerNone && meta.ReformerName != ReformerInt8 &&
		meta.ReformerName != ReformerInt4 && meta.ReformerName != ReformerDefault {
		return nil, zvecerr.New(zvecerr.NoExist, "ivf: unknown reformer: "+meta.ReformerName)
	}

	e := &Entity{header: header, meta: meta, metric: metric, distanceLike: distanceLike, container: c}

	listMetaSeg, err := c.Segment(SegInvertedMeta)
	if err != nil {
		return nil, err
	}
	wantListMetaSize := int64(header.InvertedListCount) * listMetaRecordSize
	if listMetaSeg.DataSize() != wantListMetaSize {
		return nil, zvecerr.New(zvecerr.InvalidFormat, "ivf: inverted_meta segment size mismatch")
	}
	lmBuf := make([]byte, listMetaSeg.DataSize())
	if _, err := listMetaSeg.ReadAt(lmBuf, 0); err != nil {
		return nil, err
	}
	e.listMetas = UnmarshalListMetas(lmBuf, int(header.InvertedListCount))

	keysSeg, err := c.Segment(SegKeys)
	if err != nil {
		return nil, err
	}
	wantKeysSize := int64(header.TotalVectorCount) * 8
	if keysSeg.DataSize() != wantKeysSize {
		return nil, zvecerr.New(zvecerr.InvalidFormat, "ivf: keys segment size mismatch")
	}
	keysBuf := make([]byte, keysSeg.DataSize())
	if _, err := keysSeg.ReadAt(keysBuf, 0); err != nil {
		return nil, err
	}
	e.keys = decodeUint64Array(keysBuf)

	offsetsSeg, err := c.Segment(SegOffsets)
	if err != nil {
		return nil, err
	}
	wantOffsetsSize := int64(header.TotalVectorCount) * vecLocationRecordSize
	if offsetsSeg.DataSize() != wantOffsetsSize {
		return nil, zvecerr.New(zvecerr.InvalidFormat, "ivf: offsets segment size mismatch")
	}
	offBuf := make([]byte, offsetsSeg.DataSize())
	if _, err := offsetsSeg.ReadAt(offBuf, 0); err != nil {
		return nil, err
	}
	e.offsets = UnmarshalVecLocations(offBuf, int(header.TotalVectorCount))

	mappingSeg, err := c.Segment(SegMapping)
	if err != nil {
		return nil, err
	}
	wantMappingSize := int64(header.TotalVectorCount) * 4
	if mappingSeg.DataSize() != wantMappingSize {
		return nil, zvecerr.New(zvecerr.InvalidFormat, "ivf: mapping segment size mismatch")
	}
	mapBuf := make([]byte, mappingSeg.DataSize())
	if _, err := mappingSeg.ReadAt(mapBuf, 0); err != nil {
		return nil, err
	}
	e.mapping = decodeUint32Array(mapBuf)

	if c.HasSegment(SegFeatures) {
		seg, err := c.Segment(SegFeatures)
		if err != nil {
			return nil, err
		}
		e.features = seg
	}

	e.globalNorm = convertToNormalizeValue(meta.ReformerScale, meta.ReformerName, distanceLike)
	return e, nil
}

// convertToNormalizeValue implements the §9 open-question formula: a
// monotone function of scale that yields 1/scale for the int8/int4 linear
// reformers and 1 for identity/default, applying a further sqrt for
// distance-like metrics (§4.3 "per-list normalizer is sqrt(norm_value) for
// Euclidean/Manhattan, norm_value otherwise").
func convertToNormalizeValue(scale float64, reformerName string, distanceLike bool) float64 {
	norm := 1.0
	if (reformerName == ReformerInt8 || reformerName == ReformerInt4) && scale != 0 {
		norm = 1.0 / scale
	}
	if distanceLike {
		return math.Sqrt(norm)
	}
	return norm
}

// Search scans one inverted list, computing distances in batches of
// kBatchBlocks blocks, applying filter, and inserting survivors into heap.
// stats is updated monotonically per §4.3.
func (e *Entity) Search(listID int, query []float32, filter Filter, heap Heap, stats *Stats) error {
	if listID < 0 || listID >= len(e.listMetas) {
		return zvecerr.New(zvecerr.InvalidArgument, "ivf: list id out of range")
	}
	lm := e.listMetas[listID]
	stats.ScanCount += uint64(lm.VectorCount)

	bodySeg, err := e.container.Segment(SegInvertedBody)
	if err != nil {
		return err
	}

	blockVC := int(e.header.BlockVectorCount)
	blockBytes := e.meta.Element.Size(e.meta.Dim) * blockVC
	remaining := int(lm.VectorCount)

	for b := 0; b < int(lm.BlockCount); b += kBatchBlocks {
		batchBlocks := kBatchBlocks
		if b+batchBlocks > int(lm.BlockCount) {
			batchBlocks = int(lm.BlockCount) - b
		}

		batchBuf := make([]byte, batchBlocks*blockBytes)
		if _, err := bodySeg.ReadAt(batchBuf, int64(lm.Offset)+int64(b*blockBytes)); err != nil {
			return err
		}

		for bi := 0; bi < batchBlocks; bi++ {
			n := blockVC
			if n > remaining {
				n = remaining
			}
			if n <= 0 {
				break
			}
			blockBuf := batchBuf[bi*blockBytes : (bi+1)*blockBytes]
			idBase := int(lm.IDOffset) + (b+bi)*blockVC

			distances, err := e.distanceForBlock(blockBuf, blockVC, query)
			if err != nil {
				return err
			}
			stats.DistCalcedCount += uint64(n)

			for i := 0; i < n; i++ {
				key := e.keys[idBase+i]
				if key == InvalidKey {
					continue
				}
				if filter != nil && !filter.Test(idBase + i) {
					stats.FilteredCount++
					continue
				}
				heap.Insert(Candidate{Key: key, Score: distances[i] * float32(e.globalNorm), LocalID: uint32(idBase + i)})
			}
			remaining -= n
		}
	}
	return nil
}

func (e *Entity) distanceForBlock(blockBuf []byte, blockVC int, query []float32) ([]float32, error) {
	switch e.meta.Element {
	case ElementFP32:
		stored := decodeFloat32Array(blockBuf)
		return kernel.DistanceFP32(e.metric, stored, blockVC, query, 1, e.meta.Dim)
	case ElementINT8:
		q := floatToInt8Round(query)
		stored := decodeInt8Array(blockBuf)
		return kernel.DistanceINT8(e.metric, stored, blockVC, q, 1, e.meta.Dim)
	case ElementINT4:
		q, err := packQueryInt4(query)
		if err != nil {
			return nil, err
		}
		return kernel.DistanceINT4Packed(e.metric, blockBuf, blockVC, q, 1, e.meta.Dim)
	default:
		return nil, zvecerr.New(zvecerr.Unsupported, "ivf: unsupported element type")
	}
}

// SearchAll scans every list (used when the caller already selected a topk
// subset via the centroid searcher, or for brute-force fallback).
func (e *Entity) SearchAll(query []float32, filter Filter, heap Heap, stats *Stats) error {
	for listID := range e.listMetas {
		if err := e.Search(listID, query, filter, heap, stats); err != nil {
			return err
		}
	}
	return nil
}

// GetVector returns the raw element bytes for local id.
func (e *Entity) GetVector(id int) ([]byte, error) {
	if id < 0 || id >= len(e.offsets) {
		return nil, zvecerr.New(zvecerr.InvalidArgument, "ivf: id out of range")
	}
	elemSize := e.meta.Element.Size(e.meta.Dim)
	if e.features != nil {
		buf := make([]byte, elemSize)
		if _, err := e.features.ReadAt(buf, int64(id)*int64(elemSize)); err != nil {
			return nil, err
		}
		return buf, nil
	}

	loc := e.offsets[id]
	bodySeg, err := e.container.Segment(SegInvertedBody)
	if err != nil {
		return nil, err
	}

	if !loc.ColumnMajor {
		buf := make([]byte, elemSize)
		if _, err := bodySeg.ReadAt(buf, int64(loc.Offset)); err != nil {
			return nil, err
		}
		return buf, nil
	}

	unit := unitSize(e.meta.Element)
	blockVC := int(e.header.BlockVectorCount)
	buf := make([]byte, elemSize)
	stride := int64(blockVC) * int64(unit)
	for c := 0; c < e.meta.Dim; c++ {
		off := int64(loc.Offset) + int64(c)*stride
		if _, err := bodySeg.ReadAt(buf[c*unit:(c+1)*unit], off); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func unitSize(t ElementType) int {
	switch t {
	case ElementFP32:
		return 4
	case ElementINT8:
		return 1
	case ElementINT4:
		return 1 // two lanes per byte; column-major gather is byte-granular
	default:
		return 0
	}
}

// KeyToID returns the local id for key via binary search over the sorted
// key mapping, or InvalidKey's 32-bit analog (^uint32(0)) on miss.
func (e *Entity) KeyToID(key uint64) uint32 {
	n := len(e.mapping)
	idx := sort.Search(n, func(i int) bool {
		return e.keys[e.mapping[i]] >= key
	})
	if idx < n && e.keys[e.mapping[idx]] == key {
		return e.mapping[idx]
	}
	return ^uint32(0)
}

// Clone returns a new Entity sharing meta/metric but with an independent
// storage handle, so readers may scan in parallel without contention on
// mutable per-segment file-offset state (§4.3, §5).
func (e *Entity) Clone() (*Entity, error) {
	c, err := e.container.Clone()
	if err != nil {
		return nil, err
	}
	clone := *e
	clone.container = c
	return &clone, nil
}

// Meta returns the entity's index meta.
func (e *Entity) Meta() IndexMeta { return e.meta }

// Header returns the entity's parsed header.
func (e *Entity) Header() Header { return e.header }

// ListCount returns the number of inverted lists.
func (e *Entity) ListCount() int { return len(e.listMetas) }

// TotalVectorCount returns the index's physical vector slot count, including
// the padding slots that fill each list's last block.
func (e *Entity) TotalVectorCount() int { return int(e.header.TotalVectorCount) }

// ListVectorCount returns the logical (non-padded) vector count of one
// list, used by the searcher to bound how many lists it visits.
func (e *Entity) ListVectorCount(listID int) int { return int(e.listMetas[listID].VectorCount) }

// Close releases the underlying storage container.
func (e *Entity) Close() error { return e.container.Close() }
