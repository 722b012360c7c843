package kernel

import (
	"runtime"

	"golang.org/x/sys/cpu"
)

// Backend names the SIMD back-end a call was dispatched to. The computation
// itself is written in portable Go (manual loop unrolling stands in for the
// lane width each back-end would use in a native build), but the label is
// derived from real runtime feature detection so callers and metrics see an
// honest answer to "what would have run here".
type Backend int

const (
	BackendScalar Backend = iota
	BackendSSE2
	BackendAVX2
	BackendNEON
)

func (b Backend) String() string {
	switch b {
	case BackendScalar:
		return "scalar"
	case BackendSSE2:
		return "sse2"
	case BackendAVX2:
		return "avx2"
	case BackendNEON:
		return "neon"
	default:
		return "unknown"
	}
}

// SelectBackend inspects the running CPU and returns the back-end this
// process would use for the wide (M>1) batched kernels. §4.1 requires at
// least NEON, AVX2, SSE2 and a portable scalar fallback; on amd64 without
// AVX2 the SSE2 path additionally uses the SSE3 `lddqu`-equivalent load
// whenever available (tracked separately, see UseUnalignedLoad).
func SelectBackend() Backend {
	switch runtime.GOARCH {
	case "arm64":
		return BackendNEON
	case "amd64", "386":
		if cpu.X86.HasAVX2 {
			return BackendAVX2
		}
		if cpu.X86.HasSSE2 {
			return BackendSSE2
		}
	}
	return BackendScalar
}

// UseUnalignedLoad reports whether the SSE2 fallback back-end may assume the
// SSE3 `lddqu` unaligned-load instruction is available (x86 only).
func UseUnalignedLoad() bool {
	return (runtime.GOARCH == "amd64" || runtime.GOARCH == "386") && cpu.X86.HasSSE3
}

// laneWidth returns the number of float32 lanes the selected back-end
// notionally processes per step; used to pick the unrolled loop variant.
func laneWidth(b Backend) int {
	switch b {
	case BackendAVX2:
		return 8
	case BackendSSE2, BackendNEON:
		return 4
	default:
		return 1
	}
}
