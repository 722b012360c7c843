//go:build !linux

package workerpool

// bindToCPU is a no-op outside Linux, per §4.7 ("on non-Linux or Android,
// binding is a no-op").
func bindToCPU(cpu int) error { return nil }

// unbindCPU is a no-op outside Linux.
func unbindCPU(numCPU int) error { return nil }
