//go:build linux

package workerpool

import "golang.org/x/sys/unix"

// bindToCPU pins the calling goroutine's underlying OS thread to a single
// CPU via sched_setaffinity, per §4.7's optional binding mode.
func bindToCPU(cpu int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	return unix.SchedSetaffinity(0, &set)
}

// unbindCPU resets the affinity mask to every online CPU.
func unbindCPU(numCPU int) error {
	var set unix.CPUSet
	set.Zero()
	for i := 0; i < numCPU; i++ {
		set.Set(i)
	}
	return unix.SchedSetaffinity(0, &set)
}
