//go:build linux

package hive

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// pinWorkerAffinity pins the calling goroutine's OS thread to one core
// from cfg's affinity set, round-robin by slot, if an affinity set was
// configured. It locks the goroutine to its OS thread first and never
// unlocks: a worker goroutine needs to stay on the pinned thread for
// its entire life, so if it ever returns (exits), the Go runtime
// discards that thread rather than recycling it - which is exactly
// what we want, since recycling would hand the pinned affinity to an
// unrelated goroutine.
func pinWorkerAffinity(cfg *Config, slot int) {
	cores, ok := cfg.Affinity()
	if !ok || len(cores) == 0 {
		return
	}
	core := cores[slot%len(cores)]

	runtime.LockOSThread()

	var set unix.CPUSet
	set.Zero()
	set.Set(core)
	// Best effort: an invalid core ID or a restricted container is not
	// a reason to refuse to run the worker at all.
	_ = unix.SchedSetaffinity(0, &set)
}
