//go:build !linux

package hive

// pinWorkerAffinity is a no-op outside Linux: Go exposes no portable
// core-pinning syscall, so affinity is a best-effort, Linux-only hook.
func pinWorkerAffinity(cfg *Config, slot int) {}
