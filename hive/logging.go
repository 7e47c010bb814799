package hive

import (
	"runtime"

	"github.com/rs/zerolog"
	"go.uber.org/automaxprocs/maxprocs"
)

// NopLogger returns a zerolog.Logger that discards everything, the
// default used whenever a Config is built without one, so an injected
// logger is always safe to call even when the caller never set one.
func NopLogger() zerolog.Logger { return zerolog.Nop() }

func loggerOrNop(l *zerolog.Logger) zerolog.Logger {
	if l == nil {
		return zerolog.Nop()
	}
	return *l
}

// defaultNumThreads is used by Builder.buildConfig when NumThreads
// wasn't set explicitly. It reads runtime.GOMAXPROCS, which reflects
// whatever EnableAutoMaxProcs (or the GOMAXPROCS env var) has already
// set, rather than the host's full core count.
func defaultNumThreads() uint64 {
	n := runtime.GOMAXPROCS(0)
	if n < 1 {
		n = 1
	}
	return uint64(n)
}

// EnableAutoMaxProcs adjusts GOMAXPROCS to match the calling process's
// CPU quota (cgroup v1/v2 limits), rather than the host's full core
// count, the same correction go.uber.org/automaxprocs provides to many
// containerized Go services. Call it once, early in main, before
// building any Hive whose NumThreads is left to default. logger may be
// nil.
func EnableAutoMaxProcs(logger *zerolog.Logger) error {
	lg := loggerOrNop(logger)
	_, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		lg.Info().Msgf(format, args...)
	}))
	return err
}
