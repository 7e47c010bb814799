package hive

import (
	"slices"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"
)

// cellKind distinguishes whether a Cell holds nothing, an immutable
// value fixed at build time, or a value that can be updated in place
// after the Hive is running. Go has no enum-with-payload construct, so
// this is a small discriminated struct instead of, say, three separate
// optional fields.
type cellKind uint8

const (
	cellNotSet cellKind = iota
	cellImmutable
	cellMutable
)

// Cell is a generic config slot that is either unset, fixed forever, or
// updatable via tryUpdate after construction. Unlike dualCounter this
// can hold an arbitrary T, so it can't be a lock-free atomic; a mutex
// is the direct, honest implementation for a cell that's read and
// written far less often than the hot-path counters.
type Cell[T any] struct {
	mu   sync.Mutex
	kind cellKind
	val  T
}

func newUnsetCell[T any]() *Cell[T] { return &Cell[T]{} }

func newImmutableCell[T any](v T) *Cell[T] { return &Cell[T]{kind: cellImmutable, val: v} }

func newMutableCell[T any](v T) *Cell[T] { return &Cell[T]{kind: cellMutable, val: v} }

// Get returns the cell's value and whether it has one at all.
func (c *Cell[T]) Get() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.kind == cellNotSet {
		var zero T
		return zero, false
	}
	return c.val, true
}

// tryUpdate replaces the cell's value with fn applied to the current
// one. It returns ErrCellUnsync if the cell isn't Mutable.
func (c *Cell[T]) tryUpdate(fn func(T) T) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.kind != cellMutable {
		return ErrCellUnsync
	}
	c.val = fn(c.val)
	return nil
}

// ConfigSnapshot is a plain-value copy of a Config, used both to build
// a Husk (which must outlive the live Config it was taken from) and to
// seed a fresh Builder from one (Husk.AsBuilder).
type ConfigSnapshot struct {
	NumThreads      uint64
	ThreadName      *string
	ThreadStackSize *uint64
	MaxRetries      *uint32
	RetryFactor     *time.Duration
	Affinity        []int
}

// Config is the immutable-after-build configuration of a Hive, save
// for the handful of fields that are updatable in place (NumThreads,
// Affinity) without tearing the pool down.
type Config struct {
	numThreads      atomic64
	threadName      *Cell[string]
	threadStackSize *Cell[uint64]
	maxRetries      *Cell[uint32]
	retryFactor     *Cell[time.Duration]
	affinity        *Cell[[]int]
	logger          *zerolog.Logger
}

// NumThreads returns the current configured thread (goroutine) count.
func (c *Config) NumThreads() uint64 { return c.numThreads.load() }

// AddThreads atomically adds n to NumThreads and returns the previous
// value.
func (c *Config) AddThreads(n uint64) uint64 { return c.numThreads.add(n) }

// EnsureThreads atomically raises NumThreads to at least n and returns
// the previous value. It never lowers NumThreads.
func (c *Config) EnsureThreads(n uint64) uint64 { return c.numThreads.ensureAtLeast(n) }

// ThreadName returns the configured pprof worker label, if any.
func (c *Config) ThreadName() (string, bool) { return c.threadName.Get() }

// ThreadStackSize returns the configured stack size hint, if any. Go's
// goroutine stacks grow dynamically and ignore this value; it's
// retained purely so a Config round-tripped through a Husk and rebuilt
// doesn't silently lose a value a caller explicitly set.
func (c *Config) ThreadStackSize() (uint64, bool) { return c.threadStackSize.Get() }

// MaxRetries returns the configured retry limit, if any. Retries are
// disabled entirely when this is unset.
func (c *Config) MaxRetries() (uint32, bool) { return c.maxRetries.Get() }

// RetryFactor returns the configured base retry backoff, if any.
func (c *Config) RetryFactor() (time.Duration, bool) { return c.retryFactor.Get() }

// Affinity returns the configured core IDs workers are pinned to,
// round-robin, if any.
func (c *Config) Affinity() ([]int, bool) { return c.affinity.Get() }

// UnionAffinity merges cores into the existing affinity set in place,
// sorted and deduplicated. It returns ErrCellUnsync if the Hive was
// built without an affinity cell at all (Affinity must be set, even to
// an empty slice, at build time to allow later updates).
func (c *Config) UnionAffinity(cores []int) error {
	return c.affinity.tryUpdate(func(cur []int) []int {
		seen := make(map[int]struct{}, len(cur)+len(cores))
		for _, v := range cur {
			seen[v] = struct{}{}
		}
		for _, v := range cores {
			seen[v] = struct{}{}
		}
		out := make([]int, 0, len(seen))
		for v := range seen {
			out = append(out, v)
		}
		slices.Sort(out)
		return out
	})
}

// Logger returns the configured logger, or a no-op logger if none was
// set.
func (c *Config) Logger() zerolog.Logger { return loggerOrNop(c.logger) }

// Snapshot copies the current config into a plain value.
func (c *Config) Snapshot() ConfigSnapshot {
	s := ConfigSnapshot{NumThreads: c.NumThreads()}
	if v, ok := c.ThreadName(); ok {
		s.ThreadName = &v
	}
	if v, ok := c.ThreadStackSize(); ok {
		s.ThreadStackSize = &v
	}
	if v, ok := c.MaxRetries(); ok {
		s.MaxRetries = &v
	}
	if v, ok := c.RetryFactor(); ok {
		s.RetryFactor = &v
	}
	if v, ok := c.Affinity(); ok {
		s.Affinity = append([]int(nil), v...)
	}
	return s
}

// Builder assembles a Config fluently, with defaulting deferred to
// buildConfig so NewBuilder itself never has to guess a runtime value.
type Builder struct {
	numThreads      uint64
	threadName      *string
	threadStackSize *uint64
	maxRetries      *uint32
	retryFactor     *time.Duration
	affinitySet     bool
	affinity        []int
	logger          *zerolog.Logger
}

// NewBuilder returns an empty Builder. Every field defaults to unset;
// Build fills in runtime defaults (NumThreads from GOMAXPROCS) for
// anything left that way.
func NewBuilder() *Builder { return &Builder{} }

// FromSnapshot seeds a new Builder from a previously taken
// ConfigSnapshot, as used by Husk.AsBuilder.
func FromSnapshot(s ConfigSnapshot) *Builder {
	b := &Builder{numThreads: s.NumThreads}
	b.threadName = s.ThreadName
	b.threadStackSize = s.ThreadStackSize
	b.maxRetries = s.MaxRetries
	b.retryFactor = s.RetryFactor
	if s.Affinity != nil {
		b.affinitySet = true
		b.affinity = append([]int(nil), s.Affinity...)
	}
	return b
}

func (b *Builder) NumThreads(n uint64) *Builder { b.numThreads = n; return b }

func (b *Builder) ThreadName(name string) *Builder { b.threadName = &name; return b }

func (b *Builder) ThreadStackSize(n uint64) *Builder { b.threadStackSize = &n; return b }

func (b *Builder) MaxRetries(n uint32) *Builder { b.maxRetries = &n; return b }

func (b *Builder) RetryFactor(d time.Duration) *Builder { b.retryFactor = &d; return b }

// Affinity sets the initial core-pinning set, stored sorted and
// deduplicated. Once built, the set can still grow via
// Config.UnionAffinity.
func (b *Builder) Affinity(cores []int) *Builder {
	b.affinitySet = true
	b.affinity = append([]int(nil), cores...)
	slices.Sort(b.affinity)
	b.affinity = slices.Compact(b.affinity)
	return b
}

func (b *Builder) Logger(l *zerolog.Logger) *Builder { b.logger = l; return b }

func (b *Builder) buildConfig() *Config {
	cfg := &Config{
		threadStackSize: newUnsetCell[uint64](),
		maxRetries:      newUnsetCell[uint32](),
		retryFactor:     newUnsetCell[time.Duration](),
		affinity:        newUnsetCell[[]int](),
		logger:          b.logger,
	}
	n := b.numThreads
	if n == 0 {
		n = defaultNumThreads()
	}
	cfg.numThreads.store(n)

	if b.threadName != nil {
		cfg.threadName = newImmutableCell(*b.threadName)
	} else {
		cfg.threadName = newUnsetCell[string]()
	}
	if b.threadStackSize != nil {
		cfg.threadStackSize = newImmutableCell(*b.threadStackSize)
	}
	if b.maxRetries != nil {
		cfg.maxRetries = newImmutableCell(*b.maxRetries)
	}
	if b.retryFactor != nil {
		cfg.retryFactor = newImmutableCell(*b.retryFactor)
	}
	if b.affinitySet {
		cfg.affinity = newMutableCell(b.affinity)
	}
	return cfg
}

// FileConfig holds the subset of Config overridable from a TOML file,
// for deployments that configure the pool from a file rather than
// code. Zero values mean "not present in the file"; ApplyTo only
// overrides fields that were present.
type FileConfig struct {
	NumThreads  uint64 `toml:"num_threads"`
	ThreadName  string `toml:"thread_name"`
	MaxRetries  uint32 `toml:"max_retries"`
	RetryFactor string `toml:"retry_factor"`
}

// LoadConfigFile reads a FileConfig from a TOML file at path.
func LoadConfigFile(path string) (FileConfig, error) {
	var fc FileConfig
	_, err := toml.DecodeFile(path, &fc)
	return fc, err
}

// ApplyTo layers fc's present fields onto b, returning b for chaining.
func (fc FileConfig) ApplyTo(b *Builder) (*Builder, error) {
	if fc.NumThreads != 0 {
		b.NumThreads(fc.NumThreads)
	}
	if fc.ThreadName != "" {
		b.ThreadName(fc.ThreadName)
	}
	if fc.MaxRetries != 0 {
		b.MaxRetries(fc.MaxRetries)
	}
	if fc.RetryFactor != "" {
		d, err := time.ParseDuration(fc.RetryFactor)
		if err != nil {
			return b, err
		}
		b.RetryFactor(d)
	}
	return b, nil
}
