package saltedbloom

import (
	"context"
	"math"
	"math/big"
	"strings"
	"sync"

	"github.com/bits-and-blooms/bitset"
	"github.com/pkg/errors"
)

// Filter is a Bloom filter over string keys whose hash functions are
// HMAC-SHA256 keyed by per-function salts.
//
// Add and MightContain are safe for concurrent use. Parameters and salts never
// change after construction; bits only go from 0 to 1.
type Filter struct {
	config Config
	params Params
	salts  []string
	bits   *bitStore

	addressing Addressing
	store      Store
	logger     Logger
	hooks      *Hooks

	// writers hold the read side so Snapshot can take a consistent copy
	snapshotMu sync.RWMutex
}

type Option func(f *Filter)

func WithLogger(logger Logger) Option {
	return func(f *Filter) {
		f.logger = logger
	}
}

func WithHooks(hooks *Hooks) Option {
	return func(f *Filter) {
		f.hooks = hooks
	}
}

// WithAddressing selects the bit addressing of a newly created filter.
// AddressingWordModulo keeps snapshots readable by older readers at the cost of
// reachable bits. Recovered filters always use their snapshot's addressing.
func WithAddressing(addressing Addressing) Option {
	return func(f *Filter) {
		f.addressing = addressing
	}
}

// WithStore sets where Snapshot writes and Recover reads. Defaults to a
// FileStore rooted at the working directory.
func WithStore(store Store) Option {
	return func(f *Filter) {
		f.store = store
	}
}

func newFilter(opts []Option) *Filter {
	f := &Filter{
		addressing: AddressingLinear,
		store:      NewFileStore("."),
		logger:     StdLogger(nil),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Open creates an empty filter, or restores one from the store when cfg.Recover is set.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Filter, error) {
	if cfg.Recover {
		return Recover(ctx, opts...)
	}
	return New(cfg, opts...)
}

// New creates an empty filter sized for cfg.
func New(cfg Config, opts ...Option) (*Filter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	f := newFilter(opts)
	if !f.addressing.known() {
		return nil, errors.Wrapf(ErrInvalidConfig, "unknown addressing %q", string(f.addressing))
	}
	f.config = cfg
	f.logger = gated(f.logger, cfg.LoggingEnabled)
	f.log(LevelInfo, "expected insertions:", cfg.ExpectedInsertions, "false positive probability:", cfg.FalsePositiveProbability)

	f.hooks.Before(Plan, cfg)
	params, err := EstimateParams(cfg.ExpectedInsertions, cfg.FalsePositiveProbability)
	f.hooks.After(Plan, err, params)
	if err != nil {
		return nil, err
	}
	f.params = params

	f.hooks.Before(GenerateSalts, params.HashFunctionsCount)
	salts, err := NewSalts(params.HashFunctionsCount)
	f.hooks.After(GenerateSalts, err, salts)
	if err != nil {
		return nil, err
	}
	f.salts = salts
	f.bits = newBitStore(params.BitsCount, f.addressing)

	f.log(LevelInfo, "bits count:", params.BitsCount, "hash functions:", params.HashFunctionsCount)
	return f, nil
}

// Recover rebuilds a filter from the store's snapshot. The snapshot's salts are
// adopted as-is. Any read or validation failure aborts the recovery.
func Recover(ctx context.Context, opts ...Option) (*Filter, error) {
	f := newFilter(opts)

	f.hooks.Before(LoadSnapshot, f.store)
	snapshot, err := f.store.Load(ctx)
	if err == nil {
		err = validLoaded(snapshot)
	}
	f.hooks.After(LoadSnapshot, err, snapshot)
	if err != nil {
		f.log(LevelError, "bloom filter recovery failed:", err)
		return nil, errors.Wrap(err, "bloom filter recovery failed")
	}

	info := snapshot.Info
	f.config = Config{
		ExpectedInsertions:       info.ExpectedInsertions,
		FalsePositiveProbability: info.FalsePositiveProbability,
		LoggingEnabled:           info.IsLogging,
		Recover:                  true,
	}
	f.params = Params{
		BitsCount:          info.Size,
		HashFunctionsCount: info.HashFunctions,
	}
	f.salts = append([]string(nil), info.Seeds...)
	f.addressing = info.Addressing
	f.bits = bitStoreFrom(snapshot.Words, info.Size, info.Addressing)
	f.logger = gated(f.logger, info.IsLogging)

	f.log(
		LevelInfo,
		"recovered filter:", info.Description,
		"expected insertions:", info.ExpectedInsertions,
		"false positive probability:", info.FalsePositiveProbability,
	)
	return f, nil
}

// validLoaded checks a snapshot handed back by a Store, which may not have
// gone through DecodeInfo and ReadBitmap.
func validLoaded(snapshot *Snapshot) error {
	if snapshot == nil {
		return errors.Wrap(ErrCorruptSnapshot, "store returned no snapshot")
	}
	return snapshot.validate()
}

// Add records element. Blank elements (empty after trimming whitespace) are
// rejected with false and leave the filter untouched. Every hash is computed
// before any bit is set, so a failed hash leaves the filter unchanged too.
func (f *Filter) Add(element string) (bool, error) {
	element = strings.TrimSpace(element)
	if element == "" {
		f.log(LevelDebug, "blank element rejected")
		return false, nil
	}
	f.hooks.Before(AddElement, element)
	hashes, err := f.hashes(element)
	if err != nil {
		f.hooks.After(AddElement, err, element)
		return false, err
	}

	f.snapshotMu.RLock()
	for _, h := range hashes {
		f.bits.set(h)
	}
	f.snapshotMu.RUnlock()

	f.hooks.After(AddElement, nil, element)
	f.log(LevelDebug, "element added:", element)
	return true, nil
}

// MightContain returns false if element was definitely never added. The
// element is trimmed the same way Add trims it.
func (f *Filter) MightContain(element string) (bool, error) {
	element = strings.TrimSpace(element)
	if element == "" {
		return false, nil
	}
	for idx, salt := range f.salts {
		h, err := SaltedHash(element, salt)
		if err != nil {
			f.log(LevelError, "hash function", idx, "failed:", err)
			return false, errors.Wrapf(err, "hash function %d", idx)
		}
		if !f.bits.test(h) {
			return false, nil
		}
	}
	return true, nil
}

func (f *Filter) hashes(element string) ([]*big.Int, error) {
	hashes, err := saltedHashes(element, f.salts)
	if err != nil {
		f.log(LevelError, "hash computation failed:", err)
	}
	return hashes, err
}

// Snapshot persists the current state to the filter's store. Failures are
// logged and returned; the in-memory filter stays usable either way.
func (f *Filter) Snapshot(ctx context.Context, description string) error {
	f.snapshotMu.Lock()
	words := f.bits.snapshot()
	f.snapshotMu.Unlock()

	snapshot := &Snapshot{
		Info: Info{
			Description:              description,
			Size:                     f.params.BitsCount,
			HashFunctions:            f.params.HashFunctionsCount,
			ExpectedInsertions:       f.config.ExpectedInsertions,
			FalsePositiveProbability: f.config.FalsePositiveProbability,
			IsLogging:                f.config.LoggingEnabled,
			Seeds:                    f.Salts(),
			Addressing:               f.addressing,
		},
		Words: words,
	}

	f.hooks.Before(WriteSnapshot, snapshot)
	err := f.store.Save(ctx, snapshot)
	f.hooks.After(WriteSnapshot, err, snapshot)
	if err != nil {
		f.log(LevelError, "bloom filter snapshot failed:", err)
		return errors.Wrap(err, "bloom filter snapshot failed")
	}
	f.log(LevelInfo, "bloom filter snapshot saved:", description)
	return nil
}

// Stats describes how full the filter is.
type Stats struct {
	BitsCount          int64
	HashFunctionsCount int
	Words              int
	SetBits            uint
	// FillRatio is the share of set bits among the bits a hash can reach.
	FillRatio float64
	// EstimatedFalsePositiveRate is FillRatio^HashFunctionsCount.
	EstimatedFalsePositiveRate float64
}

func (f *Filter) Stats() Stats {
	words := f.bits.snapshot()
	setBits := bitset.From(words).Count()
	fill := float64(setBits) / float64(f.bits.reachableBits())
	return Stats{
		BitsCount:                  f.params.BitsCount,
		HashFunctionsCount:         f.params.HashFunctionsCount,
		Words:                      len(words),
		SetBits:                    setBits,
		FillRatio:                  fill,
		EstimatedFalsePositiveRate: math.Pow(fill, float64(f.params.HashFunctionsCount)),
	}
}

func (f *Filter) Config() Config {
	return f.config
}

func (f *Filter) Params() Params {
	return f.params
}

func (f *Filter) Addressing() Addressing {
	return f.addressing
}

// Salts returns a copy of the salts in hash function order.
func (f *Filter) Salts() []string {
	return append([]string(nil), f.salts...)
}

// Words returns a copy of the bit store.
func (f *Filter) Words() []uint64 {
	return f.bits.snapshot()
}

func (f *Filter) log(level Level, v ...interface{}) {
	if f.logger != nil {
		f.logger(level, v...)
	}
}
