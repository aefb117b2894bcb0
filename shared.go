package saltedbloom

import (
	"context"
	"sync"
	"sync/atomic"
)

// Shared hands out one Filter to every caller. The first Get decides, from its
// Config, whether the filter is created empty or recovered; later calls get the
// same filter (or the same error) whatever configuration they pass.
//
// A failed first Get sticks for the handle's lifetime. A caller falling back
// to an empty filter after a failed recovery builds it with New, outside the
// handle.
type Shared struct {
	opts []Option

	once   sync.Once
	done   atomic.Bool
	filter *Filter
	err    error
}

func NewShared(opts ...Option) *Shared {
	return &Shared{opts: opts}
}

func (s *Shared) Get(ctx context.Context, cfg Config) (*Filter, error) {
	s.once.Do(func() {
		s.filter, s.err = Open(ctx, cfg, s.opts...)
		s.done.Store(true)
	})
	return s.filter, s.err
}

// Filter returns the filter built by the first Get, or ErrNotInitialized
// when Get hasn't completed yet.
func (s *Shared) Filter() (*Filter, error) {
	if !s.done.Load() {
		return nil, ErrNotInitialized
	}
	return s.filter, s.err
}
