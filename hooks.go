package saltedbloom

type Stage int

const (
	Plan Stage = iota
	GenerateSalts
	LoadSnapshot
	WriteSnapshot
	AddElement
)

func (s Stage) String() string {
	return [...]string{
		"Plan",
		"GenerateSalts",
		"LoadSnapshot",
		"WriteSnapshot",
		"AddElement",
	}[s]
}

// Hook observes one stage. After receives the stage error, nil on success.
type Hook interface {
	GetStage() Stage
	Before(args ...interface{})
	After(optionalErr error, args ...interface{})
}

type HookImpl struct {
	Stage          Stage
	BeforeFn       func(args ...interface{})
	AfterSuccessFn func(args ...interface{})
	AfterFailFn    func(err error, args ...interface{})
}

func (h *HookImpl) GetStage() Stage {
	return h.Stage
}

func (h *HookImpl) Before(args ...interface{}) {
	if h.BeforeFn != nil {
		h.BeforeFn(args...)
	}
}

func (h *HookImpl) After(optionalErr error, args ...interface{}) {
	switch {
	case optionalErr != nil && h.AfterFailFn != nil:
		h.AfterFailFn(optionalErr, args...)
	case optionalErr == nil && h.AfterSuccessFn != nil:
		h.AfterSuccessFn(args...)
	}
}

// Hooks dispatches stage callbacks. It is read-only once built, and a nil
// *Hooks is valid and does nothing.
type Hooks struct {
	hooks map[Stage]Hook
}

// NewHooks registers hooks by their stage; a later hook replaces an earlier
// one for the same stage.
func NewHooks(hooks ...Hook) *Hooks {
	hs := &Hooks{hooks: make(map[Stage]Hook, len(hooks))}
	for _, h := range hooks {
		hs.hooks[h.GetStage()] = h
	}
	return hs
}

func (hs *Hooks) Before(stage Stage, args ...interface{}) {
	if h, ok := hs.lookup(stage); ok {
		h.Before(args...)
	}
}

func (hs *Hooks) After(stage Stage, optionalErr error, args ...interface{}) {
	if h, ok := hs.lookup(stage); ok {
		h.After(optionalErr, args...)
	}
}

func (hs *Hooks) lookup(stage Stage) (Hook, bool) {
	if hs == nil {
		return nil, false
	}
	h, ok := hs.hooks[stage]
	return h, ok
}

var _ Hook = &HookImpl{}
