package lazyfield

import (
	"sync"
	"sync/atomic"
)

// box holds a stored value together with its provenance. A cell is Set exactly
// when its box pointer is non-nil, so a stored zero value (or nil) is still
// distinct from Unset.
type box[T any] struct {
	value T
	prov  Provenance
}

// buildToken represents one in-flight builder invocation. Readers that lose
// the race block on done until the owner finishes or the build is abandoned.
type buildToken struct {
	done chan struct{}
}

// Cell is the per-instance slot backing one lazy field. The zero Cell is Unset
// and ready for use; instances own their cells exclusively while field
// descriptors stay shared.
//
// At most one builder runs per cell at a time. The build slot holds the
// current token; clearing the cell empties the slot, which makes the in-flight
// builder's store a no-op. The generation counter advances on every clear and
// is stamped into provenance so audits can tell rebuilds apart.
type Cell[T any] struct {
	val   atomic.Pointer[box[T]]
	build atomic.Pointer[buildToken]
	gen   atomic.Uint64
	mu    sync.Mutex
}

// load returns the current value and provenance, if any.
func (c *Cell[T]) load() (T, Provenance, bool) {
	if b := c.val.Load(); b != nil {
		return b.value, b.prov, true
	}
	var zero T
	return zero, Provenance{}, false
}

func (c *Cell[T]) isSet() bool {
	return c.val.Load() != nil
}

func (c *Cell[T]) generation() uint64 {
	return c.gen.Load()
}

// beginBuild claims the build slot. It returns (tok, true) when the caller
// became the owner and must finish with endBuild. It returns (tok, false) when
// another owner is in flight; wait on tok.done and retry. It returns
// (nil, false) when the cell turned Set, in which case the caller should
// simply reload.
func (c *Cell[T]) beginBuild() (*buildToken, bool) {
	for {
		if c.val.Load() != nil {
			return nil, false
		}
		if cur := c.build.Load(); cur != nil {
			return cur, false
		}
		tok := &buildToken{done: make(chan struct{})}
		if c.build.CompareAndSwap(nil, tok) {
			return tok, true
		}
	}
}

// endBuild releases the build slot and wakes all waiters. The swap fails
// harmlessly when a clear already emptied the slot.
func (c *Cell[T]) endBuild(tok *buildToken) {
	c.build.CompareAndSwap(tok, nil)
	close(tok.done)
}

// store unconditionally sets the value and returns the provenance stamped
// with the current generation. Emptying the build slot invalidates any
// in-flight builder: an explicit store supersedes the build, whose eventual
// result is discarded. The slot owner still closes its own token, so waiters
// wake and re-read the stored value.
func (c *Cell[T]) store(value T, prov Provenance) Provenance {
	c.mu.Lock()
	defer c.mu.Unlock()
	prov.Generation = c.gen.Load()
	c.val.Store(&box[T]{value: value, prov: prov})
	c.build.Store(nil)
	return prov
}

// storeBuilt commits a builder result. It reports false when the build slot no
// longer holds tok, meaning a clear invalidated the build; the result must be
// discarded and the cell left as it is.
func (c *Cell[T]) storeBuilt(tok *buildToken, value T, prov Provenance) (Provenance, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.build.Load() != tok {
		return prov, false
	}
	prov.Generation = c.gen.Load()
	c.val.Store(&box[T]{value: value, prov: prov})
	return prov, true
}

// clear returns the cell to Unset and advances the generation. Emptying the
// build slot invalidates any in-flight builder, so its eventual store is
// discarded and waiting readers retry against the fresh state.
func (c *Cell[T]) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen.Add(1)
	c.val.Store(nil)
	c.build.Store(nil)
}
