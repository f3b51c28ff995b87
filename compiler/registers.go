package compiler

import (
	"fmt"

	"github.com/doof-lang/doof/errors"
)

// maxRegisters is the size of the per-call virtual register file.
const maxRegisters = 256

// RegisterAllocator assigns the register layout for one function, method,
// or lambda frame. The layout is deterministic:
//
//	r0              return value slot (never assigned to a variable)
//	r1              receiver, when the frame has one
//	r1/r2 ...       parameters, then captures, then locals, contiguous
//	first temporary strictly after the named range
//
// State is fully reset by Setup at the start of each frame and never
// shared across frames.
type RegisterAllocator struct {
	names     map[string]int
	allocated [maxRegisters]bool
	firstTemp int
	highWater int
}

// NewRegisterAllocator returns an allocator with no frame set up.
func NewRegisterAllocator() *RegisterAllocator {
	return &RegisterAllocator{names: map[string]int{}}
}

// Setup resets all state and assigns the frame layout. Captures sit
// between parameters and locals so the VM can copy a lambda's captured
// values into the frame right after the arguments.
func (r *RegisterAllocator) Setup(params, captures, locals []string, hasThis bool) error {
	r.names = map[string]int{}
	r.allocated = [maxRegisters]bool{}
	next := 1
	r.allocated[0] = true // return slot
	if hasThis {
		r.names["this"] = next
		r.allocated[next] = true
		next++
	}
	for _, group := range [][]string{params, captures, locals} {
		for _, name := range group {
			if _, ok := r.names[name]; ok {
				return errors.New(errors.E2007, "duplicate register binding for %q", name)
			}
			if next >= maxRegisters {
				return errors.New(errors.E2007, "function requires more than %d registers", maxRegisters)
			}
			r.names[name] = next
			r.allocated[next] = true
			next++
		}
	}
	r.firstTemp = next
	r.highWater = next - 1
	return nil
}

// Variable returns the pre-assigned register for a declared parameter,
// capture, or local. Referencing an undeclared name is fatal: the name
// should have been pre-scanned before the body was lowered.
func (r *RegisterAllocator) Variable(name string) (int, error) {
	reg, ok := r.names[name]
	if !ok {
		return 0, errors.New(errors.E2001, "undefined variable %q", name)
	}
	return reg, nil
}

// Lookup reports the register of a declared name without failing.
func (r *RegisterAllocator) Lookup(name string) (int, bool) {
	reg, ok := r.names[name]
	return reg, ok
}

// AllocTemp scans from the temporary boundary for the first free register.
func (r *RegisterAllocator) AllocTemp() (int, error) {
	for reg := r.firstTemp; reg < maxRegisters; reg++ {
		if !r.allocated[reg] {
			r.allocated[reg] = true
			if reg > r.highWater {
				r.highWater = reg
			}
			return reg, nil
		}
	}
	return 0, errors.New(errors.E2007, "out of temporary registers")
}

// Free releases a temporary. Freeing a register that is not allocated, or
// that lies below the temporary boundary, indicates a compiler bug and is
// fatal.
func (r *RegisterAllocator) Free(reg int) error {
	if reg < r.firstTemp {
		return errors.New(errors.E2007, "cannot free non-temporary register %d", reg)
	}
	if reg >= maxRegisters || !r.allocated[reg] {
		return errors.New(errors.E2007, "cannot free unallocated register %d", reg)
	}
	r.allocated[reg] = false
	return nil
}

// AllocBlock scans for n consecutive free registers at or above the
// temporary boundary, as required for staging call arguments in adjacent
// slots.
func (r *RegisterAllocator) AllocBlock(n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("invalid block size %d", n)
	}
	for start := r.firstTemp; start+n <= maxRegisters; start++ {
		free := true
		for i := 0; i < n; i++ {
			if r.allocated[start+i] {
				free = false
				break
			}
		}
		if !free {
			continue
		}
		for i := 0; i < n; i++ {
			r.allocated[start+i] = true
		}
		if start+n-1 > r.highWater {
			r.highWater = start + n - 1
		}
		return start, nil
	}
	return 0, errors.New(errors.E2007, "no contiguous block of %d registers", n)
}

// FreeBlock releases a block previously returned by AllocBlock.
func (r *RegisterAllocator) FreeBlock(start, n int) error {
	for i := 0; i < n; i++ {
		if err := r.Free(start + i); err != nil {
			return err
		}
	}
	return nil
}

// FirstTemp returns the temporary boundary.
func (r *RegisterAllocator) FirstTemp() int {
	return r.firstTemp
}

// Used reports the frame size: one past the highest register touched.
func (r *RegisterAllocator) Used() int {
	return r.highWater + 1
}
