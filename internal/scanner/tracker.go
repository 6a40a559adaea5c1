package scanner

import (
	"fmt"

	"github.com/cryptoseclab/cryptoaudit/internal/classfile"
)

// The tracker runs a forward abstract interpretation over one method body,
// on a flat lattice of string constants: every operand-stack position and
// local slot is either a known string constant or unknown. It exists to
// answer one question at each invocation: which arguments are string
// literals, including literals that took one round trip through a local.

// absVal is a lattice element: a known string constant or unknown.
type absVal struct {
	known bool
	s     string
}

// absState is the tracked machine state at one program point. A nil stack
// means the operand stack depth is unknown (an opaque instruction ran).
// Locals not present in the map are unknown.
type absState struct {
	reached bool
	stack   []absVal
	locals  map[int]string
}

func (st absState) clone() absState {
	out := absState{reached: true}
	if st.stack != nil {
		out.stack = append([]absVal(nil), st.stack...)
	}
	if st.locals != nil {
		out.locals = make(map[int]string, len(st.locals))
		for k, v := range st.locals {
			out.locals[k] = v
		}
	}
	return out
}

// merge combines two predecessor states. Positions agree or become unknown;
// mismatched stack depths collapse the whole stack to unknown. The second
// return reports whether the result differs from a.
func merge(a, b absState) (absState, bool) {
	changed := false
	out := absState{reached: true}

	if a.stack == nil || b.stack == nil || len(a.stack) != len(b.stack) {
		out.stack = nil
		changed = a.stack != nil
	} else {
		out.stack = make([]absVal, len(a.stack))
		for i := range a.stack {
			if a.stack[i].known && b.stack[i].known && a.stack[i].s == b.stack[i].s {
				out.stack[i] = a.stack[i]
			} else {
				if a.stack[i].known {
					changed = true
				}
			}
		}
	}

	out.locals = make(map[int]string)
	for k, v := range a.locals {
		if bv, ok := b.locals[k]; ok && bv == v {
			out.locals[k] = v
		} else {
			changed = true
		}
	}
	return out, changed
}

// tracker holds the per-instruction entry states of one analyzed method.
type tracker struct {
	instrs []classfile.Instruction
	entry  []absState
}

// track analyzes a method body with a worklist over instructions. Exception
// handler entry points are seeded with no known locals and an unknown
// operand stack so code in catch blocks is still scanned.
func track(m *classfile.Method) *tracker {
	t := &tracker{
		instrs: m.Instructions,
		entry:  make([]absState, len(m.Instructions)),
	}
	if len(t.instrs) == 0 {
		return t
	}

	index := make(map[int]int, len(t.instrs)) // pc -> instruction index
	for i, in := range t.instrs {
		index[in.PC] = i
	}

	var work []int
	seed := func(i int) {
		if !t.entry[i].reached {
			t.entry[i] = absState{reached: true, stack: []absVal{}, locals: map[int]string{}}
			work = append(work, i)
		}
	}
	seed(0)
	for _, pc := range m.HandlerPCs {
		if i, ok := index[pc]; ok {
			// Handlers begin with the thrown value on an otherwise unknown stack.
			t.entry[i] = absState{reached: true, stack: nil, locals: map[int]string{}}
			work = append(work, i)
		}
	}

	push := func(i int, st absState) {
		if !t.entry[i].reached {
			t.entry[i] = st.clone()
			work = append(work, i)
			return
		}
		merged, changed := merge(t.entry[i], st)
		if changed {
			t.entry[i] = merged
			work = append(work, i)
		}
	}

	for len(work) > 0 {
		i := work[len(work)-1]
		work = work[:len(work)-1]
		in := t.instrs[i]
		out := transfer(t.entry[i], in)

		for _, target := range in.Targets {
			if ti, ok := index[target]; ok {
				push(ti, out)
			}
		}
		if fallsThrough(in) && i+1 < len(t.instrs) {
			push(i+1, out)
		}
	}
	return t
}

func fallsThrough(in classfile.Instruction) bool {
	switch in.Op {
	case classfile.OpReturn, classfile.OpSwitch:
		return false
	case classfile.OpBranch:
		return in.FallsThrough
	case classfile.OpOther:
		return true // jsr carries targets but also falls through conservatively
	}
	return true
}

// transfer applies one instruction's effect to a state.
func transfer(st absState, in classfile.Instruction) absState {
	out := st.clone()
	switch in.Op {
	case classfile.OpConstStr:
		out.stack = pushVal(out.stack, absVal{known: true, s: in.Str})
	case classfile.OpPush:
		out.stack = pushVal(out.stack, absVal{})
	case classfile.OpDup:
		if n := len(out.stack); out.stack != nil && n > 0 {
			out.stack = append(out.stack, out.stack[n-1])
		} else {
			out.stack = pushVal(out.stack, absVal{})
		}
	case classfile.OpPop:
		out.stack = popN(out.stack, 1)
	case classfile.OpNop:
		// no effect
	case classfile.OpRefLoad:
		if s, ok := out.locals[in.Slot]; ok {
			out.stack = pushVal(out.stack, absVal{known: true, s: s})
		} else {
			out.stack = pushVal(out.stack, absVal{})
		}
	case classfile.OpRefStore:
		if n := len(out.stack); out.stack != nil && n > 0 && out.stack[n-1].known {
			out.locals[in.Slot] = out.stack[n-1].s
		} else {
			delete(out.locals, in.Slot)
		}
		out.stack = popN(out.stack, 1)
	case classfile.OpPrimStore:
		delete(out.locals, in.Slot)
		out.stack = popN(out.stack, 1)
	case classfile.OpIInc:
		delete(out.locals, in.Slot)
	case classfile.OpInvoke:
		n := in.Invoke.ArgCount
		if in.Invoke.HasReceiver {
			n++
		}
		out.stack = popN(out.stack, n)
		if classfile.ReturnType(in.Invoke.Descriptor) != "void" {
			out.stack = pushVal(out.stack, absVal{})
		}
	case classfile.OpBranch:
		out.stack = popN(out.stack, in.Pops)
	case classfile.OpSwitch:
		out.stack = popN(out.stack, 1)
	case classfile.OpReturn:
		// terminal, no successors
	default: // OpOther invalidates the tracked stack
		out.stack = nil
	}
	if out.locals == nil {
		out.locals = map[int]string{}
	}
	return out
}

func pushVal(stack []absVal, v absVal) []absVal {
	if stack == nil {
		// Depth below the push stays unknown, but the pushed value itself
		// is tracked: most call sites load their arguments right before
		// the invocation.
		return []absVal{v}
	}
	return append(stack, v)
}

func popN(stack []absVal, n int) []absVal {
	if stack == nil {
		return nil
	}
	if n >= len(stack) {
		return []absVal{}
	}
	return stack[:len(stack)-n]
}

// argsAt reads the argc argument values sitting on the stack at instruction
// i, in source order. Positions the tracker lost yield unresolved values
// with a synthetic rendering.
func (t *tracker) argsAt(i, argc int) []ArgumentValue {
	st := t.entry[i]
	args := make([]ArgumentValue, argc)
	for k := 0; k < argc; k++ {
		args[k] = ArgumentValue{Index: k, Printable: fmt.Sprintf("<arg%d>", k)}
		pos := len(st.stack) - argc + k
		if st.reached && st.stack != nil && pos >= 0 && st.stack[pos].known {
			args[k].Literal = st.stack[pos].s
			args[k].Printable = st.stack[pos].s
			args[k].Resolved = true
		}
	}
	return args
}
