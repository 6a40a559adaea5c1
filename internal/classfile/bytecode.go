package classfile

import "fmt"

// Op classifies a decoded instruction by its effect on constant tracking.
// Anything the tracker does not understand is OpOther, which invalidates the
// tracked operand stack.
type Op int

const (
	OpOther      Op = iota // unknown stack effect
	OpConstStr             // push a string literal
	OpPush                 // push one unknown value
	OpDup                  // duplicate the top value
	OpPop                  // discard the top value
	OpNop                  // no stack effect
	OpRefLoad              // aload: push local slot
	OpRefStore             // astore: store top into local slot
	OpPrimStore            // istore family: pop one, slot becomes unknown
	OpIInc                 // increments a local, no stack effect
	OpInvoke               // method invocation
	OpBranch               // conditional or unconditional jump
	OpSwitch               // tableswitch / lookupswitch
	OpReturn               // return or athrow: no successors
)

// InvokeRef identifies the resolved target of an invocation instruction.
type InvokeRef struct {
	ClassName   string // dotted declaring class; "" for invokedynamic
	MethodName  string
	Descriptor  string
	ArgCount    int  // descriptor argument count, receiver excluded
	HasReceiver bool // false for invokestatic and invokedynamic
}

// Instruction is one decoded bytecode instruction.
type Instruction struct {
	PC     int
	Opcode byte
	Op     Op

	Str          string     // OpConstStr
	Slot         int        // OpRefLoad, OpRefStore, OpPrimStore, OpIInc
	Pops         int        // OpBranch: operand values consumed by the comparison
	Targets      []int      // OpBranch, OpSwitch: jump target pcs
	FallsThrough bool       // OpBranch: conditional branches also fall through
	Invoke       *InvokeRef // OpInvoke
}

// JVM opcodes the decoder treats specially.
const (
	opNop          = 0x00
	opAConstNull   = 0x01
	opBiPush       = 0x10
	opSiPush       = 0x11
	opLdc          = 0x12
	opLdcW         = 0x13
	opLdc2W        = 0x14
	opILoad        = 0x15
	opALoad        = 0x19
	opALoad0       = 0x2a
	opIStore       = 0x36
	opAStore       = 0x3a
	opAStore0      = 0x4b
	opPop          = 0x57
	opDup          = 0x59
	opIInc         = 0x84
	opIfEq         = 0x99
	opIfICmpEq     = 0x9f
	opIfACmpNe     = 0xa6
	opGoto         = 0xa7
	opJsr          = 0xa8
	opRet          = 0xa9
	opTableSwitch  = 0xaa
	opLookupSwitch = 0xab
	opIReturn      = 0xac
	opReturn       = 0xb1
	opGetStatic    = 0xb2
	opInvokeVirtual   = 0xb6
	opInvokeSpecial   = 0xb7
	opInvokeStatic    = 0xb8
	opInvokeInterface = 0xb9
	opInvokeDynamic   = 0xba
	opNew          = 0xbb
	opAThrow       = 0xbf
	opCheckCast    = 0xc0
	opWide         = 0xc4
	opIfNull       = 0xc6
	opIfNonNull    = 0xc7
	opGotoW        = 0xc8
	opJsrW         = 0xc9
)

// operandLen is the number of operand bytes following each opcode, or -1 for
// the variable-length and specially handled ones.
var operandLen = buildOperandLen()

func buildOperandLen() [256]int {
	var t [256]int
	for i := range t {
		t[i] = -2 // not a valid opcode
	}
	set := func(lo, hi, n int) {
		for op := lo; op <= hi; op++ {
			t[op] = n
		}
	}
	set(0x00, 0x0f, 0) // nop, const loads
	set(0x10, 0x10, 1) // bipush
	set(0x11, 0x11, 2) // sipush
	set(0x12, 0x12, 1) // ldc
	set(0x13, 0x14, 2) // ldc_w, ldc2_w
	set(0x15, 0x19, 1) // iload..aload
	set(0x1a, 0x35, 0) // *load_<n>, array loads
	set(0x36, 0x3a, 1) // istore..astore
	set(0x3b, 0x56, 0) // *store_<n>, array stores
	set(0x57, 0x5f, 0) // pop..swap
	set(0x60, 0x83, 0) // arithmetic
	set(0x84, 0x84, 2) // iinc
	set(0x85, 0x98, 0) // conversions, comparisons
	set(0x99, 0xa8, 2) // if*, goto, jsr
	set(0xa9, 0xa9, 1) // ret
	t[opTableSwitch] = -1
	t[opLookupSwitch] = -1
	set(0xac, 0xb1, 0) // returns
	set(0xb2, 0xb5, 2) // getstatic..putfield
	set(0xb6, 0xb8, 2) // invokevirtual, invokespecial, invokestatic
	set(0xb9, 0xba, 4) // invokeinterface, invokedynamic
	set(0xbb, 0xbb, 2) // new
	set(0xbc, 0xbc, 1) // newarray
	set(0xbd, 0xbd, 2) // anewarray
	set(0xbe, 0xbf, 0) // arraylength, athrow
	set(0xc0, 0xc1, 2) // checkcast, instanceof
	set(0xc2, 0xc3, 0) // monitorenter, monitorexit
	t[opWide] = -1
	set(0xc5, 0xc5, 3) // multianewarray
	set(0xc6, 0xc7, 2) // ifnull, ifnonnull
	set(0xc8, 0xc9, 4) // goto_w, jsr_w
	return t
}

// decode walks the code array and classifies every instruction.
func decode(code []byte, pool *constPool) ([]Instruction, error) {
	var instrs []Instruction
	pc := 0
	for pc < len(code) {
		opcode := code[pc]
		in := Instruction{PC: pc, Opcode: opcode}
		next := pc + 1

		switch {
		case opcode == opLdc || opcode == opLdcW:
			var idx int
			if opcode == opLdc {
				if pc+1 >= len(code) {
					return nil, truncated(pc)
				}
				idx = int(code[pc+1])
				next = pc + 2
			} else {
				if pc+2 >= len(code) {
					return nil, truncated(pc)
				}
				idx = int(code[pc+1])<<8 | int(code[pc+2])
				next = pc + 3
			}
			if s, ok := pool.stringConst(idx); ok {
				in.Op = OpConstStr
				in.Str = s
			} else {
				in.Op = OpPush // int, float, class literal, ...
			}

		case opcode >= 0x01 && opcode <= 0x11, opcode == opLdc2W,
			opcode == opGetStatic, opcode == opNew:
			in.Op = OpPush
			next = pc + 1 + operandLen[opcode]

		case opcode == opALoad:
			if pc+1 >= len(code) {
				return nil, truncated(pc)
			}
			in.Op = OpRefLoad
			in.Slot = int(code[pc+1])
			next = pc + 2

		case opcode >= opALoad0 && opcode <= 0x2d: // aload_0..aload_3
			in.Op = OpRefLoad
			in.Slot = int(opcode - opALoad0)

		case opcode == opAStore:
			if pc+1 >= len(code) {
				return nil, truncated(pc)
			}
			in.Op = OpRefStore
			in.Slot = int(code[pc+1])
			next = pc + 2

		case opcode >= opAStore0 && opcode <= 0x4e: // astore_0..astore_3
			in.Op = OpRefStore
			in.Slot = int(opcode - opAStore0)

		case opcode >= opILoad && opcode <= 0x18: // iload..dload
			in.Op = OpPush
			next = pc + 2

		case opcode >= 0x1a && opcode <= 0x29: // iload_<n>..dload_<n>
			in.Op = OpPush

		case opcode >= opIStore && opcode <= 0x39: // istore..dstore
			if pc+1 >= len(code) {
				return nil, truncated(pc)
			}
			in.Op = OpPrimStore
			in.Slot = int(code[pc+1])
			next = pc + 2

		case opcode >= 0x3b && opcode <= 0x4a: // istore_<n>..dstore_<n>
			in.Op = OpPrimStore
			in.Slot = int(opcode-0x3b) % 4

		case opcode == opPop:
			in.Op = OpPop

		case opcode == opDup:
			in.Op = OpDup

		case opcode == opNop, opcode == opCheckCast:
			in.Op = OpNop
			next = pc + 1 + operandLen[opcode]

		case opcode == opIInc:
			if pc+2 >= len(code) {
				return nil, truncated(pc)
			}
			in.Op = OpIInc
			in.Slot = int(code[pc+1])
			next = pc + 3

		case opcode >= opIfEq && opcode <= opIfICmpEq-1, // ifeq..ifle
			opcode == opIfNull, opcode == opIfNonNull:
			target, n, err := branchTarget(code, pc, false)
			if err != nil {
				return nil, err
			}
			in.Op = OpBranch
			in.Pops = 1
			in.Targets = []int{target}
			in.FallsThrough = true
			next = pc + n

		case opcode >= opIfICmpEq && opcode <= opIfACmpNe: // if_icmp*, if_acmp*
			target, n, err := branchTarget(code, pc, false)
			if err != nil {
				return nil, err
			}
			in.Op = OpBranch
			in.Pops = 2
			in.Targets = []int{target}
			in.FallsThrough = true
			next = pc + n

		case opcode == opGoto, opcode == opGotoW:
			target, n, err := branchTarget(code, pc, opcode == opGotoW)
			if err != nil {
				return nil, err
			}
			in.Op = OpBranch
			in.Targets = []int{target}
			next = pc + n

		case opcode == opJsr, opcode == opJsrW:
			// Subroutines push a return address the tracker cannot model.
			// Treat both the target and the fall-through as reachable with an
			// invalidated stack.
			target, n, err := branchTarget(code, pc, opcode == opJsrW)
			if err != nil {
				return nil, err
			}
			in.Op = OpOther
			in.Targets = []int{target}
			in.FallsThrough = true
			next = pc + n

		case opcode == opRet:
			in.Op = OpReturn
			next = pc + 2

		case opcode == opTableSwitch:
			targets, n, err := tableSwitch(code, pc)
			if err != nil {
				return nil, err
			}
			in.Op = OpSwitch
			in.Targets = targets
			next = pc + n

		case opcode == opLookupSwitch:
			targets, n, err := lookupSwitch(code, pc)
			if err != nil {
				return nil, err
			}
			in.Op = OpSwitch
			in.Targets = targets
			next = pc + n

		case opcode >= opIReturn && opcode <= opReturn, opcode == opAThrow:
			in.Op = OpReturn

		case opcode >= opInvokeVirtual && opcode <= opInvokeDynamic:
			ref, err := invokeRef(code, pc, pool)
			if err != nil {
				return nil, err
			}
			in.Op = OpInvoke
			in.Invoke = ref
			next = pc + 1 + operandLen[opcode]

		case opcode == opWide:
			wideIn, n, err := decodeWide(code, pc)
			if err != nil {
				return nil, err
			}
			in = wideIn
			next = pc + n

		default:
			n := operandLen[opcode]
			if n == -2 {
				return nil, fmt.Errorf("%w: unknown opcode 0x%02x at pc %d", ErrMalformed, opcode, pc)
			}
			in.Op = OpOther
			next = pc + 1 + n
		}

		if next <= pc || next > len(code) {
			return nil, truncated(pc)
		}
		instrs = append(instrs, in)
		pc = next
	}
	return instrs, nil
}

func truncated(pc int) error {
	return fmt.Errorf("%w: truncated instruction at pc %d", ErrMalformed, pc)
}

func branchTarget(code []byte, pc int, wide bool) (int, int, error) {
	if wide {
		if pc+4 >= len(code) {
			return 0, 0, truncated(pc)
		}
		off := int32(uint32(code[pc+1])<<24 | uint32(code[pc+2])<<16 |
			uint32(code[pc+3])<<8 | uint32(code[pc+4]))
		return pc + int(off), 5, nil
	}
	if pc+2 >= len(code) {
		return 0, 0, truncated(pc)
	}
	off := int16(uint16(code[pc+1])<<8 | uint16(code[pc+2]))
	return pc + int(off), 3, nil
}

func readI4(code []byte, at int) (int, error) {
	if at+4 > len(code) {
		return 0, truncated(at)
	}
	v := int32(uint32(code[at])<<24 | uint32(code[at+1])<<16 |
		uint32(code[at+2])<<8 | uint32(code[at+3]))
	return int(v), nil
}

func tableSwitch(code []byte, pc int) ([]int, int, error) {
	at := pc + 1
	at += (4 - at%4) % 4 // operands are 4-byte aligned
	def, err := readI4(code, at)
	if err != nil {
		return nil, 0, err
	}
	low, err := readI4(code, at+4)
	if err != nil {
		return nil, 0, err
	}
	high, err := readI4(code, at+8)
	if err != nil {
		return nil, 0, err
	}
	if high < low {
		return nil, 0, fmt.Errorf("%w: tableswitch bounds %d..%d at pc %d", ErrMalformed, low, high, pc)
	}
	count := high - low + 1
	targets := []int{pc + def}
	for i := 0; i < count; i++ {
		off, err := readI4(code, at+12+4*i)
		if err != nil {
			return nil, 0, err
		}
		targets = append(targets, pc+off)
	}
	return targets, at + 12 + 4*count - pc, nil
}

func lookupSwitch(code []byte, pc int) ([]int, int, error) {
	at := pc + 1
	at += (4 - at%4) % 4
	def, err := readI4(code, at)
	if err != nil {
		return nil, 0, err
	}
	npairs, err := readI4(code, at+4)
	if err != nil {
		return nil, 0, err
	}
	if npairs < 0 {
		return nil, 0, fmt.Errorf("%w: lookupswitch pair count %d at pc %d", ErrMalformed, npairs, pc)
	}
	targets := []int{pc + def}
	for i := 0; i < npairs; i++ {
		off, err := readI4(code, at+8+8*i+4)
		if err != nil {
			return nil, 0, err
		}
		targets = append(targets, pc+off)
	}
	return targets, at + 8 + 8*npairs - pc, nil
}

func invokeRef(code []byte, pc int, pool *constPool) (*InvokeRef, error) {
	if pc+2 >= len(code) {
		return nil, truncated(pc)
	}
	idx := int(code[pc+1])<<8 | int(code[pc+2])
	opcode := code[pc]

	if opcode == opInvokeDynamic {
		name, desc, err := pool.callSiteRef(idx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		argc, err := ArgCount(desc)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return &InvokeRef{MethodName: name, Descriptor: desc, ArgCount: argc}, nil
	}

	class, name, desc, err := pool.methodRef(idx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	argc, err := ArgCount(desc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &InvokeRef{
		ClassName:   dotted(class),
		MethodName:  name,
		Descriptor:  desc,
		ArgCount:    argc,
		HasReceiver: opcode != opInvokeStatic,
	}, nil
}

// decodeWide handles the wide prefix for loads, stores, ret and iinc.
func decodeWide(code []byte, pc int) (Instruction, int, error) {
	if pc+3 >= len(code) {
		return Instruction{}, 0, truncated(pc)
	}
	inner := code[pc+1]
	slot := int(code[pc+2])<<8 | int(code[pc+3])
	in := Instruction{PC: pc, Opcode: opWide}

	switch {
	case inner == opALoad:
		in.Op = OpRefLoad
		in.Slot = slot
		return in, 4, nil
	case inner == opAStore:
		in.Op = OpRefStore
		in.Slot = slot
		return in, 4, nil
	case inner >= opILoad && inner <= 0x18:
		in.Op = OpPush
		return in, 4, nil
	case inner >= opIStore && inner <= 0x39:
		in.Op = OpPrimStore
		in.Slot = slot
		return in, 4, nil
	case inner == opRet:
		in.Op = OpReturn
		return in, 4, nil
	case inner == opIInc:
		if pc+5 >= len(code) {
			return Instruction{}, 0, truncated(pc)
		}
		in.Op = OpIInc
		in.Slot = slot
		return in, 6, nil
	}
	return Instruction{}, 0, fmt.Errorf("%w: wide prefix on opcode 0x%02x at pc %d", ErrMalformed, inner, pc)
}
