package vm

import (
	"fmt"
	"strings"

	"n2t.dev/toolchain/pkg/asm"
)

// ----------------------------------------------------------------------------
// Vm Lowerer

// The Lowerer takes a 'vm.Program' (one or more already-parsed 'vm.Module') and produces
// its 'asm.Program' counterpart, implementing the Hack calling convention described by the
// nand2tetris VM specification (stack manipulation, function call/return frames, ...).
//
// Unlike the Assembler's Lowerer (a flat one-pass DFS), this Lowerer has to thread two
// pieces of state across the whole program: a label counter (so that every comparison and
// every call site gets a fresh, globally unique label) and the name of the module currently
// being lowered (needed to mangle the 'static' segment per translation unit).
type Lowerer struct {
	program    Program
	labelSeq   int
	moduleName string
	debug      bool
}

// Initializes and returns to the caller a brand new 'Lowerer' struct.
// Requires the argument Program to be non-nil. When 'debug' is set, every lowered
// instruction block is prefixed with an 'asm.Comment' echoing the VM command it came
// from, the mechanism backing the VM Translator's '--debug' mode.
func NewLowerer(p Program, debug bool) Lowerer {
	return Lowerer{program: p, debug: debug}
}

// Triggers the lowering process, one module at a time, in the order modules were added to
// the Program ('vm.Program' is backed by an insertion ordered map). The bootstrap is not
// part of the Program: 'Bootstrap' produces it separately for the caller to prepend.
func (vl *Lowerer) Lower() (asm.Program, error) {
	program := []asm.Instruction{}

	if vl.program.Len() == 0 {
		return nil, fmt.Errorf("the given 'program' is empty")
	}

	var loweringErr error
	vl.program.Iterator()(func(name string, module Module) bool {
		vl.moduleName = strings.TrimSuffix(name, ".vm")

		for _, operation := range module {
			var instructions []asm.Instruction
			var err error

			switch tOperation := operation.(type) {
			case MemoryOp:
				instructions, err = vl.HandleMemoryOp(tOperation)
			case ArithmeticOp:
				instructions, err = vl.HandleArithmeticOp(tOperation)
			case LabelDecl:
				instructions, err = vl.HandleLabelDecl(tOperation)
			case GotoOp:
				instructions, err = vl.HandleGotoOp(tOperation)
			case FuncDecl:
				instructions, err = vl.HandleFuncDecl(tOperation)
			case FuncCallOp:
				instructions, err = vl.HandleFuncCallOp(tOperation)
			case ReturnOp:
				instructions, err = vl.HandleReturnOp(tOperation)
			default:
				err = fmt.Errorf("unrecognized operation '%T'", operation)
			}

			if err != nil {
				loweringErr = err
				return false
			}

			if vl.debug {
				echoed, echoErr := echoOperation(operation)
				if echoErr != nil {
					loweringErr = echoErr
					return false
				}
				program = append(program, asm.Comment{Text: echoed})
			}

			program = append(program, instructions...)
		}
		return true
	})

	if loweringErr != nil {
		return nil, loweringErr
	}
	return program, nil
}

// echoOperation renders a single 'vm.Operation' back to its VM source form, reusing the
// same per-operation renderers the debug echo generator exposes. Used to build the
// 'asm.Comment' interleaved above each lowered block when '--debug' is active.
func echoOperation(operation Operation) (string, error) {
	eg := EchoGenerator{}

	switch tOperation := operation.(type) {
	case MemoryOp:
		return eg.GenerateMemoryOp(tOperation)
	case ArithmeticOp:
		return eg.GenerateArithmeticOp(tOperation)
	case LabelDecl:
		return eg.GenerateLabelDecl(tOperation)
	case GotoOp:
		return eg.GenerateGotoOp(tOperation)
	case FuncDecl:
		return eg.GenerateFuncDecl(tOperation)
	case ReturnOp:
		return eg.GenerateReturnOp(tOperation)
	case FuncCallOp:
		return eg.GenerateFuncCallOp(tOperation)
	default:
		return "", fmt.Errorf("unrecognized operation '%T'", operation)
	}
}

// Returns a fresh, program-wide unique label built from the given prefix. Used for both
// comparison short-circuiting labels and 'call' return-address labels, each incremented
// exactly once per originating VM command (never once per generated Asm instruction).
func (vl *Lowerer) freshLabel(prefix string) string {
	vl.labelSeq++
	return fmt.Sprintf("%s$%d", prefix, vl.labelSeq)
}

// ----------------------------------------------------------------------------
// Shared stack helpers

// Appends the instructions that push the current value of the D register onto the stack.
func pushD() []asm.Instruction {
	return []asm.Instruction{
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "A", Comp: "M"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "M", Comp: "M+1"},
	}
}

// Appends the instructions that pop the stack's top into the D register.
func popD() []asm.Instruction {
	return []asm.Instruction{
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "AM", Comp: "M-1"},
		asm.CInstruction{Dest: "D", Comp: "M"},
	}
}

// ----------------------------------------------------------------------------
// Memory Op

// Maps each of the 4 pointer-backed segments to the Hack built-in symbol holding its base.
var segmentBase = map[SegmentType]string{
	Local:    "LCL",
	Argument: "ARG",
	This:     "THIS",
	That:     "THAT",
}

// Specialized function to convert a 'vm.MemoryOp' to its 'asm.Instruction' sequence.
func (vl *Lowerer) HandleMemoryOp(op MemoryOp) ([]asm.Instruction, error) {
	switch op.Segment {
	case Constant:
		return vl.handleConstant(op)
	case Local, Argument, This, That:
		return vl.handlePointerBacked(op)
	case Temp:
		return vl.handleTemp(op)
	case Pointer:
		return vl.handlePointer(op)
	case Static:
		return vl.handleStatic(op)
	default:
		return nil, fmt.Errorf("unrecognized segment '%s'", op.Segment)
	}
}

// The 'constant' segment is virtual: it only ever makes sense to push, never to pop.
func (vl *Lowerer) handleConstant(op MemoryOp) ([]asm.Instruction, error) {
	if op.Operation == Pop {
		return nil, fmt.Errorf("cannot 'pop' to the 'constant' segment")
	}

	instructions := []asm.Instruction{
		asm.AInstruction{Location: fmt.Sprint(op.Offset)},
		asm.CInstruction{Dest: "D", Comp: "A"},
	}
	return append(instructions, pushD()...), nil
}

// 'local', 'argument', 'this' and 'that' are accessed indirectly through their base pointer.
func (vl *Lowerer) handlePointerBacked(op MemoryOp) ([]asm.Instruction, error) {
	base := segmentBase[op.Segment]

	if op.Operation == Push {
		instructions := []asm.Instruction{
			asm.AInstruction{Location: base},
			asm.CInstruction{Dest: "D", Comp: "M"},
			asm.AInstruction{Location: fmt.Sprint(op.Offset)},
			asm.CInstruction{Dest: "A", Comp: "D+A"},
			asm.CInstruction{Dest: "D", Comp: "M"},
		}
		return append(instructions, pushD()...), nil
	}

	// 'pop': the target address is computed first and staged in R13, since popping the
	// value itself clobbers D and the address computation can't be redone afterwards.
	instructions := []asm.Instruction{
		asm.AInstruction{Location: base},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: fmt.Sprint(op.Offset)},
		asm.CInstruction{Dest: "D", Comp: "D+A"},
		asm.AInstruction{Location: "R13"},
		asm.CInstruction{Dest: "M", Comp: "D"},
	}
	instructions = append(instructions, popD()...)
	instructions = append(instructions,
		asm.AInstruction{Location: "R13"},
		asm.CInstruction{Dest: "A", Comp: "M"},
		asm.CInstruction{Dest: "M", Comp: "D"},
	)
	return instructions, nil
}

// 'temp' is a fixed 8-word window starting at RAM[5], addressed directly (no pointer hop).
func (vl *Lowerer) handleTemp(op MemoryOp) ([]asm.Instruction, error) {
	if op.Offset > 7 {
		return nil, fmt.Errorf("invalid 'temp' offset, got %d", op.Offset)
	}
	address := fmt.Sprint(5 + op.Offset)

	if op.Operation == Push {
		return append([]asm.Instruction{
			asm.AInstruction{Location: address},
			asm.CInstruction{Dest: "D", Comp: "M"},
		}, pushD()...), nil
	}

	instructions := popD()
	return append(instructions,
		asm.AInstruction{Location: address},
		asm.CInstruction{Dest: "M", Comp: "D"},
	), nil
}

// 'pointer' has exactly 2 locations and, unlike the other 4 segments, writes straight to
// the THIS/THAT registers themselves rather than through them.
func (vl *Lowerer) handlePointer(op MemoryOp) ([]asm.Instruction, error) {
	if op.Offset > 1 {
		return nil, fmt.Errorf("invalid 'pointer' offset, got %d", op.Offset)
	}
	target := "THIS"
	if op.Offset == 1 {
		target = "THAT"
	}

	if op.Operation == Push {
		return append([]asm.Instruction{
			asm.AInstruction{Location: target},
			asm.CInstruction{Dest: "D", Comp: "M"},
		}, pushD()...), nil
	}

	instructions := popD()
	return append(instructions,
		asm.AInstruction{Location: target},
		asm.CInstruction{Dest: "M", Comp: "D"},
	), nil
}

// 'static' variables are shared per translation unit: each one is mangled to 'Module.i' so
// that multiple .vm files linked together don't collide on the same symbol.
func (vl *Lowerer) handleStatic(op MemoryOp) ([]asm.Instruction, error) {
	symbol := fmt.Sprintf("%s.%d", vl.moduleName, op.Offset)

	if op.Operation == Push {
		return append([]asm.Instruction{
			asm.AInstruction{Location: symbol},
			asm.CInstruction{Dest: "D", Comp: "M"},
		}, pushD()...), nil
	}

	instructions := popD()
	return append(instructions,
		asm.AInstruction{Location: symbol},
		asm.CInstruction{Dest: "M", Comp: "D"},
	), nil
}

// ----------------------------------------------------------------------------
// Arithmetic Op

// Maps each binary op to the 'comp' bit-code to apply once both operands are loaded.
var binaryCompTable = map[ArithOpType]string{
	Add: "D+M",
	Sub: "M-D",
	And: "D&M",
	Or:  "D|M",
}

// Maps each unary op to the 'comp' bit-code applied in place on the stack's top.
var unaryCompTable = map[ArithOpType]string{
	Neg: "-M",
	Not: "!M",
}

// Maps each comparison op to the Hack jump mnemonic taken when the comparison holds.
var comparisonJumpTable = map[ArithOpType]string{
	Eq: "JEQ",
	Gt: "JGT",
	Lt: "JLT",
}

// Specialized function to convert a 'vm.ArithmeticOp' to its 'asm.Instruction' sequence.
func (vl *Lowerer) HandleArithmeticOp(op ArithmeticOp) ([]asm.Instruction, error) {
	if comp, found := unaryCompTable[op.Operation]; found {
		return []asm.Instruction{
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "A", Comp: "M-1"},
			asm.CInstruction{Dest: "M", Comp: comp},
		}, nil
	}

	if comp, found := binaryCompTable[op.Operation]; found {
		return []asm.Instruction{
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "AM", Comp: "M-1"},
			asm.CInstruction{Dest: "D", Comp: "M"},
			asm.CInstruction{Dest: "A", Comp: "A-1"},
			asm.CInstruction{Dest: "M", Comp: comp},
		}, nil
	}

	if jump, found := comparisonJumpTable[op.Operation]; found {
		trueLabel := vl.freshLabel("TRUE")
		endLabel := vl.freshLabel("END")

		return []asm.Instruction{
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "AM", Comp: "M-1"},
			asm.CInstruction{Dest: "D", Comp: "M"},
			asm.CInstruction{Dest: "A", Comp: "A-1"},
			asm.CInstruction{Dest: "D", Comp: "M-D"},
			asm.AInstruction{Location: trueLabel},
			asm.CInstruction{Comp: "D", Jump: jump},
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "A", Comp: "M-1"},
			asm.CInstruction{Dest: "M", Comp: "0"},
			asm.AInstruction{Location: endLabel},
			asm.CInstruction{Comp: "0", Jump: "JMP"},
			asm.LabelDecl{Name: trueLabel},
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "A", Comp: "M-1"},
			asm.CInstruction{Dest: "M", Comp: "-1"},
			asm.LabelDecl{Name: endLabel},
		}, nil
	}

	return nil, fmt.Errorf("unrecognized arithmetic operation '%s'", op.Operation)
}

// ----------------------------------------------------------------------------
// Label declaration & goto

// Specialized function to convert a 'vm.LabelDecl' to its 'asm.Instruction' sequence.
//
// The label name is emitted verbatim: function-local labels in well-formed VM bytecode
// already carry their enclosing function's prefix, so no further mangling is needed.
func (vl *Lowerer) HandleLabelDecl(op LabelDecl) ([]asm.Instruction, error) {
	if op.Name == "" {
		return nil, fmt.Errorf("unable to lower empty label declaration")
	}
	return []asm.Instruction{asm.LabelDecl{Name: op.Name}}, nil
}

// Specialized function to convert a 'vm.GotoOp' to its 'asm.Instruction' sequence.
func (vl *Lowerer) HandleGotoOp(op GotoOp) ([]asm.Instruction, error) {
	if op.Label == "" {
		return nil, fmt.Errorf("unable to lower jump to empty label")
	}

	if op.Jump == Unconditional {
		return []asm.Instruction{
			asm.AInstruction{Location: op.Label},
			asm.CInstruction{Comp: "0", Jump: "JMP"},
		}, nil
	}

	return append(popD(),
		asm.AInstruction{Location: op.Label},
		asm.CInstruction{Comp: "D", Jump: "JNE"},
	), nil
}

// ----------------------------------------------------------------------------
// Function declaration, call and return

// Specialized function to convert a 'vm.FuncDecl' to its 'asm.Instruction' sequence.
//
// Emits the function's entry label followed by 'NLocal' pushes of the constant 0, the
// idiomatic way of zero-initializing the callee's local variables on the stack.
func (vl *Lowerer) HandleFuncDecl(op FuncDecl) ([]asm.Instruction, error) {
	if op.Name == "" {
		return nil, fmt.Errorf("unable to lower empty function declaration")
	}

	instructions := []asm.Instruction{asm.LabelDecl{Name: op.Name}}
	for i := uint8(0); i < op.NLocal; i++ {
		instructions = append(instructions,
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "A", Comp: "M"},
			asm.CInstruction{Dest: "M", Comp: "0"},
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "M", Comp: "M+1"},
		)
	}
	return instructions, nil
}

// Specialized function to convert a 'vm.FuncCallOp' to its 'asm.Instruction' sequence.
//
// Implements the 5-word calling frame: pushes a fresh return-address label followed by the
// caller's LCL/ARG/THIS/THAT, repositions ARG/LCL for the callee, then jumps to it.
func (vl *Lowerer) HandleFuncCallOp(op FuncCallOp) ([]asm.Instruction, error) {
	if op.Name == "" {
		return nil, fmt.Errorf("unable to lower empty function call")
	}
	returnLabel := vl.freshLabel(fmt.Sprintf("%s$ret", op.Name))

	instructions := []asm.Instruction{
		asm.AInstruction{Location: returnLabel},
		asm.CInstruction{Dest: "D", Comp: "A"},
	}
	instructions = append(instructions, pushD()...)

	for _, saved := range []string{"LCL", "ARG", "THIS", "THAT"} {
		instructions = append(instructions,
			asm.AInstruction{Location: saved},
			asm.CInstruction{Dest: "D", Comp: "M"},
		)
		instructions = append(instructions, pushD()...)
	}

	instructions = append(instructions,
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "5"},
		asm.CInstruction{Dest: "D", Comp: "D-A"},
		asm.AInstruction{Location: fmt.Sprint(op.NArgs)},
		asm.CInstruction{Dest: "D", Comp: "D-A"},
		asm.AInstruction{Location: "ARG"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "LCL"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		asm.AInstruction{Location: op.Name},
		asm.CInstruction{Comp: "0", Jump: "JMP"},
		asm.LabelDecl{Name: returnLabel},
	)
	return instructions, nil
}

// Specialized function to convert a 'vm.ReturnOp' to its 'asm.Instruction' sequence.
//
// Unwinds the callee's frame using R13 (endFrame) and R14 (retAddr) as scratch registers,
// repeatedly decrementing R13 to walk back through THAT/THIS/ARG/LCL in that order.
func (vl *Lowerer) HandleReturnOp(op ReturnOp) ([]asm.Instruction, error) {
	instructions := []asm.Instruction{
		asm.AInstruction{Location: "LCL"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "R13"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		asm.AInstruction{Location: "5"},
		asm.CInstruction{Dest: "A", Comp: "D-A"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "R14"},
		asm.CInstruction{Dest: "M", Comp: "D"},
	}
	instructions = append(instructions, popD()...)
	instructions = append(instructions,
		asm.AInstruction{Location: "ARG"},
		asm.CInstruction{Dest: "A", Comp: "M"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		asm.AInstruction{Location: "ARG"},
		asm.CInstruction{Dest: "D", Comp: "M+1"},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "M", Comp: "D"},
	)

	for _, restored := range []string{"THAT", "THIS", "ARG", "LCL"} {
		instructions = append(instructions,
			asm.AInstruction{Location: "R13"},
			asm.CInstruction{Dest: "AM", Comp: "M-1"},
			asm.CInstruction{Dest: "D", Comp: "M"},
			asm.AInstruction{Location: restored},
			asm.CInstruction{Dest: "M", Comp: "D"},
		)
	}

	instructions = append(instructions,
		asm.AInstruction{Location: "R14"},
		asm.CInstruction{Dest: "A", Comp: "M"},
		asm.CInstruction{Comp: "0", Jump: "JMP"},
	)
	return instructions, nil
}

// Bootstrap returns the instruction sequence that sets up the stack pointer at its base
// (RAM[256]) and calls 'Sys.init' with no arguments, the mandatory entry point of every
// linked VM program. It is prepended to the final 'asm.Program' unless explicitly disabled.
func Bootstrap() ([]asm.Instruction, error) {
	vl := Lowerer{moduleName: "Bootstrap"}

	instructions := []asm.Instruction{
		asm.AInstruction{Location: "256"},
		asm.CInstruction{Dest: "D", Comp: "A"},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "M", Comp: "D"},
	}

	call, err := vl.HandleFuncCallOp(FuncCallOp{Name: "Sys.init", NArgs: 0})
	if err != nil {
		return nil, err
	}
	return append(instructions, call...), nil
}
