package vm

import (
	"fmt"
)

// ----------------------------------------------------------------------------
// Debug Echo Generator

// Renders a 'vm.Program' back to its textual VM source representation, module by module.
//
// This has no role in the translation pipeline proper (the real output is produced by the
// 'asm' package's CodeGenerator once the Lowerer has done its job): it exists purely to
// back the VM Translator's '--debug' mode, which interleaves each original VM command as an
// 'asm.Comment' right above the Hack instructions it was lowered to.
type EchoGenerator struct {
	program Program // The set of modules to render back to VM source format
}

// Initializes and returns to the caller a brand new 'EchoGenerator' struct.
// Requires that argument Program 'p' (what we want to render) is non-nil.
func NewEchoGenerator(p Program) EchoGenerator {
	return EchoGenerator{program: p}
}

// Renders each instruction in the 'program' back to its VM string format, keyed by module
// name. Each module's lines keep the order of its operations; the returned Go map itself
// does not record the order in which modules were added to the Program.
func (eg *EchoGenerator) Generate() (map[string][]string, error) {
	vm := map[string][]string{}

	var genErr error
	eg.program.Iterator()(func(modName string, module Module) bool {
		for _, operation := range module {
			var generated string
			var err error

			switch tOperation := operation.(type) {
			case MemoryOp:
				generated, err = eg.GenerateMemoryOp(tOperation)
			case ArithmeticOp:
				generated, err = eg.GenerateArithmeticOp(tOperation)
			case LabelDecl:
				generated, err = eg.GenerateLabelDecl(tOperation)
			case GotoOp:
				generated, err = eg.GenerateGotoOp(tOperation)
			case FuncDecl:
				generated, err = eg.GenerateFuncDecl(tOperation)
			case ReturnOp:
				generated, err = eg.GenerateReturnOp(tOperation)
			case FuncCallOp:
				generated, err = eg.GenerateFuncCallOp(tOperation)
			}

			if err != nil {
				genErr = err
				return false
			}
			vm[modName] = append(vm[modName], generated)
		}
		return true
	})

	if genErr != nil {
		return nil, genErr
	}
	return vm, nil
}

// Specialized function to convert a 'MemoryOp' operation to the VM format.
func (eg *EchoGenerator) GenerateMemoryOp(op MemoryOp) (string, error) {
	// Bound checking on segment that do have an upperbound to the allowed offsets
	if op.Segment == Pointer && op.Offset > 1 {
		return "", fmt.Errorf("invalid 'pointer' offset, got %d", op.Offset)
	}
	if op.Segment == Temp && op.Offset > 7 {
		return "", fmt.Errorf("invalid 'temp' offset, got %d", op.Offset)
	}

	return fmt.Sprintf("%s %s %d", string(op.Operation), string(op.Segment), op.Offset), nil
}

// Specialized function to convert a 'ArithmeticOp' operation to the VM format.
func (eg *EchoGenerator) GenerateArithmeticOp(op ArithmeticOp) (string, error) {
	return string(op.Operation), nil
}

// Specialized function to convert a 'LabelDecl' operation to the VM format.
func (eg *EchoGenerator) GenerateLabelDecl(op LabelDecl) (string, error) {
	if op.Name == "" {
		return "", fmt.Errorf("unable to produce empty label declaration")
	}

	return fmt.Sprintf("label %s", op.Name), nil
}

// Specialized function to convert a 'GotoOp' operation to the VM format.
func (eg *EchoGenerator) GenerateGotoOp(op GotoOp) (string, error) {
	if op.Label == "" {
		return "", fmt.Errorf("unable to produce empty jump label")
	}

	return fmt.Sprintf("%s %s", string(op.Jump), op.Label), nil
}

// Specialized function to convert a 'FuncDecl' operation to the VM format.
func (eg *EchoGenerator) GenerateFuncDecl(op FuncDecl) (string, error) {
	if op.Name == "" {
		return "", fmt.Errorf("unable to produce empty function declaration")
	}

	return fmt.Sprintf("function %s %d", op.Name, op.NLocal), nil
}

// Specialized function to convert a 'ReturnOp' operation to the VM format.
func (eg *EchoGenerator) GenerateReturnOp(op ReturnOp) (string, error) {
	return "return", nil
}

// Specialized function to convert a 'FuncCallOp' operation to the VM format.
func (eg *EchoGenerator) GenerateFuncCallOp(op FuncCallOp) (string, error) {
	if op.Name == "" {
		return "", fmt.Errorf("unable to produce empty function call")
	}

	return fmt.Sprintf("call %s %d", op.Name, op.NArgs), nil
}
