package main

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/teris-io/cli"
	"n2t.dev/toolchain/pkg/asm"
	"n2t.dev/toolchain/pkg/vm"
)

var Description = strings.ReplaceAll(`
The VM Translator translates programs (composed of multiple modules/files) written in
the VM language into Hack assembly code that can be further elaborated. The VM language
is a higher-level (bytecode'like) language tailored for use with the Hack computer arch.
`, "\n", " ")

var VmTranslator = cli.New(Description).
	WithOption(cli.NewOption("fileread", "A single .vm file, or a directory of .vm files").
		WithType(cli.TypeString)).
	WithOption(cli.NewOption("filewrite", "The compiled binary output (.asm)").
		WithType(cli.TypeString)).
	WithOption(cli.NewOption("nobootstrap", "Skips prepending the bootstrap code").
		WithType(cli.TypeBool)).
	WithOption(cli.NewOption("debug", "Interleaves the original VM command as a comment").
		WithType(cli.TypeBool)).
	WithAction(Handler)

// Resolves 'fileread' to the sorted list of '.vm' files to translate, preserving
// directory-listing order as required by the multi-unit linkage (static segment naming,
// bootstrap-before-everything-else) described by this translator's calling convention.
func resolveInputs(fileread string) ([]string, error) {
	info, err := os.Stat(fileread)
	if err != nil {
		return nil, err
	}

	if !info.IsDir() {
		return []string{fileread}, nil
	}

	entries, err := os.ReadDir(fileread)
	if err != nil {
		return nil, err
	}

	inputs := []string{}
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".vm" {
			inputs = append(inputs, filepath.Join(fileread, entry.Name()))
		}
	}
	sort.Strings(inputs)
	return inputs, nil
}

func Handler(args []string, options map[string]string) int {
	if options["fileread"] == "" || options["filewrite"] == "" {
		fmt.Printf("ERROR: Not enough arguments provided, use --help\n")
		return -1
	}

	inputs, err := resolveInputs(options["fileread"])
	if err != nil {
		fmt.Printf("ERROR: Unable to resolve input(s): %s\n", err)
		return -1
	}

	// Allocates a 'vm.Program' struct to save all the parsed translation unit
	// (the .vm files) that will be parsed and lowered independently and then
	// sent to the codegen phases (that will create a monolithic compiled output).
	program := vm.Program{}

	// For every file resolved from 'fileread' we do the following things
	for _, input := range inputs {
		content, err := os.ReadFile(input)
		if err != nil {
			fmt.Printf("ERROR: Unable to open input file: %s\n", err)
			return -1
		}

		// Instantiate a parser for the Vm program
		parser := vm.NewParser(bytes.NewReader(content))
		// Parses the input file content and extract an AST (as a 'vm.Module') from it.
		module, err := parser.Parse()
		if err != nil {
			fmt.Printf("ERROR: Unable to complete 'parsing' pass: %s\n", err)
			return -1
		}
		program.Set(path.Base(input), module)
	}

	_, debug := options["debug"]

	// Instantiate a lowerer to convert the program from Vm to Asm. When '--debug' is set,
	// the lowerer interleaves each lowered block with an 'asm.Comment' echoing the VM
	// command it came from, so the generated .asm file itself stays readable.
	lowerer := vm.NewLowerer(program, debug)
	// Lowers the vm.Program to an in-memory/IR representation of its Asm counterpart 'asm.Program'.
	asmProgram, err := lowerer.Lower()
	if err != nil {
		fmt.Printf("ERROR: Unable to complete 'lowering' pass: %s\n", err)
		return -1
	}

	// Unless the user opts out via 'nobootstrap', the compiled program is prefixed with
	// the bootstrap sequence: sets the Stack Pointer to its base (RAM[256]) and calls
	// the mandatory entry point 'Sys.init' with no arguments.
	if _, disabled := options["nobootstrap"]; !disabled {
		bootstrap, err := vm.Bootstrap()
		if err != nil {
			fmt.Printf("ERROR: Unable to generate bootstrap code: %s\n", err)
			return -1
		}
		asmProgram = append(bootstrap, asmProgram...)
	}

	// Now, instantiates a code generator for the Asm (compiled) program
	codegen := asm.NewCodeGenerator(asmProgram)
	// Iterates over each instruction and spits out the relative textual representation.
	compiled, err := codegen.Generate()
	if err != nil {
		fmt.Printf("ERROR: Unable to complete 'codegen' pass: %s\n", err)
		return -1
	}

	// The output file is only created once every pass has succeeded, so a failed run
	// never leaves a partial .asm artifact behind.
	output, err := os.Create(options["filewrite"])
	if err != nil {
		fmt.Printf("ERROR: Unable to open output file: %s\n", err)
		return -1
	}
	defer output.Close()

	for _, comp := range compiled {
		line := fmt.Sprintf("%s\n", comp)
		output.Write([]byte(line))
	}

	return 0
}

func main() { os.Exit(VmTranslator.Run(os.Args, os.Stdout)) }
