package main

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/teris-io/cli"
	"n2t.dev/toolchain/pkg/jack"
)

var Description = strings.ReplaceAll(`
The Syntax Analyser tokenizes programs (composed of multiple classes/files) written in
the Jack language and parses them into a parse tree, rendered as an indented XML-like
tree of grammar non-terminals and terminal tokens. It performs no semantic analysis.
`, "\n", " ")

var SyntaxAnalyser = cli.New(Description).
	WithOption(cli.NewOption("fileread", "A single .jack file, or a directory of .jack files").
		WithType(cli.TypeString)).
	WithOption(cli.NewOption("filewrite", "The rendered parse tree output path").
		WithType(cli.TypeString)).
	WithOption(cli.NewOption("debug", "Echoes each class's token stream to stderr").
		WithType(cli.TypeBool)).
	WithAction(Handler)

// Resolves 'fileread' to the sorted list of '.jack' files to analyse, preserving
// directory-listing order (there is no cross-file linkage in this pipeline, but a
// stable order keeps multi-file runs deterministic).
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
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".jack" {
			inputs = append(inputs, filepath.Join(fileread, entry.Name()))
		}
	}
	sort.Strings(inputs)
	return inputs, nil
}

// outputPathFor derives the sibling output path for a single input, mirroring the
// reference tool's convention (Foo.jack -> FooT.xml) when 'fileread' is a directory and
// 'filewrite' therefore names a directory too; for a single-file run 'filewrite' is used
// as the literal output path.
func outputPathFor(input string, fileread string, filewrite string) string {
	info, err := os.Stat(fileread)
	if err != nil || !info.IsDir() {
		return filewrite
	}

	filename, ext := path.Base(input), path.Ext(input)
	stem := strings.TrimSuffix(filename, ext)
	return filepath.Join(filewrite, stem+"T.xml")
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

	if info, err := os.Stat(options["fileread"]); err == nil && info.IsDir() {
		if err := os.MkdirAll(options["filewrite"], 0o755); err != nil {
			fmt.Printf("ERROR: Unable to create output directory: %s\n", err)
			return -1
		}
	}

	_, debug := options["debug"]

	for _, input := range inputs {
		content, err := os.ReadFile(input)
		if err != nil {
			fmt.Printf("ERROR: Unable to open input file: %s\n", err)
			return -1
		}

		tokenizer := jack.NewTokenizer(string(content))
		tokens, err := tokenizer.Tokenize()
		if err != nil {
			fmt.Printf("ERROR: Unable to complete 'tokenizing' pass: %s\n", err)
			return -1
		}

		if debug {
			for _, tok := range tokens {
				fmt.Fprintf(os.Stderr, "DEBUG[%s]: %s\n", input, tok)
			}
		}

		parser := jack.NewParser(tokens)
		tree, err := parser.ParseClass()
		if err != nil {
			fmt.Printf("ERROR: Unable to complete 'parsing' pass: %s\n", err)
			return -1
		}

		serializer := jack.NewXmlSerializer()
		lines := serializer.Serialize(tree)

		out := outputPathFor(input, options["fileread"], options["filewrite"])
		output, err := os.Create(out)
		if err != nil {
			fmt.Printf("ERROR: Unable to open output file: %s\n", err)
			return -1
		}

		for _, line := range lines {
			fmt.Fprintf(output, "%s\n", line)
		}
		output.Close()
	}

	return 0
}

func main() { os.Exit(SyntaxAnalyser.Run(os.Args, os.Stdout)) }
