package jack

import "fmt"

// ----------------------------------------------------------------------------
// General information

// This section defines the lexical vocabulary of the Jack programming language.
//
// A Token is the atomic unit produced by the Tokenizer and consumed by the Parser. Each
// Token carries both its syntactic category (the Kind) and the literal text that produced
// it (the Lexeme), since the parse tree's leaves must be able to render back either one.

// A Kind classifies a Token into one of the lexical categories of the Jack grammar.
type Kind int8

const (
	Illegal Kind = iota
	EOF

	Keyword    // class, function, let, if, ...
	Symbol     // { } ( ) [ ] . , ; + - * / & | < > = ~
	IntConst   // 0 .. 32767 (not lexically bounded)
	StrConst   // "..."
	Identifier // any non-keyword word
)

func (k Kind) String() string {
	switch k {
	case EOF:
		return "eof"
	case Keyword:
		return "keyword"
	case Symbol:
		return "symbol"
	case IntConst:
		return "integerConstant"
	case StrConst:
		return "stringConstant"
	case Identifier:
		return "identifier"
	default:
		return "illegal"
	}
}

// Token is a single lexical unit: its Kind, its literal text and the source line it was
// found on (1-based), the latter used exclusively to produce actionable error messages.
type Token struct {
	Kind   Kind
	Lexeme string
	Line   int
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q)", t.Kind, t.Lexeme)
}

// Keywords is the full set of the 21 reserved words of the Jack language.
var Keywords = map[string]bool{
	"class": true, "constructor": true, "function": true, "method": true,
	"field": true, "static": true, "var": true, "int": true, "char": true,
	"boolean": true, "void": true, "true": true, "false": true, "null": true,
	"this": true, "let": true, "do": true, "if": true, "else": true,
	"while": true, "return": true,
}

// Symbols is the full set of the 19 single-character symbols of the Jack language.
var Symbols = map[byte]bool{
	'{': true, '}': true, '(': true, ')': true, '[': true, ']': true,
	'.': true, ',': true, ';': true, '+': true, '-': true, '*': true,
	'/': true, '&': true, '|': true, '<': true, '>': true, '=': true, '~': true,
}
