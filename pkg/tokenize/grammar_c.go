package tokenize

import (
	"github.com/alexaandru/go-sitter-forest/c"

	"github.com/classifi/simguard/pkg/similarity"
)

//nolint:gochecknoinits // grammar registration mirrors the teacher's languageFuncs table pattern.
func init() {
	registerGrammar(similarity.LangC, &grammar{
		language: c.GetLanguage,
		identifiers: map[string]string{
			"identifier":       tagIdent,
			"field_identifier": tagIdent,
			"type_identifier":  tagIdent,
		},
		literals: map[string]string{
			"number_literal": tagInt,
			"string_literal": tagString,
			"char_literal":   tagChar,
		},
		comments: map[string]bool{
			"comment": true,
		},
		entries: map[string]string{
			"function_definition": "FUNC_DECL",
			"declaration":         "VAR_DECL",
			"struct_specifier":    "STRUCT_DECL",
			"union_specifier":     "UNION_DECL",
			"enum_specifier":      "ENUM_DECL",
			"if_statement":        "IF",
			"for_statement":       "FOR",
			"while_statement":     "WHILE",
			"do_statement":        "DO",
			"switch_statement":    "SWITCH",
			"case_statement":      "CASE",
			"labeled_statement":   "LABEL",
			"goto_statement":      "GOTO",
			"return_statement":    "RETURN",
			"break_statement":     "BREAK",
			"continue_statement":  "CONTINUE",
			"assignment_expression": "ASSIGN",
			"binary_expression":   "BINOP",
			"call_expression":     "CALL",
			"compound_statement":  "BLOCK",
		},
	})
}
