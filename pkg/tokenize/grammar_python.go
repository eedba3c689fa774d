package tokenize

import (
	"github.com/alexaandru/go-sitter-forest/python"

	"github.com/classifi/simguard/pkg/similarity"
)

//nolint:gochecknoinits // grammar registration mirrors the teacher's languageFuncs table pattern.
func init() {
	registerGrammar(similarity.LangPython, &grammar{
		language: python.GetLanguage,
		identifiers: map[string]string{
			"identifier": tagIdent,
		},
		literals: map[string]string{
			"integer": tagInt,
			"float":   tagFloat,
			"string":  tagString,
			"true":    tagBool,
			"false":   tagBool,
			"none":    tagNull,
		},
		comments: map[string]bool{
			"comment": true,
		},
		entries: map[string]string{
			"function_definition":   "FUNC_DECL",
			"class_definition":      "CLASS_DECL",
			"if_statement":          "IF",
			"for_statement":         "FOR",
			"while_statement":       "WHILE",
			"try_statement":         "TRY",
			"except_clause":         "CATCH",
			"with_statement":        "WITH",
			"return_statement":      "RETURN",
			"break_statement":       "BREAK",
			"continue_statement":    "CONTINUE",
			"raise_statement":       "THROW",
			"assignment":            "ASSIGN",
			"augmented_assignment":  "ASSIGN",
			"call":                  "CALL",
			"lambda":                "LAMBDA",
			"import_statement":      "IMPORT",
			"import_from_statement": "IMPORT",
			"block":                 "BLOCK",
		},
	})
}
