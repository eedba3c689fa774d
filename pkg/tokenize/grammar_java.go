package tokenize

import (
	"github.com/alexaandru/go-sitter-forest/java"

	"github.com/classifi/simguard/pkg/similarity"
)

//nolint:gochecknoinits // grammar registration mirrors the teacher's languageFuncs table pattern.
func init() {
	registerGrammar(similarity.LangJava, &grammar{
		language: java.GetLanguage,
		identifiers: map[string]string{
			"identifier":      tagIdent,
			"type_identifier": tagIdent,
		},
		literals: map[string]string{
			"decimal_integer_literal":        tagInt,
			"hex_integer_literal":            tagInt,
			"octal_integer_literal":          tagInt,
			"binary_integer_literal":         tagInt,
			"decimal_floating_point_literal": tagFloat,
			"hex_floating_point_literal":     tagFloat,
			"string_literal":                 tagString,
			"character_literal":              tagChar,
			"true":                           tagBool,
			"false":                          tagBool,
			"null_literal":                   tagNull,
		},
		comments: map[string]bool{
			"line_comment":  true,
			"block_comment": true,
		},
		entries: map[string]string{
			"class_declaration":          "CLASS_DECL",
			"interface_declaration":      "INTERFACE_DECL",
			"enum_declaration":           "ENUM_DECL",
			"method_declaration":         "METHOD_DECL",
			"constructor_declaration":    "CTOR_DECL",
			"field_declaration":          "FIELD_DECL",
			"local_variable_declaration": "VAR_DECL",
			"if_statement":               "IF",
			"for_statement":              "FOR",
			"enhanced_for_statement":     "FOREACH",
			"while_statement":            "WHILE",
			"do_statement":               "DO",
			"switch_expression":          "SWITCH",
			"switch_statement":           "SWITCH",
			"try_statement":              "TRY",
			"catch_clause":               "CATCH",
			"return_statement":           "RETURN",
			"break_statement":            "BREAK",
			"continue_statement":         "CONTINUE",
			"throw_statement":            "THROW",
			"assignment_expression":      "ASSIGN",
			"binary_expression":          "BINOP",
			"method_invocation":          "CALL",
			"object_creation_expression": "NEW_OBJECT",
			"array_creation_expression":  "NEW_ARRAY",
			"lambda_expression":          "LAMBDA",
			"block":                      "BLOCK",
		},
	})
}
