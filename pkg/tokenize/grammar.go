package tokenize

import (
	"unsafe"

	"github.com/classifi/simguard/pkg/similarity"
)

// grammar holds one language's tree-sitter binding plus the category-tag
// tables the walker consults while visiting the parse tree.
type grammar struct {
	// language returns the tree-sitter Language pointer for this grammar.
	language func() unsafe.Pointer

	// identifiers maps named leaf node types to the "IDENT"-class tag.
	identifiers map[string]string

	// literals maps named leaf node types to their literal-class tag
	// (INT_LIT, FLOAT_LIT, STR_LIT, CHAR_LIT, BOOL_LIT, NULL_LIT).
	literals map[string]string

	// comments maps node types whose entire subtree is discarded
	// (comments). Doc strings are dropped by the walker itself.
	comments map[string]bool

	// entries maps named non-terminal node types to the structural "entry"
	// tag emitted when the walker first visits that node, before
	// descending into its children (spec.md §4.1: "emits AST node entry
	// tokens").
	entries map[string]string
}

func (g *grammar) tsLanguage() unsafe.Pointer {
	return g.language()
}

var grammars map[similarity.LangTag]*grammar

func registerGrammar(tag similarity.LangTag, g *grammar) {
	if grammars == nil {
		grammars = make(map[similarity.LangTag]*grammar)
	}

	grammars[tag] = g
}

// Literal-class tags shared across grammars.
const (
	tagIdent   = "IDENT"
	tagInt     = "INT_LIT"
	tagFloat   = "FLOAT_LIT"
	tagString  = "STR_LIT"
	tagChar    = "CHAR_LIT"
	tagBool    = "BOOL_LIT"
	tagNull    = "NULL_LIT"
)
