package spicelang

import (
	"os"

	pc "github.com/prataprc/goparsec"
)

// ----------------------------------------------------------------------------
// Parser Combinator(s)

// This section defines the Parser Combinator for a single logical netlist line. SPICE's
// per-device argument shapes (how many nodes, whether a value is positional or a kwarg)
// vary by device letter and, for a handful of devices, by argument count itself (the BJT
// area/model/substrate/thermal disambiguation chain is the sharpest example). Baking all
// of that into the grammar would mean one production per device variant fighting the
// optional-argument nature of the format; instead, mirroring PySpice's own architecture,
// the grammar here only recovers the flat shape every line shares (a head token followed
// by a sequence of bare or 'key=value' fields) and the semantic walker in walker.go and
// devices.go does the per-device-letter disambiguation over that flat field list, exactly
// where PySpice's own walk_BJT/walk_Capacitor/... methods do it.
var ast = pc.NewAST("spice_line", 0)

var (
	// A statement line is a head token (device instance name or '.directive') followed by
	// zero or more fields, each either a bare value or a 'name=value' keyword argument.
	pStatement = ast.And("stmt", nil, pHead, ast.Kleene("fields", nil, pField))

	pField = ast.OrdChoice("field", nil, pKwarg, pFieldValue)
	pKwarg = ast.And("kwarg", nil, pFieldName, pc.Atom("=", "EQ"), pFieldValue)

	// A field value is either a bracketed '{...}' expression (kept as one raw token, the
	// inner text is handed to expr.Parse by the walker) or any other bare token.
	pFieldValue = ast.OrdChoice("field_value", nil, pBraceExpr, pBareToken)
)

var (
	pHead      = pc.Token(`[^\s=]+`, "HEAD")
	pFieldName = pc.Token(`[A-Za-z_][0-9A-Za-z_]*`, "FIELDNAME")
	// Parens/commas are allowed inside a bare token (not just split off) so that a
	// high-level waveform shape like 'PULSE(0' or '20n)' survives as one token; handleSource
	// is responsible for stripping the parens back off.
	pBareToken = pc.Token(`[^\s=]+`, "TOKEN")
	pBraceExpr = pc.Token(`\{[^{}]*\}`, "EXPR")
)

// ----------------------------------------------------------------------------
// Flat statement shape

// flatStatement is the CST reduced to the only shape every netlist line shares: a head
// token plus an ordered list of fields. Device-specific structure is recovered from this
// by the walker, not by the grammar.
type flatStatement struct {
	Head   string
	Fields []flatField
}

type flatField struct {
	Key   string // "" for a bare positional field
	Value string // raw token text, or the full "{...}" text (braces included) for an expression
}

// parseLine runs the line grammar over a single logical line and reduces its CST into a
// flatStatement. Grammar debug tracing is enabled via the PARSEC_DEBUG/PRINT_AST env vars;
// the CLI's --verbose flag does not affect it.
func parseLine(text string) (flatStatement, error) {
	if os.Getenv("PARSEC_DEBUG") != "" {
		ast.SetDebug()
	}

	root, _ := ast.Parsewith(pStatement, pc.NewScanner([]byte(text)))
	if root == nil || root.GetName() != "stmt" {
		return flatStatement{}, newGrammarError(text)
	}

	if os.Getenv("PRINT_AST") != "" {
		ast.Prettyprint()
	}

	children := root.GetChildren()
	if len(children) == 0 {
		return flatStatement{}, newGrammarError(text)
	}

	stmt := flatStatement{Head: children[0].GetValue()}
	if len(children) > 1 {
		for _, fieldNode := range children[1].GetChildren() {
			stmt.Fields = append(stmt.Fields, fieldFromAST(fieldNode))
		}
	}
	return stmt, nil
}

// fieldFromAST unwraps a "field" OrdChoice node down to its chosen alternative ("kwarg"
// or "field_value") and reduces it to a flatField.
func fieldFromAST(field pc.Queryable) flatField {
	if len(field.GetChildren()) == 0 {
		return flatField{}
	}
	chosen := field.GetChildren()[0]

	switch chosen.GetName() {
	case "kwarg":
		kids := chosen.GetChildren()
		return flatField{Key: kids[0].GetValue(), Value: fieldValueFromAST(kids[2])}
	default: // "field_value"
		return flatField{Value: fieldValueFromAST(chosen)}
	}
}

func fieldValueFromAST(node pc.Queryable) string {
	if len(node.GetChildren()) == 1 {
		return node.GetChildren()[0].GetValue()
	}
	return node.GetValue()
}

func newGrammarError(text string) error {
	return &lineGrammarError{text: text}
}

type lineGrammarError struct{ text string }

func (e *lineGrammarError) Error() string {
	return "failed to parse netlist line: " + e.text
}
