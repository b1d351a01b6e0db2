package expr

import (
	"fmt"
	"regexp"
	"strings"

	"its-hmny.dev/spice/pkg/units"
)

// ----------------------------------------------------------------------------
// Expression parsing

// Parsing the embedded '{...}' expression language needs full operator-precedence
// climbing, something none of this repo's goparsec grammars elsewhere need (the other
// languages in this codebase have no infix-operator expressions at all). goparsec has no
// builtin precedence-climbing combinator, so rather than hand-building a dozen nested
// And/OrdChoice productions to fake it, expressions are tokenized with a small regexp
// based lexer and folded with a standard recursive-descent precedence climb. This is the
// one part of the parsing pipeline that isn't goparsec-based; see DESIGN.md.

var tokenPattern = regexp.MustCompile(`\s*(\*\*|\|\||&&|\^\^|<=|>=|==|!=|[-+*/%!<>()?:,]|[A-Za-z_][A-Za-z0-9_.]*|[0-9]+\.?[0-9]*(?:[eE][+-]?[0-9]+)?[A-Za-zµμ]*)`)

type tokenStream struct {
	tokens []string
	pos    int
}

func tokenize(source string) (*tokenStream, error) {
	matches := tokenPattern.FindAllStringSubmatch(source, -1)
	tokens := make([]string, 0, len(matches))
	consumed := 0
	for _, m := range matches {
		tokens = append(tokens, m[1])
		consumed += len(m[0])
	}
	if consumed != len(source) {
		return nil, fmt.Errorf("unexpected character at offset %d in expression %q", consumed, source)
	}
	return &tokenStream{tokens: tokens}, nil
}

func (ts *tokenStream) peek() string {
	if ts.pos >= len(ts.tokens) {
		return ""
	}
	return ts.tokens[ts.pos]
}

func (ts *tokenStream) next() string {
	tok := ts.peek()
	ts.pos++
	return tok
}

func (ts *tokenStream) expect(tok string) error {
	if ts.peek() != tok {
		return fmt.Errorf("expected %q, got %q", tok, ts.peek())
	}
	ts.pos++
	return nil
}

// Parse parses the text found inside a netlist '{...}' expression (braces already
// stripped by the caller) into an Expression tree honoring the precedence chain
// '?: < || < ^^ < && < ! < relational < +- < */ < unary < ** < atom'.
func Parse(source string) (Expression, error) {
	ts, err := tokenize(source)
	if err != nil {
		return nil, err
	}
	result, err := parseTernary(ts)
	if err != nil {
		return nil, err
	}
	if ts.peek() != "" {
		return nil, fmt.Errorf("unexpected trailing token %q in expression %q", ts.peek(), source)
	}
	return result, nil
}

func parseTernary(ts *tokenStream) (Expression, error) {
	cond, err := parseOr(ts)
	if err != nil {
		return nil, err
	}
	if ts.peek() != "?" {
		return cond, nil
	}
	ts.next()
	thenExpr, err := parseTernary(ts)
	if err != nil {
		return nil, err
	}
	if err := ts.expect(":"); err != nil {
		return nil, err
	}
	elseExpr, err := parseTernary(ts)
	if err != nil {
		return nil, err
	}
	return TernaryExpr{Condition: cond, Then: thenExpr, Else: elseExpr}, nil
}

// parseBinaryLevel folds one left-associative precedence level: it parses 'next' once,
// then keeps folding 'op next' for as long as the peeked token matches one of 'toks'.
func parseBinaryLevel(ts *tokenStream, toks []string, op ExprType, next func(*tokenStream) (Expression, error)) (Expression, error) {
	lhs, err := next(ts)
	if err != nil {
		return nil, err
	}
	for matchesAny(ts.peek(), toks) {
		ts.next()
		rhs, err := next(ts)
		if err != nil {
			return nil, err
		}
		lhs = BinaryExpr{Op: op, Lhs: lhs, Rhs: rhs}
	}
	return lhs, nil
}

func matchesAny(tok string, toks []string) bool {
	for _, t := range toks {
		if tok == t {
			return true
		}
	}
	return false
}

func parseOr(ts *tokenStream) (Expression, error) { return parseBinaryLevel(ts, []string{"||"}, BoolOr, parseXor) }
func parseXor(ts *tokenStream) (Expression, error) {
	return parseBinaryLevel(ts, []string{"^^"}, BoolXor, parseAnd)
}
func parseAnd(ts *tokenStream) (Expression, error) {
	return parseBinaryLevel(ts, []string{"&&"}, BoolAnd, parseNot)
}

func parseNot(ts *tokenStream) (Expression, error) {
	if ts.peek() == "!" {
		ts.next()
		rhs, err := parseNot(ts)
		if err != nil {
			return nil, err
		}
		return UnaryExpr{Op: BoolNot, Rhs: rhs}, nil
	}
	return parseRelational(ts)
}

var relOps = map[string]ExprType{
	"==": Equal, "!=": NotEqual,
	"<": LessThan, "<=": LessEqual,
	">": GreaterThan, ">=": GreaterEqual,
}

func parseRelational(ts *tokenStream) (Expression, error) {
	lhs, err := parseAdditive(ts)
	if err != nil {
		return nil, err
	}
	if op, ok := relOps[ts.peek()]; ok {
		ts.next()
		rhs, err := parseAdditive(ts)
		if err != nil {
			return nil, err
		}
		return BinaryExpr{Op: op, Lhs: lhs, Rhs: rhs}, nil
	}
	return lhs, nil
}

func parseAdditive(ts *tokenStream) (Expression, error) {
	lhs, err := parseMultiplicative(ts)
	if err != nil {
		return nil, err
	}
	for ts.peek() == "+" || ts.peek() == "-" {
		op := Plus
		if ts.next() == "-" {
			op = Minus
		}
		rhs, err := parseMultiplicative(ts)
		if err != nil {
			return nil, err
		}
		lhs = BinaryExpr{Op: op, Lhs: lhs, Rhs: rhs}
	}
	return lhs, nil
}

func parseMultiplicative(ts *tokenStream) (Expression, error) {
	lhs, err := parseUnary(ts)
	if err != nil {
		return nil, err
	}
	for ts.peek() == "*" || ts.peek() == "/" || ts.peek() == "%" {
		var op ExprType
		switch ts.next() {
		case "*":
			op = Multiply
		case "/":
			op = Divide
		case "%":
			op = Modulo
		}
		rhs, err := parseUnary(ts)
		if err != nil {
			return nil, err
		}
		lhs = BinaryExpr{Op: op, Lhs: lhs, Rhs: rhs}
	}
	return lhs, nil
}

func parseUnary(ts *tokenStream) (Expression, error) {
	if ts.peek() == "-" {
		ts.next()
		rhs, err := parseUnary(ts)
		if err != nil {
			return nil, err
		}
		return UnaryExpr{Op: Minus, Rhs: rhs}, nil
	}
	return parsePower(ts)
}

func parsePower(ts *tokenStream) (Expression, error) {
	lhs, err := parseAtom(ts)
	if err != nil {
		return nil, err
	}
	if ts.peek() == "**" {
		ts.next()
		rhs, err := parseUnary(ts) // right-associative
		if err != nil {
			return nil, err
		}
		return BinaryExpr{Op: Power, Lhs: lhs, Rhs: rhs}, nil
	}
	return lhs, nil
}

func parseAtom(ts *tokenStream) (Expression, error) {
	tok := ts.peek()
	switch {
	case tok == "":
		return nil, fmt.Errorf("unexpected end of expression")
	case tok == "(":
		ts.next()
		inner, err := parseTernary(ts)
		if err != nil {
			return nil, err
		}
		if err := ts.expect(")"); err != nil {
			return nil, err
		}
		return inner, nil
	case isIdentToken(tok):
		ts.next()
		if ts.peek() == "(" {
			return parseCall(ts, tok)
		}
		return VarExpr{Name: tok}, nil
	default:
		ts.next()
		value, err := units.Parse(tok)
		if err != nil {
			return nil, fmt.Errorf("invalid literal %q in expression: %w", tok, err)
		}
		return LiteralExpr{Value: value}, nil
	}
}

func parseCall(ts *tokenStream, name string) (Expression, error) {
	fn, ok := IsFunction(strings.ToLower(name))
	if !ok {
		return nil, fmt.Errorf("unknown function %q", name)
	}
	if err := ts.expect("("); err != nil {
		return nil, err
	}

	var args []Expression
	if ts.peek() != ")" {
		if fn == Ddx {
			// ddx(f, x): first argument is a bare function-name symbol, not an evaluated expression
			symbol := ts.next()
			args = append(args, VarExpr{Name: symbol})
		} else {
			first, err := parseTernary(ts)
			if err != nil {
				return nil, err
			}
			args = append(args, first)
		}

		for ts.peek() == "," {
			ts.next()
			arg, err := parseTernary(ts)
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
		}
	}
	if err := ts.expect(")"); err != nil {
		return nil, err
	}

	want := Arity[fn]
	switch {
	case want == Variadic:
		if len(args) < 1 || len(args) > 2 {
			return nil, fmt.Errorf("function %q expects 1 or 2 argument(s), got %d", fn, len(args))
		}
	case want != len(args):
		return nil, fmt.Errorf("function %q expects %d argument(s), got %d", fn, want, len(args))
	}

	// atan2(y, x) is conventionally called as atan2(x, y) in SPICE netlists but evaluated
	// as atan2(y, x); swap here once, at call-construction time, so every downstream
	// consumer of the IR sees arguments already in evaluation order.
	if fn == Atan2 {
		args[0], args[1] = args[1], args[0]
	}

	return CallExpr{Func: fn, Args: args}, nil
}

func isIdentToken(tok string) bool {
	if tok == "" {
		return false
	}
	c := tok[0]
	return c == '_' || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}
