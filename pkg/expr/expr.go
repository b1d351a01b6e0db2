package expr

import "its-hmny.dev/spice/pkg/units"

// ----------------------------------------------------------------------------
// General information

// This section models the embedded expression language SPICE netlists allow inside
// '{...}' braces for device parameter values (e.g. 'R1 1 0 {Rval*2}').
//
// We declare a shared 'Expression' interface for every expression node and then define,
// one after the other, the concrete node types together with the internal data required
// to evaluate or emit them. A type switch on the concrete type disambiguates at the
// consumer side, there is no dynamic-dispatch interface hierarchy to maintain.
type Expression interface{}

type LiteralExpr struct { // A bare numeric constant, e.g. '3.3' or '10k'
	Value units.PrefixedUnit
}

type VarExpr struct { // A reference to a parameter or node name, e.g. 'Rval' or 'V(1)'
	Name string
}

type UnaryExpr struct { // Applies a single-operand transform, e.g. '-x' or '!flag'
	Op  ExprType
	Rhs Expression
}

type BinaryExpr struct { // Combines two operands, e.g. 'a+b', 'a<=b', 'a&&b'
	Op  ExprType
	Lhs Expression
	Rhs Expression
}

type TernaryExpr struct { // Conditional expression, e.g. 'cond ? a : b'
	Condition Expression
	Then      Expression
	Else      Expression
}

type CallExpr struct { // Invocation of one of the fixed built-in functions (sin, atan2, ddx, ...)
	Func FuncName
	Args []Expression
}

// ExprType enumerates every operator the grammar's expression precedence chain accepts,
// ordered here the same way the grammar nests them (lowest to highest precedence), see
// the precedence climb implemented in pkg/expr/parse.go.
type ExprType string

const (
	BoolOr  ExprType = "bool_or"  // ||
	BoolXor ExprType = "bool_xor" // ^^
	BoolAnd ExprType = "bool_and" // &&
	BoolNot ExprType = "bool_not" // !

	Equal        ExprType = "equal"          // ==
	NotEqual     ExprType = "not_equal"      // !=
	LessThan     ExprType = "less_than"      // <
	LessEqual    ExprType = "less_equal"     // <=
	GreaterThan  ExprType = "greater_than"   // >
	GreaterEqual ExprType = "greater_equal"  // >=

	Plus     ExprType = "plus"     // +
	Minus    ExprType = "minus"    // - (binary sub, or unary negation)
	Multiply ExprType = "multiply" // *
	Divide   ExprType = "divide"   // /
	Modulo   ExprType = "modulo"   // %
	Power    ExprType = "power"    // **
)

// FuncName enumerates the fixed catalogue of built-in functions the expression grammar
// accepts, every name here must have a matching entry in the 'Functions' arity table.
type FuncName string

const (
	Abs   FuncName = "abs"
	Sqrt  FuncName = "sqrt"
	Exp   FuncName = "exp"
	Ln    FuncName = "ln"
	Log   FuncName = "log"
	Log10 FuncName = "log10"

	Sin  FuncName = "sin"
	Cos  FuncName = "cos"
	Tan  FuncName = "tan"
	Asin FuncName = "asin"
	Acos FuncName = "acos"
	Atan FuncName = "atan"

	Sinh  FuncName = "sinh"
	Cosh  FuncName = "cosh"
	Tanh  FuncName = "tanh"
	Asinh FuncName = "asinh"
	Acosh FuncName = "acosh"
	Atanh FuncName = "atanh"

	Atan2 FuncName = "atan2" // args evaluated as (y, x), swapped at call-construction time (see parseCall)
	Pow   FuncName = "pow"
	Pwr   FuncName = "pwr"  // pwr(x, y) = |x|^y
	Pwrs  FuncName = "pwrs" // pwrs(x, y), signed variant of pwr
	Min   FuncName = "min"
	Max   FuncName = "max"

	Ddx FuncName = "ddx" // first argument is a bare function symbol, not an evaluated expression
	Ddt FuncName = "ddt" // time derivative of its argument
	Sdt FuncName = "sdt" // time integral of its argument

	Ceil  FuncName = "ceil"
	Floor FuncName = "floor"
	Nint  FuncName = "nint" // nearest integer
	Int   FuncName = "int"  // truncate toward zero
	Sgn   FuncName = "sgn"
	Sign  FuncName = "sign"
	Stp   FuncName = "stp"   // unit step
	Uramp FuncName = "uramp" // ramp clamped at zero

	Db  FuncName = "db"  // decibel conversion
	M   FuncName = "m"   // magnitude of a complex (AC analysis) quantity
	Ph  FuncName = "ph"  // phase of a complex quantity
	Re  FuncName = "re"  // real part of a complex quantity
	R   FuncName = "r"   // alias of 're'
	Img FuncName = "img" // imaginary part of a complex quantity

	If    FuncName = "if"    // if(cond, then, else), the functional form of '?:'
	Limit FuncName = "limit" // limit(x, min, max), clamps x to the given range

	Gauss  FuncName = "gauss"  // gauss(nominal, rel_variation, sigma)
	Agauss FuncName = "agauss" // agauss(nominal, abs_variation, sigma)
	Unif   FuncName = "unif"   // unif(nominal, rel_variation)
	Aunif  FuncName = "aunif"  // aunif(nominal, abs_variation)
	Rand   FuncName = "rand"   // rand(), no arguments

	V FuncName = "v" // v(node) or v(node1, node2), variadic (see Arity table note)
	I FuncName = "i" // i(vsource), variadic (see Arity table note)
)

// Variadic is the Arity table sentinel for a function whose argument count isn't fixed;
// V and I accept either 1 or 2 arguments (a single node voltage, or a differential pair),
// checked specially in pkg/expr/parse.go's parseCall rather than via a plain count match.
const Variadic = -1

// Arity records the exact number of arguments each built-in function accepts (or
// Variadic, for the handful that don't have one); Parse rejects any call whose argument
// count doesn't match when it builds the CallExpr.
var Arity = map[FuncName]int{
	Abs: 1, Sqrt: 1, Exp: 1, Ln: 1, Log: 1, Log10: 1,
	Sin: 1, Cos: 1, Tan: 1, Asin: 1, Acos: 1, Atan: 1,
	Sinh: 1, Cosh: 1, Tanh: 1, Asinh: 1, Acosh: 1, Atanh: 1,
	Atan2: 2, Pow: 2, Pwr: 2, Pwrs: 2, Min: 2, Max: 2,
	Ddx: 2, Ddt: 1, Sdt: 1,
	Ceil: 1, Floor: 1, Nint: 1, Int: 1, Sgn: 1, Sign: 1, Stp: 1, Uramp: 1,
	Db: 1, M: 1, Ph: 1, Re: 1, R: 1, Img: 1,
	If:     3,
	Limit:  3,
	Gauss:  3,
	Agauss: 3,
	Unif:   2,
	Aunif:  2,
	Rand:   0,
	V:      Variadic,
	I:      Variadic,
}

// IsFunction reports whether 'name' is one of the fixed built-in functions.
func IsFunction(name string) (FuncName, bool) {
	fn := FuncName(name)
	_, ok := Arity[fn]
	return fn, ok
}
