package circuit

import (
	"its-hmny.dev/spice/pkg/expr"
	"its-hmny.dev/spice/pkg/units"
	"its-hmny.dev/spice/pkg/utils"
)

// ----------------------------------------------------------------------------
// General information

// This section models the circuit intermediate representation produced by the semantic
// walker once it has fully processed a netlist's CST.
//
// We declare a shared 'Statement' interface for every top-level netlist construct (device
// instance, model, parameter, include, ...) and define, one after the other, the concrete
// statement types. A type switch disambiguates the concrete kind at consumer side, there
// is no dynamic-dispatch interface hierarchy to maintain (mirrors the same design used for
// 'vm.Operation' and 'hack.Instruction' elsewhere in this repo).
//
// Ownership between entities is always by name (a plain string resolved through a scope
// walk at build time), never by pointer: this keeps the IR a plain tree with no cyclic
// back-edges, so it can be copied, diffed and re-sorted (the subcircuit topological sort)
// without any aliasing concerns.
type Statement interface{}

// ----------------------------------------------------------------------------
// Values

// Value is whatever can appear on the right-hand side of a device parameter or argument:
// either a literal engineering-unit number, an embedded '{...}' expression, or a bare
// reference to a model/node/subcircuit name.
type Value struct {
	Unit   *units.PrefixedUnit // set when the value is a plain numeric literal
	Expr   expr.Expression     // set when the value is an embedded '{...}' expression
	Ident  string              // set when the value is a bare identifier (model/node/name)
	IsReal bool                // true if Unit is meaningfully populated (zero value is ambiguous w/ "0")
}

// ----------------------------------------------------------------------------
// Elements (device instances)

// DeviceClass identifies the kind of device an Element represents, post-disambiguation:
// controlled-source letters (E, F, G, H) always fold into Behavioral, see spec §4.3.
type DeviceClass string

const (
	Resistor       DeviceClass = "R"
	Capacitor      DeviceClass = "C"
	Inductor       DeviceClass = "L"
	MutualInductor DeviceClass = "K"
	Diode          DeviceClass = "D"
	BJT            DeviceClass = "Q"
	JFET           DeviceClass = "J"
	MOSFET         DeviceClass = "M"
	VoltageSource  DeviceClass = "V"
	CurrentSource  DeviceClass = "I"
	Behavioral     DeviceClass = "B" // folded target for E/F/G/H controlled sources
	Switch         DeviceClass = "S"
	SubcktInstance DeviceClass = "X"
)

// Element is a single device instance line (the vast majority of netlist statements).
type Element struct {
	Name  string      // instance name including its device-letter prefix, e.g. 'R1', 'Q3'
	Class DeviceClass // device kind, after any controlled-source folding

	Nodes []string // ordered node names this device is connected to
	Model string    // referenced model name, "" if none

	// Positional values not already captured by Nodes/Model (e.g. R's resistance, C's
	// capacitance, K's coupling factor), in the order the grammar encountered them.
	Positional []Value
	// Keyword arguments (e.g. 'area=2', 'ic=0.6', 'tc1=...'), merged from both bare and
	// bracketed kwarg forms per spec §4.3's MOSFET merge rule.
	Kwargs utils.OrderedMap[string, Value]

	// Populated only for folded Behavioral (E/F/G/H) sources: the synthesized expression
	// that reproduces the controlled source's original semantics.
	VoltageExpression expr.Expression
	CurrentExpression expr.Expression

	// Populated only for V/I sources using one of the high-level waveform shapes (PULSE,
	// SIN, EXP, PWL, SFFM, AM); uninterpreted, carried through for the sink to consume.
	Waveform *Waveform
}

// Waveform is an uninterpreted high-level source shape: a function name plus its raw
// positional arguments, exactly as PySpice's HighLevelElement mixins accept them.
type Waveform struct {
	Func string
	Args []Value
}

// ----------------------------------------------------------------------------
// Models, Parameters, Includes, Data

type Model struct {
	Name string
	Type string // e.g. 'npn', 'pnp', 'nmos', 'd', ...
	Args utils.OrderedMap[string, Value]
}

type Param struct {
	Name  string
	Value Value
}

type Include struct {
	Path     string
	Resolved string // absolute path once resolved relative to the including file
}

type Lib struct {
	Path  string
	Entry string // name of the '.lib <entry>' block to pull in, "" for a plain '.include'-style '.lib'
}

// LibCall represents a '.lib <file> <entry>' directive that pulls a named block out of
// another file, as distinct from a same-file '.lib <name> ... .endl' declaration.
type LibCall struct {
	Path  string
	Entry string
}

// DataStatement is a '.data' table: a set of named columns and the row-major values that
// fill them. len(Values) must be a multiple of len(Columns) (spec §3 invariant).
type DataStatement struct {
	Name    string
	Columns []string
	Values  []Value
}

// ----------------------------------------------------------------------------
// Subcircuits, Libraries, Circuit

// Subckt wraps a Subcircuit definition as a top-level Statement so it can sit alongside
// other statements in a Circuit's or Library's body before the resolver sorts it into
// its final position.
type Subckt struct{ Def *Subcircuit }

// Subcircuit is a named, reusable block of devices/models/params with its own port list.
// It may itself nest further subcircuit definitions; Models/Subcircuits hold only what
// this body declares directly (its own scope), never anything inherited from an
// enclosing circuit or subcircuit. RequiredModels/RequiredSubcircuits accumulate (during
// the semantic walk) every model or nested subcircuit name referenced anywhere inside its
// body, used by the resolver to check visibility and to order subcircuit definitions so
// that every dependency precedes its user.
type Subcircuit struct {
	Name   string
	Nodes  []string // port list, in declaration order
	Params utils.OrderedMap[string, Value]

	Statements []Statement

	Models      utils.OrderedMap[string, Model]
	Subcircuits utils.OrderedMap[string, *Subcircuit]

	RequiredModels      map[string]bool
	RequiredSubcircuits map[string]bool
}

// Library is a named '.lib <name> ... .endl <name>' block, a container for statements
// (often models and subcircuits) that can be selectively pulled in via LibCall.
type Library struct {
	Name       string
	Statements []Statement
}

// Circuit is the root of the IR: the parsed top-level netlist, after the walker has
// finished its DFS but (generally) before the resolver has run its model-check and
// subcircuit-sort passes.
type Circuit struct {
	Title string

	Statements []Statement

	Models      utils.OrderedMap[string, Model]
	Subcircuits utils.OrderedMap[string, *Subcircuit]
	Libraries   utils.OrderedMap[string, *Library]
	Parameters  utils.OrderedMap[string, Param]

	RequiredModels      map[string]bool
	RequiredSubcircuits map[string]bool

	// Library marks this Circuit as itself being parsed in "library" mode: per spec §4.5,
	// a circuit's own models/subcircuits are then promoted into its own required sets so
	// that is_only_model/is_only_subcircuit and the resolver treat it uniformly with a
	// '.lib' block pulled in from elsewhere.
	Library bool
}

// NewCircuit returns an empty, ready-to-populate Circuit.
func NewCircuit(title string, library bool) *Circuit {
	return &Circuit{
		Title:               title,
		Library:             library,
		RequiredModels:      map[string]bool{},
		RequiredSubcircuits: map[string]bool{},
	}
}

// NewSubcircuit returns an empty, ready-to-populate Subcircuit.
func NewSubcircuit(name string, nodes []string) *Subcircuit {
	return &Subcircuit{
		Name:                name,
		Nodes:               nodes,
		RequiredModels:      map[string]bool{},
		RequiredSubcircuits: map[string]bool{},
	}
}

// IsOnlyModel reports whether this circuit's sole purpose is to define models (no device
// instances of its own), per spec §6's predicate of the same name.
func (c *Circuit) IsOnlyModel() bool {
	return c.Models.Size() > 0 && !c.hasDeviceStatements()
}

// IsOnlySubcircuit reports whether this circuit's sole purpose is to define subcircuits.
func (c *Circuit) IsOnlySubcircuit() bool {
	return c.Subcircuits.Size() > 0 && !c.hasDeviceStatements()
}

func (c *Circuit) hasDeviceStatements() bool {
	for _, stmt := range c.Statements {
		if _, isElement := stmt.(Element); isElement {
			return true
		}
	}
	return false
}
