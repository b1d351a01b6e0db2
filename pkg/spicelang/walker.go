package spicelang

import (
	"fmt"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	"its-hmny.dev/spice/pkg/circuit"
	"its-hmny.dev/spice/pkg/utils"
)

// ----------------------------------------------------------------------------
// Scope frames

// scopeFrame is whatever is currently being populated by the walker: either the root
// Circuit or a Subcircuit/Library body nested inside it. Pushing/popping frames mirrors
// the teacher's ScopeTable discipline (pkg/jack/scopes.go), generalized from Jack's
// class/subroutine scopes to SPICE's circuit/subcircuit/library scopes.
type scopeFrame struct {
	name  string // ".subckt"/".lib" name, "" for the root circuit frame
	kind  string // "circuit", "subckt" or "lib"
	sub   *circuit.Subcircuit
	lib   *circuit.Library
}

// Walker turns a sequence of flatStatement lines into a circuit.Circuit, maintaining a
// stack of nested scope frames (subcircuit/library bodies) exactly the way
// pkg/jack/scopes.go's ScopeTable pushes/pops class and subroutine scopes during its DFS.
type Walker struct {
	circuit *circuit.Circuit

	present *scopeFrame
	parents utils.Stack[*scopeFrame]

	path          string // source path, "" for an inline/string source
	includeStack  map[string]bool
	depth         int
}

const maxIncludeDepth = 32

func newWalker(path string, library bool) *Walker {
	title := filepath.Base(path)
	if path == "" {
		title = "untitled"
	}
	c := circuit.NewCircuit(title, library)
	return &Walker{
		circuit:      c,
		present:      &scopeFrame{kind: "circuit"},
		path:         path,
		includeStack: map[string]bool{},
	}
}

// pushScope opens a new nested subckt/lib scope, saving the current frame on the parent
// stack; popScope, called by the '.ends'/'.endl' handlers, restores it.
func (w *Walker) pushScope(frame *scopeFrame) {
	w.parents.Push(w.present)
	w.present = frame
}

func (w *Walker) popScope() (*scopeFrame, error) {
	parent, err := w.parents.Pop()
	if err != nil {
		return nil, fmt.Errorf("unbalanced scope stack: %w", err)
	}
	closed := w.present
	w.present = parent
	return closed, nil
}

// appendStatement records 'stmt' in whichever scope (circuit, subckt or lib) is currently
// open, and updates that scope's required-models/required-subcircuits bookkeeping when
// the statement references one.
func (w *Walker) appendStatement(stmt circuit.Statement) {
	switch w.present.kind {
	case "subckt":
		w.present.sub.Statements = append(w.present.sub.Statements, stmt)
	case "lib":
		w.present.lib.Statements = append(w.present.lib.Statements, stmt)
	default:
		w.circuit.Statements = append(w.circuit.Statements, stmt)
	}

	if elem, ok := stmt.(circuit.Element); ok {
		w.recordReference(elem)
	}
}

func (w *Walker) recordReference(elem circuit.Element) {
	// An 'X' instance's Model field holds a subcircuit name, not a model name; the two
	// reference kinds are mutually exclusive on a single element.
	isSubcktRef := elem.Class == circuit.SubcktInstance

	switch w.present.kind {
	case "subckt":
		if elem.Model != "" && !isSubcktRef {
			w.present.sub.RequiredModels[strings.ToLower(elem.Model)] = true
		}
		if isSubcktRef {
			w.present.sub.RequiredSubcircuits[strings.ToLower(elem.Model)] = true
		}
	default:
		if elem.Model != "" && !isSubcktRef {
			w.circuit.RequiredModels[strings.ToLower(elem.Model)] = true
		}
		if isSubcktRef {
			w.circuit.RequiredSubcircuits[strings.ToLower(elem.Model)] = true
		}
	}
}

// walkLine dispatches one flatStatement to the right handler based on its head token:
// '.'-prefixed directives, or a device-letter-prefixed instance name.
func (w *Walker) walkLine(line rawLine) error {
	stmt, err := parseLine(line.Text)
	if err != nil {
		return newParseError(GrammarError, w.path, line.Line, "%w", err)
	}

	head := stmt.Head
	var handlerErr error

	switch {
	case strings.HasPrefix(head, "."):
		handlerErr = w.walkDirective(strings.ToLower(head), stmt)
	case len(head) > 0:
		handlerErr = w.walkDevice(head, stmt)
	default:
		handlerErr = fmt.Errorf("empty statement head")
	}

	if handlerErr != nil {
		return newParseError(classifyError(handlerErr), w.path, line.Line, "%w", handlerErr)
	}
	return nil
}

// classifyError maps an internal error to its surfaced Kind; handlers that care about a
// specific kind construct a *ParseError directly and it passes through unchanged here.
func classifyError(err error) Kind {
	if pe, ok := err.(*ParseError); ok {
		return pe.Kind
	}
	return DeviceShapeError
}

func (w *Walker) walkDirective(head string, stmt flatStatement) error {
	switch head {
	case ".model":
		return w.handleModel(stmt)
	case ".subckt":
		return w.handleSubcktStart(stmt)
	case ".ends":
		return w.handleSubcktEnd(stmt)
	case ".lib":
		return w.handleLib(stmt)
	case ".endl":
		return w.handleLibEnd(stmt)
	case ".include", ".inc":
		return w.handleInclude(stmt)
	case ".param":
		return w.handleParam(stmt)
	case ".data":
		return w.handleData(stmt)
	default:
		// Analysis/control directives (.ac, .dc, .tran, .ic, .options, .end, ...) are
		// outside this package's scope (simulation is a non-goal); they're accepted and
		// logged at debug level so a netlist using them still parses instead of erroring
		// out. No statement is recorded for them in the IR.
		log.WithField("directive", head).Debug("passthrough directive, not semantically interpreted")
		return nil
	}
}

func (w *Walker) walkDevice(head string, stmt flatStatement) error {
	switch strings.ToUpper(head[:1]) {
	case "R":
		return w.handleRLC(head, stmt, circuit.Resistor, 2)
	case "L":
		return w.handleRLC(head, stmt, circuit.Inductor, 2)
	case "C":
		return w.handleRLC(head, stmt, circuit.Capacitor, 2)
	case "K":
		return w.handleMutualInductor(head, stmt)
	case "D":
		return w.handleTwoTerminalModel(head, stmt, circuit.Diode)
	case "Q":
		return w.handleBJT(head, stmt)
	case "J":
		return w.handleJFET(head, stmt)
	case "M":
		return w.handleMOSFET(head, stmt)
	case "V":
		return w.handleSource(head, stmt, circuit.VoltageSource)
	case "I":
		return w.handleSource(head, stmt, circuit.CurrentSource)
	case "E", "F", "G", "H":
		return w.handleControlledSource(head, stmt)
	case "B":
		return w.handleBehavioral(head, stmt)
	case "S", "W":
		return w.handleSwitch(head, stmt)
	case "X":
		return w.handleSubcktInstance(head, stmt)
	default:
		return fmt.Errorf("unrecognized device letter %q in instance %q", head[:1], head)
	}
}
