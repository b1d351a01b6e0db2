package spicelang

import (
	"fmt"
	"strings"

	"its-hmny.dev/spice/pkg/circuit"
)

// ----------------------------------------------------------------------------
// .model

func (w *Walker) handleModel(stmt flatStatement) error {
	positional, kwargs := splitFields(stmt.Fields)
	if len(positional) < 2 {
		return fmt.Errorf(".model: expected a name and a type, got %d field(s)", len(positional))
	}

	model := circuit.Model{Name: positional[0].Value, Type: strings.ToLower(positional[1].Value)}
	for key, field := range kwargs.Entries() {
		val, err := valueFromToken(field.Value)
		if err != nil {
			return fmt.Errorf(".model %s: %w", model.Name, err)
		}
		model.Args.Set(key, val)
	}

	w.registerModel(model)
	return nil
}

// registerModel records 'model' in whichever scope is currently open. A model declared
// inside a '.subckt' body is only visible within that subcircuit (and anything it nests),
// never promoted to the file's flat namespace, per spec §4.5's scoped visibility; a model
// declared at circuit or '.lib' level is visible file-wide.
func (w *Walker) registerModel(model circuit.Model) {
	switch w.present.kind {
	case "subckt":
		w.present.sub.Statements = append(w.present.sub.Statements, model)
		w.present.sub.Models.Set(strings.ToLower(model.Name), model)
	case "lib":
		w.present.lib.Statements = append(w.present.lib.Statements, model)
		w.circuit.Models.Set(strings.ToLower(model.Name), model)
	default:
		w.circuit.Statements = append(w.circuit.Statements, model)
		w.circuit.Models.Set(strings.ToLower(model.Name), model)
	}
	if w.circuit.Library && w.present.kind != "subckt" {
		w.circuit.RequiredModels[strings.ToLower(model.Name)] = true
	}
}

// ----------------------------------------------------------------------------
// .subckt / .ends

func (w *Walker) handleSubcktStart(stmt flatStatement) error {
	positional, kwargs := splitFields(stmt.Fields)
	if len(positional) < 1 {
		return fmt.Errorf(".subckt: expected a name, got no fields")
	}

	nodes, defaults := splitSubcktParams(positional[1:])

	sub := circuit.NewSubcircuit(positional[0].Value, nodes)
	for name, rawValue := range defaults {
		val, err := valueFromToken(rawValue)
		if err != nil {
			return fmt.Errorf(".subckt %s: default parameter %s: %w", sub.Name, name, err)
		}
		sub.Params.Set(strings.ToLower(name), val)
	}
	for key, field := range kwargs.Entries() {
		val, err := valueFromToken(field.Value)
		if err != nil {
			return fmt.Errorf(".subckt %s: default parameter %s: %w", sub.Name, key, err)
		}
		sub.Params.Set(strings.ToLower(key), val)
	}

	w.pushScope(&scopeFrame{kind: "subckt", name: sub.Name, sub: sub})
	return nil
}

// splitSubcktParams separates a '.subckt' instance's node list from its trailing default
// parameters. SPICE spells the boundary either as a literal 'PARAMS:' marker or, lacking
// that, as the first bare 'name=value' field; everything before the boundary is a node.
func splitSubcktParams(fields []flatField) (nodes []string, defaults map[string]string) {
	defaults = map[string]string{}
	boundary := len(fields)

	for i, f := range fields {
		if strings.EqualFold(f.Value, "PARAMS:") {
			boundary = i
			break
		}
		if strings.Contains(f.Value, "=") {
			boundary = i
			break
		}
	}

	for _, f := range fields[:boundary] {
		nodes = append(nodes, f.Value)
	}
	for _, f := range fields[boundary:] {
		if strings.EqualFold(f.Value, "PARAMS:") {
			continue
		}
		if name, value, ok := strings.Cut(f.Value, "="); ok {
			defaults[name] = value
		}
	}
	return nodes, defaults
}

func (w *Walker) handleSubcktEnd(stmt flatStatement) error {
	if w.present.kind != "subckt" {
		return newParseError(UnclosedScope, w.path, 0, "'.ends' with no matching '.subckt' open")
	}

	positional, _ := splitFields(stmt.Fields)
	closedName := w.present.name

	closed, err := w.popScope()
	if err != nil {
		return err
	}

	// '.ends' may optionally repeat the subcircuit's name; when it does it must match the
	// currently open one, per spec §3's '.lib'/'.endl' name-matching invariant (the same
	// rule applies symmetrically to '.subckt'/'.ends').
	if len(positional) > 0 && !strings.EqualFold(positional[0].Value, closedName) {
		return newParseError(NameMismatch, w.path, 0, "'.ends %s' does not match open '.subckt %s'", positional[0].Value, closedName)
	}

	if w.circuit.Library && w.present.kind != "subckt" {
		w.circuit.RequiredSubcircuits[strings.ToLower(closedName)] = true
	}

	w.registerSubcircuit(closed.sub)
	return nil
}

// registerSubcircuit records a just-closed '.subckt' body in whichever scope is currently
// open. A subcircuit nested inside another one is only visible to its immediate parent,
// not promoted into the file's flat namespace, per spec §4.5's scoped visibility (mirrors
// registerModel's same rule for nested models).
func (w *Walker) registerSubcircuit(sub *circuit.Subcircuit) {
	switch w.present.kind {
	case "subckt":
		w.present.sub.Statements = append(w.present.sub.Statements, circuit.Subckt{Def: sub})
		w.present.sub.Subcircuits.Set(strings.ToLower(sub.Name), sub)
	case "lib":
		w.present.lib.Statements = append(w.present.lib.Statements, circuit.Subckt{Def: sub})
		w.circuit.Subcircuits.Set(strings.ToLower(sub.Name), sub)
	default:
		w.circuit.Statements = append(w.circuit.Statements, circuit.Subckt{Def: sub})
		w.circuit.Subcircuits.Set(strings.ToLower(sub.Name), sub)
	}
}

// ----------------------------------------------------------------------------
// .lib / .endl

func (w *Walker) handleLib(stmt flatStatement) error {
	positional, _ := splitFields(stmt.Fields)

	// '.lib <file> <entry>' (a LibCall pulling a named block from another file) vs
	// '.lib <name>' (opening a same-file block, closed later by '.endl <name>').
	if len(positional) >= 2 && looksLikePath(positional[0].Value) {
		return w.resolveLibCall(positional[0].Value, positional[1].Value)
	}
	if len(positional) < 1 {
		return fmt.Errorf(".lib: expected a name, got no fields")
	}

	lib := &circuit.Library{Name: positional[0].Value}
	w.pushScope(&scopeFrame{kind: "lib", name: lib.Name, lib: lib})
	return nil
}

func (w *Walker) handleLibEnd(stmt flatStatement) error {
	if w.present.kind != "lib" {
		return newParseError(UnclosedScope, w.path, 0, "'.endl' with no matching '.lib' open")
	}

	positional, _ := splitFields(stmt.Fields)
	closedName := w.present.name

	closed, err := w.popScope()
	if err != nil {
		return err
	}

	if len(positional) > 0 && !strings.EqualFold(positional[0].Value, closedName) {
		return newParseError(NameMismatch, w.path, 0, "'.endl %s' does not match open '.lib %s'", positional[0].Value, closedName)
	}

	w.circuit.Libraries.Set(strings.ToLower(closedName), closed.lib)
	return nil
}

func looksLikePath(token string) bool {
	return strings.Contains(token, "/") || strings.Contains(token, "\\") || strings.Contains(token, ".")
}

// looksNumeric reports whether 'token' starts like a numeric literal (a units.Parse
// candidate) as opposed to a bare column-name identifier.
func looksNumeric(token string) bool {
	if token == "" {
		return false
	}
	c := token[0]
	return c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9')
}

// ----------------------------------------------------------------------------
// .include / .inc

func (w *Walker) handleInclude(stmt flatStatement) error {
	positional, _ := splitFields(stmt.Fields)
	if len(positional) < 1 {
		return fmt.Errorf(".include: expected a path, got no fields")
	}

	path := strings.Trim(positional[0].Value, `"'`)
	return w.resolveInclude(path)
}

// ----------------------------------------------------------------------------
// .param

func (w *Walker) handleParam(stmt flatStatement) error {
	positional, kwargs := splitFields(stmt.Fields)

	for _, f := range positional {
		name, rawValue, ok := strings.Cut(f.Value, "=")
		if !ok {
			return fmt.Errorf(".param: malformed parameter %q, expected 'name=value'", f.Value)
		}
		if err := w.registerParam(name, rawValue); err != nil {
			return err
		}
	}
	for key, field := range kwargs.Entries() {
		if err := w.registerParam(key, field.Value); err != nil {
			return err
		}
	}
	return nil
}

func (w *Walker) registerParam(name, rawValue string) error {
	val, err := valueFromToken(rawValue)
	if err != nil {
		return fmt.Errorf(".param %s: %w", name, err)
	}
	param := circuit.Param{Name: name, Value: val}
	w.appendStatement(param)
	w.circuit.Parameters.Set(strings.ToLower(name), param)
	return nil
}

// ----------------------------------------------------------------------------
// .data

func (w *Walker) handleData(stmt flatStatement) error {
	positional, _ := splitFields(stmt.Fields)
	if len(positional) < 2 {
		return fmt.Errorf(".data: expected a name and at least one column, got %d field(s)", len(positional))
	}

	name := positional[0].Value
	var columns []string
	var values []circuit.Value
	inColumns := true

	for _, f := range positional[1:] {
		if inColumns && !looksNumeric(f.Value) {
			columns = append(columns, f.Value)
			continue
		}
		inColumns = false

		val, err := valueFromToken(f.Value)
		if err != nil {
			return fmt.Errorf(".data %s: %w", name, err)
		}
		values = append(values, val)
	}

	if len(columns) == 0 || len(values)%len(columns) != 0 {
		return newParseError(DataMismatch, w.path, 0, ".data %s: value count %d is not a multiple of column count %d", name, len(values), len(columns))
	}

	w.appendStatement(circuit.DataStatement{Name: name, Columns: columns, Values: values})
	return nil
}
