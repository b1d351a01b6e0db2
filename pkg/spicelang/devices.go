package spicelang

import (
	"fmt"
	"strings"

	"github.com/spf13/cast"

	"its-hmny.dev/spice/pkg/circuit"
	"its-hmny.dev/spice/pkg/expr"
	"its-hmny.dev/spice/pkg/utils"
)

// ----------------------------------------------------------------------------
// Passive two/three-terminal devices: R, L, C

// handleRLC builds a Resistor/Inductor/Capacitor Element. Its value can be given either
// positionally (right after the node list) or via the device-letter keyword ('r=', 'l=',
// 'c='); a further bare token after the value is taken as a model reference (e.g. a
// temperature-coefficient resistor model), per spec §4.3.
func (w *Walker) handleRLC(name string, stmt flatStatement, class circuit.DeviceClass, nNodes int) error {
	positional, kwargs := splitFields(stmt.Fields)
	if len(positional) < nNodes {
		return fmt.Errorf("%s: expected at least %d node(s), got %d", name, nNodes, len(positional))
	}

	elem := circuit.Element{Name: name, Class: class, Nodes: tokensOf(positional[:nNodes])}
	rest := positional[nNodes:]

	keyName := strings.ToLower(string(class))
	if kwField, ok := kwargs.Get(keyName); ok {
		val, err := valueFromToken(kwField.Value)
		if err != nil {
			return fmt.Errorf("%s: invalid value: %w", name, err)
		}
		elem.Positional = append(elem.Positional, val)
	} else if len(rest) > 0 {
		val, err := valueFromToken(rest[0].Value)
		if err != nil {
			return fmt.Errorf("%s: invalid value: %w", name, err)
		}
		elem.Positional = append(elem.Positional, val)
		rest = rest[1:]
	} else {
		return fmt.Errorf("%s: missing required value", name)
	}

	if len(rest) > 0 {
		val, err := valueFromToken(rest[0].Value)
		if err != nil {
			return fmt.Errorf("%s: invalid model reference: %w", name, err)
		}
		if val.Ident != "" {
			elem.Model = val.Ident
		}
	}

	if err := attachKwargs(&elem, kwargs, keyName); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	w.appendStatement(elem)
	return nil
}

// ----------------------------------------------------------------------------
// Mutual inductor: K

// handleMutualInductor requires exactly two inductor names and a coupling coefficient,
// per spec §4.3's "K requires exactly two inductor names" invariant.
func (w *Walker) handleMutualInductor(name string, stmt flatStatement) error {
	positional, kwargs := splitFields(stmt.Fields)
	if len(positional) != 3 {
		return fmt.Errorf("%s: expected exactly 2 inductor names and a coupling factor, got %d field(s)", name, len(positional))
	}

	coupling, err := valueFromToken(positional[2].Value)
	if err != nil {
		return fmt.Errorf("%s: invalid coupling factor: %w", name, err)
	}

	elem := circuit.Element{
		Name:       name,
		Class:      circuit.MutualInductor,
		Nodes:      nil,
		Positional: []circuit.Value{{Ident: positional[0].Value}, {Ident: positional[1].Value}, coupling},
	}
	if err := attachKwargs(&elem, kwargs, ""); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	w.appendStatement(elem)
	return nil
}

// ----------------------------------------------------------------------------
// Two-terminal modeled devices: D (diode), J (JFET)

func (w *Walker) handleTwoTerminalModel(name string, stmt flatStatement, class circuit.DeviceClass) error {
	return w.handleModeledDevice(name, stmt, class, 2)
}

func (w *Walker) handleJFET(name string, stmt flatStatement) error {
	return w.handleModeledDevice(name, stmt, circuit.JFET, 3)
}

// handleModeledDevice is the shared shape for devices that are just "nodes... model
// [kwargs]" with no further disambiguation required.
func (w *Walker) handleModeledDevice(name string, stmt flatStatement, class circuit.DeviceClass, nNodes int) error {
	positional, kwargs := splitFields(stmt.Fields)
	if len(positional) < nNodes+1 {
		return fmt.Errorf("%s: expected %d node(s) and a model name, got %d field(s)", name, nNodes, len(positional))
	}

	elem := circuit.Element{
		Name:  name,
		Class: class,
		Nodes: tokensOf(positional[:nNodes]),
		Model: positional[nNodes].Value,
	}
	for _, f := range positional[nNodes+1:] {
		val, err := valueFromToken(f.Value)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		elem.Positional = append(elem.Positional, val)
	}
	if err := attachKwargs(&elem, kwargs, ""); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	w.appendStatement(elem)
	return nil
}

// ----------------------------------------------------------------------------
// BJT: Q

// handleBJT disambiguates the trailing positional arguments after the 3 required nodes
// (collector, base, emitter) by coercing the rightmost one to a number first: if it
// parses, it's the device area and the field before it is the model name, otherwise that
// rightmost field is the model name itself and anything before it is a substrate/thermal
// node. This is the same try-as-number-then-fall-back algorithm as PySpice's walk_BJT
// (original_source/.../EBNFParser.py), so instance/model declaration order never matters.
func (w *Walker) handleBJT(name string, stmt flatStatement) error {
	positional, kwargs := splitFields(stmt.Fields)
	if len(positional) < 4 {
		return fmt.Errorf("%s: expected at least 3 nodes and a model name, got %d field(s)", name, len(positional))
	}

	nodes := tokensOf(positional[:3])
	rest := positional[3:]

	// 'off' is a bare initial-condition flag, not a node/model/area positional field;
	// strip it out before running the number-coercion disambiguation below.
	off := false
	var filtered []flatField
	for _, f := range rest {
		if strings.EqualFold(f.Value, "off") {
			off = true
			continue
		}
		filtered = append(filtered, f)
	}
	rest = filtered

	if len(rest) == 0 {
		return fmt.Errorf("%s: missing model name", name)
	}

	var model string
	var area *circuit.Value

	switch len(rest) {
	case 1:
		model = rest[0].Value
	case 2:
		if _, err := cast.ToFloat64E(rest[1].Value); err == nil {
			val, err := valueFromToken(rest[1].Value)
			if err != nil {
				return fmt.Errorf("%s: invalid area: %w", name, err)
			}
			model, area = rest[0].Value, &val
		} else {
			nodes = append(nodes, rest[0].Value) // substrate/thermal node
			model = rest[1].Value
		}
	case 3:
		if _, err := cast.ToFloat64E(rest[2].Value); err == nil {
			val, err := valueFromToken(rest[2].Value)
			if err != nil {
				return fmt.Errorf("%s: invalid area: %w", name, err)
			}
			nodes = append(nodes, rest[0].Value) // substrate or thermal node
			model, area = rest[1].Value, &val
		} else {
			nodes = append(nodes, rest[0].Value, rest[1].Value) // substrate + thermal nodes
			model = rest[2].Value
		}
	default:
		return fmt.Errorf("%s: too many positional arguments after the model name", name)
	}

	elem := circuit.Element{Name: name, Class: circuit.BJT, Nodes: nodes, Model: model}
	if area != nil {
		elem.Kwargs.Set("area", *area)
	}
	if off {
		elem.Kwargs.Set("off", circuit.Value{Ident: "off"})
	}

	if err := attachKwargs(&elem, kwargs, ""); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	w.appendStatement(elem)
	return nil
}

// ----------------------------------------------------------------------------
// MOSFET: M

// handleMOSFET always has exactly 4 nodes (drain, gate, source, bulk) followed by a model
// name, then any mix of bare and 'key=value' parameters; both forms are merged into one
// Kwargs map per spec §4.3's MOSFET kwarg-merge rule.
func (w *Walker) handleMOSFET(name string, stmt flatStatement) error {
	positional, kwargs := splitFields(stmt.Fields)
	if len(positional) < 5 {
		return fmt.Errorf("%s: expected 4 nodes and a model name, got %d field(s)", name, len(positional))
	}

	elem := circuit.Element{
		Name:  name,
		Class: circuit.MOSFET,
		Nodes: tokensOf(positional[:4]),
		Model: positional[4].Value,
	}

	// bare trailing params (e.g. a lone 'L' or 'W' value without '=') are merged into the
	// same Kwargs map as explicit 'l=.../w=...' kwargs, keyed positionally as "param<N>"
	// when no keyword form is present, since MOSFET bare trailing params are rare and the
	// model's own parameter order is implementation-defined (not specified here).
	for i, f := range positional[5:] {
		val, err := valueFromToken(f.Value)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		elem.Kwargs.Set(fmt.Sprintf("param%d", i), val)
	}
	if err := attachKwargs(&elem, kwargs, ""); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	w.appendStatement(elem)
	return nil
}

// ----------------------------------------------------------------------------
// Independent sources: V, I

// handleSource recognizes the high-level waveform shapes (PULSE, SIN, EXP, PWL, SFFM, AM)
// PySpice's HighLevelElement mixins support; when the first trailing positional field
// names one of them the rest of its arguments are kept as an uninterpreted circuit.Waveform
// (spec §10 supplement), otherwise the trailing field is a plain DC/transient value.
func (w *Walker) handleSource(name string, stmt flatStatement, class circuit.DeviceClass) error {
	positional, kwargs := splitFields(stmt.Fields)
	if len(positional) < 2 {
		return fmt.Errorf("%s: expected 2 nodes, got %d field(s)", name, len(positional))
	}

	elem := circuit.Element{Name: name, Class: class, Nodes: tokensOf(positional[:2])}
	rest := positional[2:]

	funcName, inlineArg, isWave := splitWaveformHead(rest)
	if isWave {
		wf := &circuit.Waveform{Func: strings.ToUpper(funcName)}
		args := make([]string, 0, len(rest))
		if inlineArg != "" {
			args = append(args, inlineArg)
		}
		for _, f := range rest[1:] {
			args = append(args, f.Value)
		}
		for _, raw := range args {
			token := strings.TrimSuffix(strings.TrimPrefix(raw, "("), ")")
			if token == "" {
				continue
			}
			val, err := valueFromToken(token)
			if err != nil {
				return fmt.Errorf("%s: invalid waveform argument: %w", name, err)
			}
			wf.Args = append(wf.Args, val)
		}
		elem.Waveform = wf
	} else if len(rest) > 0 {
		val, err := valueFromToken(rest[0].Value)
		if err != nil {
			return fmt.Errorf("%s: invalid value: %w", name, err)
		}
		elem.Positional = append(elem.Positional, val)
	}

	if err := attachKwargs(&elem, kwargs, ""); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	w.appendStatement(elem)
	return nil
}

func isWaveformFunc(name string) bool {
	switch strings.ToUpper(name) {
	case "PULSE", "SIN", "EXP", "PWL", "SFFM", "AM":
		return true
	}
	return false
}

// splitWaveformHead recognizes a high-level waveform shape whose opening paren is glued
// to the function name and/or its first argument (e.g. 'PULSE(0' or the single combined
// token 'PULSE(5)'), returning the function name, any argument text found glued to the
// same token, and whether a waveform shape was recognized at all.
func splitWaveformHead(rest []flatField) (funcName string, inlineArg string, ok bool) {
	if len(rest) == 0 {
		return "", "", false
	}
	token := rest[0].Value

	idx := strings.Index(token, "(")
	if idx < 0 {
		return token, "", isWaveformFunc(token)
	}
	name := token[:idx]
	if !isWaveformFunc(name) {
		return "", "", false
	}
	arg := strings.TrimSuffix(strings.TrimPrefix(token[idx:], "("), ")")
	return name, arg, true
}

// ----------------------------------------------------------------------------
// Controlled sources: E, F, G, H and explicit Behavioral: B

// handleControlledSource folds every linear controlled-source letter into a single
// Behavioral device carrying a synthesized voltage or current expression, per spec §4.3.
// - E (VCVS) and G (VCCS) are controlled by a voltage difference between two nodes.
// - F (CCCS) and H (CCVS) are controlled by the current through a named voltage source.
// - Any letter's trailing fields starting with a POLY(n) form bypass that synthesis
//   entirely and are kept as one opaque stringified expression, see parsePolyForm.
func (w *Walker) handleControlledSource(name string, stmt flatStatement) error {
	positional, kwargs := splitFields(stmt.Fields)
	letter := strings.ToUpper(name[:1])

	if len(positional) < 3 {
		return fmt.Errorf("%s: expected at least 2 output nodes and a gain/control reference, got %d field(s)", name, len(positional))
	}

	elem := circuit.Element{Name: name, Class: circuit.Behavioral, Nodes: tokensOf(positional[:2])}
	rest := positional[2:]

	if poly, ok := parsePolyForm(rest); ok {
		if letter == "E" || letter == "H" {
			elem.VoltageExpression = expr.VarExpr{Name: poly}
		} else {
			elem.CurrentExpression = expr.VarExpr{Name: poly}
		}
		if err := attachKwargs(&elem, kwargs, ""); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		w.appendStatement(elem)
		return nil
	}

	switch letter {
	case "E", "G": // controlled by voltage across two more nodes
		if len(rest) < 3 {
			return fmt.Errorf("%s: expected 2 control nodes and a gain, got %d field(s)", name, len(rest))
		}
		gain, err := valueFromToken(rest[2].Value)
		if err != nil {
			return fmt.Errorf("%s: invalid gain: %w", name, err)
		}
		controlDiff := expr.BinaryExpr{
			Op:  expr.Minus,
			Lhs: expr.VarExpr{Name: fmt.Sprintf("V(%s)", rest[0].Value)},
			Rhs: expr.VarExpr{Name: fmt.Sprintf("V(%s)", rest[1].Value)},
		}
		synthesized := expr.BinaryExpr{Op: expr.Multiply, Lhs: controlDiff, Rhs: literalOrVar(gain)}
		if letter == "E" {
			elem.VoltageExpression = synthesized
		} else {
			elem.CurrentExpression = synthesized
		}
	case "F", "H": // controlled by the current through a named voltage source
		if len(rest) < 2 {
			return fmt.Errorf("%s: expected a controlling source name and a gain, got %d field(s)", name, len(rest))
		}
		gain, err := valueFromToken(rest[1].Value)
		if err != nil {
			return fmt.Errorf("%s: invalid gain: %w", name, err)
		}
		synthesized := expr.BinaryExpr{
			Op:  expr.Multiply,
			Lhs: expr.VarExpr{Name: fmt.Sprintf("I(%s)", rest[0].Value)},
			Rhs: literalOrVar(gain),
		}
		if letter == "F" {
			elem.CurrentExpression = synthesized
		} else {
			elem.VoltageExpression = synthesized
		}
	}

	if err := attachKwargs(&elem, kwargs, ""); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	w.appendStatement(elem)
	return nil
}

// handleBehavioral parses an explicit 'B' device, which already carries its voltage
// and/or current expression directly as 'v=' / 'i=' keyword arguments.
func (w *Walker) handleBehavioral(name string, stmt flatStatement) error {
	positional, kwargs := splitFields(stmt.Fields)
	if len(positional) < 2 {
		return fmt.Errorf("%s: expected 2 nodes, got %d field(s)", name, len(positional))
	}

	elem := circuit.Element{Name: name, Class: circuit.Behavioral, Nodes: tokensOf(positional[:2])}

	if vField, ok := kwargs.Get("v"); ok {
		expression, err := expr.Parse(strings.Trim(vField.Value, "{}"))
		if err != nil {
			return fmt.Errorf("%s: invalid 'v=' expression: %w", name, err)
		}
		elem.VoltageExpression = expression
	}
	if iField, ok := kwargs.Get("i"); ok {
		expression, err := expr.Parse(strings.Trim(iField.Value, "{}"))
		if err != nil {
			return fmt.Errorf("%s: invalid 'i=' expression: %w", name, err)
		}
		elem.CurrentExpression = expression
	}

	if err := attachKwargs(&elem, kwargs, "v", "i"); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	w.appendStatement(elem)
	return nil
}

// parsePolyForm recognizes the classic SPICE 'POLY(n) ctrl1 ctrl2 ... c0 c1 c2 ...' shape on
// a controlled source's trailing fields, in either the glued ('POLY(2)') or spaced
// ('POLY (2)') spelling (mirroring splitWaveformHead's glued-paren handling above).
// Polynomial sources mix control references and coefficients in a way this grammar doesn't
// otherwise model, so the whole form is kept as one opaque stringified expression rather
// than decomposed term by term.
func parsePolyForm(rest []flatField) (string, bool) {
	if len(rest) == 0 {
		return "", false
	}
	head := rest[0].Value
	upper := strings.ToUpper(head)

	var order string
	var tail []flatField

	switch {
	case upper == "POLY":
		if len(rest) < 2 {
			return "", false
		}
		order = strings.Trim(rest[1].Value, "()")
		tail = rest[2:]
	case strings.HasPrefix(upper, "POLY("):
		order = strings.TrimSuffix(strings.TrimPrefix(upper, "POLY("), ")")
		tail = rest[1:]
	default:
		return "", false
	}

	var b strings.Builder
	b.WriteString("POLY (")
	b.WriteString(order)
	b.WriteString(")")
	for _, f := range tail {
		b.WriteString(" ")
		b.WriteString(f.Value)
	}
	return b.String(), true
}

func literalOrVar(v circuit.Value) expr.Expression {
	if v.Expr != nil {
		return v.Expr
	}
	if v.IsReal && v.Unit != nil {
		return expr.LiteralExpr{Value: *v.Unit}
	}
	return expr.VarExpr{Name: v.Ident}
}

// ----------------------------------------------------------------------------
// Switch: S / W

// handleSwitch requires its two control nodes to appear both or neither, per spec §4.3.
func (w *Walker) handleSwitch(name string, stmt flatStatement) error {
	positional, kwargs := splitFields(stmt.Fields)
	if len(positional) != 3 && len(positional) != 5 {
		return fmt.Errorf("%s: expected 2 switched nodes (+2 optional control nodes) and a model name, got %d field(s)", name, len(positional))
	}

	var nodes []string
	var model string
	if len(positional) == 5 {
		nodes = tokensOf(positional[:4])
		model = positional[4].Value
	} else {
		nodes = tokensOf(positional[:2])
		model = positional[2].Value
	}

	elem := circuit.Element{Name: name, Class: circuit.Switch, Nodes: nodes, Model: model}
	if err := attachKwargs(&elem, kwargs, ""); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	w.appendStatement(elem)
	return nil
}

// ----------------------------------------------------------------------------
// Subcircuit instance: X

func (w *Walker) handleSubcktInstance(name string, stmt flatStatement) error {
	positional, kwargs := splitFields(stmt.Fields)
	if len(positional) < 2 {
		return fmt.Errorf("%s: expected at least 1 node and a subcircuit name, got %d field(s)", name, len(positional))
	}

	subcktName := positional[len(positional)-1].Value
	elem := circuit.Element{
		Name:  name,
		Class: circuit.SubcktInstance,
		Nodes: tokensOf(positional[:len(positional)-1]),
		Model: subcktName,
	}
	if err := attachKwargs(&elem, kwargs, ""); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	w.appendStatement(elem)
	return nil
}

// ----------------------------------------------------------------------------
// Shared helpers

func tokensOf(fields []flatField) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.Value
	}
	return out
}

// attachKwargs converts every remaining keyword field (skipping any name in 'consumed')
// into a circuit.Value and stores it on elem.Kwargs.
func attachKwargs(elem *circuit.Element, kwargs utils.OrderedMap[string, flatField], consumed ...string) error {
	skip := map[string]bool{}
	for _, c := range consumed {
		skip[c] = true
	}

	for key, field := range kwargs.Entries() {
		if skip[key] {
			continue
		}
		val, err := valueFromToken(field.Value)
		if err != nil {
			return fmt.Errorf("invalid value for %q: %w", key, err)
		}
		elem.Kwargs.Set(key, val)
	}
	return nil
}
