package spicelang

import (
	"strings"
	"testing"

	"its-hmny.dev/spice/pkg/circuit"
	"its-hmny.dev/spice/pkg/expr"
	"its-hmny.dev/spice/pkg/textsink"
)

func TestParseTitleAndResistor(t *testing.T) {
	source := "Test circuit\nR1 1 0 1k\n.end\n"

	w, err := Parse(ParseOptions{Source: source})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if w.Circuit().Title != "Test circuit" {
		t.Fatalf("got title %q, want %q", w.Circuit().Title, "Test circuit")
	}

	sink := textsink.NewTextSink()
	if err := w.BuildCircuit(sink, "0"); err != nil {
		t.Fatalf("unexpected build error: %v", err)
	}

	want := "elem R1[R] 1 0\n"
	if sink.String() != want {
		t.Fatalf("got %q, want %q", sink.String(), want)
	}
}

func TestParseTitleSkipsLeadingBlankLines(t *testing.T) {
	source := "\n\n  \nReal title\nR1 1 0 1k\n.end\n"

	w, err := Parse(ParseOptions{Source: source})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.Circuit().Title != "Real title" {
		t.Fatalf("got title %q, want %q", w.Circuit().Title, "Real title")
	}
}

func TestParseDirectiveFirstHasNoTitle(t *testing.T) {
	source := ".param rval=1k\nR1 1 0 {rval}\n.end\n"

	w, err := Parse(ParseOptions{Source: source})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.Circuit().Title != "untitled" {
		t.Fatalf("expected no title line for a directive-first deck (fallback title %q), got %q", "untitled", w.Circuit().Title)
	}

	params := w.Parameters()
	if len(params) != 1 || params[0].Name != "rval" {
		t.Fatalf("expected the leading '.param' line to be parsed as a statement, got %+v", params)
	}
}

func TestParseMicroSuffixEquivalence(t *testing.T) {
	source := "Suffix test\nC1 1 0 2.2u\nC2 1 0 2.2µ\n.end\n"

	w, err := Parse(ParseOptions{Source: source})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	elems := elementsOf(t, w)
	if len(elems) != 2 {
		t.Fatalf("got %d elements, want 2", len(elems))
	}
	c1, c2 := elems[0].Positional[0].Unit, elems[1].Positional[0].Unit
	if !c1.Equal(*c2) {
		t.Fatalf("expected 2.2u and 2.2µ to normalize equal, got %v and %v", c1.Float(), c2.Float())
	}
}

func TestParseBJTVariants(t *testing.T) {
	// The model is declared *after* every instance that uses it: BJT disambiguation must
	// not depend on the model already being registered at the point the instance is walked.
	source := strings.Join([]string{
		"BJT variants",
		"Q1 nc1 nb1 ne1 qmod",
		"Q2 nc2 nb2 ne2 ns2 qmod",
		"Q3 nc3 nb3 ne3 qmod 2.0",
		"Q4 nc4 nb4 ne4 qmod off",
		".model qmod npn",
		".end",
		"",
	}, "\n")

	w, err := Parse(ParseOptions{Source: source})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	elems := elementsOf(t, w)
	if len(elems) != 4 {
		t.Fatalf("got %d elements, want 4", len(elems))
	}

	if len(elems[0].Nodes) != 3 || elems[0].Model != "qmod" {
		t.Fatalf("Q1: expected 3 nodes and model 'qmod' (no substrate, no trailing arg), got %+v", elems[0])
	}
	if len(elems[1].Nodes) != 4 || elems[1].Model != "qmod" {
		t.Fatalf("Q2: expected 4 nodes (explicit substrate) and model 'qmod', got %+v", elems[1])
	}
	if _, ok := elems[2].Kwargs.Get("area"); !ok || elems[2].Model != "qmod" {
		t.Fatalf("Q3: expected a numeric trailing arg classified as 'area' and model 'qmod', got %+v", elems[2])
	}
	if _, ok := elems[3].Kwargs.Get("off"); !ok || elems[3].Model != "qmod" {
		t.Fatalf("Q4: expected the 'off' flag recorded and model 'qmod', got %+v", elems[3])
	}
}

func TestParseBJTAreaWithUndeclaredModel(t *testing.T) {
	// Reproduces "Q1 c b e 2N2222 1.5": the model name is not registered before this
	// instance is walked, so disambiguation must rely purely on the trailing-arg algorithm,
	// not an already-known model set.
	source := strings.Join([]string{
		"BJT undeclared model, area",
		"Q1 c b e 2N2222 1.5",
		".model 2n2222 npn",
		".end",
		"",
	}, "\n")

	w, err := Parse(ParseOptions{Source: source})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	elems := elementsOf(t, w)
	if len(elems) != 1 {
		t.Fatalf("got %d elements, want 1", len(elems))
	}
	if want := []string{"c", "b", "e"}; !equalStrings(elems[0].Nodes, want) {
		t.Fatalf("expected nodes %v, got %v", want, elems[0].Nodes)
	}
	if elems[0].Model != "2N2222" {
		t.Fatalf("expected model %q, got %q", "2N2222", elems[0].Model)
	}
	area, ok := elems[0].Kwargs.Get("area")
	if !ok {
		t.Fatalf("expected a numeric trailing arg to be classified as 'area', got %+v", elems[0])
	}
	if got := area.Unit.Float(); got != 1.5 {
		t.Fatalf("expected area 1.5, got %v", got)
	}
}

func TestParseBJTSubstrateThermalWithUndeclaredModel(t *testing.T) {
	// Reproduces "Q1 c b e sub therm 2N2222": two trailing non-numeric fields before the
	// model name must both be read back as substrate/thermal nodes, again with the model
	// undeclared at the point the instance is walked.
	source := strings.Join([]string{
		"BJT undeclared model, substrate+thermal",
		"Q1 c b e sub therm 2N2222",
		".model 2n2222 npn",
		".end",
		"",
	}, "\n")

	w, err := Parse(ParseOptions{Source: source})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	elems := elementsOf(t, w)
	if len(elems) != 1 {
		t.Fatalf("got %d elements, want 1", len(elems))
	}
	if want := []string{"c", "b", "e", "sub", "therm"}; !equalStrings(elems[0].Nodes, want) {
		t.Fatalf("expected nodes %v, got %v", want, elems[0].Nodes)
	}
	if elems[0].Model != "2N2222" {
		t.Fatalf("expected model %q, got %q", "2N2222", elems[0].Model)
	}
	if _, ok := elems[0].Kwargs.Get("area"); ok {
		t.Fatalf("expected no 'area' kwarg, got %+v", elems[0])
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestParseControlledSourcePolyForm(t *testing.T) {
	source := strings.Join([]string{
		"POLY controlled source",
		"E1 out 0 POLY(2) n1 0 n2 0 0 1 1 0.5",
		".end",
		"",
	}, "\n")

	w, err := Parse(ParseOptions{Source: source})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	elems := elementsOf(t, w)
	if len(elems) != 1 {
		t.Fatalf("got %d elements, want 1", len(elems))
	}

	varExpr, ok := elems[0].VoltageExpression.(expr.VarExpr)
	if !ok {
		t.Fatalf("expected VoltageExpression to be a stringified POLY form, got %#v", elems[0].VoltageExpression)
	}
	if !strings.HasPrefix(varExpr.Name, "POLY (2)") {
		t.Fatalf("expected the stringified expression to start with 'POLY (2)', got %q", varExpr.Name)
	}
	if !strings.Contains(varExpr.Name, "n1 0 n2 0 0 1 1 0.5") {
		t.Fatalf("expected the stringified expression to preserve trailing args, got %q", varExpr.Name)
	}
}

func TestParseMissingModelError(t *testing.T) {
	source := "Missing model\nD1 1 0 unkmod\n.end\n"

	_, err := Parse(ParseOptions{Source: source})
	if err == nil {
		t.Fatal("expected a missing-reference error, got none")
	}

	pe, ok := err.(*ParseError)
	if !ok {
		t.Fatalf("expected a *ParseError, got %T: %v", err, err)
	}
	if pe.Kind != MissingReference {
		t.Fatalf("expected MissingReference, got %v", pe.Kind)
	}
	if !strings.Contains(pe.Err.Error(), "Model unkmod not available") {
		t.Fatalf("expected message to contain %q, got %q", "Model unkmod not available", pe.Err.Error())
	}
}

func TestSortSubcircuitsTopologicalOrder(t *testing.T) {
	// Declared in reverse dependency order (C depends on B depends on A): the resolver
	// must reorder them so every subcircuit precedes its own dependents.
	source := strings.Join([]string{
		"Topo order",
		".subckt C 1 2",
		"Xc 1 2 B",
		".ends C",
		"",
		".subckt B 1 2",
		"Xb 1 2 A",
		".ends B",
		"",
		".subckt A 1 2",
		"R1 1 2 1k",
		".ends A",
		".end",
		"",
	}, "\n")

	w, err := Parse(ParseOptions{Source: source})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	subs := w.Subcircuits()
	names := make([]string, len(subs))
	for i, s := range subs {
		names[i] = s.Name
	}
	if len(names) != 3 {
		t.Fatalf("got %d subcircuits, want 3 (%v)", len(names), names)
	}

	pos := map[string]int{}
	for i, n := range names {
		pos[strings.ToLower(n)] = i
	}
	if !(pos["a"] < pos["b"] && pos["b"] < pos["c"]) {
		t.Fatalf("expected order A, B, C, got %v", names)
	}
}

func TestSortSubcircuitsCyclicDependency(t *testing.T) {
	source := strings.Join([]string{
		"Cyclic",
		".subckt A 1 2",
		"Xb 1 2 B",
		".ends A",
		"",
		".subckt B 1 2",
		"Xa 1 2 A",
		".ends B",
		".end",
		"",
	}, "\n")

	_, err := Parse(ParseOptions{Source: source})
	if err == nil {
		t.Fatal("expected a crossed-dependencies error, got none")
	}

	pe, ok := err.(*ParseError)
	if !ok {
		t.Fatalf("expected a *ParseError, got %T: %v", err, err)
	}
	if pe.Kind != CrossedDependencies {
		t.Fatalf("expected CrossedDependencies, got %v", pe.Kind)
	}
}

func elementsOf(t *testing.T, w *Walker) []circuit.Element {
	t.Helper()
	var out []circuit.Element
	for _, stmt := range w.Circuit().Statements {
		if elem, ok := stmt.(circuit.Element); ok {
			out = append(out, elem)
		}
	}
	return out
}
