package spicelang

import (
	"strings"
	"testing"
)

func TestSubcktDefaultParams(t *testing.T) {
	source := strings.Join([]string{
		"Subckt with default params",
		".subckt amp in out PARAMS: gain=2 offset=0.5",
		"R1 in out {gain}",
		".ends amp",
		".end",
		"",
	}, "\n")

	w, err := Parse(ParseOptions{Source: source})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	subs := w.Subcircuits()
	if len(subs) != 1 {
		t.Fatalf("got %d subcircuits, want 1", len(subs))
	}
	sub := subs[0]

	if len(sub.Nodes) != 2 || sub.Nodes[0] != "in" || sub.Nodes[1] != "out" {
		t.Fatalf("expected nodes [in out], got %v", sub.Nodes)
	}

	gain, ok := sub.Params.Get("gain")
	if !ok {
		t.Fatalf("expected a default 'gain' parameter, got %+v", sub.Params)
	}
	if gain.Unit == nil || gain.Unit.Significand != 2 {
		t.Fatalf("expected gain default of 2, got %+v", gain)
	}

	offset, ok := sub.Params.Get("offset")
	if !ok || offset.Unit == nil || offset.Unit.Significand != 0.5 {
		t.Fatalf("expected offset default of 0.5, got %+v (ok=%v)", offset, ok)
	}
}

func TestNestedSubcircuitModelVisibleToChild(t *testing.T) {
	// A model declared directly inside a subcircuit must be visible to anything nested
	// inside that same subcircuit, not just the subcircuit's own top-level devices.
	source := strings.Join([]string{
		"Nested model visible to child",
		".subckt outer in out",
		".model localmod d",
		".subckt inner a b",
		"D1 a b localmod",
		".ends inner",
		"Xchild in out inner",
		".ends outer",
		".end",
		"",
	}, "\n")

	if _, err := Parse(ParseOptions{Source: source}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSiblingSubcircuitModelNotVisible(t *testing.T) {
	// A model privately declared inside one subcircuit must not leak into an unrelated
	// sibling subcircuit's namespace.
	source := strings.Join([]string{
		"Model privately scoped to sibling",
		".subckt a in out",
		".model localmod d",
		"D1 in out localmod",
		".ends a",
		"",
		".subckt b in out",
		"D1 in out localmod",
		".ends b",
		".end",
		"",
	}, "\n")

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
	if !strings.Contains(pe.Err.Error(), "Model localmod not available") {
		t.Fatalf("expected message to contain %q, got %q", "Model localmod not available", pe.Err.Error())
	}
}

func TestSubcktWithoutParamsMarker(t *testing.T) {
	source := strings.Join([]string{
		"Subckt without params",
		".subckt passthrough in out",
		"R1 in out 1k",
		".ends passthrough",
		".end",
		"",
	}, "\n")

	w, err := Parse(ParseOptions{Source: source})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sub := w.Subcircuits()[0]
	if len(sub.Nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %v", sub.Nodes)
	}
	if sub.Params.Size() != 0 {
		t.Fatalf("expected no default params, got %+v", sub.Params)
	}
}
