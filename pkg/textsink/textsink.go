package textsink

import (
	"fmt"
	"strings"

	"its-hmny.dev/spice/pkg/circuit"
)

// ----------------------------------------------------------------------------
// Text Sink

// TextSink is a reference 'circuit.Sink' implementation: it replays a resolved Circuit
// into a deterministic, line-oriented textual dump. It stands in for the real netlist
// object model a production consumer would provide (that object model is an external,
// opaque collaborator and out of scope here), and is what the CLI and package tests use
// to observe a Build's output without depending on anything downstream.
type TextSink struct {
	lines []string
}

// NewTextSink returns an empty, ready-to-use TextSink.
func NewTextSink() *TextSink { return &TextSink{} }

// Lines returns the accumulated dump, one entry per Sink call received so far.
func (s *TextSink) Lines() []string { return s.lines }

// String joins the accumulated dump with newlines, trailing newline included.
func (s *TextSink) String() string { return strings.Join(s.lines, "\n") + "\n" }

func (s *TextSink) Parameter(name string, value circuit.Value) error {
	s.lines = append(s.lines, fmt.Sprintf("param %s = %s", name, formatValue(value)))
	return nil
}

func (s *TextSink) Model(model circuit.Model) error {
	s.lines = append(s.lines, fmt.Sprintf("model %s %s", model.Name, model.Type))
	return nil
}

func (s *TextSink) Subcircuit(sub *circuit.Subcircuit) error {
	s.lines = append(s.lines, fmt.Sprintf("subckt %s (%s)", sub.Name, strings.Join(sub.Nodes, " ")))
	return nil
}

func (s *TextSink) Element(elem circuit.Element) error {
	line := fmt.Sprintf("elem %s[%s] %s", elem.Name, elem.Class, strings.Join(elem.Nodes, " "))
	if elem.Model != "" {
		line += " model=" + elem.Model
	}
	s.lines = append(s.lines, line)
	return nil
}

func (s *TextSink) Include(include circuit.Include) error {
	s.lines = append(s.lines, fmt.Sprintf("include %s", include.Resolved))
	return nil
}

func formatValue(v circuit.Value) string {
	switch {
	case v.IsReal && v.Unit != nil:
		return v.Unit.String()
	case v.Ident != "":
		return v.Ident
	case v.Expr != nil:
		return "{expr}"
	default:
		return ""
	}
}
