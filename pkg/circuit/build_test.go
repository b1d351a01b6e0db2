package circuit

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"its-hmny.dev/spice/pkg/units"
)

// recordingSink is a minimal Sink that just records call order and arguments, used to
// assert Build's replay order and ground-node rewriting without depending on pkg/textsink.
type recordingSink struct {
	calls []string
}

func (s *recordingSink) Parameter(name string, value Value) error {
	s.calls = append(s.calls, "param:"+name)
	return nil
}
func (s *recordingSink) Model(model Model) error {
	s.calls = append(s.calls, "model:"+model.Name)
	return nil
}
func (s *recordingSink) Subcircuit(sub *Subcircuit) error {
	s.calls = append(s.calls, "subckt:"+sub.Name)
	return nil
}
func (s *recordingSink) Element(elem Element) error {
	s.calls = append(s.calls, "elem:"+elem.Name+":"+strings.Join(elem.Nodes, ","))
	return nil
}
func (s *recordingSink) Include(inc Include) error {
	s.calls = append(s.calls, "include:"+inc.Path)
	return nil
}

func TestBuildReplayOrder(t *testing.T) {
	c := NewCircuit("test", false)
	c.Parameters.Set("rval", Param{Name: "rval", Value: Value{Unit: &units.PrefixedUnit{Scale: units.Kilo, Significand: 1}, IsReal: true}})
	c.Models.Set("nmod", Model{Name: "nmod", Type: "d"})
	sub := NewSubcircuit("amp", []string{"in", "out"})
	c.Subcircuits.Set("amp", sub)

	r1 := Element{Name: "R1", Class: Resistor, Nodes: []string{"1", "0"}}
	c.Statements = append(c.Statements, r1)

	sink := &recordingSink{}
	require.NoError(t, c.Build(sink, "0"))

	want := []string{"param:rval", "model:nmod", "subckt:amp", "elem:R1:1,0"}
	require.Equal(t, want, sink.calls)
}

func TestBuildRewritesGroundNode(t *testing.T) {
	c := NewCircuit("test", false)
	c.Statements = append(c.Statements, Element{Name: "R1", Class: Resistor, Nodes: []string{"1", "gnd"}})

	sink := &recordingSink{}
	require.NoError(t, c.Build(sink, "gnd"))
	require.Equal(t, "elem:R1:1,0", sink.calls[0], "node spelled 'gnd' must be rewritten to the integer ground node \"0\"")
}

func TestBuildDefaultsGroundToZero(t *testing.T) {
	c := NewCircuit("test", false)
	c.Statements = append(c.Statements, Element{Name: "R1", Class: Resistor, Nodes: []string{"1", "0"}})

	sink := &recordingSink{}
	require.NoError(t, c.Build(sink, ""))
	require.Equal(t, "elem:R1:1,0", sink.calls[0])
}

func TestBuildReplaysLibCall(t *testing.T) {
	c := NewCircuit("test", false)
	lib := &Library{
		Name: "corner",
		Statements: []Statement{
			Param{Name: "vdd", Value: Value{Unit: &units.PrefixedUnit{Scale: units.Unit, Significand: 5}, IsReal: true}},
			Model{Name: "nmod", Type: "npn"},
			Subckt{Def: NewSubcircuit("amp", []string{"in", "out"})},
		},
	}
	c.Libraries.Set("corner", lib)
	c.Statements = append(c.Statements, LibCall{Path: "lib.cir", Entry: "corner"})

	sink := &recordingSink{}
	require.NoError(t, c.Build(sink, "0"))

	want := []string{"param:vdd", "model:nmod", "subckt:amp"}
	require.Equal(t, want, sink.calls)
}

func TestIsOnlyModelAndSubcircuit(t *testing.T) {
	onlyModel := NewCircuit("models", false)
	onlyModel.Models.Set("nmod", Model{Name: "nmod", Type: "d"})
	require.True(t, onlyModel.IsOnlyModel(), "expected IsOnlyModel to be true for a circuit with only a model and no devices")
	require.False(t, onlyModel.IsOnlySubcircuit())

	mixed := NewCircuit("mixed", false)
	mixed.Models.Set("nmod", Model{Name: "nmod", Type: "d"})
	mixed.Statements = append(mixed.Statements, Element{Name: "D1", Class: Diode, Nodes: []string{"1", "0"}})
	require.False(t, mixed.IsOnlyModel(), "expected IsOnlyModel to be false once a device instance is present")
}
