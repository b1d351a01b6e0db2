package circuit

// Sink is the opaque downstream collaborator a parsed Circuit is replayed into. It is
// deliberately minimal and has no knowledge of the grammar or the resolver, only of the
// fully-resolved entities a netlist produces; building the actual netlist object model
// behind this interface (units, simulators, solvers, ...) is out of scope here, see
// pkg/textsink for a reference implementation used by tests and the CLI.
type Sink interface {
	// Parameter is invoked once per top-level '.param' statement, in declaration order.
	Parameter(name string, value Value) error
	// Model is invoked once per resolved '.model' statement.
	Model(model Model) error
	// Subcircuit is invoked once per subcircuit definition, already in topological order
	// (every subcircuit it depends on has already been passed to Subcircuit).
	Subcircuit(sub *Subcircuit) error
	// Element is invoked once per device instance, with any node spelled as the
	// caller-supplied ground alias rewritten to the literal "0".
	Element(elem Element) error
	// Include is invoked once per resolved '.include' directive, informational only (by the
	// time Build runs, the included file's statements have already been merged in). A
	// '.lib <file> <entry>' call is replayed through Parameter/Model/Subcircuit instead.
	Include(include Include) error
}
