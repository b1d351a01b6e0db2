package circuit

import (
	"fmt"
	"strings"
)

// Build replays a fully-resolved Circuit into 'sink' in the fixed order spec §4.6
// prescribes: library calls, then parameters, then models, then subcircuits (already
// topologically sorted by the resolver), then device elements/includes, with every node
// spelled 'ground' rewritten to "0".
//
// Build assumes the resolver has already run (checkModels + sortSubcircuits); it performs
// no validation of its own beyond the ground-node rewrite, mirroring PySpice's
// CircuitStatement.build which is a pure, order-preserving replay.
func (c *Circuit) Build(sink Sink, ground string) error {
	if ground == "" {
		ground = "0"
	}

	for _, stmt := range c.Statements {
		t, ok := stmt.(LibCall)
		if !ok {
			continue
		}
		lib, ok := c.Libraries.Get(strings.ToLower(t.Entry))
		if !ok {
			return fmt.Errorf("building library call %q: entry %q not resolved", t.Path, t.Entry)
		}
		if err := replayLibrary(lib, sink); err != nil {
			return fmt.Errorf("building library call %q %q: %w", t.Path, t.Entry, err)
		}
	}

	for name, param := range c.Parameters.Entries() {
		if err := sink.Parameter(name, param.Value); err != nil {
			return fmt.Errorf("building parameter %q: %w", name, err)
		}
	}

	for name, model := range c.Models.Entries() {
		if err := sink.Model(model); err != nil {
			return fmt.Errorf("building model %q: %w", name, err)
		}
	}

	for name, sub := range c.Subcircuits.Entries() {
		if err := sink.Subcircuit(sub); err != nil {
			return fmt.Errorf("building subcircuit %q: %w", name, err)
		}
	}

	for _, stmt := range c.Statements {
		switch t := stmt.(type) {
		case Element:
			if err := sink.Element(rewriteGround(t, ground)); err != nil {
				return fmt.Errorf("building element %q: %w", t.Name, err)
			}
		case Include:
			if err := sink.Include(t); err != nil {
				return fmt.Errorf("building include %q: %w", t.Path, err)
			}
		}
	}

	return nil
}

// replayLibrary splices a '.lib <file> <entry>' block's own params, models and
// subcircuits into 'sink', in declaration order, per spec §4.6 step 1.
func replayLibrary(lib *Library, sink Sink) error {
	for _, stmt := range lib.Statements {
		switch t := stmt.(type) {
		case Param:
			if err := sink.Parameter(t.Name, t.Value); err != nil {
				return err
			}
		case Model:
			if err := sink.Model(t); err != nil {
				return err
			}
		case Subckt:
			if err := sink.Subcircuit(t.Def); err != nil {
				return err
			}
		}
	}
	return nil
}

// rewriteGround returns a copy of 'elem' with every node spelled 'ground' replaced by the
// integer ground node "0", so callers can build a circuit against an arbitrary ground-node
// alias (e.g. a deck that spells its ground node "gnd" instead of "0").
func rewriteGround(elem Element, ground string) Element {
	if ground == "0" {
		return elem
	}

	rewritten := make([]string, len(elem.Nodes))
	for i, node := range elem.Nodes {
		if node == ground {
			rewritten[i] = "0"
		} else {
			rewritten[i] = node
		}
	}
	elem.Nodes = rewritten
	return elem
}
