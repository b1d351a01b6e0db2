package spicelang

import (
	"github.com/samber/lo"

	"its-hmny.dev/spice/pkg/circuit"
	"its-hmny.dev/spice/pkg/utils"
)

// Resolve runs the two post-walk passes spec §4.5 requires: checking that every
// referenced model is actually defined somewhere visible, then topologically sorting
// subcircuit definitions so each one follows every subcircuit/model it depends on. Both
// passes port PySpice's '_check_models'/'_sort_subcircuits' static methods
// (original_source/.../EBNFParser.py), including their scope-aware recursion into nested
// subcircuits: a model or subcircuit declared inside one subcircuit is never visible to an
// unrelated sibling, only to that subcircuit itself and whatever it nests.
func (w *Walker) Resolve() error {
	if err := w.checkModels(); err != nil {
		return err
	}
	return w.sortSubcircuits()
}

// checkModels walks every required-model name, accumulating the set of models visible at
// each scope (this scope's own models plus everything inherited from enclosing scopes) and
// fails fast with a MissingReference ParseError the first time a required name isn't in
// that accumulated set, exactly as PySpice's error message format ("Model unkmod not
// available") does.
func (w *Walker) checkModels() error {
	available := map[string]bool{}
	for _, name := range w.circuit.Models.Keys() {
		available[name] = true
	}

	for _, subName := range w.circuit.Subcircuits.Keys() {
		sub, _ := w.circuit.Subcircuits.Get(subName)
		if err := w.checkModelsIn(sub, available); err != nil {
			return err
		}
	}

	for name := range w.circuit.RequiredModels {
		if !available[name] {
			return newParseError(MissingReference, w.path, 0, "Model %s not available", name)
		}
	}
	return nil
}

// checkModelsIn recurses into 'sub's own nested subcircuits before checking 'sub's
// required models, so a nested subcircuit's required models are checked against the
// models visible to it (its own, plus everything inherited), never the reverse.
func (w *Walker) checkModelsIn(sub *circuit.Subcircuit, inherited map[string]bool) error {
	available := map[string]bool{}
	for name := range inherited {
		available[name] = true
	}
	for _, name := range sub.Models.Keys() {
		available[name] = true
	}

	for _, childName := range sub.Subcircuits.Keys() {
		child, _ := sub.Subcircuits.Get(childName)
		if err := w.checkModelsIn(child, available); err != nil {
			return err
		}
	}

	for name := range sub.RequiredModels {
		if !available[name] {
			return newParseError(MissingReference, w.path, 0, "Model %s not available", name)
		}
	}
	return nil
}

// sortSubcircuits topologically sorts every level of subcircuit nesting, starting from
// the deepest and working outward, so each level's own direct children end up ordered
// with every dependency preceding its user; a dependency a level can't satisfy locally is
// checked against what it inherits from its enclosing scope, and a cyclic dependency at
// any level surfaces as CrossedDependencies, matching PySpice's "Crossed dependencies".
func (w *Walker) sortSubcircuits() error {
	_, err := w.sortSubcircuitsIn(&w.circuit.Subcircuits, w.circuit.RequiredSubcircuits, map[string]bool{})
	return err
}

// sortSubcircuitsIn recurses into each of 'subs's own children first (passing down the
// accumulated available-name set), then topologically sorts 'subs' itself in place, and
// finally returns 'required' minus whatever 'subs' declares directly, for the caller to
// check against its own (larger) available set, mirroring PySpice's recursive
// '_sort_subcircuits' bubbling of unresolved names up to the enclosing scope.
func (w *Walker) sortSubcircuitsIn(subs *utils.OrderedMap[string, *circuit.Subcircuit], required map[string]bool, inherited map[string]bool) (map[string]bool, error) {
	names := subs.Keys()

	available := map[string]bool{}
	for name := range inherited {
		available[name] = true
	}
	for _, name := range names {
		available[name] = true
	}

	for _, name := range names {
		sub, _ := subs.Get(name)
		if _, err := w.sortSubcircuitsIn(&sub.Subcircuits, sub.RequiredSubcircuits, available); err != nil {
			return nil, err
		}
	}

	for name := range required {
		if !available[name] {
			return nil, newParseError(MissingReference, w.path, 0, "Subcircuit %s not available", name)
		}
	}

	if len(names) > 0 {
		placed := map[string]bool{}
		var order []string
		remaining := append([]string{}, names...)

		for len(remaining) > 0 {
			progressed := false
			var next []string

			for _, name := range remaining {
				sub, _ := subs.Get(name)
				deps := lo.Keys(sub.RequiredSubcircuits)
				// Only siblings declared at this level take part in the ordering; a dependency on
				// a nested child or an inherited name was already checked as available above.
				if lo.EveryBy(deps, func(dep string) bool { return dep == name || placed[dep] || !lo.Contains(names, dep) }) {
					order = append(order, name)
					placed[name] = true
					progressed = true
				} else {
					next = append(next, name)
				}
			}

			if !progressed {
				return nil, newParseError(CrossedDependencies, w.path, 0, "Crossed dependencies")
			}
			remaining = next
		}

		subs.Reorder(order)
	}

	unresolved := map[string]bool{}
	for name := range required {
		if !lo.Contains(names, name) {
			unresolved[name] = true
		}
	}
	return unresolved, nil
}
