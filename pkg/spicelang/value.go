package spicelang

import (
	"strings"

	"its-hmny.dev/spice/pkg/circuit"
	"its-hmny.dev/spice/pkg/expr"
	"its-hmny.dev/spice/pkg/units"
	"its-hmny.dev/spice/pkg/utils"
)

// valueFromToken converts one raw field token into a circuit.Value: a bracketed
// expression, an engineering-unit numeric literal, or (when neither parses) a bare
// identifier reference (model name, node name, waveform keyword, ...).
func valueFromToken(token string) (circuit.Value, error) {
	if strings.HasPrefix(token, "{") && strings.HasSuffix(token, "}") {
		expression, err := expr.Parse(token[1 : len(token)-1])
		if err != nil {
			return circuit.Value{}, err
		}
		return circuit.Value{Expr: expression}, nil
	}

	if unit, err := units.Parse(token); err == nil {
		return circuit.Value{Unit: &unit, IsReal: true}, nil
	}

	return circuit.Value{Ident: token}, nil
}

// splitFields folds a flatStatement's kwarg fields (Key != "") into an OrderedMap,
// preserving encounter order; bare fields are returned separately.
func splitFields(fields []flatField) (positional []flatField, kwargs utils.OrderedMap[string, flatField]) {
	for _, f := range fields {
		if f.Key == "" {
			positional = append(positional, f)
			continue
		}
		kwargs.Set(strings.ToLower(f.Key), f)
	}
	return positional, kwargs
}
