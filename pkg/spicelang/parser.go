package spicelang

import (
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"

	"its-hmny.dev/spice/pkg/circuit"
)

// ----------------------------------------------------------------------------
// Public entrypoint

// ParseOptions configures a Parse call. Exactly one of Path/Source must be set.
type ParseOptions struct {
	Path    string // read the netlist from this file
	Source  string // parse this literal netlist text instead of reading a file
	Library bool   // treat the parsed circuit as a '.lib'-style block, see circuit.Circuit.Library
}

// Parse reads and fully resolves a netlist per spec §6's external interface: it runs the
// grammar, the semantic walker, and both resolver passes (model check + subcircuit sort)
// before returning. Every fatal netlist condition at any stage surfaces uniformly as
// *ParseError; a call with neither Path nor Source set returns a plain error instead.
func Parse(opts ParseOptions) (*Walker, error) {
	if opts.Path == "" && opts.Source == "" {
		return nil, fmt.Errorf("spicelang.Parse: either Path or Source must be set")
	}

	source := opts.Source
	if opts.Path != "" {
		content, err := os.ReadFile(opts.Path)
		if err != nil {
			return nil, newParseError(IncludeError, opts.Path, 0, "reading source file: %w", err)
		}
		source = string(content)
	}

	// SPICE's first non-blank physical line is conventionally the deck title, split off
	// before comment-stripping and continuation-joining run on everything that follows;
	// it is never itself parsed as a statement. A deck that opens with blank lines has
	// its title pushed to whichever line is actually first, and a deck that opens
	// directly with a directive has no title line to consume at all, per spec §6.
	title, rest := splitTitle(source)
	body := joinContinuations(rest)

	// joinContinuations numbers lines from the start of 'rest'; shift them past the
	// title and any blank lines before it so diagnostics cite physical source lines.
	offset := strings.Count(source[:len(source)-len(rest)], "\n")
	for i := range body {
		body[i].Line += offset
	}

	w := newWalker(opts.Path, opts.Library)
	if title != "" {
		w.circuit.Title = title
	}

	log.WithFields(log.Fields{"path": opts.Path, "lines": len(body)}).Debug("parsing netlist")

	for _, line := range body {
		if err := w.walkLine(line); err != nil {
			return nil, err
		}
	}

	if w.present.kind != "circuit" {
		return nil, newParseError(UnclosedScope, w.path, 0, "reached end of input with a '%s' scope still open (%q)", w.present.kind, w.present.name)
	}

	if err := w.Resolve(); err != nil {
		return nil, err
	}

	return w, nil
}

// splitTitle finds SPICE's title line: the first non-blank physical line of 'source',
// unless that line is itself a directive, in which case there is no title and 'source'
// is returned from its current, unconsumed position for statement parsing.
func splitTitle(source string) (title, rest string) {
	remaining := source
	for {
		line, after, found := strings.Cut(remaining, "\n")
		trimmed := strings.TrimSpace(line)

		if trimmed == "" {
			if !found {
				return "", remaining
			}
			remaining = after
			continue
		}
		if strings.HasPrefix(trimmed, ".") {
			return "", remaining
		}
		return trimmed, after
	}
}

// ----------------------------------------------------------------------------
// Accessors (spec §6 external interface)

func (w *Walker) Circuit() *circuit.Circuit { return w.circuit }

func (w *Walker) Models() []circuit.Model {
	models := make([]circuit.Model, 0, w.circuit.Models.Size())
	for _, model := range w.circuit.Models.Entries() {
		models = append(models, model)
	}
	return models
}

func (w *Walker) Subcircuits() []*circuit.Subcircuit {
	subs := make([]*circuit.Subcircuit, 0, w.circuit.Subcircuits.Size())
	for _, sub := range w.circuit.Subcircuits.Entries() {
		subs = append(subs, sub)
	}
	return subs
}

func (w *Walker) Parameters() []circuit.Param {
	params := make([]circuit.Param, 0, w.circuit.Parameters.Size())
	for _, param := range w.circuit.Parameters.Entries() {
		params = append(params, param)
	}
	return params
}

// BuildCircuit replays the resolved circuit into 'sink', rewriting every node spelled
// 'ground' (defaulting to "0" when empty) to the ground node "0", per spec §6/§4.6.
func (w *Walker) BuildCircuit(sink circuit.Sink, ground string) error {
	return w.circuit.Build(sink, ground)
}

func (w *Walker) IsOnlySubcircuit() bool { return w.circuit.IsOnlySubcircuit() }
func (w *Walker) IsOnlyModel() bool      { return w.circuit.IsOnlyModel() }
