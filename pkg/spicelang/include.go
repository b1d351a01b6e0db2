package spicelang

import (
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	"its-hmny.dev/spice/pkg/circuit"
)

// resolveInclude reads the file at 'path' (resolved relative to the including file's
// directory, per spec §4.4), recursively walks its lines into the current scope, and
// guards against include cycles. A netlist that never bottoms out (A includes B includes
// A) would otherwise recurse forever; PySpice's own source doesn't guard against this
// (see spec §9's open note), so the guard here is this package's own addition.
func (w *Walker) resolveInclude(path string) error {
	resolved, err := w.resolvePath(path)
	if err != nil {
		return newParseError(IncludeError, w.path, 0, "resolving include path %q: %w", path, err)
	}

	if w.includeStack[resolved] {
		return newParseError(IncludeError, w.path, 0, "include cycle detected at %q", resolved)
	}
	if w.depth >= maxIncludeDepth {
		return newParseError(IncludeError, w.path, 0, "include nesting exceeds %d levels", maxIncludeDepth)
	}

	content, err := os.ReadFile(resolved)
	if err != nil {
		return newParseError(IncludeError, w.path, 0, "reading include %q: %w", resolved, err)
	}

	log.WithField("path", resolved).Debug("resolving include")

	w.includeStack[resolved] = true
	w.depth++
	defer func() {
		delete(w.includeStack, resolved)
		w.depth--
	}()

	savedPath := w.path
	w.path = resolved
	defer func() { w.path = savedPath }()

	for _, line := range joinContinuations(string(content)) {
		if err := w.walkLine(line); err != nil {
			return err
		}
	}

	w.appendStatement(circuit.Include{Path: path, Resolved: resolved})
	return nil
}

// resolvePath resolves 'path' relative to the directory of the file currently being
// walked (or leaves it untouched for an inline/string source), returning an absolute path.
func (w *Walker) resolvePath(path string) (string, error) {
	resolved := path
	if !filepath.IsAbs(path) && w.path != "" {
		resolved = filepath.Join(filepath.Dir(w.path), path)
	}
	return filepath.Abs(resolved)
}

// resolveLibCall reads the file at 'path' (resolved the same way .include does), parses
// it standalone as a '.lib'-style circuit, and pulls out the named entry block so its
// models/subcircuits/params can be registered into the scope currently open here. This
// mirrors resolveInclude's cycle/depth guards, since a '.lib' pulling in a file that
// itself pulls back is the same runaway-recursion risk an '.include' cycle is.
func (w *Walker) resolveLibCall(path, entry string) error {
	resolved, err := w.resolvePath(path)
	if err != nil {
		return newParseError(IncludeError, w.path, 0, "resolving library path %q: %w", path, err)
	}

	if w.includeStack[resolved] {
		return newParseError(IncludeError, w.path, 0, "library include cycle detected at %q", resolved)
	}
	if w.depth >= maxIncludeDepth {
		return newParseError(IncludeError, w.path, 0, "library nesting exceeds %d levels", maxIncludeDepth)
	}

	log.WithFields(log.Fields{"path": resolved, "entry": entry}).Debug("resolving library call")

	w.includeStack[resolved] = true
	w.depth++
	defer func() {
		delete(w.includeStack, resolved)
		w.depth--
	}()

	nested, err := Parse(ParseOptions{Path: resolved, Library: true})
	if err != nil {
		return newParseError(IncludeError, w.path, 0, "parsing library %q: %w", resolved, err)
	}

	lib, ok := nested.circuit.Libraries.Get(strings.ToLower(entry))
	if !ok {
		return newParseError(MissingReference, w.path, 0, "Library entry %s not available in %s", entry, resolved)
	}

	w.circuit.Libraries.Set(strings.ToLower(entry), lib)
	w.appendStatement(circuit.LibCall{Path: path, Entry: entry})
	return nil
}
