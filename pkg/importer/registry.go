// Package importer holds the ordered format registry and the helpers shared
// by the bill extractors: filename detection, decoding, and table reading.
package importer

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"github.com/ArionMiles/beanbill/pkg/api"
)

// FilenameMatcher is implemented by importers that recognize a file by its
// name alone, without opening it.
type FilenameMatcher interface {
	MatchesFilename(path string) bool
}

// Registry holds importers in registration order. Filename matches across
// all importers take precedence; after that the first importer whose
// Supports predicate accepts the file wins.
type Registry struct {
	importers []api.Importer
	logger    *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register appends an importer. Names must be unique.
func (r *Registry) Register(imp api.Importer) error {
	name := imp.Name()
	for _, existing := range r.importers {
		if existing.Name() == name {
			return fmt.Errorf("importer %q already registered", name)
		}
	}
	r.importers = append(r.importers, imp)
	return nil
}

// Match returns the importer for path. Every importer gets a chance to
// claim the file by name before any file content is read, so a content
// sniff never overrides a filename keyword. Detection runs on every call.
func (r *Registry) Match(path string) (api.Importer, error) {
	ext := strings.ToLower(filepath.Ext(path))
	var candidates []api.Importer
	for _, imp := range r.importers {
		if slices.Contains(imp.Extensions(), ext) {
			candidates = append(candidates, imp)
		}
	}

	for _, imp := range candidates {
		if fm, ok := imp.(FilenameMatcher); ok && fm.MatchesFilename(path) {
			r.logger.Debug("matched importer by filename", "file", filepath.Base(path), "importer", imp.Name())
			return imp, nil
		}
	}
	for _, imp := range candidates {
		if imp.Supports(path) {
			r.logger.Debug("matched importer", "file", filepath.Base(path), "importer", imp.Name())
			return imp, nil
		}
	}
	return nil, api.NewFormatError(path, "no matching format", nil)
}

// List returns the importers in registration order.
func (r *Registry) List() []api.Importer {
	return slices.Clone(r.importers)
}

// Extensions returns every extension any importer accepts.
func (r *Registry) Extensions() []string {
	var exts []string
	for _, imp := range r.importers {
		for _, ext := range imp.Extensions() {
			if !slices.Contains(exts, ext) {
				exts = append(exts, ext)
			}
		}
	}
	return exts
}
