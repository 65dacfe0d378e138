package moduleinfo

import (
	"fmt"
	"path/filepath"
	"plugin"

	"github.com/mitchellh/mapstructure"

	"github.com/dvhost/dvhost/types"
)

// infoSymbol is the exported symbol a dynamic module library may provide: a
// zero-argument function returning its ModuleInfo declaration directly.
const infoSymbol = "ModuleGetInfo"

// metadataSymbol and funcsSymbol are the alternate pair of exported symbols
// a library may provide instead of infoSymbol: metadataSymbol is a plain
// map[string]interface{} (decoded into ModuleMeta via mapstructure) and
// funcsSymbol is a zero-argument function returning ModuleFuncs. Splitting
// the declaration this way lets a library survive a ModuleInfo struct-layout
// mismatch between its own build and the host's, since only a primitive map
// value (not a struct literal of a versioned type) needs to cross the
// plugin boundary intact.
const (
	metadataSymbol = "ModuleMetadata"
	funcsSymbol    = "ModuleFunctions"
)

// Loader discovers dynamic module libraries (.so files) on disk and
// registers their declarations into a Registry. Go's plugin package has no
// notion of unloading a library once opened; "unload after discovery" is
// therefore approximate here — the *plugin.Plugin handle is simply not
// retained past the call that extracts ModuleInfo, so nothing the runtime
// holds onto keeps the library's code pages resident on the Registry's
// account. The underlying process-wide mapping performed by dlopen is a
// platform and runtime guarantee Go does not expose a way to reverse.
type Loader struct {
	registry *Registry
	logger   types.Logger
}

// NewLoader returns a loader that registers discoveries into registry.
func NewLoader(registry *Registry, logger types.Logger) *Loader {
	if logger == nil {
		logger = types.NopLogger()
	}
	return &Loader{registry: registry, logger: logger}
}

// Discover scans each directory in searchPaths (non-recursively) for *.so
// files, opens each as a Go plugin, and registers the ModuleInfo it
// declares under its file base name (without extension). A library that
// fails to open or lacks the expected symbol is logged and skipped rather
// than aborting the whole scan.
func (l *Loader) Discover(searchPaths []string) error {
	for _, dir := range searchPaths {
		matches, err := filepath.Glob(filepath.Join(dir, "*.so"))
		if err != nil {
			return fmt.Errorf("%w: glob %q: %v", types.ErrLibraryNotFound, dir, err)
		}
		for _, path := range matches {
			if err := l.loadOne(path); err != nil {
				l.logger.Warnf("skipping module library %s: %v", path, err)
			}
		}
	}
	return nil
}

func (l *Loader) loadOne(path string) error {
	p, err := plugin.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrLibraryNotFound, err)
	}

	info, err := l.resolveInfo(p)
	if err != nil {
		return err
	}

	name := libraryName(path)
	l.registry.Register(name, info)
	l.logger.Infof("discovered module library %s (%s, version %d)", name, info.Type, info.Version)
	return nil
}

// resolveInfo tries infoSymbol first, then falls back to the
// metadataSymbol/funcsSymbol pair.
func (l *Loader) resolveInfo(p *plugin.Plugin) (types.ModuleInfo, error) {
	if sym, err := p.Lookup(infoSymbol); err == nil {
		fn, ok := sym.(func() types.ModuleInfo)
		if !ok {
			return types.ModuleInfo{}, fmt.Errorf("%w: %s has the wrong signature", types.ErrLibraryNotFound, infoSymbol)
		}
		return fn(), nil
	}

	metaSym, err := p.Lookup(metadataSymbol)
	if err != nil {
		return types.ModuleInfo{}, fmt.Errorf("%w: missing %s or %s", types.ErrLibraryNotFound, infoSymbol, metadataSymbol)
	}
	rawMeta, ok := metaSym.(*map[string]interface{})
	if !ok {
		return types.ModuleInfo{}, fmt.Errorf("%w: %s has the wrong type", types.ErrLibraryNotFound, metadataSymbol)
	}
	var meta types.ModuleMeta
	if err := mapstructure.Decode(*rawMeta, &meta); err != nil {
		return types.ModuleInfo{}, fmt.Errorf("%w: decoding %s: %v", types.ErrLibraryNotFound, metadataSymbol, err)
	}

	funcsSym, err := p.Lookup(funcsSymbol)
	if err != nil {
		return types.ModuleInfo{}, fmt.Errorf("%w: missing %s: %v", types.ErrLibraryNotFound, funcsSymbol, err)
	}
	funcsFn, ok := funcsSym.(func() types.ModuleFuncs)
	if !ok {
		return types.ModuleInfo{}, fmt.Errorf("%w: %s has the wrong signature", types.ErrLibraryNotFound, funcsSymbol)
	}

	return types.ModuleInfo{
		Version:     meta.Version,
		Name:        meta.Name,
		Description: meta.Description,
		Type:        types.ParseModuleType(meta.Type),
		Functions:   funcsFn(),
	}, nil
}

func libraryName(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}
