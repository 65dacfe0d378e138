// Package moduleinfo implements the module loader and info registry: the
// discovery of dynamic libraries and built-in modules, and the read-only
// /system/modules/ subtree describing them.
package moduleinfo

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/dvhost/dvhost/types"
	"github.com/fatih/structs"
)

// Registry holds every module declaration known to the runtime, whether
// built in at compile time or discovered from a shared library on disk.
type Registry struct {
	mu   sync.RWMutex
	libs map[string]types.ModuleInfo
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{libs: make(map[string]types.ModuleInfo)}
}

// Default is the process-wide registry built-in modules register
// themselves into; see builtin.go. Dynamic discovery (Loader.Discover)
// populates the same instance.
var Default = NewRegistry()

// Register adds info under name. Re-registering the same name overwrites
// the previous declaration, mirroring a re-scan picking up a rebuilt
// library.
func (r *Registry) Register(name string, info types.ModuleInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if info.Name == "" {
		info.Name = name
	}
	r.libs[name] = info
}

// Get returns the declaration for name.
func (r *Registry) Get(name string) (types.ModuleInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.libs[name]
	if !ok {
		return types.ModuleInfo{}, fmt.Errorf("%w: %q", types.ErrLibraryNotFound, name)
	}
	return info, nil
}

// Names returns every known library name, sorted, which doubles as the
// "modulesListOptions" CSV source for the add-module UI flow.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.libs))
	for n := range r.libs {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// ListOptions renders Names() as the CSV the wire protocol's AddModule flow
// advertises under modulesListOptions.
func (r *Registry) ListOptions() string {
	return strings.Join(r.Names(), ",")
}

// PopulateSystemTree writes the /system/modules/<lib>/ subtree for every
// registered library, as read-only descriptive attributes. Flattening each
// ModuleInfo through fatih/structs keeps the set of exported fields (and
// their export order) centralized in one place rather than hand-listing
// them twice.
func (r *Registry) PopulateSystemTree(systemNode types.Node) {
	modules := systemNode.AddChild("modules")
	for _, name := range r.Names() {
		info, _ := r.Get(name)
		libNode := modules.AddChild(name)
		fields := structs.Fields(&info)
		for _, f := range fields {
			switch f.Name() {
			case "Version":
				libNode.CreateAttr("version", types.I32Value(int32(info.Version)), types.I32Range(0, 1<<30), types.FlagReadOnly, "module version")
			case "Description":
				libNode.CreateAttr("description", types.StringValue(info.Description), types.FullStringRange(), types.FlagReadOnly, "module description")
			case "Type":
				libNode.CreateAttr("type", types.StringValue(info.Type.String()), types.FullStringRange(), types.FlagReadOnly, "module type: Input, Processor, or Output")
			}
		}
		writeStreamDefs(libNode.AddChild("inputStreams"), info.InputStreams)
		writeStreamDefs(libNode.AddChild("outputStreams"), info.OutputStreams)
	}
	systemNode.CreateAttr("modulesListOptions", types.StringValue(r.ListOptions()), types.FullStringRange(), types.FlagReadOnly, "CSV of discovered module library names")
}

func writeStreamDefs(parent types.Node, defs []types.StreamDef) {
	for _, d := range defs {
		sn := parent.AddChild(d.Name)
		sn.CreateAttr("description", types.StringValue(d.Description), types.FullStringRange(), types.FlagReadOnly, "")
		var typeNames []string
		for _, t := range d.Types {
			typeNames = append(typeNames, t.String())
		}
		sn.CreateAttr("types", types.StringValue(strings.Join(typeNames, ",")), types.FullStringRange(), types.FlagReadOnly, "")
	}
}
