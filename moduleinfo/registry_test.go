package moduleinfo

import (
	"bytes"
	"strings"
	"testing"

	"github.com/dvhost/dvhost/confnode"
	"github.com/dvhost/dvhost/types"
)

func TestDefaultRegistryHasBuiltins(t *testing.T) {
	want := []string{"FileSource", "FileSink", "TCPSource", "ExprFilter", "NoiseFilter", "PacketStatistics"}
	for _, name := range want {
		if _, err := Default.Get(name); err != nil {
			t.Fatalf("built-in %q missing from default registry: %v", name, err)
		}
	}
}

func TestGetUnknownLibrary(t *testing.T) {
	if _, err := Default.Get("NoSuchModule"); err == nil {
		t.Fatal("expected ErrLibraryNotFound")
	}
}

func TestListOptionsIsSorted(t *testing.T) {
	r := NewRegistry()
	r.Register("Zeta", types.ModuleInfo{Type: types.ModuleOutput})
	r.Register("Alpha", types.ModuleInfo{Type: types.ModuleInput})
	opts := r.ListOptions()
	if !strings.HasPrefix(opts, "Alpha") {
		t.Fatalf("expected Alpha first, got %q", opts)
	}
}

func TestPopulateSystemTree(t *testing.T) {
	r := NewRegistry()
	r.Register("Demo", types.ModuleInfo{
		Version: 3, Description: "a demo module", Type: types.ModuleProcessor,
		InputStreams:  []types.StreamDef{{Name: "in", Types: []types.PacketType{types.PacketPolarity}, Description: "in stream"}},
		OutputStreams: []types.StreamDef{{Name: "out", Types: []types.PacketType{types.PacketPolarity}, Description: "out stream"}},
	})

	tr := confnode.NewTree()
	system := tr.Root().AddChild("system")
	r.PopulateSystemTree(system)

	demo, err := tr.GetNode("/system/modules/Demo/")
	if err != nil {
		t.Fatalf("expected /system/modules/Demo/, got err %v", err)
	}
	v, err := demo.GetAttr("version", types.TypeI32)
	if err != nil || v.I32() != 3 {
		t.Fatalf("version = %v, %v, want 3, nil", v, err)
	}
	opts, err := system.GetAttr("modulesListOptions", types.TypeString)
	if err != nil || opts.Str() != "Demo" {
		t.Fatalf("modulesListOptions = %q, %v, want %q, nil", opts.Str(), err, "Demo")
	}

	var buf bytes.Buffer
	if err := demo.ExportXML(&buf, true); err != nil {
		t.Fatalf("export: %v", err)
	}
}
