package confnode

import (
	"bytes"
	"testing"

	"github.com/dvhost/dvhost/types"
)

func TestXMLRoundTrip(t *testing.T) {
	tr := NewTree()
	mainloop := tr.Root().AddChild("mainloop")
	mainloop.CreateAttr("running", types.BoolValue(true), types.BoolRange(), types.FlagNormal, "")
	mainloop.CreateAttr("secret", types.StringValue("shh"), types.StringRange(0, 32), types.FlagNoExport, "")
	cam := mainloop.AddChild("cam")
	cam.CreateAttr("logLevel", types.I32Value(4), types.I32Range(0, 10), types.FlagNormal, "")

	var buf bytes.Buffer
	if err := mainloop.ExportXML(&buf, true); err != nil {
		t.Fatalf("export: %v", err)
	}
	if bytes.Contains(buf.Bytes(), []byte("secret")) {
		t.Fatal("NoExport attribute leaked into export")
	}

	tr2 := NewTree()
	target := tr2.Root().AddChild("mainloop")
	if err := target.ImportXML(&buf, true, false); err != nil {
		t.Fatalf("import: %v", err)
	}

	v, err := target.GetAttr("running", types.TypeBool)
	if err != nil || !v.Bool() {
		t.Fatalf("running = %v, %v, want true, nil", v, err)
	}
	camChild, err := target.GetChild("cam")
	if err != nil {
		t.Fatalf("missing child cam: %v", err)
	}
	lv, err := camChild.GetAttr("logLevel", types.TypeI32)
	if err != nil || lv.I32() != 4 {
		t.Fatalf("logLevel = %v, %v, want 4, nil", lv, err)
	}
}

func TestImportXMLSkipsReadOnlyAndOutOfRange(t *testing.T) {
	tr := NewTree()
	n := tr.Root().AddChild("mainloop")
	n.CreateAttr("moduleId", types.I32Value(1), types.I32Range(0, 100), types.FlagReadOnly, "")
	n.CreateAttr("thresh", types.I32Value(5), types.I32Range(0, 10), types.FlagNormal, "")

	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0"?><sshs version="1.0"><node name="mainloop" path="/mainloop/">` +
		`<attr key="moduleId" type="int">99</attr>` +
		`<attr key="thresh" type="int">9999</attr>` +
		`</node></sshs>`)

	if err := n.ImportXML(&buf, false, false); err != nil {
		t.Fatalf("import: %v", err)
	}
	v, _ := n.GetAttr("moduleId", types.TypeI32)
	if v.I32() != 1 {
		t.Fatalf("ReadOnly attribute must be refused, got %d", v.I32())
	}
	th, _ := n.GetAttr("thresh", types.TypeI32)
	if th.I32() != 5 {
		t.Fatalf("out-of-range write must be refused, got %d", th.I32())
	}
}
