package confnode

import (
	"encoding/xml"
	"fmt"
	"io"

	"github.com/dvhost/dvhost/types"
)

// sshsVersion is the only XML snapshot schema version this core understands.
const sshsVersion = "1.0"

type xmlEnvelope struct {
	XMLName xml.Name `xml:"sshs"`
	Version string   `xml:"version,attr"`
	Node    xmlNode  `xml:"node"`
}

type xmlNode struct {
	Name  string    `xml:"name,attr"`
	Path  string    `xml:"path,attr"`
	Attrs []xmlAttr `xml:"attr"`
	Nodes []xmlNode `xml:"node"`
}

type xmlAttr struct {
	Key   string `xml:"key,attr"`
	Type  string `xml:"type,attr"`
	Value string `xml:",chardata"`
}

// ExportXML writes n (and, if recursive, its descendants) as an <sshs>
// envelope. Attributes flagged NoExport are omitted, and the element order
// is attributes first then child nodes, matching in-memory insertion order.
func (n *node) ExportXML(w io.Writer, recursive bool) error {
	env := xmlEnvelope{Version: sshsVersion, Node: n.toXMLNode(recursive)}
	buf, err := xml.MarshalIndent(env, "", "    ")
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrMalformedXML, err)
	}
	if _, err := w.Write([]byte(xml.Header)); err != nil {
		return fmt.Errorf("%w: %v", types.ErrMalformedXML, err)
	}
	_, err = w.Write(buf)
	return err
}

func (n *node) toXMLNode(recursive bool) xmlNode {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := xmlNode{Name: n.name, Path: n.pathLocked()}
	for _, k := range n.attrOrder {
		a := n.attrs[k]
		if a.Flags.NoExport() {
			continue
		}
		out.Attrs = append(out.Attrs, xmlAttr{Key: a.Key, Type: a.Value.Type().String(), Value: a.Value.CanonicalString()})
	}
	if recursive {
		for _, cn := range n.childOrder {
			out.Nodes = append(out.Nodes, n.children[cn].toXMLNode(true))
		}
	}
	return out
}

// ImportXML reads an <sshs> envelope into n. Unknown attributes are created
// with a maximal range and flags NoExport|Imported; ReadOnly and
// out-of-range writes to pre-existing attributes are silently refused
// rather than aborting the whole import. strict requires the envelope's
// node name to match n's name.
func (n *node) ImportXML(r io.Reader, recursive bool, strict bool) error {
	var env xmlEnvelope
	dec := xml.NewDecoder(r)
	if err := dec.Decode(&env); err != nil {
		return fmt.Errorf("%w: %v", types.ErrMalformedXML, err)
	}
	if env.Version != sshsVersion {
		return fmt.Errorf("%w: got %q want %q", types.ErrVersionMismatch, env.Version, sshsVersion)
	}
	if strict && env.Node.Name != n.name {
		return fmt.Errorf("%w: node name %q != %q", types.ErrVersionMismatch, env.Node.Name, n.name)
	}
	n.applyXMLNode(env.Node, recursive)
	return nil
}

func (n *node) applyXMLNode(xn xmlNode, recursive bool) {
	for _, xa := range xn.Attrs {
		t := types.ParseType(xa.Type)
		if t == types.TypeUnknown {
			continue
		}
		v, err := types.ParseValue(t, xa.Value)
		if err != nil {
			continue
		}
		if a, aerr := n.Attr(xa.Key, t); aerr == nil {
			if a.Flags.ReadOnly() {
				continue
			}
			if !v.InRange(a.Range) {
				continue
			}
			_ = n.PutAttr(xa.Key, t, v, false)
		} else {
			n.CreateAttr(xa.Key, v, types.FullRange(t), types.FlagNoExport|types.FlagImported, "")
		}
	}
	if !recursive {
		return
	}
	for _, xc := range xn.Nodes {
		child := n.AddChild(xc.Name).(*node)
		child.applyXMLNode(xc, true)
	}
}
