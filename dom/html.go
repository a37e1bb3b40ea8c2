package dom

import (
	"io"

	"github.com/cespare/xxhash/v2"
	qt "github.com/valyala/quicktemplate"

	"github.com/delaneyj/bindparty/expr"
)

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"source": true, "track": true, "wbr": true,
}

// Properties that show up as attributes in rendered HTML.
var reflectedProperties = []string{"value", "checked", "disabled", "selected"}

// StreamHTML renders n into qw.
func StreamHTML(qw *qt.Writer, n *Node) {
	if n.IsText() {
		qw.E().S(n.text)
		return
	}
	qw.N().S("<")
	qw.N().S(n.Tag)
	for _, name := range n.AttributeNames() {
		streamAttr(qw, name, n.attrs[name])
	}
	for _, name := range reflectedProperties {
		if _, isAttr := n.attrs[name]; isAttr {
			continue
		}
		v, ok := n.props[name]
		if !ok || v == nil {
			continue
		}
		if b, isBool := v.(bool); isBool {
			if b {
				qw.N().S(" ")
				qw.N().S(name)
			}
			continue
		}
		streamAttr(qw, name, expr.ToString(v))
	}
	qw.N().S(">")
	if voidElements[n.Tag] {
		return
	}
	for _, c := range n.children {
		StreamHTML(qw, c)
	}
	qw.N().S("</")
	qw.N().S(n.Tag)
	qw.N().S(">")
}

func streamAttr(qw *qt.Writer, name, value string) {
	qw.N().S(" ")
	qw.N().S(name)
	if value == "" {
		return
	}
	qw.N().S(`="`)
	qw.E().S(value)
	qw.N().S(`"`)
}

// WriteHTML renders n into w.
func WriteHTML(w io.Writer, n *Node) {
	qw := qt.AcquireWriter(w)
	StreamHTML(qw, n)
	qt.ReleaseWriter(qw)
}

// HTML renders n to a string.
func HTML(n *Node) string {
	bb := qt.AcquireByteBuffer()
	WriteHTML(bb, n)
	s := string(bb.B)
	qt.ReleaseByteBuffer(bb)
	return s
}

// Digest hashes the rendered HTML of n. Equal trees give equal digests.
func Digest(n *Node) uint64 {
	h := xxhash.New()
	WriteHTML(h, n)
	return h.Sum64()
}
